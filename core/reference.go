package core

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const referencePrefix = "INV-"

// MonotonicReferenceGenerator issues INV-<unix millis>-<suffix> references.
// The millisecond component never repeats or goes backwards within one
// generator, and the random suffix keeps separate processes apart.
type MonotonicReferenceGenerator struct {
	mu   sync.Mutex
	last int64
}

func NewReferenceGenerator() *MonotonicReferenceGenerator {
	return &MonotonicReferenceGenerator{}
}

func (g *MonotonicReferenceGenerator) NewReference(now time.Time) string {
	millis := now.UnixMilli()
	g.mu.Lock()
	if millis <= g.last {
		millis = g.last + 1
	}
	g.last = millis
	g.mu.Unlock()

	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return referencePrefix + strconv.FormatInt(millis, 10) + "-" + suffix
}
