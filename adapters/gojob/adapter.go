package gojob

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-topup/core"
)

const (
	JobIDConfirmProvisioning = "topup.provisioning.confirm"

	idempotencyPrefix = "provision:"
	dedupPolicyDrop   = job.DeduplicationPolicy("drop")
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ExponentialRetryPolicy doubles the delay per attempt up to Max.
type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

// IdempotencyKey is the dedup key for an order's provisioning confirmation.
func IdempotencyKey(reference string) string {
	return idempotencyPrefix + strings.TrimSpace(reference)
}

// ToExecutionMessage maps a provisioning job to a go-job message.
func ToExecutionMessage(provisioning core.ProvisioningJob) *job.ExecutionMessage {
	attempt := provisioning.Attempt
	if attempt <= 0 {
		attempt = 1
	}
	return &job.ExecutionMessage{
		JobID:      JobIDConfirmProvisioning,
		ScriptPath: JobIDConfirmProvisioning,
		Parameters: map[string]any{
			"reference":   strings.TrimSpace(provisioning.Reference),
			"product_sku": strings.TrimSpace(provisioning.ProductSKU),
			"customer_no": strings.TrimSpace(provisioning.CustomerNo),
			"attempt":     attempt,
		},
		IdempotencyKey: IdempotencyKey(provisioning.Reference),
		DedupPolicy:    dedupPolicyDrop,
	}
}

// FromExecutionMessage maps a go-job message back to a provisioning job.
func FromExecutionMessage(msg *job.ExecutionMessage) (core.ProvisioningJob, error) {
	if msg == nil {
		return core.ProvisioningJob{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDConfirmProvisioning {
		return core.ProvisioningJob{}, fmt.Errorf("gojob: unsupported job id %q", msg.JobID)
	}
	out := core.ProvisioningJob{
		Reference:  stringParam(msg.Parameters, "reference"),
		ProductSKU: stringParam(msg.Parameters, "product_sku"),
		CustomerNo: stringParam(msg.Parameters, "customer_no"),
		Attempt:    intParam(msg.Parameters, "attempt"),
	}
	if out.Reference == "" {
		out.Reference = strings.TrimPrefix(strings.TrimSpace(msg.IdempotencyKey), idempotencyPrefix)
	}
	if out.Reference == "" {
		return core.ProvisioningJob{}, fmt.Errorf("gojob: provisioning message has no reference")
	}
	if out.Attempt <= 0 {
		out.Attempt = 1
	}
	return out, nil
}

func stringParam(params map[string]any, key string) string {
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

// intParam accepts the numeric shapes a message can carry after a JSON hop.
func intParam(params map[string]any, key string) int {
	switch value := params[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
