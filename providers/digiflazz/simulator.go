package digiflazz

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-topup/core"
)

const DefaultSimulatedLatency = 800 * time.Millisecond

// Simulator stands in for the provider API in local runs. Submissions are
// accepted as pending and settle on the next status check.
type Simulator struct {
	Latency time.Duration
	// Outcome decides the settled state for a reference. Nil settles every
	// transaction as successful.
	Outcome func(reference string) core.ProvisioningState

	mu       sync.Mutex
	requests map[string]core.ProvisioningRequest
}

func NewSimulator(latency time.Duration) *Simulator {
	if latency < 0 {
		latency = 0
	}
	return &Simulator{Latency: latency, requests: map[string]core.ProvisioningRequest{}}
}

func (s *Simulator) Submit(ctx context.Context, req core.ProvisioningRequest) (core.ProvisioningStatus, error) {
	if err := s.wait(ctx); err != nil {
		return core.ProvisioningStatus{}, err
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" || strings.TrimSpace(req.Signature) == "" {
		return core.ProvisioningStatus{Reference: reference, State: core.ProvisioningStateFailed, Message: "sign is required"}, nil
	}
	s.mu.Lock()
	if s.requests == nil {
		s.requests = map[string]core.ProvisioningRequest{}
	}
	s.requests[reference] = req
	s.mu.Unlock()
	return core.ProvisioningStatus{Reference: reference, State: core.ProvisioningStatePending, Message: "Transaksi Pending"}, nil
}

func (s *Simulator) CheckStatus(ctx context.Context, req core.ProvisioningRequest) (core.ProvisioningStatus, error) {
	if err := s.wait(ctx); err != nil {
		return core.ProvisioningStatus{}, err
	}
	reference := strings.TrimSpace(req.Reference)
	s.mu.Lock()
	submitted, ok := s.requests[reference]
	s.mu.Unlock()
	if !ok {
		return core.ProvisioningStatus{Reference: reference, State: core.ProvisioningStateFailed, Message: "ref_id tidak ditemukan"}, nil
	}

	state := core.ProvisioningStateSuccess
	if s.Outcome != nil {
		state = s.Outcome(reference)
	}
	status := core.ProvisioningStatus{Reference: reference, State: state}
	switch state {
	case core.ProvisioningStateSuccess:
		status.ProviderRef = "SN-" + submitted.CustomerIdentifier + "-" + reference
		status.Message = "Transaksi Sukses"
	case core.ProvisioningStateFailed:
		status.Message = "Transaksi Gagal"
	default:
		status.Message = "Transaksi Pending"
	}
	return status, nil
}

func (s *Simulator) wait(ctx context.Context) error {
	if s == nil || s.Latency <= 0 {
		return nil
	}
	timer := time.NewTimer(s.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ core.ProvisioningProvider = (*Simulator)(nil)
