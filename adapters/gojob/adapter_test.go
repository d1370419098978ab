package gojob

import (
	"context"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-topup/core"
)

func TestMessageMappingRoundTrip(t *testing.T) {
	original := core.ProvisioningJob{
		Reference:  "INV-1",
		ProductSKU: "ML86",
		CustomerNo: "123456781234",
		Attempt:    2,
	}

	converted := ToExecutionMessage(original)
	if converted.JobID != JobIDConfirmProvisioning || converted.ScriptPath != JobIDConfirmProvisioning {
		t.Fatalf("unexpected job id mapping %#v", converted)
	}
	if converted.IdempotencyKey != "provision:INV-1" {
		t.Fatalf("expected idempotency key provision:INV-1, got %q", converted.IdempotencyKey)
	}
	if converted.DedupPolicy != job.DeduplicationPolicy("drop") {
		t.Fatalf("expected drop dedup policy, got %q", converted.DedupPolicy)
	}

	roundTrip, err := FromExecutionMessage(converted)
	if err != nil {
		t.Fatalf("from execution message: %v", err)
	}
	if roundTrip != original {
		t.Fatalf("expected round trip %#v, got %#v", original, roundTrip)
	}
}

func TestFromExecutionMessage_Tolerance(t *testing.T) {
	if _, err := FromExecutionMessage(nil); err == nil {
		t.Fatalf("expected nil message to fail")
	}
	if _, err := FromExecutionMessage(&job.ExecutionMessage{JobID: "other.job"}); err == nil {
		t.Fatalf("expected foreign job id to fail")
	}

	decoded, err := FromExecutionMessage(&job.ExecutionMessage{
		JobID:          JobIDConfirmProvisioning,
		Parameters:     map[string]any{"attempt": float64(3)},
		IdempotencyKey: "provision:INV-7",
	})
	if err != nil {
		t.Fatalf("from execution message: %v", err)
	}
	if decoded.Reference != "INV-7" || decoded.Attempt != 3 {
		t.Fatalf("expected key fallback and float attempt, got %#v", decoded)
	}

	if _, err := FromExecutionMessage(&job.ExecutionMessage{JobID: JobIDConfirmProvisioning}); err == nil {
		t.Fatalf("expected message without reference to fail")
	}
}

func TestNackRetryPolicyBoundaries(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	}

	first := policy.NormalizeAttempt(queue.NackOptions{
		Delay:   30 * time.Second,
		Requeue: true,
		Reason:  " transient ",
	}, 1)
	if first.Delay != 10*time.Second {
		t.Fatalf("expected delay to be bounded, got %s", first.Delay)
	}
	if !first.Requeue || first.Reason != "transient" {
		t.Fatalf("expected message to be requeued before max attempts, got %#v", first)
	}

	last := policy.NormalizeAttempt(queue.NackOptions{
		Delay:   time.Second,
		Requeue: true,
		Reason:  "still failing",
	}, 3)
	if last.Requeue {
		t.Fatalf("expected no requeue once max attempts is reached")
	}
	if !last.DeadLetter {
		t.Fatalf("expected dead letter on max attempts")
	}

	defaulted := RetryPolicy{}.NormalizeAttempt(queue.NackOptions{Delay: -time.Second}, 1)
	if !defaulted.Requeue || defaulted.Delay != 0 {
		t.Fatalf("expected zero policy to requeue without negative delay, got %#v", defaulted)
	}
}

func TestExponentialRetryPolicy_NextDelay(t *testing.T) {
	policy := ExponentialRetryPolicy{Initial: time.Second, Max: 5 * time.Second}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 5 * time.Second},
		{attempt: 12, want: 5 * time.Second},
	}
	for _, tc := range cases {
		if got := policy.NextDelay(tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: expected %s, got %s", tc.attempt, tc.want, got)
		}
	}
	if got := (ExponentialRetryPolicy{}).NextDelay(1); got != time.Second {
		t.Fatalf("expected default initial delay, got %s", got)
	}
}

func TestProvisioningDispatcher_Enqueues(t *testing.T) {
	enqueuer := &stubQueueEnqueuer{}
	dispatcher := NewProvisioningDispatcher(enqueuer)

	if err := dispatcher.DispatchProvisioning(context.Background(), core.ProvisioningJob{Reference: "INV-1", ProductSKU: "ML86"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.IdempotencyKey != "provision:INV-1" {
		t.Fatalf("expected mapped go-job message, got %#v", enqueuer.last)
	}

	if err := dispatcher.DispatchProvisioning(context.Background(), core.ProvisioningJob{}); !core.IsKind(err, core.ErrorKindInvalidInput) {
		t.Fatalf("expected missing reference to be rejected, got %v", err)
	}
	if err := NewProvisioningDispatcher(nil).DispatchProvisioning(context.Background(), core.ProvisioningJob{Reference: "INV-1"}); err == nil {
		t.Fatalf("expected missing enqueuer to fail")
	}
}

func TestReconcilePaidOrders(t *testing.T) {
	ctx := context.Background()
	store := core.NewMemoryOrderStore()
	for _, seed := range []struct {
		reference string
		status    core.OrderStatus
	}{
		{"INV-1", core.OrderStatusPaid},
		{"INV-2", core.OrderStatusPending},
		{"INV-3", core.OrderStatusPaid},
	} {
		if err := store.Put(ctx, core.Order{
			Reference:  seed.reference,
			ProductSKU: "ML86",
			Status:     seed.status,
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			t.Fatalf("put %s: %v", seed.reference, err)
		}
	}

	memoryQueue := NewMemoryQueue()
	dispatched, err := ReconcilePaidOrders(ctx, store, NewProvisioningDispatcher(memoryQueue), 10)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if dispatched != 2 || memoryQueue.Len() != 2 {
		t.Fatalf("expected two paid orders dispatched, got %d (queue %d)", dispatched, memoryQueue.Len())
	}

	if _, err := ReconcilePaidOrders(ctx, nil, nil, 10); err == nil {
		t.Fatalf("expected missing collaborators to fail")
	}
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}
