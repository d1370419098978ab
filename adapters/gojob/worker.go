package gojob

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-topup/core"
)

// ProvisioningConfirmer is the lifecycle operation a worker drives.
type ProvisioningConfirmer interface {
	ConfirmProvisioning(ctx context.Context, reference string) (core.Order, error)
}

type attemptCounter interface {
	Attempt() int
}

type WorkerOption func(*ProvisioningWorker)

func WithRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *ProvisioningWorker) {
		w.policy = policy
	}
}

func WithBackoff(backoff ExponentialRetryPolicy) WorkerOption {
	return func(w *ProvisioningWorker) {
		w.backoff = backoff
	}
}

func WithWorkerHook(hook worker.Hook) WorkerOption {
	return func(w *ProvisioningWorker) {
		w.hook = hook
	}
}

func WithWorkerLogger(logger glog.Logger) WorkerOption {
	return func(w *ProvisioningWorker) {
		w.logger = logger
	}
}

// ProvisioningWorker consumes provisioning confirmations and retries the ones
// whose outcome is not known yet.
type ProvisioningWorker struct {
	dequeuer  queue.Dequeuer
	confirmer ProvisioningConfirmer
	policy    RetryPolicy
	backoff   ExponentialRetryPolicy
	hook      worker.Hook
	logger    glog.Logger
	now       func() time.Time
}

func NewProvisioningWorker(dequeuer queue.Dequeuer, confirmer ProvisioningConfirmer, opts ...WorkerOption) *ProvisioningWorker {
	w := &ProvisioningWorker{
		dequeuer:  dequeuer,
		confirmer: confirmer,
		policy: RetryPolicy{
			MaxAttempts:     10,
			MaxDelay:        time.Minute,
			DeadLetterOnMax: true,
		},
		backoff: ExponentialRetryPolicy{Initial: 2 * time.Second, Max: time.Minute},
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	w.logger = glog.Ensure(w.logger)
	return w
}

// Run processes deliveries until ctx is done.
func (w *ProvisioningWorker) Run(ctx context.Context) error {
	if w == nil || w.dequeuer == nil || w.confirmer == nil {
		return core.NewInternalError("gojob: provisioning worker is not configured", nil)
	}
	for {
		err := w.RunOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			continue
		}
		w.logger.Warn("provisioning worker iteration failed", "error", err.Error())
		pause := time.NewTimer(w.backoff.NextDelay(1))
		select {
		case <-ctx.Done():
			pause.Stop()
			return nil
		case <-pause.C:
		}
	}
}

// RunOnce dequeues and settles a single delivery.
func (w *ProvisioningWorker) RunOnce(ctx context.Context) error {
	if w == nil || w.dequeuer == nil || w.confirmer == nil {
		return core.NewInternalError("gojob: provisioning worker is not configured", nil)
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}

	msg := delivery.Message()
	attempt := deliveryAttempt(delivery)
	event := worker.Event{Message: msg, Delivery: delivery, Attempt: attempt, StartedAt: w.now()}
	w.onStart(ctx, event)

	provisioning, err := FromExecutionMessage(msg)
	if err != nil {
		event.Err = err
		event.Duration = w.now().Sub(event.StartedAt)
		w.onFailure(ctx, event)
		w.logger.Error("dropping malformed provisioning message", "error", err.Error())
		return delivery.Nack(ctx, queue.NackOptions{DeadLetter: true, Reason: err.Error()})
	}

	order, err := w.confirmer.ConfirmProvisioning(ctx, provisioning.Reference)
	event.Duration = w.now().Sub(event.StartedAt)
	if err == nil {
		w.onSuccess(ctx, event)
		w.logger.Info("provisioning confirmed",
			"reference", order.Reference,
			"order_status", string(order.Status),
			"attempt", attempt,
		)
		return delivery.Ack(ctx)
	}

	event.Err = err
	if !retryable(err) {
		w.onFailure(ctx, event)
		w.logger.Warn("provisioning confirmation abandoned",
			"reference", provisioning.Reference,
			"error", err.Error(),
			"error_kind", string(core.KindOf(err)),
		)
		return delivery.Ack(ctx)
	}

	nack := w.policy.NormalizeAttempt(queue.NackOptions{
		Delay:   w.backoff.NextDelay(attempt),
		Requeue: true,
		Reason:  err.Error(),
	}, attempt)
	event.Delay = nack.Delay
	if nack.Requeue {
		w.onRetry(ctx, event)
	} else {
		w.onFailure(ctx, event)
	}
	w.logger.Info("provisioning confirmation deferred",
		"reference", provisioning.Reference,
		"attempt", attempt,
		"delay_ms", nack.Delay.Milliseconds(),
		"dead_letter", nack.DeadLetter,
		"error_kind", string(core.KindOf(err)),
	)
	return delivery.Nack(ctx, nack)
}

// retryable reports outcomes that may change on a later check.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch core.KindOf(err) {
	case core.ErrorKindProvisioningPending,
		core.ErrorKindProviderTimeout,
		core.ErrorKindProviderRequestFailed,
		core.ErrorKindInternal:
		return true
	default:
		return false
	}
}

func deliveryAttempt(delivery queue.Delivery) int {
	if counter, ok := delivery.(attemptCounter); ok && counter.Attempt() > 0 {
		return counter.Attempt()
	}
	if msg := delivery.Message(); msg != nil {
		if attempt := intParam(msg.Parameters, "attempt"); attempt > 0 {
			return attempt
		}
	}
	return 1
}

func (w *ProvisioningWorker) onStart(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *ProvisioningWorker) onSuccess(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *ProvisioningWorker) onFailure(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *ProvisioningWorker) onRetry(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
}
