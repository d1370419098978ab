package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

func provisioningMessage(reference string) *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:          JobIDConfirmProvisioning,
		Parameters:     map[string]any{"reference": reference},
		IdempotencyKey: IdempotencyKey(reference),
	}
}

func TestMemoryQueue_DropsDuplicateKeysUntilSettled(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	if err := q.Enqueue(ctx, provisioningMessage("INV-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, provisioningMessage("INV-1")); err != nil {
		t.Fatalf("enqueue duplicate: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected duplicate to be dropped, got %d queued", q.Len())
	}

	delivery, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := q.Enqueue(ctx, provisioningMessage("INV-1")); err != nil {
		t.Fatalf("enqueue while in flight: %v", err)
	}
	if q.Len() != 0 {
		t.Fatalf("expected in-flight key to block duplicates")
	}
	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if err := delivery.Ack(ctx); err == nil {
		t.Fatalf("expected double ack to fail")
	}
	if err := q.Enqueue(ctx, provisioningMessage("INV-1")); err != nil {
		t.Fatalf("enqueue after ack: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected key to be released after ack")
	}
}

func TestMemoryQueue_RequeueHonorsDelayAndCountsAttempts(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	if err := q.Enqueue(ctx, provisioningMessage("INV-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	first, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if deliveryAttempt(first) != 1 {
		t.Fatalf("expected first attempt, got %d", deliveryAttempt(first))
	}
	if err := first.Nack(ctx, queue.NackOptions{Requeue: true, Delay: 20 * time.Millisecond}); err != nil {
		t.Fatalf("nack: %v", err)
	}

	early, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(early); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected delayed message to stay hidden, got %v", err)
	}

	second, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue retry: %v", err)
	}
	if deliveryAttempt(second) != 2 {
		t.Fatalf("expected second attempt, got %d", deliveryAttempt(second))
	}
	if err := second.Nack(ctx, queue.NackOptions{DeadLetter: true}); err != nil {
		t.Fatalf("dead letter: %v", err)
	}
	if dead := q.DeadLetters(); len(dead) != 1 || dead[0].IdempotencyKey != "provision:INV-1" {
		t.Fatalf("expected dead letter, got %#v", dead)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue after dead letter")
	}
}

func TestMemoryQueue_DequeueWakesOnEnqueue(t *testing.T) {
	q := NewMemoryQueue()
	got := make(chan *job.ExecutionMessage, 1)
	go func() {
		delivery, err := q.Dequeue(context.Background())
		if err != nil {
			close(got)
			return
		}
		got <- delivery.Message()
	}()

	time.Sleep(5 * time.Millisecond)
	if err := q.Enqueue(context.Background(), provisioningMessage("INV-9")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case msg := <-got:
		if msg == nil || msg.IdempotencyKey != "provision:INV-9" {
			t.Fatalf("unexpected message %#v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected blocked dequeue to wake up")
	}
}
