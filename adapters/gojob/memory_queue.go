package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

type memoryEntry struct {
	msg         *job.ExecutionMessage
	attempt     int
	availableAt time.Time
	settled     bool
}

// MemoryQueue is an in-process go-job queue. Messages sharing an idempotency
// key are dropped while an earlier one is queued or in flight.
type MemoryQueue struct {
	mu    sync.Mutex
	ready []*memoryEntry
	keys  map[string]struct{}
	dead  []*job.ExecutionMessage
	wake  chan struct{}
	now   func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		keys: map[string]struct{}{},
		wake: make(chan struct{}),
		now:  time.Now,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if q == nil {
		return fmt.Errorf("gojob: memory queue is nil")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	key := strings.TrimSpace(msg.IdempotencyKey)
	if key != "" {
		if _, exists := q.keys[key]; exists {
			return nil
		}
		q.keys[key] = struct{}{}
	}
	q.ready = append(q.ready, &memoryEntry{msg: msg, availableAt: q.now()})
	q.signalLocked()
	return nil
}

// Dequeue blocks until a message is available or ctx is done.
func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if q == nil {
		return nil, fmt.Errorf("gojob: memory queue is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		q.mu.Lock()
		now := q.now()
		var wait time.Duration = -1
		for index, entry := range q.ready {
			if !entry.availableAt.After(now) {
				q.ready = append(q.ready[:index], q.ready[index+1:]...)
				entry.attempt++
				entry.settled = false
				q.mu.Unlock()
				return &memoryDelivery{queue: q, entry: entry}, nil
			}
			if until := entry.availableAt.Sub(now); wait < 0 || until < wait {
				wait = until
			}
		}
		wake := q.wake
		q.mu.Unlock()

		var timer <-chan time.Time
		if wait >= 0 {
			t := time.NewTimer(wait)
			timer = t.C
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-wake:
				t.Stop()
			case <-timer:
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}

// Len counts queued messages, including delayed retries.
func (q *MemoryQueue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}

func (q *MemoryQueue) DeadLetters() []*job.ExecutionMessage {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*job.ExecutionMessage(nil), q.dead...)
}

func (q *MemoryQueue) signalLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}

func (q *MemoryQueue) releaseLocked(entry *memoryEntry) {
	if key := strings.TrimSpace(entry.msg.IdempotencyKey); key != "" {
		delete(q.keys, key)
	}
}

type memoryDelivery struct {
	queue *MemoryQueue
	entry *memoryEntry
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.entry.msg
}

// Attempt is the 1-based delivery count of the message.
func (d *memoryDelivery) Attempt() int {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	return d.entry.attempt
}

func (d *memoryDelivery) Ack(context.Context) error {
	q := d.queue
	q.mu.Lock()
	defer q.mu.Unlock()
	if d.entry.settled {
		return fmt.Errorf("gojob: delivery already settled")
	}
	d.entry.settled = true
	q.releaseLocked(d.entry)
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	q := d.queue
	q.mu.Lock()
	defer q.mu.Unlock()
	if d.entry.settled {
		return fmt.Errorf("gojob: delivery already settled")
	}
	d.entry.settled = true
	switch {
	case opts.DeadLetter:
		q.dead = append(q.dead, d.entry.msg)
		q.releaseLocked(d.entry)
	case opts.Requeue:
		delay := opts.Delay
		if delay < 0 {
			delay = 0
		}
		d.entry.availableAt = q.now().Add(delay)
		q.ready = append(q.ready, d.entry)
		q.signalLocked()
	default:
		q.releaseLocked(d.entry)
	}
	return nil
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)
