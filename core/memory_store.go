package core

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

type memoryOrderEntry struct {
	mu    sync.Mutex
	order Order
}

// MemoryOrderStore keeps orders in process. Updates to one reference are
// serialized on that reference's entry only.
type MemoryOrderStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryOrderEntry
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{entries: map[string]*memoryOrderEntry{}}
}

func (s *MemoryOrderStore) Put(ctx context.Context, order Order) error {
	if s == nil {
		return NewInternalError("order store is not configured", nil)
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return NewInternalError("put order cancelled", err)
		}
	}
	reference := strings.TrimSpace(order.Reference)
	if reference == "" {
		return newInvalidInputError("reference is required", "reference")
	}

	stored := order.Clone()
	stored.Reference = reference
	if stored.Version <= 0 {
		stored.Version = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[reference]; exists {
		return NewDuplicateReferenceError(reference)
	}
	s.entries[reference] = &memoryOrderEntry{order: stored}
	return nil
}

func (s *MemoryOrderStore) Get(_ context.Context, reference string) (Order, error) {
	entry, ok := s.entry(reference)
	if !ok {
		return Order{}, NewOrderNotFoundError(strings.TrimSpace(reference))
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.order.Clone(), nil
}

func (s *MemoryOrderStore) Update(ctx context.Context, reference string, mutate OrderMutator) (Order, error) {
	if mutate == nil {
		return Order{}, NewInternalError("order mutator is required", nil)
	}
	entry, ok := s.entry(reference)
	if !ok {
		return Order{}, NewOrderNotFoundError(strings.TrimSpace(reference))
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	working := entry.order.Clone()
	if err := mutate(&working); err != nil {
		if errors.Is(err, ErrOrderUnchanged) {
			return entry.order.Clone(), nil
		}
		return Order{}, err
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return Order{}, NewInternalError("update order cancelled", err)
		}
	}

	preserveImmutable(&working, entry.order)
	working.Version = entry.order.Version + 1
	entry.order = working
	return working.Clone(), nil
}

// ListByStatus returns up to limit orders in the given status, oldest first.
// A non-positive limit returns every match.
func (s *MemoryOrderStore) ListByStatus(_ context.Context, status OrderStatus, limit int) ([]Order, error) {
	if !status.Valid() {
		return nil, newInvalidInputError("status is not a known order status", "status")
	}
	if s == nil {
		return []Order{}, nil
	}
	s.mu.RLock()
	entries := make([]*memoryOrderEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	out := []Order{}
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.order.Status == status {
			out = append(out, entry.order.Clone())
		}
		entry.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Reference < out[j].Reference
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryOrderStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryOrderStore) entry(reference string) (*memoryOrderEntry, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[strings.TrimSpace(reference)]
	return entry, ok
}

// preserveImmutable restores the fields fixed at creation.
func preserveImmutable(next *Order, previous Order) {
	next.Reference = previous.Reference
	next.Buyer = previous.Buyer
	next.ProductSKU = previous.ProductSKU
	next.Amount = previous.Amount
	next.CustomerNo = previous.CustomerNo
	next.CreatedAt = previous.CreatedAt
}

// PreserveImmutable is exported for store implementations outside core.
func PreserveImmutable(next *Order, previous Order) {
	if next == nil {
		return
	}
	preserveImmutable(next, previous)
}
