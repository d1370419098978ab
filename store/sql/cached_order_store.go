package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-topup/core"
)

const orderCacheKeyPrefix = "go-topup::order::v1"

// versionFloor is the last version committed through this store for one
// reference. A fetch that read the row before the write committed can fill the
// cache after the write evicted it; Get drops cached copies below the floor.
// A floor outlives any copy filled around its write: twice the cache TTL.
type versionFloor struct {
	version int64
	until   time.Time
}

const floorSweepEvery = 64

// CachedOrderStore serves Get through a read-through cache and evicts the
// entry after every write. Writes always go to the base store.
type CachedOrderStore struct {
	base   core.OrderStore
	cache  repositorycache.CacheService
	logger core.Logger
	ttl    time.Duration
	now    func() time.Time

	mu     sync.Mutex
	floors map[string]versionFloor
	writes int
}

type CachedOrderStoreOption func(*CachedOrderStore)

// WithCacheLogger receives eviction failures, which are logged rather than
// returned once the base write has committed.
func WithCacheLogger(logger core.Logger) CachedOrderStoreOption {
	return func(s *CachedOrderStore) {
		s.logger = glog.Ensure(logger)
	}
}

// WithCacheTTL matches the TTL the cache service was built with.
func WithCacheTTL(ttl time.Duration) CachedOrderStoreOption {
	return func(s *CachedOrderStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithCacheClock(now func() time.Time) CachedOrderStoreOption {
	return func(s *CachedOrderStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewCachedOrderStore(base core.OrderStore, cacheService repositorycache.CacheService, opts ...CachedOrderStoreOption) (*CachedOrderStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base order store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: order cache service is required")
	}
	store := &CachedOrderStore{
		base:   base,
		cache:  cacheService,
		logger: glog.Nop(),
		ttl:    repositorycache.DefaultConfig().TTL,
		now:    time.Now,
		floors: map[string]versionFloor{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// OrderCacheKey returns go-topup::order::v1::<reference> with the reference
// URL-path escaped.
func OrderCacheKey(reference string) (string, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return "", core.NewError(core.ErrorKindInvalidInput, "reference is required", nil)
	}
	return orderCacheKeyPrefix + "::" + url.PathEscape(reference), nil
}

func (s *CachedOrderStore) Get(ctx context.Context, reference string) (core.Order, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Order{}, core.NewInternalError("sqlstore: cached order store is not configured", nil)
	}
	reference = strings.TrimSpace(reference)
	cacheKey, err := OrderCacheKey(reference)
	if err != nil {
		return core.Order{}, err
	}
	order, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Order, error) {
		fetched, fetchErr := s.base.Get(ctx, reference)
		if fetchErr != nil {
			return core.Order{}, fetchErr
		}
		return fetched.Clone(), nil
	})
	if err != nil {
		return core.Order{}, err
	}
	if order.Version >= s.floor(reference) {
		return order.Clone(), nil
	}

	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		s.logger.Warn("stale cached order eviction failed", "reference", reference, "error", err.Error())
	}
	return s.base.Get(ctx, reference)
}

func (s *CachedOrderStore) Put(ctx context.Context, order core.Order) error {
	if s == nil || s.base == nil || s.cache == nil {
		return core.NewInternalError("sqlstore: cached order store is not configured", nil)
	}
	if err := s.base.Put(ctx, order); err != nil {
		return err
	}
	if err := s.evict(ctx, order.Reference); err != nil {
		s.logger.Warn("cached order eviction failed", "reference", order.Reference, "error", err.Error())
	}
	return nil
}

// Update commits through the base store and raises the version floor before
// evicting. An eviction failure is logged; the committed order is returned.
func (s *CachedOrderStore) Update(ctx context.Context, reference string, mutate core.OrderMutator) (core.Order, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Order{}, core.NewInternalError("sqlstore: cached order store is not configured", nil)
	}
	reference = strings.TrimSpace(reference)
	order, err := s.base.Update(ctx, reference, mutate)
	if err != nil {
		return core.Order{}, err
	}
	s.raiseFloor(reference, order.Version)
	if err := s.evict(ctx, reference); err != nil {
		s.logger.Warn("cached order eviction failed", "reference", reference, "version", order.Version, "error", err.Error())
	}
	return order, nil
}

func (s *CachedOrderStore) evict(ctx context.Context, reference string) error {
	cacheKey, err := OrderCacheKey(reference)
	if err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return core.NewInternalError("sqlstore: evict cached order", err)
	}
	return nil
}

func (s *CachedOrderStore) floor(reference string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.floors[reference]
	if !ok {
		return 0
	}
	if s.now().After(entry.until) {
		delete(s.floors, reference)
		return 0
	}
	return entry.version
}

func (s *CachedOrderStore) raiseFloor(reference string, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.writes++
	if s.writes%floorSweepEvery == 0 {
		for key, entry := range s.floors {
			if now.After(entry.until) {
				delete(s.floors, key)
			}
		}
	}
	entry := s.floors[reference]
	if version > entry.version {
		entry.version = version
	}
	entry.until = now.Add(2 * s.ttl)
	s.floors[reference] = entry
}

// ListByStatus bypasses the cache. It fails when the base store cannot scan
// by status.
func (s *CachedOrderStore) ListByStatus(ctx context.Context, status core.OrderStatus, limit int) ([]core.Order, error) {
	if s == nil || s.base == nil {
		return nil, core.NewInternalError("sqlstore: cached order store is not configured", nil)
	}
	lister, ok := s.base.(interface {
		ListByStatus(ctx context.Context, status core.OrderStatus, limit int) ([]core.Order, error)
	})
	if !ok {
		return nil, core.NewInternalError(fmt.Sprintf("sqlstore: %T cannot list orders by status", s.base), nil)
	}
	return lister.ListByStatus(ctx, status, limit)
}
