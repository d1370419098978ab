package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-topup/core"
	topupmigrations "github.com/goliatone/go-topup/migrations"
	sqlstore "github.com/goliatone/go-topup/store/sql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-topup-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{"topup_orders", "topup_order_events"} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master: %v", err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestOrderStore_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newOrderStore(t)

	order := seedOrder("INV-1")
	order.RecordEvent("evt-seed")
	if err := store.Put(ctx, order); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, err := store.Get(ctx, "INV-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Reference != "INV-1" || loaded.Amount != 20100 || loaded.Buyer.ZoneID != "1234" {
		t.Fatalf("unexpected order %+v", loaded)
	}
	if loaded.Status != core.OrderStatusPending || loaded.Version != 1 {
		t.Fatalf("expected pending v1, got %s v%d", loaded.Status, loaded.Version)
	}
	if !loaded.HasSeenEvent("evt-seed") {
		t.Fatalf("expected seeded event to be persisted")
	}
	if loaded.CustomerNo != "123456781234" {
		t.Fatalf("unexpected customer no %q", loaded.CustomerNo)
	}
}

func TestOrderStore_DuplicateAndMissing(t *testing.T) {
	ctx := context.Background()
	store := newOrderStore(t)

	if err := store.Put(ctx, seedOrder("INV-1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	err := store.Put(ctx, seedOrder("INV-1"))
	if !core.IsKind(err, core.ErrorKindDuplicateReference) {
		t.Fatalf("expected duplicate reference, got %v", err)
	}
	if _, err := store.Get(ctx, "INV-missing"); !core.IsKind(err, core.ErrorKindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Update(ctx, "INV-missing", func(*core.Order) error { return nil }); !core.IsKind(err, core.ErrorKindNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func TestOrderStore_UpdateCommitsStatusAndEvents(t *testing.T) {
	ctx := context.Background()
	store := newOrderStore(t)
	if err := store.Put(ctx, seedOrder("INV-1")); err != nil {
		t.Fatalf("put: %v", err)
	}

	updated, err := store.Update(ctx, "INV-1", func(order *core.Order) error {
		if err := order.TransitionTo(core.OrderStatusPaid); err != nil {
			return err
		}
		order.RecordEvent("evt1")
		order.Amount = 1
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != core.OrderStatusPaid || updated.Version != 2 || updated.Amount != 20100 {
		t.Fatalf("unexpected updated order %+v", updated)
	}

	loaded, err := store.Get(ctx, "INV-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Status != core.OrderStatusPaid || !loaded.HasSeenEvent("evt1") || loaded.Amount != 20100 {
		t.Fatalf("expected committed update, got %+v", loaded)
	}
}

func TestOrderStore_MutatorErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := newOrderStore(t)
	if err := store.Put(ctx, seedOrder("INV-1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	boom := errors.New("boom")
	_, err := store.Update(ctx, "INV-1", func(order *core.Order) error {
		order.Status = core.OrderStatusPaid
		order.RecordEvent("evt1")
		return boom
	})
	if err != boom {
		t.Fatalf("expected mutator error unchanged, got %v", err)
	}
	loaded, _ := store.Get(ctx, "INV-1")
	if loaded.Status != core.OrderStatusPending || loaded.HasSeenEvent("evt1") || loaded.Version != 1 {
		t.Fatalf("expected no partial write, got %+v", loaded)
	}

	unchanged, err := store.Update(ctx, "INV-1", func(*core.Order) error { return core.ErrOrderUnchanged })
	if err != nil || unchanged.Version != 1 {
		t.Fatalf("expected unchanged order at v1, got %+v err=%v", unchanged, err)
	}
}

func TestOrderStore_TerminalTransitionRejected(t *testing.T) {
	ctx := context.Background()
	store := newOrderStore(t)
	order := seedOrder("INV-1")
	order.Status = core.OrderStatusFailed
	if err := store.Put(ctx, order); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, err := store.Update(ctx, "INV-1", func(order *core.Order) error {
		return order.TransitionTo(core.OrderStatusPaid)
	})
	if !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestOrderStore_ConcurrentUpdatesApplyOnce(t *testing.T) {
	ctx := context.Background()
	store := newOrderStore(t)
	if err := store.Put(ctx, seedOrder("INV-1")); err != nil {
		t.Fatalf("put: %v", err)
	}

	const writers = 8
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		transitions int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Update(ctx, "INV-1", func(order *core.Order) error {
				if order.Status == core.OrderStatusPending {
					if err := order.TransitionTo(core.OrderStatusPaid); err != nil {
						return err
					}
					mu.Lock()
					transitions++
					mu.Unlock()
				}
				order.RecordEvent(fmt.Sprintf("evt-%d", i))
				return nil
			})
			if err != nil {
				t.Errorf("update %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	loaded, err := store.Get(ctx, "INV-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if transitions != 1 {
		t.Fatalf("expected exactly one committed transition, got %d", transitions)
	}
	if len(loaded.WebhookEventsSeen) != writers || loaded.Version != writers+1 {
		t.Fatalf("expected %d events at v%d, got %d at v%d", writers, writers+1, len(loaded.WebhookEventsSeen), loaded.Version)
	}
}

func TestOrderStore_ListByStatus(t *testing.T) {
	ctx := context.Background()
	store := newOrderStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, ref := range []string{"INV-3", "INV-1", "INV-2"} {
		order := seedOrder(ref)
		order.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if ref != "INV-2" {
			order.Status = core.OrderStatusPaid
		}
		if err := store.Put(ctx, order); err != nil {
			t.Fatalf("put %s: %v", ref, err)
		}
	}

	paid, err := store.ListByStatus(ctx, core.OrderStatusPaid, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(paid) != 2 || paid[0].Reference != "INV-3" || paid[1].Reference != "INV-1" {
		t.Fatalf("unexpected paid orders %+v", paid)
	}
	if _, err := store.ListByStatus(ctx, core.OrderStatus("REFUNDED"), 10); !core.IsKind(err, core.ErrorKindInvalidInput) {
		t.Fatalf("expected invalid input for unknown status, got %v", err)
	}
}

func TestCachedOrderStore_ServesReadsAndEvictsOnWrite(t *testing.T) {
	ctx := context.Background()
	base := &countingStore{OrderStore: newOrderStore(t)}
	cached, err := sqlstore.NewCachedOrderStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	if err := cached.Put(ctx, seedOrder("INV-1")); err != nil {
		t.Fatalf("put: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := cached.Get(ctx, "INV-1"); err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
	}
	if base.gets != 1 {
		t.Fatalf("expected one base read, got %d", base.gets)
	}

	if _, err := cached.Update(ctx, "INV-1", func(order *core.Order) error {
		return order.TransitionTo(core.OrderStatusPaid)
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	loaded, err := cached.Get(ctx, "INV-1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if loaded.Status != core.OrderStatusPaid || base.gets != 2 {
		t.Fatalf("expected eviction to force a fresh read, got %s after %d reads", loaded.Status, base.gets)
	}

	loaded.RecordEvent("local")
	again, _ := cached.Get(ctx, "INV-1")
	if again.HasSeenEvent("local") {
		t.Fatalf("expected cached order to be detached from callers")
	}
}

func TestCachedOrderStore_PropagatesNotFound(t *testing.T) {
	cached, err := sqlstore.NewCachedOrderStore(newOrderStore(t), newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	if _, err := cached.Get(context.Background(), "INV-404"); !core.IsKind(err, core.ErrorKindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := sqlstore.OrderCacheKey(" "); err == nil {
		t.Fatalf("expected blank reference key to fail")
	}
	key, _ := sqlstore.OrderCacheKey("INV 1")
	if key != "go-topup::order::v1::INV%201" {
		t.Fatalf("unexpected cache key %q", key)
	}
}

func TestCachedOrderStore_ListByStatusDelegates(t *testing.T) {
	ctx := context.Background()
	cached, err := sqlstore.NewCachedOrderStore(newOrderStore(t), newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	if err := cached.Put(ctx, seedOrder("INV-1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	orders, err := cached.ListByStatus(ctx, core.OrderStatusPending, 10)
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(orders) != 1 || orders[0].Reference != "INV-1" {
		t.Fatalf("unexpected orders %+v", orders)
	}

	opaque, err := sqlstore.NewCachedOrderStore(&countingStore{OrderStore: core.NewMemoryOrderStore()}, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	if _, err := opaque.ListByStatus(ctx, core.OrderStatusPending, 10); !core.IsKind(err, core.ErrorKindInternal) {
		t.Fatalf("expected internal error for a store without status scans, got %v", err)
	}
}

func TestRepositoryFactory_WiresCache(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	plain, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if _, ok := plain.OrderStore().(*sqlstore.OrderStore); !ok {
		t.Fatalf("expected plain order store, got %T", plain.OrderStore())
	}

	cached, err := sqlstore.NewRepositoryFactoryFromDB(client.DB(), sqlstore.WithOrderCache(newTestCacheService(t)))
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if _, ok := cached.OrderStore().(*sqlstore.CachedOrderStore); !ok {
		t.Fatalf("expected cached order store, got %T", cached.OrderStore())
	}
	if cached.Orders() == nil || cached.DB() == nil {
		t.Fatalf("expected underlying store and db")
	}
}

type countingStore struct {
	core.OrderStore
	mu   sync.Mutex
	gets int
}

func (s *countingStore) Get(ctx context.Context, reference string) (core.Order, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	return s.OrderStore.Get(ctx, reference)
}

func seedOrder(reference string) core.Order {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return core.Order{
		Reference:  reference,
		Buyer:      core.BuyerAccount{UserID: "12345678", ZoneID: "1234"},
		ProductSKU: "ML86",
		Amount:     20100,
		CustomerNo: "123456781234",
		Status:     core.OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func newOrderStore(t *testing.T) *sqlstore.OrderStore {
	t.Helper()
	client, cleanup := newSQLiteClient(t)
	t.Cleanup(cleanup)
	store, err := sqlstore.NewOrderStore(client.DB())
	if err != nil {
		t.Fatalf("new order store: %v", err)
	}
	return store
}

func newTestCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:topup-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	if err := topupmigrations.Register(client, topupmigrations.DialectSQLite); err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
