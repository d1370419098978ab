package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-topup/core"
	topupmigrations "github.com/goliatone/go-topup/migrations"
	sqlstore "github.com/goliatone/go-topup/store/sql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

type persistenceConfig struct {
	databaseConfig
}

func (c persistenceConfig) GetDebug() bool                { return c.Debug }
func (c persistenceConfig) GetDriver() string             { return c.Driver }
func (c persistenceConfig) GetServer() string             { return c.DSN }
func (c persistenceConfig) GetPingTimeout() time.Duration { return c.PingTimeout }
func (c persistenceConfig) GetOtelIdentifier() string     { return "topupd" }

type orderStore struct {
	store  core.OrderStore
	client *persistence.Client
}

func (s *orderStore) ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.DB().PingContext(ctx)
}

func (s *orderStore) Close() {
	if s != nil && s.client != nil {
		_ = s.client.Close()
	}
}

// openOrderStore opens the configured database, applies the order schema and
// puts the bun store behind the repository cache. The memory driver keeps
// orders in process.
func openOrderStore(ctx context.Context, cfg databaseConfig, logger core.Logger) (*orderStore, error) {
	if cfg.Driver == driverMemory {
		logger.Warn("orders are kept in memory and lost on restart")
		return &orderStore{store: core.NewMemoryOrderStore()}, nil
	}

	schemaDialect, err := topupmigrations.DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	var dialect schema.Dialect = sqlitedialect.New()
	if schemaDialect == topupmigrations.DialectPostgres {
		dialect = pgdialect.New()
	}

	sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == driverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(persistenceConfig{cfg}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("persistence client: %w", err)
	}

	if err := topupmigrations.Register(client, schemaDialect); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	cacheConfig := repositorycache.DefaultConfig()
	if cfg.CacheTTL > 0 {
		cacheConfig.TTL = cfg.CacheTTL
	}
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("order cache: %w", err)
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client,
		sqlstore.WithOrderCache(cacheService),
		sqlstore.WithOrderCacheTTL(cacheConfig.TTL),
		sqlstore.WithStoreLogger(logger),
	)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &orderStore{store: factory.OrderStore(), client: client}, nil
}
