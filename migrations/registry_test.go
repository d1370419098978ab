package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	persistence "github.com/goliatone/go-persistence-bun"
	topup "github.com/goliatone/go-topup"
	_ "github.com/mattn/go-sqlite3"
)

type recordingRegistrar struct {
	trees []fs.FS
}

func (r *recordingRegistrar) RegisterSQLMigrations(migrations ...fs.FS) *persistence.Migrations {
	r.trees = append(r.trees, migrations...)
	return nil
}

func TestSource_ResolvesEachDialect(t *testing.T) {
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		source, err := Source(dialect)
		if err != nil {
			t.Fatalf("source %s: %v", dialect, err)
		}
		matches, err := fs.Glob(source, "*.up.sql")
		if err != nil {
			t.Fatalf("glob %s: %v", dialect, err)
		}
		if len(matches) != 2 {
			t.Fatalf("expected 2 %s up migrations, got %v", dialect, matches)
		}
	}

	postgres, _ := Source(DialectPostgres)
	if _, err := fs.Stat(postgres, "sqlite"); err != nil {
		t.Fatalf("expected postgres tree rooted above the sqlite directory: %v", err)
	}
	sqlite, _ := Source(DialectSQLite)
	content, err := fs.ReadFile(sqlite, "00001_topup_orders.up.sql")
	if err != nil {
		t.Fatalf("read sqlite migration: %v", err)
	}
	if strings.Contains(strings.ToUpper(string(content)), "TIMESTAMPTZ") {
		t.Fatalf("expected sqlite tree to hold the sqlite rendition")
	}
}

func TestSource_RejectsUnknownDialect(t *testing.T) {
	if _, err := Source("mysql"); err == nil {
		t.Fatalf("expected unknown dialect to fail")
	}
}

func TestDialectFor(t *testing.T) {
	cases := map[string]string{
		"postgres": DialectPostgres,
		"pgx":      DialectPostgres,
		"sqlite3":  DialectSQLite,
		" SQLite ": DialectSQLite,
	}
	for driver, want := range cases {
		got, err := DialectFor(driver)
		if err != nil || got != want {
			t.Fatalf("driver %q: expected %q, got %q (%v)", driver, want, got, err)
		}
	}
	if _, err := DialectFor("memory"); err == nil {
		t.Fatalf("expected memory driver to have no schema")
	}
}

func TestRegister_HandsDialectTreeToRegistrar(t *testing.T) {
	registrar := &recordingRegistrar{}
	if err := Register(registrar, DialectSQLite); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(registrar.trees) != 1 {
		t.Fatalf("expected one migration tree, got %d", len(registrar.trees))
	}
	if _, err := fs.Stat(registrar.trees[0], "00002_topup_order_events.up.sql"); err != nil {
		t.Fatalf("expected sqlite order events migration in registered tree: %v", err)
	}
}

func TestRegister_RequiresRegistrar(t *testing.T) {
	if err := Register(nil, DialectSQLite); err == nil {
		t.Fatalf("expected missing registrar to fail")
	}
	if err := Register(&recordingRegistrar{}, "oracle"); err == nil {
		t.Fatalf("expected unknown dialect to fail")
	}
}

func TestMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := topup.GetMigrationsFS()
	for _, name := range []string{"00001_topup_orders", "00002_topup_order_events"} {
		for _, dir := range []string{"data/sql/migrations", "data/sql/migrations/sqlite"} {
			for _, direction := range []string{"up", "down"} {
				migrationPath := dir + "/" + name + "." + direction + ".sql"
				content, err := fs.ReadFile(root, migrationPath)
				if err != nil {
					t.Fatalf("read migration %s: %v", migrationPath, err)
				}
				if strings.TrimSpace(string(content)) == "" {
					t.Fatalf("expected migration %s to have SQL content", migrationPath)
				}
			}
		}
	}
}

func TestSQLiteOrderMigrations_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-topup-orders?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(topup.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	ctx := context.Background()
	for _, migration := range []string{"00001_topup_orders.up.sql", "00002_topup_order_events.up.sql"} {
		if err := execSQLMigration(ctx, db, sqliteMigrations, migration); err != nil {
			t.Fatalf("apply %s: %v", migration, err)
		}
	}

	insertOrder := `INSERT INTO topup_orders (id, reference, user_id, zone_id, product_sku, amount, customer_no, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insertOrder, "o-1", "INV-1", "12345678", "1234", "ML86", 20100, "123456781234", "PENDING"); err != nil {
		t.Fatalf("insert order: %v", err)
	}
	if _, err := db.ExecContext(ctx, insertOrder, "o-2", "INV-1", "12345678", "1234", "ML86", 20100, "123456781234", "PENDING"); err == nil {
		t.Fatalf("expected duplicate reference to violate unique index")
	}
	if _, err := db.ExecContext(ctx, insertOrder, "o-3", "INV-3", "12345678", "1234", "ML86", 20100, "123456781234", "REFUNDED"); err == nil {
		t.Fatalf("expected unknown status to violate check constraint")
	}

	insertEvent := `INSERT INTO topup_order_events (id, order_id, reference, event_id, status_after) VALUES (?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insertEvent, "e-1", "o-1", "INV-1", "evt1", "PAID"); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	if _, err := db.ExecContext(ctx, insertEvent, "e-2", "o-1", "INV-1", "evt1", "PAID"); err == nil {
		t.Fatalf("expected duplicate event id to violate unique index")
	}

	for _, migration := range []string{"00002_topup_order_events.down.sql", "00001_topup_orders.down.sql"} {
		if err := execSQLMigration(ctx, db, sqliteMigrations, migration); err != nil {
			t.Fatalf("rollback %s: %v", migration, err)
		}
	}
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name LIKE 'topup_%'`).Scan(&count); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected topup tables to be dropped, got %d", count)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
