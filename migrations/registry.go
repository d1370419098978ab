package migrations

import (
	"fmt"
	"io/fs"
	"strings"

	persistence "github.com/goliatone/go-persistence-bun"
	topup "github.com/goliatone/go-topup"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const migrationsRoot = "data/sql/migrations"

// Registrar accepts SQL migration trees. *persistence.Client satisfies it.
type Registrar interface {
	RegisterSQLMigrations(migrations ...fs.FS) *persistence.Migrations
}

// DialectFor maps a database/sql driver name to the schema dialect.
func DialectFor(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: no order schema for driver %q", driver)
	}
}

// Source returns the embedded order schema for dialect. Postgres files sit at
// the root of data/sql/migrations, sqlite files under its sqlite directory.
// Every up migration must have a matching down migration.
func Source(dialect string) (fs.FS, error) {
	path := migrationsRoot
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case DialectPostgres:
	case DialectSQLite:
		path += "/sqlite"
	default:
		return nil, fmt.Errorf("migrations: unknown dialect %q", dialect)
	}

	sub, err := fs.Sub(topup.GetMigrationsFS(), path)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", path, err)
	}
	ups, err := fs.Glob(sub, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", path, err)
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("migrations: %s has no *.up.sql files", path)
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(sub, down); err != nil {
			return nil, fmt.Errorf("migrations: %s/%s has no rollback: %w", path, up, err)
		}
	}
	return sub, nil
}

// Register hands the order schema for dialect to registrar.
func Register(registrar Registrar, dialect string) error {
	if registrar == nil {
		return fmt.Errorf("migrations: registrar is required")
	}
	source, err := Source(dialect)
	if err != nil {
		return err
	}
	registrar.RegisterSQLMigrations(source)
	return nil
}
