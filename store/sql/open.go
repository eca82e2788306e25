package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-whatsflow/core"
	"github.com/goliatone/go-whatsflow/migrations"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const defaultPingTimeout = 5 * time.Second

// PersistenceConfig satisfies the go-persistence-bun config contract.
type PersistenceConfig struct {
	Driver      string
	Server      string
	Debug       bool
	PingTimeout time.Duration
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return c.Driver
}

func (c PersistenceConfig) GetServer() string {
	return c.Server
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return defaultPingTimeout
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	return "go-whatsflow"
}

// Open connects to sqlite or postgres, applies the embedded migrations for
// that dialect and returns the persistence client with stores built over it.
func Open(ctx context.Context, driver string, dsn string) (*persistence.Client, *RepositoryFactory, error) {
	sqlDriver, dialect, migrationDialect, err := resolveDriver(driver)
	if err != nil {
		return nil, nil, err
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, nil, fmt.Errorf("sqlstore: dsn is required for driver %q", driver)
	}

	sqlDB, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlstore: open %s: %w", sqlDriver, err)
	}
	if sqlDriver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(PersistenceConfig{Driver: sqlDriver, Server: dsn}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	_, err = migrations.Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrations.WithDialects(migrationDialect))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}

	factory, err := NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, factory, nil
}

func resolveDriver(driver string) (string, schema.Dialect, string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case core.StoreDriverSQLite, "sqlite3":
		return "sqlite3", sqlitedialect.New(), migrations.DialectSQLite, nil
	case core.StoreDriverPostgres, "postgresql", "pg":
		return "postgres", pgdialect.New(), migrations.DialectPostgres, nil
	default:
		return "", nil, "", fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}
