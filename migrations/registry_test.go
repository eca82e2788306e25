package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	whatsflow "github.com/goliatone/go-whatsflow"
	_ "github.com/mattn/go-sqlite3"
)

func TestSources_ReturnsBothDialectsWithPairs(t *testing.T) {
	sources, err := Sources(nil)
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Dialect != DialectPostgres || sources[1].Dialect != DialectSQLite {
		t.Fatalf("expected postgres then sqlite, got %s, %s", sources[0].Dialect, sources[1].Dialect)
	}
	const up, down = "00001_whatsflow_core_schema.up.sql", "00001_whatsflow_core_schema.down.sql"
	for _, source := range sources {
		if len(source.Files) != 2 || source.Files[0] != up || source.Files[1] != down {
			t.Fatalf("%s: expected one up/down pair, got %v", source.Dialect, source.Files)
		}
		if _, err := fs.Stat(source.FS, up); err != nil {
			t.Fatalf("%s: source fs does not expose %s: %v", source.Dialect, up, err)
		}
	}
	if sources[1].Dir != "data/sql/migrations/sqlite" {
		t.Fatalf("unexpected sqlite dir %q", sources[1].Dir)
	}
}

func TestSources_RequiresDownMigration(t *testing.T) {
	root := fstest.MapFS{
		"data/sql/migrations/00001_x.up.sql":        {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00001_x.down.sql":      {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_x.up.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := Sources(root)
	if err == nil || !strings.Contains(err.Error(), "00001_x.down.sql") {
		t.Fatalf("expected missing down migration error, got %v", err)
	}
}

func TestRegister_LimitsToSelectedDialects(t *testing.T) {
	var calls []string
	selected, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithDialects(" SQLite "))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 1 || calls[0] != DialectSQLite {
		t.Fatalf("expected only sqlite registration, got %v", calls)
	}
	if len(selected) != 1 || selected[0].Dialect != DialectSQLite {
		t.Fatalf("unexpected selected sources %+v", selected)
	}
}

func TestRegister_SourceLabel(t *testing.T) {
	var labels []string
	record := func(_ context.Context, _ string, label string, _ fs.FS) error {
		labels = append(labels, label)
		return nil
	}
	if _, err := Register(context.Background(), record, WithDialects(DialectPostgres)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := Register(context.Background(), record, WithDialects(DialectPostgres), WithSourceLabel("  custom  ")); err != nil {
		t.Fatalf("register with label: %v", err)
	}
	if len(labels) != 2 || labels[0] != DefaultSourceLabel || labels[1] != "custom" {
		t.Fatalf("unexpected labels %v", labels)
	}
}

func TestRegister_UnknownDialectFails(t *testing.T) {
	_, err := Register(context.Background(), func(context.Context, string, string, fs.FS) error {
		return nil
	}, WithDialects("mysql"))
	if err == nil {
		t.Fatalf("expected error for a dialect without migrations")
	}
}

func TestRegister_RequiresRegistrar(t *testing.T) {
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil registrar")
	}
}

func TestRegister_PropagatesRegistrarError(t *testing.T) {
	_, err := Register(context.Background(), func(context.Context, string, string, fs.FS) error {
		return errors.New("boom")
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected wrapped registrar error, got %v", err)
	}
}

func TestCoreSchemaMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := whatsflow.GetMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_whatsflow_core_schema.up.sql",
		"data/sql/migrations/00001_whatsflow_core_schema.down.sql",
		"data/sql/migrations/sqlite/00001_whatsflow_core_schema.up.sql",
		"data/sql/migrations/sqlite/00001_whatsflow_core_schema.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteCoreSchemaMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-core-schema?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(whatsflow.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	if err := execSQLMigration(context.Background(), db, sqliteMigrations, "00001_whatsflow_core_schema.up.sql"); err != nil {
		t.Fatalf("apply core schema up: %v", err)
	}

	for _, tableName := range []string{"whatsflow_webhook_deliveries", "whatsflow_rate_limit_state"} {
		if count := countSQLiteObjects(t, db, "table", tableName); count != 1 {
			t.Fatalf("expected table %s after up migration", tableName)
		}
	}

	insertDelivery := `INSERT INTO whatsflow_webhook_deliveries (id, delivery_id, event, status) VALUES (?, ?, ?, ?)`
	if _, err := db.ExecContext(context.Background(), insertDelivery, "row_1", "dlv_1", "message.received", "pending"); err != nil {
		t.Fatalf("insert delivery: %v", err)
	}
	if _, err := db.ExecContext(context.Background(), insertDelivery, "row_2", "dlv_1", "message.received", "pending"); err == nil {
		t.Fatalf("expected unique delivery id violation")
	}

	insertState := `INSERT INTO whatsflow_rate_limit_state (id, api_key_id, bucket, "limit", remaining) VALUES (?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(context.Background(), insertState, "state_1", "key_1", "api", 100, 99); err != nil {
		t.Fatalf("insert rate-limit state: %v", err)
	}
	if _, err := db.ExecContext(context.Background(), insertState, "state_2", "key_1", "api", 100, 98); err == nil {
		t.Fatalf("expected unique rate-limit key violation")
	}

	if err := execSQLMigration(context.Background(), db, sqliteMigrations, "00001_whatsflow_core_schema.down.sql"); err != nil {
		t.Fatalf("apply core schema down: %v", err)
	}
	if count := countSQLiteObjects(t, db, "table", "whatsflow_webhook_deliveries"); count != 0 {
		t.Fatalf("expected whatsflow_webhook_deliveries to be dropped after down migration")
	}
}

func countSQLiteObjects(t *testing.T, db *sql.DB, kind string, name string) int {
	t.Helper()
	var count int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type=? AND name=?`,
		kind,
		name,
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master for %s: %v", name, err)
	}
	return count
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
