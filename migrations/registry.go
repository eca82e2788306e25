package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	whatsflow "github.com/goliatone/go-whatsflow"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	DefaultSourceLabel = "go-whatsflow"

	rootDir = "data/sql/migrations"
)

// dialectDirs maps each dialect to its directory below rootDir. Postgres files
// live at the top level, sqlite ones in a sub directory.
var dialectDirs = map[string]string{
	DialectPostgres: ".",
	DialectSQLite:   "sqlite",
}

// Source is the migration set for one SQL dialect.
type Source struct {
	Dialect string
	Dir     string
	FS      fs.FS
	Files   []string
}

// Registrar receives each selected source. go-persistence-bun clients plug in
// through a closure over RegisterSQLMigrations.
type Registrar func(ctx context.Context, dialect string, label string, fsys fs.FS) error

type settings struct {
	label    string
	dialects []string
	root     fs.FS
}

type Option func(*settings)

func WithSourceLabel(label string) Option {
	return func(s *settings) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			s.label = trimmed
		}
	}
}

// WithDialects limits registration to the named dialects.
func WithDialects(dialects ...string) Option {
	return func(s *settings) {
		selected := normalizeDialects(dialects)
		if len(selected) > 0 {
			s.dialects = selected
		}
	}
}

// WithRoot replaces the embedded filesystem, mostly for tests.
func WithRoot(root fs.FS) Option {
	return func(s *settings) {
		if root != nil {
			s.root = root
		}
	}
}

// Sources returns the migration set of every dialect found under root, or the
// embedded migrations when root is nil. Every *.up.sql must have its
// *.down.sql so stores can roll back.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = whatsflow.GetMigrationsFS()
	}
	base, err := fs.Sub(root, rootDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: open %s: %w", rootDir, err)
	}

	dialects := make([]string, 0, len(dialectDirs))
	for dialect := range dialectDirs {
		dialects = append(dialects, dialect)
	}
	sort.Strings(dialects)

	sources := make([]Source, 0, len(dialects))
	for _, dialect := range dialects {
		source, err := loadSource(base, dialect)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, nil
}

// Register hands the selected dialect sources to fn. It stops at the first
// error.
func Register(ctx context.Context, fn Registrar, opts ...Option) ([]Source, error) {
	if fn == nil {
		return nil, fmt.Errorf("migrations: registrar is required")
	}
	cfg := settings{label: DefaultSourceLabel}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	sources, err := Sources(cfg.root)
	if err != nil {
		return nil, err
	}

	selected := make([]Source, 0, len(sources))
	for _, source := range sources {
		if len(cfg.dialects) > 0 && !contains(cfg.dialects, source.Dialect) {
			continue
		}
		if err := fn(ctx, source.Dialect, cfg.label, source.FS); err != nil {
			return selected, fmt.Errorf("migrations: register %s: %w", source.Dialect, err)
		}
		selected = append(selected, source)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("migrations: no migrations for dialects %v", cfg.dialects)
	}
	return selected, nil
}

func loadSource(base fs.FS, dialect string) (Source, error) {
	dir := dialectDirs[dialect]
	fsys := base
	if dir != "." {
		sub, err := fs.Sub(base, dir)
		if err != nil {
			return Source{}, fmt.Errorf("migrations: open %s migrations: %w", dialect, err)
		}
		fsys = sub
	}

	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return Source{}, fmt.Errorf("migrations: list %s migrations: %w", dialect, err)
	}
	if len(ups) == 0 {
		return Source{}, fmt.Errorf("migrations: no %s migrations in %s", dialect, path.Join(rootDir, dir))
	}
	sort.Strings(ups)

	files := make([]string, 0, len(ups)*2)
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(fsys, down); err != nil {
			return Source{}, fmt.Errorf("migrations: %s migration %s has no %s", dialect, up, down)
		}
		files = append(files, up, down)
	}
	return Source{Dialect: dialect, Dir: path.Join(rootDir, dir), FS: fsys, Files: files}, nil
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" || contains(out, value) {
			continue
		}
		out = append(out, value)
	}
	return out
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
