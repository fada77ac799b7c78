package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

const (
	DefaultDir      = "pkg/migrate/migrations"
	DialectPostgres = "postgres"
)

// Migrator applies the goose migrations in dir to the remote scan store.
type Migrator struct {
	db      *sql.DB
	dir     string
	dialect string
}

func New(db *sql.DB, dir string) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	return &Migrator{db: db, dir: dir, dialect: DialectPostgres}, nil
}

func (m *Migrator) Up(ctx context.Context) error {
	return m.run(ctx, "up")
}

func (m *Migrator) Down(ctx context.Context) error {
	return m.run(ctx, "down")
}

// Status prints the applied/pending table to stdout.
func (m *Migrator) Status(ctx context.Context) error {
	return m.run(ctx, "status")
}

func (m *Migrator) Version(ctx context.Context) (int64, error) {
	if err := goose.SetDialect(m.dialect); err != nil {
		return 0, fmt.Errorf("set goose dialect: %w", err)
	}
	v, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return v, nil
}

// To migrates up or down until the database sits at target (YYYYMMDDHHMMSS).
func (m *Migrator) To(ctx context.Context, target string) error {
	if target == "" {
		return fmt.Errorf("target version is required")
	}
	want, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}

	current, err := m.Version(ctx)
	if err != nil {
		return err
	}

	switch {
	case current == want:
		return nil
	case current < want:
		if err := goose.UpToContext(ctx, m.db, m.dir, want); err != nil {
			return fmt.Errorf("goose up-to %d: %w", want, err)
		}
	default:
		if err := goose.DownToContext(ctx, m.db, m.dir, want); err != nil {
			return fmt.Errorf("goose down-to %d: %w", want, err)
		}
	}
	return nil
}

func (m *Migrator) run(ctx context.Context, command string) error {
	if err := goose.SetDialect(m.dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, m.db, m.dir); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
