// Package repomanager opens the relational database, runs the embedded
// goose migrations and vends the SQL-backed repositories.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/exposurekeys/internal/dbx"
	"github.com/dmitrijs2005/exposurekeys/internal/migrations"
	"github.com/dmitrijs2005/exposurekeys/internal/repositories/cursors"
	"github.com/dmitrijs2005/exposurekeys/internal/repositories/submissions"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Submissions(db *sql.DB) submissions.Repository
	Cursors(db dbx.DBTX) cursors.Store
}

// SQLRepositoryManager works with PostgreSQL (pgx) and SQLite (sqlite).
type SQLRepositoryManager struct {
	driver string
}

// NewSQLRepositoryManager returns a manager for the given database/sql driver name.
func NewSQLRepositoryManager(driver string) (*SQLRepositoryManager, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
		return &SQLRepositoryManager{driver: driver}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Submissions returns a submissions.Repository bound to db.
func (m *SQLRepositoryManager) Submissions(db *sql.DB) submissions.Repository {
	return submissions.NewSQLRepository(db)
}

// Cursors returns a cursors.Store bound to the provided DBTX.
func (m *SQLRepositoryManager) Cursors(db dbx.DBTX) cursors.Store {
	return cursors.NewSQLStore(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func (m *SQLRepositoryManager) dialect() string {
	if m.driver == DriverSQLite {
		return "sqlite3"
	}
	return "pgx"
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect()); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// Open connects to the database and checks the connection. SQLite is
// limited to one connection so an in-memory database is shared and
// foreign keys stay enabled.
func (m *SQLRepositoryManager) Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(m.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if m.driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set PRAGMA foreign_keys: %w", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set PRAGMA busy_timeout: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
