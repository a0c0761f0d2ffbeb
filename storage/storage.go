// Package storage opens the bun database handle behind the repositories
// and applies the embedded goose migrations.
package storage

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-exam-auth"
)

// Driver names the backing database
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// DetectDriver picks the driver from the DSN scheme. Anything that is
// not a postgres URL is handed to sqlite.
func DetectDriver(dsn string) Driver {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Store bundles the bun handle with the driver it was opened with
type Store struct {
	DB     *bun.DB
	Driver Driver
}

// Open connects to dsn and checks the connection
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver := DetectDriver(dsn)

	var (
		sqldb *sql.DB
		db    *bun.DB
		err   error
	)

	switch driver {
	case DriverPostgres:
		sqldb, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open postgres")
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb, err = sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite")
		}
		// sqlite serializes writers, one connection keeps transactions
		// from tripping over table locks
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reach database").
			WithMetadata(map[string]any{"driver": string(driver)})
	}

	return &Store{DB: db, Driver: driver}, nil
}

// goose keeps its base FS and dialect in package state
var gooseMu sync.Mutex

// Migrate applies every pending migration
func (s *Store) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dialect := "sqlite3"
	if s.Driver == DriverPostgres {
		dialect = "pgx"
	}

	goose.SetBaseFS(auth.GetMigrationsFS())
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set migration dialect")
	}

	if err := goose.UpContext(ctx, s.DB.DB, "."); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to run migrations")
	}
	return nil
}

// SeedQuestions loads the embedded question bank, skipping questions
// already stored
func (s *Store) SeedQuestions(ctx context.Context, repo auth.Questions) (int64, error) {
	records, err := auth.LoadQuestionFixtures(auth.GetFixturesFS())
	if err != nil {
		return 0, err
	}
	return repo.Seed(ctx, records)
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
