package platform

import (
	"context"
	"database/sql"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/qorzen/kernel/internal/kernelerr"
)

// PostgresDatabase implements Database over a pgx connection pool
// (spec.md §6), grounded in wisbric-nightowl's pgx pooling and
// solaius-kf-reg/r3e-network-service_layer's golang-migrate usage.
type PostgresDatabase struct {
	pool *pgxpool.Pool
}

// NewPostgresDatabase wraps an already-constructed *pgxpool.Pool.
func NewPostgresDatabase(pool *pgxpool.Pool) *PostgresDatabase {
	return &PostgresDatabase{pool: pool}
}

func (d *PostgresDatabase) Execute(ctx context.Context, sqlStmt string, args ...any) error {
	if _, err := d.pool.Exec(ctx, sqlStmt, args...); err != nil {
		return kernelerr.Wrap(kernelerr.KindIO, kernelerr.SeverityMedium, "platform.db.execute", "executing statement", err)
	}
	return nil
}

func (d *PostgresDatabase) Query(ctx context.Context, sqlStmt string, args ...any) (Rows, error) {
	rows, err := d.pool.Query(ctx, sqlStmt, args...)
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.KindIO, kernelerr.SeverityMedium, "platform.db.query", "querying", err)
	}
	return &pgxRows{rows: rows}, nil
}

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Close()                 { r.rows.Close() }
func (r *pgxRows) Err() error             { return r.rows.Err() }

// Transaction runs fn inside a single pgx transaction, committing on a nil
// return and rolling back otherwise (spec.md §6's Database.transaction).
func (d *PostgresDatabase) Transaction(ctx context.Context, fn func(Tx) error) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return kernelerr.Wrap(kernelerr.KindIO, kernelerr.SeverityMedium, "platform.db.transaction", "beginning transaction", err)
	}

	txWrapper := &pgxTx{tx: tx}
	if err := fn(txWrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return kernelerr.Wrap(kernelerr.KindIO, kernelerr.SeverityMedium, "platform.db.transaction", "committing transaction", err)
	}
	return nil
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Execute(ctx context.Context, sqlStmt string, args ...any) error {
	_, err := t.tx.Exec(ctx, sqlStmt, args...)
	return err
}

func (t *pgxTx) Query(ctx context.Context, sqlStmt string, args ...any) (Rows, error) {
	rows, err := t.tx.Query(ctx, sqlStmt, args...)
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.KindIO, kernelerr.SeverityMedium, "platform.db.transaction.query", "querying inside transaction", err)
	}
	return &pgxRows{rows: rows}, nil
}

// Migrate applies migrations to schema in strictly increasing Version
// order, one transaction per migration via golang-migrate's Postgres
// driver (spec.md §4.5 stage 4): a failed migration halts the load and
// leaves prior applied migrations intact.
func (d *PostgresDatabase) Migrate(ctx context.Context, schema string, migrations []Migration) error {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	connStr := stdlib.RegisterConnConfig(d.pool.Config().ConnConfig)
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return kernelerr.Wrap(kernelerr.KindPlatform, kernelerr.SeverityHigh, "platform.db.migrate", "opening stdlib handle", err)
	}
	defer db.Close()

	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{
		SchemaName:      schema,
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return kernelerr.Wrap(kernelerr.KindPlatform, kernelerr.SeverityHigh, "platform.db.migrate", "constructing postgres driver", err)
	}

	src := &memorySource{migrations: sorted}
	m, err := migrate.NewWithInstance("memory", src, schema, driver)
	if err != nil {
		return kernelerr.Wrap(kernelerr.KindPlatform, kernelerr.SeverityHigh, "platform.db.migrate", "constructing migrator", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return kernelerr.Wrap(kernelerr.KindPlatform, kernelerr.SeverityHigh, "platform.db.migrate", "applying migrations", err)
	}
	return nil
}

// memorySource adapts an in-memory []Migration slice to golang-migrate's
// source.Driver, since plugin manifests carry migrations as inline SQL
// rather than files on disk.
type memorySource struct {
	mu         sync.Mutex
	migrations []Migration
}

func (s *memorySource) Open(url string) (source.Driver, error) { return s, nil }
func (s *memorySource) Close() error                            { return nil }

func (s *memorySource) First() (uint, error) {
	if len(s.migrations) == 0 {
		return 0, migrate.ErrNilVersion
	}
	return s.migrations[0].Version, nil
}

func (s *memorySource) Prev(version uint) (uint, error) {
	var prev *Migration
	for i := range s.migrations {
		if s.migrations[i].Version < version {
			if prev == nil || s.migrations[i].Version > prev.Version {
				m := s.migrations[i]
				prev = &m
			}
		}
	}
	if prev == nil {
		return 0, source.ErrNotExist
	}
	return prev.Version, nil
}

func (s *memorySource) Next(version uint) (uint, error) {
	var next *Migration
	for i := range s.migrations {
		if s.migrations[i].Version > version {
			if next == nil || s.migrations[i].Version < next.Version {
				m := s.migrations[i]
				next = &m
			}
		}
	}
	if next == nil {
		return 0, source.ErrNotExist
	}
	return next.Version, nil
}

func (s *memorySource) ReadUp(version uint) (io.ReadCloser, string, error) {
	for _, m := range s.migrations {
		if m.Version == version {
			return io.NopCloser(strings.NewReader(m.Up)), m.Name, nil
		}
	}
	return nil, "", source.ErrNotExist
}

func (s *memorySource) ReadDown(version uint) (io.ReadCloser, string, error) {
	return nil, "", source.ErrNotExist
}
