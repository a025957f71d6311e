package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/flowdesk/internal/config"
	"github.com/markdave123-py/flowdesk/internal/core"
)

// DefaultLeaseTTL is how long a processing claim holds a document when the
// client is built without configuration.
const DefaultLeaseTTL = 6 * time.Minute

type DatabaseClient struct {
	db       *sql.DB // nil on a transaction-bound client
	q        querier
	leaseTTL time.Duration
}

// OpenDB opens a pgx-backed pool and checks that the server answers.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// NewDatabaseClient connects and migrates the schema before returning.
func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}

	db, err := OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := EnsureBootstrapped(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	// The lease outlives the run timeout so a live run is never reclaimed.
	return NewFromDB(db).WithLeaseTTL(cfg.ProcessTimeout() + time.Minute), nil
}

// NewFromDB wraps an already opened pool.
func NewFromDB(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db, q: db, leaseTTL: DefaultLeaseTTL}
}

// WithLeaseTTL returns a client sharing the pool whose processing claims last ttl.
func (c *DatabaseClient) WithLeaseTTL(ttl time.Duration) *DatabaseClient {
	cp := *c
	cp.leaseTTL = ttl
	return &cp
}

// Ping checks the pool; a transaction-bound client reports nil.
func (c *DatabaseClient) Ping(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.PingContext(ctx)
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// RunInTx calls fn with a client bound to one transaction. Nested calls on a
// transaction-bound client reuse the outer transaction.
func (c *DatabaseClient) RunInTx(ctx context.Context, fn func(tx core.KnowledgeStore) error) error {
	if c.db == nil {
		return fn(c)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&DatabaseClient{q: tx, leaseTTL: c.leaseTTL}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
