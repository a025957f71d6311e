package db

import (
	"context"
	"database/sql"

	"github.com/markdave123-py/flowdesk/internal/core"
)

var _ core.DbClient = (*DatabaseClient)(nil)

// querier is the subset of *sql.DB and *sql.Tx the client issues statements through.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
