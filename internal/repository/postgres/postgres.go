// Package postgres is the durable implementation of the persisted state
// layout in spec section 6: simulation runs and their hash-chained event
// logs, optimization experiments, iterations, and per-proposal policy
// evaluations. It is one of two interchangeable events.Sink
// implementations (see internal/repository/redisq for the other); the
// engine and optimizer never import this package directly, only the
// narrow events.Sink interface.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	perrors "rtgssim/pkg/errors"
)

// Open connects to dsn and verifies the connection is live, mirroring the
// teacher's sqlx.Connect-then-ping-via-query pattern rather than lazily
// discovering a bad DSN on first query.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, perrors.Wrap(err, "connecting to postgres")
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	return db, nil
}

func isNoRows(err error) bool {
	return err == sql.ErrNoRows
}

func fmtID(prefix string, n int64) string {
	return fmt.Sprintf("%s_%d", prefix, n)
}
