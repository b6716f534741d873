package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearTraceEvents removes every stored trace event. RESTART IDENTITY resets the id
// sequence; the schema is preserved.
func ClearTraceEvents(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing trace_events", clearLogPrefix))

	if _, err := pool.Exec(ctx, `TRUNCATE TABLE trace_events RESTART IDENTITY`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - trace_events cleared", clearLogPrefix))
	return nil
}

// PruneTraceEvents deletes events created before cutoff and returns how many were
// removed.
func PruneTraceEvents(ctx context.Context, pool *pgxpool.Pool, cutoff time.Time) (int64, error) {
	tag, err := pool.Exec(ctx, `DELETE FROM trace_events WHERE created < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s - prune failed: %w", clearLogPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Pruned %d trace events older than %s", clearLogPrefix, tag.RowsAffected(), cutoff.Format(time.RFC3339)))
	return tag.RowsAffected(), nil
}
