package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SuperID/nanoservices/pkg/trace"
	"github.com/SuperID/nanoservices/pkg/traceid"
)

const repoLogPrefix = "db:repository"

// Repository provides database access for trace events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertEvents stores events in a single batch, in order.
func (r *Repository) InsertEvents(ctx context.Context, events []trace.Event) error {
	if len(events) == 0 {
		return nil
	}
	slog.Debug(fmt.Sprintf("%s - InsertEvents count=%d", repoLogPrefix, len(events)))

	batch := &pgx.Batch{}
	for _, e := range events {
		row := NewTraceEvent(e)
		batch.Queue(
			`INSERT INTO trace_events (request_id, kind, service, payload, created)
			 VALUES ($1, $2, $3, $4, $5)`,
			row.RequestID, row.Kind, row.Service, row.Payload, row.Created)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("%s - insert trace event: %w", repoLogPrefix, err)
		}
	}
	return nil
}

// ListEvents returns stored events in insertion order.
func (r *Repository) ListEvents(ctx context.Context, params ListEventsParams) ([]TraceEvent, error) {
	slog.Debug(fmt.Sprintf("%s - ListEvents prefix=%s", repoLogPrefix, params.Prefix))

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var (
		conditions []string
		args       []interface{}
	)
	if params.Prefix != "" {
		args = append(args, escapeLike(params.Prefix)+"%")
		conditions = append(conditions, fmt.Sprintf("request_id LIKE $%d", len(args)))
	}
	if !params.Since.IsZero() {
		args = append(args, params.Since)
		conditions = append(conditions, fmt.Sprintf("created >= $%d", len(args)))
	}
	args = append(args, limit)

	query := `SELECT id, request_id, kind, service, payload, created FROM trace_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s - list trace events: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []TraceEvent
	for rows.Next() {
		var e TraceEvent
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Kind, &e.Service, &e.Payload, &e.Created); err != nil {
			return nil, fmt.Errorf("%s - scan trace event: %w", repoLogPrefix, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - iterate trace events: %w", repoLogPrefix, err)
	}
	return out, nil
}

// ListRequestIDs returns the distinct request IDs stored under prefix, sorted with
// numeric-aware segment order.
func (r *Repository) ListRequestIDs(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT request_id FROM trace_events WHERE request_id LIKE $1`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("%s - list request ids: %w", repoLogPrefix, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s - collect request ids: %w", repoLogPrefix, err)
	}
	traceid.Sort(ids)
	return ids, nil
}

// escapeLike escapes LIKE metacharacters; backslash is Postgres' default escape.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
