package history

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists run history in PostgreSQL. The table is append-only;
// no update or delete statements exist here by design of the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append writes one run summary and returns its id.
func (r *Repository) Append(ctx context.Context, entry Entry) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO sync_history (start_time, duration_seconds, run_type, status, products_processed, products_sent, issues_found, summary_message, first_batch_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		entry.StartTime, entry.DurationSeconds, entry.RunType, entry.Status,
		entry.ProductsProcessed, entry.ProductsSent, entry.IssuesFound,
		entry.SummaryMessage, nullString(entry.FirstBatchID)).Scan(&id)
	return id, err
}

// Recent returns the latest entries, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, start_time, duration_seconds, run_type, status, products_processed, products_sent, issues_found, summary_message, COALESCE(first_batch_id, '')
FROM sync_history ORDER BY start_time DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.StartTime, &e.DurationSeconds, &e.RunType, &e.Status, &e.ProductsProcessed, &e.ProductsSent, &e.IssuesFound, &e.SummaryMessage, &e.FirstBatchID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// StatusesSince lists run statuses started at or after the cutoff, used for
// the dashboard health score.
func (r *Repository) StatusesSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT status FROM sync_history WHERE start_time >= $1`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	statuses := []string{}
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
