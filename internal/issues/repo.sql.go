package issues

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists sync issues in PostgreSQL.
//
// The unresolved-dedup invariant is enforced by a partial unique index:
//
//	CREATE UNIQUE INDEX sync_issues_open_key ON sync_issues
//	(COALESCE(erp_product_id, 0), branch_name, issue_type) WHERE NOT resolved;
//
// so concurrent recorders for the same key triple cannot produce duplicates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts an issue unless an unresolved one already exists for the
// same (erp_product_id, branch_name, issue_type) triple. The duplicate case
// is a no-op and reported through created=false.
func (r *Repository) Record(ctx context.Context, input Input) (bool, error) {
	if input.Type == "" {
		return false, ErrMissingType
	}
	var details any
	if len(input.Details) > 0 {
		data, err := json.Marshal(input.Details)
		if err != nil {
			return false, err
		}
		details = data
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO sync_issues (erp_product_id, barcode, branch_name, issue_type, message, details, resolved, created_at)
VALUES ($1,$2,$3,$4,$5,$6,FALSE,NOW())`, input.ERPProductID, input.Barcode, input.BranchName, input.Type, input.Message, details)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Resolve flips an issue to resolved. Resolving twice is a no-op success.
func (r *Repository) Resolve(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sync_issues SET resolved=TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sync_issues WHERE id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrIssueNotFound
		}
	}
	return nil
}

// Unresolved returns open issues, newest first.
func (r *Repository) Unresolved(ctx context.Context) ([]Issue, error) {
	return r.list(ctx, `WHERE NOT resolved`)
}

// Resolved returns closed issues, newest first.
func (r *Repository) Resolved(ctx context.Context) ([]Issue, error) {
	return r.list(ctx, `WHERE resolved`)
}

// All returns every issue, newest first.
func (r *Repository) All(ctx context.Context) ([]Issue, error) {
	return r.list(ctx, ``)
}

func (r *Repository) list(ctx context.Context, where string) ([]Issue, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, erp_product_id, COALESCE(barcode, ''), branch_name, issue_type, message, details, resolved, created_at
FROM sync_issues `+where+` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

// CountsByType groups unresolved issues per issue type.
func (r *Repository) CountsByType(ctx context.Context) ([]TypeCount, error) {
	rows, err := r.pool.Query(ctx, `SELECT issue_type, COUNT(*) FROM sync_issues WHERE NOT resolved GROUP BY issue_type ORDER BY issue_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := []TypeCount{}
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// TotalUnresolved counts all open issues.
func (r *Repository) TotalUnresolved(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sync_issues WHERE NOT resolved`).Scan(&total)
	return total, err
}

func scanIssues(rows pgx.Rows) ([]Issue, error) {
	issues := []Issue{}
	for rows.Next() {
		var issue Issue
		var details []byte
		if err := rows.Scan(&issue.ID, &issue.ERPProductID, &issue.Barcode, &issue.BranchName, &issue.Type, &issue.Message, &details, &issue.Resolved, &issue.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &issue.Details); err != nil {
				return nil, err
			}
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}
