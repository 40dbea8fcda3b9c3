// Package history keeps the append-only record of reconciliation runs.
package history

import "time"

// Run statuses. Exactly one of these terminates every run.
const (
	StatusSuccess               = "Success"
	StatusCompletedWithWarnings = "CompletedWithWarnings"
	StatusCriticalFailure       = "CriticalFailure"
)

// Entry summarises one reconciliation run. Entries are immutable once
// written.
type Entry struct {
	ID                int64     `json:"id"`
	StartTime         time.Time `json:"start_time"`
	DurationSeconds   float64   `json:"duration_seconds"`
	RunType           string    `json:"run_type"`
	Status            string    `json:"status"`
	ProductsProcessed int       `json:"products_processed"`
	ProductsSent      int       `json:"products_sent"`
	IssuesFound       int       `json:"issues_found"`
	SummaryMessage    string    `json:"summary_message"`
	FirstBatchID      string    `json:"first_batch_id,omitempty"`
}
