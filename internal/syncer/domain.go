// Package syncer implements the reconciliation engine that keeps ERP
// stock and prices aligned with the marketplace catalog.
package syncer

import (
	"context"
	"time"

	"github.com/stoksync/stoksync/internal/catalog"
	"github.com/stoksync/stoksync/internal/history"
	"github.com/stoksync/stoksync/internal/issues"
	"github.com/stoksync/stoksync/internal/marketplace"
	"github.com/stoksync/stoksync/internal/settings"
)

// RunType tags what triggered a reconciliation run.
type RunType string

const (
	// RunTypeManual marks operator-triggered runs.
	RunTypeManual RunType = "manual"
	// RunTypeScheduled marks cron-triggered runs.
	RunTypeScheduled RunType = "scheduled"
)

// Result is the per-run outcome owned by the caller. It replaces any
// process-wide state between runs; in particular the unpriced-with-stock
// working set lives here and nowhere else.
type Result struct {
	RunID             string
	RunType           RunType
	StartTime         time.Time
	Duration          time.Duration
	Status            string
	ProductsProcessed int
	ProductsSent      int
	IssuesFound       int
	Summary           string
	FirstBatchID      string
	UnpricedProducts  []catalog.Product
}

// ConfigSource supplies run configuration snapshots. The engine never
// mutates configuration.
type ConfigSource interface {
	MarketplaceConfig(ctx context.Context) (settings.MarketplaceConfig, error)
	Branches(ctx context.Context) ([]settings.Branch, error)
	CategoryRules(ctx context.Context) ([]settings.CategoryRule, error)
}

// CatalogSource returns the in-stock products for a branch. Adapters
// report connectivity failures as an empty result; the engine treats a
// non-nil error the same way and moves on to the next branch.
type CatalogSource interface {
	InStockProducts(ctx context.Context, branch settings.Branch) ([]catalog.Product, error)
}

// MarketplaceClient submits batches and polls their results.
type MarketplaceClient interface {
	SubmitBatch(ctx context.Context, items []marketplace.ItemUpdate) (marketplace.SubmitResult, error)
	PollBatch(ctx context.Context, batchID string) (*marketplace.BatchStatus, error)
}

// ClientFactory builds a marketplace client from a credentials snapshot.
// Credentials live in the settings store and may change between runs.
type ClientFactory func(cfg settings.MarketplaceConfig) MarketplaceClient

// IssueStore records deduplicated sync issues.
type IssueStore interface {
	Record(ctx context.Context, input issues.Input) (bool, error)
}

// HistoryStore appends run summaries.
type HistoryStore interface {
	Append(ctx context.Context, entry history.Entry) (int64, error)
}

// submittedBatch tracks a batch accepted by the marketplace within a run.
type submittedBatch struct {
	id         string
	branchName string
	size       int
}
