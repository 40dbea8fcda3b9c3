package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stoksync/stoksync/internal/history"
	"github.com/stoksync/stoksync/internal/issues"
	"github.com/stoksync/stoksync/internal/marketplace"
	"github.com/stoksync/stoksync/internal/observability"
	"github.com/stoksync/stoksync/internal/settings"
)

// Engine drives one reconciliation run end to end: load configuration,
// stage updates per branch, submit batches, poll results, record issues
// and append exactly one history entry.
type Engine struct {
	logger      *slog.Logger
	config      ConfigSource
	catalog     CatalogSource
	newClient   ClientFactory
	issues      IssueStore
	history     HistoryStore
	notifier    Notifier
	metrics     *observability.Metrics
	batchSize   int
	settleDelay time.Duration
	sleep       func(time.Duration)
	now         func() time.Time
}

// EngineConfig tunes batching and polling.
type EngineConfig struct {
	// BatchSize caps items per marketplace submission.
	BatchSize int
	// SettleDelay is how long to wait before polling a submitted batch.
	SettleDelay time.Duration
}

// NewEngine constructs an Engine. Notifier and metrics may be nil.
func NewEngine(logger *slog.Logger, cfg EngineConfig, config ConfigSource, catalog CatalogSource, newClient ClientFactory, issueStore IssueStore, historyStore HistoryStore, notifier Notifier, metrics *observability.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Engine{
		logger:      logger,
		config:      config,
		catalog:     catalog,
		newClient:   newClient,
		issues:      issueStore,
		history:     historyStore,
		notifier:    notifier,
		metrics:     metrics,
		batchSize:   cfg.BatchSize,
		settleDelay: cfg.SettleDelay,
		sleep:       time.Sleep,
		now:         time.Now,
	}
}

// Run executes one reconciliation run. It always terminates with exactly
// one history entry and always invokes onFinish, whatever happens inside,
// including panics. Callers serialise runs through a RunGate; Run itself
// assumes it is the only active run.
func (e *Engine) Run(ctx context.Context, runType RunType, onFinish func()) (res Result) {
	res = Result{
		RunID:     uuid.NewString(),
		RunType:   runType,
		StartTime: e.now(),
		Status:    history.StatusCriticalFailure,
	}
	e.notifier.Notify(fmt.Sprintf("sync run started (%s)", runType))

	defer func() {
		if rec := recover(); rec != nil {
			res.Status = history.StatusCriticalFailure
			res.Summary = fmt.Sprintf("run aborted by panic: %v", rec)
			e.logger.Error("sync run panicked",
				slog.String("run_id", res.RunID),
				slog.Any("panic", rec))
		}
		res.Duration = e.now().Sub(res.StartTime)
		e.appendHistory(context.WithoutCancel(ctx), &res)
		e.metrics.ObserveRun(res.Status, res.Duration)
		e.notifier.Notify(fmt.Sprintf("sync run finished: %s (%s)", res.Status, res.Summary))
		if onFinish != nil {
			onFinish()
		}
	}()

	if err := e.reconcile(ctx, &res); err != nil {
		res.Status = history.StatusCriticalFailure
		res.Summary = "run halted: " + err.Error()
		e.logger.Error("sync run failed",
			slog.String("run_id", res.RunID),
			slog.Any("error", err))
	}
	return res
}

// reconcile runs the happy path. Any returned error marks the run as a
// critical failure; per-branch and per-batch problems are absorbed as
// issues or notes instead.
func (e *Engine) reconcile(ctx context.Context, res *Result) error {
	cfg, err := e.config.MarketplaceConfig(ctx)
	if err != nil {
		return fmt.Errorf("load marketplace config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	client := e.newClient(cfg)

	rules, err := e.config.CategoryRules(ctx)
	if err != nil {
		return fmt.Errorf("load category rules: %w", err)
	}
	rulesByCode := make(map[string]settings.CategoryRule, len(rules))
	for _, rule := range rules {
		rulesByCode[rule.CategoryCode] = rule
	}

	branches, err := e.config.Branches(ctx)
	if err != nil {
		return fmt.Errorf("load branches: %w", err)
	}
	usable := 0
	for _, branch := range branches {
		if branch.Active && branch.MarketplaceStoreID != "" {
			usable++
		}
	}
	if usable == 0 {
		return fmt.Errorf("no active branch has a marketplace store id")
	}

	var batches []submittedBatch
	for _, branch := range branches {
		if !branch.Active {
			continue
		}
		if branch.MarketplaceStoreID == "" {
			e.notifier.Notify(fmt.Sprintf("branch %s skipped: no marketplace store id", branch.Name))
			continue
		}
		submitted, err := e.syncBranch(ctx, client, branch, rulesByCode, res)
		if err != nil {
			return err
		}
		batches = append(batches, submitted...)
	}

	if err := e.collectResults(ctx, client, batches, res); err != nil {
		return err
	}

	if res.IssuesFound > 0 {
		res.Status = history.StatusCompletedWithWarnings
	} else {
		res.Status = history.StatusSuccess
	}
	res.Summary = fmt.Sprintf("%d ürün işlendi, %d gönderildi, %d sorun", res.ProductsProcessed, res.ProductsSent, res.IssuesFound)
	return nil
}

// syncBranch stages and submits updates for one branch. Batch-level
// rejections become aggregate issue counts, not run failures.
func (e *Engine) syncBranch(ctx context.Context, client MarketplaceClient, branch settings.Branch, rules map[string]settings.CategoryRule, res *Result) ([]submittedBatch, error) {
	products, err := e.catalog.InStockProducts(ctx, branch)
	if err != nil {
		e.logger.Warn("catalog read failed",
			slog.String("branch", branch.Name),
			slog.Any("error", err))
		products = nil
	}
	if len(products) == 0 {
		e.notifier.Notify(fmt.Sprintf("branch %s: no in-stock products, skipping", branch.Name))
		return nil, nil
	}
	e.notifier.Notify(fmt.Sprintf("branch %s: %d products fetched", branch.Name, len(products)))

	staged := make([]marketplace.ItemUpdate, 0, len(products))
	for _, product := range products {
		res.ProductsProcessed++
		if product.Barcode == "" {
			continue
		}
		rule, ok := rules[product.CategoryCode]
		if !ok || !rule.SyncEnabled {
			continue
		}
		price := SellingPrice(product.UnitPrice, rule.PriceAdjustmentPct)
		if price.Sign() <= 0 {
			if err := e.recordIssue(ctx, issues.Input{
				ERPProductID: ptrInt64(product.ERPProductID),
				Barcode:      product.Barcode,
				BranchName:   branch.Name,
				Type:         issues.TypeUnpriced,
				Message:      fmt.Sprintf("Fiyat sıfır veya negatif: %s", price.StringFixed(2)),
				Details:      map[string]any{"unit_price": product.UnitPrice.String(), "category_code": product.CategoryCode},
			}, res); err != nil {
				return nil, err
			}
			res.UnpricedProducts = append(res.UnpricedProducts, product)
			continue
		}
		staged = append(staged, marketplace.ItemUpdate{
			Barcode:       product.Barcode,
			Quantity:      BufferedQuantity(product.StockQuantity, branch.StockBuffer),
			SellingPrice:  price,
			OriginalPrice: price,
			StoreID:       branch.MarketplaceStoreID,
		})
	}

	var batches []submittedBatch
	for _, chunk := range PartitionUpdates(staged, e.batchSize) {
		result, err := client.SubmitBatch(ctx, chunk)
		if err != nil || result.BatchRequestID == "" {
			// Rejected batches cannot be attributed per item, so the
			// whole chunk counts as issues without ledger rows.
			res.IssuesFound += len(chunk)
			e.logger.Error("batch submission rejected",
				slog.String("branch", branch.Name),
				slog.Int("items", len(chunk)),
				slog.Any("error", err))
			e.notifier.Notify(fmt.Sprintf("branch %s: batch of %d rejected", branch.Name, len(chunk)))
			continue
		}
		res.ProductsSent += len(chunk)
		e.metrics.AddProductsSent(len(chunk))
		if res.FirstBatchID == "" {
			res.FirstBatchID = result.BatchRequestID
		}
		batches = append(batches, submittedBatch{id: result.BatchRequestID, branchName: branch.Name, size: len(chunk)})
		e.notifier.Notify(fmt.Sprintf("branch %s: batch %s accepted (%d items)", branch.Name, result.BatchRequestID, len(chunk)))
	}
	return batches, nil
}

// collectResults polls each accepted batch once after the settle delay
// and turns item failures into classified issues.
func (e *Engine) collectResults(ctx context.Context, client MarketplaceClient, batches []submittedBatch, res *Result) error {
	for _, batch := range batches {
		if e.settleDelay > 0 {
			e.sleep(e.settleDelay)
		}
		status, err := client.PollBatch(ctx, batch.id)
		if err != nil || status == nil {
			e.notifier.Notify(fmt.Sprintf("batch %s: status check failed", batch.id))
			e.logger.Warn("batch poll failed",
				slog.String("batch_id", batch.id),
				slog.Any("error", err))
			continue
		}
		switch status.Status {
		case marketplace.BatchStatusCompleted:
			for _, item := range status.Items {
				if item.Status != marketplace.ItemStatusFailure {
					continue
				}
				reason := "Bilinmeyen hata"
				if len(item.FailureReasons) > 0 {
					reason = item.FailureReasons[0]
				}
				if err := e.recordIssue(ctx, issues.Input{
					Barcode:    item.RequestItem.Barcode,
					BranchName: batch.branchName,
					Type:       ClassifyFailure(reason),
					Message:    reason,
					Details:    map[string]any{"batch_id": batch.id},
				}, res); err != nil {
					return err
				}
			}
		case marketplace.BatchStatusProcessing:
			e.notifier.Notify(fmt.Sprintf("batch %s still processing, results deferred", batch.id))
		default:
			e.notifier.Notify(fmt.Sprintf("batch %s: unexpected status %q", batch.id, status.Status))
		}
	}
	return nil
}

// recordIssue writes one ledger row and counts it toward the run total.
// The count moves even when the ledger deduplicated the row, so repeated
// runs over the same broken product stay visible in history.
func (e *Engine) recordIssue(ctx context.Context, input issues.Input, res *Result) error {
	created, err := e.issues.Record(ctx, input)
	if err != nil {
		return fmt.Errorf("record issue: %w", err)
	}
	res.IssuesFound++
	if created {
		e.metrics.AddIssue(input.Type, 1)
	}
	return nil
}

// appendHistory writes the single history entry for a finished run. A
// storage failure here is logged, never raised: the run outcome is
// already decided.
func (e *Engine) appendHistory(ctx context.Context, res *Result) {
	entry := history.Entry{
		StartTime:         res.StartTime,
		DurationSeconds:   res.Duration.Seconds(),
		RunType:           string(res.RunType),
		Status:            res.Status,
		ProductsProcessed: res.ProductsProcessed,
		ProductsSent:      res.ProductsSent,
		IssuesFound:       res.IssuesFound,
		SummaryMessage:    res.Summary,
		FirstBatchID:      res.FirstBatchID,
	}
	if _, err := e.history.Append(ctx, entry); err != nil {
		e.logger.Error("append run history",
			slog.String("run_id", res.RunID),
			slog.Any("error", err))
	}
}

func ptrInt64(v int64) *int64 { return &v }
