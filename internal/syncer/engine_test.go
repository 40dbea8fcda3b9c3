package syncer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stoksync/stoksync/internal/catalog"
	"github.com/stoksync/stoksync/internal/history"
	"github.com/stoksync/stoksync/internal/issues"
	"github.com/stoksync/stoksync/internal/marketplace"
	"github.com/stoksync/stoksync/internal/settings"
	_ "github.com/stoksync/stoksync/internal/testing/guard"
)

type fakeConfig struct {
	cfg      settings.MarketplaceConfig
	branches []settings.Branch
	rules    []settings.CategoryRule
}

func (f *fakeConfig) MarketplaceConfig(ctx context.Context) (settings.MarketplaceConfig, error) {
	return f.cfg, nil
}

func (f *fakeConfig) Branches(ctx context.Context) ([]settings.Branch, error) {
	return append([]settings.Branch(nil), f.branches...), nil
}

func (f *fakeConfig) CategoryRules(ctx context.Context) ([]settings.CategoryRule, error) {
	return append([]settings.CategoryRule(nil), f.rules...), nil
}

type fakeCatalog struct {
	byBranch map[string][]catalog.Product
	panics   bool
}

func (f *fakeCatalog) InStockProducts(ctx context.Context, branch settings.Branch) ([]catalog.Product, error) {
	if f.panics {
		panic("erp mirror exploded")
	}
	return append([]catalog.Product(nil), f.byBranch[branch.Name]...), nil
}

type fakeMarketplace struct {
	submitted [][]marketplace.ItemUpdate
	rejectAll bool
	statuses  map[string]*marketplace.BatchStatus
	polled    []string
}

func (f *fakeMarketplace) SubmitBatch(ctx context.Context, items []marketplace.ItemUpdate) (marketplace.SubmitResult, error) {
	f.submitted = append(f.submitted, append([]marketplace.ItemUpdate(nil), items...))
	if f.rejectAll {
		return marketplace.SubmitResult{}, nil
	}
	return marketplace.SubmitResult{BatchRequestID: fmt.Sprintf("batch-%d", len(f.submitted))}, nil
}

func (f *fakeMarketplace) PollBatch(ctx context.Context, batchID string) (*marketplace.BatchStatus, error) {
	f.polled = append(f.polled, batchID)
	if status, ok := f.statuses[batchID]; ok {
		return status, nil
	}
	return &marketplace.BatchStatus{BatchRequestID: batchID, Status: marketplace.BatchStatusCompleted}, nil
}

type memoryIssueStore struct {
	inputs []issues.Input
	open   map[string]bool
}

func (m *memoryIssueStore) Record(ctx context.Context, input issues.Input) (bool, error) {
	if m.open == nil {
		m.open = map[string]bool{}
	}
	productID := int64(0)
	if input.ERPProductID != nil {
		productID = *input.ERPProductID
	}
	key := fmt.Sprintf("%d|%s|%s", productID, input.BranchName, input.Type)
	if m.open[key] {
		return false, nil
	}
	m.open[key] = true
	m.inputs = append(m.inputs, input)
	return true, nil
}

type memoryHistoryStore struct {
	entries []history.Entry
}

func (m *memoryHistoryStore) Append(ctx context.Context, entry history.Entry) (int64, error) {
	m.entries = append(m.entries, entry)
	return int64(len(m.entries)), nil
}

func validConfig() settings.MarketplaceConfig {
	return settings.MarketplaceConfig{APIKey: "k", APISecret: "s", SupplierID: "100", TestMode: true}
}

func mainBranch() settings.Branch {
	return settings.Branch{ID: 1, Name: "Merkez", ERPLocationID: 1, ERPPriceListID: 1, MarketplaceStoreID: "store-1", StockBuffer: 2, Active: true}
}

func foodRule() settings.CategoryRule {
	return settings.CategoryRule{CategoryCode: "GIDA", SyncEnabled: true, PriceAdjustmentPct: decimal.NewFromInt(10)}
}

func product(id int64, barcode string, stock int, price float64) catalog.Product {
	return catalog.Product{
		ERPProductID:  id,
		Barcode:       barcode,
		Name:          fmt.Sprintf("Ürün %d", id),
		CategoryCode:  "GIDA",
		StockQuantity: stock,
		UnitPrice:     decimal.NewFromFloat(price),
	}
}

func newTestEngine(config *fakeConfig, cat *fakeCatalog, mp *fakeMarketplace, issueStore *memoryIssueStore, historyStore *memoryHistoryStore) *Engine {
	factory := func(settings.MarketplaceConfig) MarketplaceClient { return mp }
	engine := NewEngine(nil, EngineConfig{BatchSize: 50}, config, cat, factory, issueStore, historyStore, NotifierFunc(func(string) {}), nil)
	engine.sleep = func(time.Duration) {}
	return engine
}

func TestRunSuccess(t *testing.T) {
	config := &fakeConfig{cfg: validConfig(), branches: []settings.Branch{mainBranch()}, rules: []settings.CategoryRule{foodRule()}}
	cat := &fakeCatalog{byBranch: map[string][]catalog.Product{
		"Merkez": {product(1, "869001", 10, 100), product(2, "869002", 1, 20)},
	}}
	mp := &fakeMarketplace{}
	issueStore := &memoryIssueStore{}
	historyStore := &memoryHistoryStore{}

	result := newTestEngine(config, cat, mp, issueStore, historyStore).Run(context.Background(), RunTypeManual, nil)

	require.Equal(t, history.StatusSuccess, result.Status)
	require.Equal(t, 2, result.ProductsProcessed)
	require.Equal(t, 2, result.ProductsSent)
	require.Zero(t, result.IssuesFound)
	require.Equal(t, "batch-1", result.FirstBatchID)
	require.Empty(t, issueStore.inputs)

	require.Len(t, mp.submitted, 1)
	first := mp.submitted[0][0]
	require.Equal(t, "869001", first.Barcode)
	require.Equal(t, 8, first.Quantity)
	require.True(t, first.SellingPrice.Equal(decimal.NewFromFloat(110.00)), "got %s", first.SellingPrice)
	require.Equal(t, "store-1", first.StoreID)

	second := mp.submitted[0][1]
	require.Zero(t, second.Quantity)

	require.Len(t, historyStore.entries, 1)
	entry := historyStore.entries[0]
	require.Equal(t, string(RunTypeManual), entry.RunType)
	require.Equal(t, "batch-1", entry.FirstBatchID)
}

func TestRunSkipsBlankBarcodesSilently(t *testing.T) {
	config := &fakeConfig{cfg: validConfig(), branches: []settings.Branch{mainBranch()}, rules: []settings.CategoryRule{foodRule()}}
	cat := &fakeCatalog{byBranch: map[string][]catalog.Product{
		"Merkez": {product(1, "", 10, 100)},
	}}
	mp := &fakeMarketplace{}
	issueStore := &memoryIssueStore{}
	historyStore := &memoryHistoryStore{}

	result := newTestEngine(config, cat, mp, issueStore, historyStore).Run(context.Background(), RunTypeManual, nil)

	require.Equal(t, 1, result.ProductsProcessed)
	require.Zero(t, result.ProductsSent)
	require.Zero(t, result.IssuesFound)
	require.Empty(t, mp.submitted)
	require.Empty(t, issueStore.inputs)
}

func TestRunSkipsDisabledCategories(t *testing.T) {
	rule := foodRule()
	rule.SyncEnabled = false
	config := &fakeConfig{cfg: validConfig(), branches: []settings.Branch{mainBranch()}, rules: []settings.CategoryRule{rule}}
	cat := &fakeCatalog{byBranch: map[string][]catalog.Product{
		"Merkez": {product(1, "869001", 10, 100)},
	}}
	mp := &fakeMarketplace{}

	result := newTestEngine(config, cat, mp, &memoryIssueStore{}, &memoryHistoryStore{}).Run(context.Background(), RunTypeManual, nil)

	require.Equal(t, history.StatusSuccess, result.Status)
	require.Empty(t, mp.submitted)
}

func TestRunRecordsUnpricedProductOnce(t *testing.T) {
	config := &fakeConfig{cfg: validConfig(), branches: []settings.Branch{mainBranch()}, rules: []settings.CategoryRule{foodRule()}}
	cat := &fakeCatalog{byBranch: map[string][]catalog.Product{
		"Merkez": {product(7, "869007", 5, 0)},
	}}
	mp := &fakeMarketplace{}
	issueStore := &memoryIssueStore{}
	historyStore := &memoryHistoryStore{}
	engine := newTestEngine(config, cat, mp, issueStore, historyStore)

	result := engine.Run(context.Background(), RunTypeManual, nil)

	require.Equal(t, history.StatusCompletedWithWarnings, result.Status)
	require.Equal(t, 1, result.IssuesFound)
	require.Len(t, issueStore.inputs, 1)
	require.Equal(t, issues.TypeUnpriced, issueStore.inputs[0].Type)
	require.Equal(t, int64(7), *issueStore.inputs[0].ERPProductID)
	require.Len(t, result.UnpricedProducts, 1)
	require.Empty(t, mp.submitted)

	// A second run re-detects the same product but the ledger stays
	// deduplicated while the run counter still moves.
	again := engine.Run(context.Background(), RunTypeManual, nil)
	require.Equal(t, 1, again.IssuesFound)
	require.Len(t, issueStore.inputs, 1)
	require.Len(t, historyStore.entries, 2)
}

func TestRunIgnoresInactiveBranches(t *testing.T) {
	inactive := mainBranch()
	inactive.Name = "Depo"
	inactive.Active = false
	config := &fakeConfig{cfg: validConfig(), branches: []settings.Branch{mainBranch(), inactive}, rules: []settings.CategoryRule{foodRule()}}
	cat := &fakeCatalog{byBranch: map[string][]catalog.Product{
		"Merkez": {product(1, "869001", 10, 100)},
		"Depo":   {product(2, "869002", 10, 100)},
	}}
	mp := &fakeMarketplace{}

	result := newTestEngine(config, cat, mp, &memoryIssueStore{}, &memoryHistoryStore{}).Run(context.Background(), RunTypeManual, nil)

	require.Equal(t, 1, result.ProductsProcessed)
	require.Len(t, mp.submitted, 1)
}

func TestRunPartitionsLargeCatalogs(t *testing.T) {
	products := make([]catalog.Product, 0, 120)
	for i := 0; i < 120; i++ {
		products = append(products, product(int64(i+1), fmt.Sprintf("869%04d", i), 10, 50))
	}
	config := &fakeConfig{cfg: validConfig(), branches: []settings.Branch{mainBranch()}, rules: []settings.CategoryRule{foodRule()}}
	cat := &fakeCatalog{byBranch: map[string][]catalog.Product{"Merkez": products}}
	mp := &fakeMarketplace{}

	result := newTestEngine(config, cat, mp, &memoryIssueStore{}, &memoryHistoryStore{}).Run(context.Background(), RunTypeManual, nil)

	require.Equal(t, 120, result.ProductsSent)
	require.Len(t, mp.submitted, 3)
	require.Len(t, mp.submitted[0], 50)
	require.Len(t, mp.submitted[1], 50)
	require.Len(t, mp.submitted[2], 20)
	require.Equal(t, "batch-1", result.FirstBatchID)
	require.Len(t, mp.polled, 3)
}

func TestRunRejectedBatchCountsWholeChunk(t *testing.T) {
	config := &fakeConfig{cfg: validConfig(), branches: []settings.Branch{mainBranch()}, rules: []settings.CategoryRule{foodRule()}}
	cat := &fakeCatalog{byBranch: map[string][]catalog.Product{
		"Merkez": {product(1, "869001", 10, 100), product(2, "869002", 10, 100)},
	}}
	mp := &fakeMarketplace{rejectAll: true}
	issueStore := &memoryIssueStore{}

	result := newTestEngine(config, cat, mp, issueStore, &memoryHistoryStore{}).Run(context.Background(), RunTypeManual, nil)

	require.Equal(t, history.StatusCompletedWithWarnings, result.Status)
	require.Equal(t, 2, result.IssuesFound)
	require.Zero(t, result.ProductsSent)
	require.Empty(t, result.FirstBatchID)
	// Rejections are aggregate counts only, never ledger rows.
	require.Empty(t, issueStore.inputs)
}

func TestRunIncompleteConfigIsCriticalFailure(t *testing.T) {
	config := &fakeConfig{cfg: settings.MarketplaceConfig{APIKey: "k"}, branches: []settings.Branch{mainBranch()}, rules: []settings.CategoryRule{foodRule()}}
	cat := &fakeCatalog{byBranch: map[string][]catalog.Product{
		"Merkez": {product(1, "869001", 10, 100)},
	}}
	mp := &fakeMarketplace{}
	historyStore := &memoryHistoryStore{}
	finished := false

	result := newTestEngine(config, cat, mp, &memoryIssueStore{}, historyStore).Run(context.Background(), RunTypeManual, func() { finished = true })

	require.Equal(t, history.StatusCriticalFailure, result.Status)
	require.Zero(t, result.ProductsProcessed)
	require.Zero(t, result.ProductsSent)
	require.Empty(t, mp.submitted)
	require.Len(t, historyStore.entries, 1)
	require.True(t, finished)
}

func TestRunNoUsableBranchIsCriticalFailure(t *testing.T) {
	branch := mainBranch()
	branch.MarketplaceStoreID = ""
	config := &fakeConfig{cfg: validConfig(), branches: []settings.Branch{branch}, rules: []settings.CategoryRule{foodRule()}}

	result := newTestEngine(config, &fakeCatalog{}, &fakeMarketplace{}, &memoryIssueStore{}, &memoryHistoryStore{}).Run(context.Background(), RunTypeManual, nil)

	require.Equal(t, history.StatusCriticalFailure, result.Status)
}

func TestRunPanicStillWritesHistoryAndFinishes(t *testing.T) {
	config := &fakeConfig{cfg: validConfig(), branches: []settings.Branch{mainBranch()}, rules: []settings.CategoryRule{foodRule()}}
	cat := &fakeCatalog{panics: true}
	historyStore := &memoryHistoryStore{}
	finished := false

	result := newTestEngine(config, cat, &fakeMarketplace{}, &memoryIssueStore{}, historyStore).Run(context.Background(), RunTypeScheduled, func() { finished = true })

	require.Equal(t, history.StatusCriticalFailure, result.Status)
	require.Contains(t, result.Summary, "panic")
	require.Len(t, historyStore.entries, 1)
	require.True(t, finished)
}

func TestRunProcessingBatchDefersResults(t *testing.T) {
	config := &fakeConfig{cfg: validConfig(), branches: []settings.Branch{mainBranch()}, rules: []settings.CategoryRule{foodRule()}}
	cat := &fakeCatalog{byBranch: map[string][]catalog.Product{
		"Merkez": {product(1, "869001", 10, 100)},
	}}
	mp := &fakeMarketplace{statuses: map[string]*marketplace.BatchStatus{
		"batch-1": {BatchRequestID: "batch-1", Status: marketplace.BatchStatusProcessing},
	}}
	issueStore := &memoryIssueStore{}

	result := newTestEngine(config, cat, mp, issueStore, &memoryHistoryStore{}).Run(context.Background(), RunTypeManual, nil)

	require.Equal(t, history.StatusSuccess, result.Status)
	require.Zero(t, result.IssuesFound)
	require.Empty(t, issueStore.inputs)
}

func TestRunClassifiesItemFailures(t *testing.T) {
	config := &fakeConfig{cfg: validConfig(), branches: []settings.Branch{mainBranch()}, rules: []settings.CategoryRule{foodRule()}}
	cat := &fakeCatalog{byBranch: map[string][]catalog.Product{
		"Merkez": {product(1, "869001", 10, 100), product(2, "869002", 10, 100)},
	}}
	mp := &fakeMarketplace{statuses: map[string]*marketplace.BatchStatus{
		"batch-1": {
			BatchRequestID: "batch-1",
			Status:         marketplace.BatchStatusCompleted,
			Items: []marketplace.BatchItem{
				{Status: marketplace.ItemStatusFailure, FailureReasons: []string{"Ürün BULUNAMADI"}, RequestItem: marketplace.BatchItemRef{Barcode: "869001"}},
				{Status: marketplace.ItemStatusFailure, FailureReasons: []string{"stok limiti aşıldı"}, RequestItem: marketplace.BatchItemRef{Barcode: "869002"}},
				{Status: "SUCCESS", RequestItem: marketplace.BatchItemRef{Barcode: "869003"}},
			},
		},
	}}
	issueStore := &memoryIssueStore{}

	result := newTestEngine(config, cat, mp, issueStore, &memoryHistoryStore{}).Run(context.Background(), RunTypeManual, nil)

	require.Equal(t, history.StatusCompletedWithWarnings, result.Status)
	require.Equal(t, 2, result.IssuesFound)
	require.Len(t, issueStore.inputs, 2)
	require.Equal(t, issues.TypeUnmatched, issueStore.inputs[0].Type)
	require.Equal(t, "869001", issueStore.inputs[0].Barcode)
	require.Nil(t, issueStore.inputs[0].ERPProductID)
	require.Equal(t, issues.TypeUpdateError, issueStore.inputs[1].Type)
}
