package settings

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Setting keys for the marketplace credentials in the app_settings store.
const (
	KeyMarketplaceAPIKey     = "marketplace_api_key"
	KeyMarketplaceAPISecret  = "marketplace_api_secret"
	KeyMarketplaceSupplierID = "marketplace_supplier_id"
	KeyMarketplaceTestMode   = "marketplace_test_mode"
	KeySyncIntervalMinutes   = "sync_interval_minutes"
)

// Repository persists settings, branch mappings and category rules in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ErrBranchNotFound indicates a missing branch mapping.
var ErrBranchNotFound = errors.New("settings: branch not found")

// AppSetting returns the value stored under key, or fallback when absent.
func (r *Repository) AppSetting(ctx context.Context, key, fallback string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM app_settings WHERE key=$1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fallback, nil
		}
		return "", err
	}
	if value == "" {
		return fallback, nil
	}
	return value, nil
}

// SaveAppSetting upserts a key/value pair.
func (r *Repository) SaveAppSetting(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO app_settings (key, value) VALUES ($1,$2)
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value`, key, value)
	return err
}

// MarketplaceConfig assembles the marketplace credentials snapshot.
func (r *Repository) MarketplaceConfig(ctx context.Context) (MarketplaceConfig, error) {
	var cfg MarketplaceConfig
	var err error
	if cfg.APIKey, err = r.AppSetting(ctx, KeyMarketplaceAPIKey, ""); err != nil {
		return MarketplaceConfig{}, err
	}
	if cfg.APISecret, err = r.AppSetting(ctx, KeyMarketplaceAPISecret, ""); err != nil {
		return MarketplaceConfig{}, err
	}
	if cfg.SupplierID, err = r.AppSetting(ctx, KeyMarketplaceSupplierID, ""); err != nil {
		return MarketplaceConfig{}, err
	}
	testMode, err := r.AppSetting(ctx, KeyMarketplaceTestMode, "true")
	if err != nil {
		return MarketplaceConfig{}, err
	}
	cfg.TestMode = testMode == "true"
	return cfg, nil
}

// SaveMarketplaceConfig persists the credentials snapshot.
func (r *Repository) SaveMarketplaceConfig(ctx context.Context, cfg MarketplaceConfig) error {
	pairs := map[string]string{
		KeyMarketplaceAPIKey:     cfg.APIKey,
		KeyMarketplaceAPISecret:  cfg.APISecret,
		KeyMarketplaceSupplierID: cfg.SupplierID,
		KeyMarketplaceTestMode:   strconv.FormatBool(cfg.TestMode),
	}
	for key, value := range pairs {
		if err := r.SaveAppSetting(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// SyncIntervalMinutes returns the configured auto-sync interval.
func (r *Repository) SyncIntervalMinutes(ctx context.Context) (int, error) {
	raw, err := r.AppSetting(ctx, KeySyncIntervalMinutes, "30")
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 30, nil
	}
	return minutes, nil
}

// Branches returns all branch mappings ordered by name.
func (r *Repository) Branches(ctx context.Context) ([]Branch, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, erp_location_id, erp_price_list_id,
COALESCE(marketplace_store_id, ''), stock_buffer, active
FROM branch_mappings ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	branches := []Branch{}
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.ERPLocationID, &b.ERPPriceListID, &b.MarketplaceStoreID, &b.StockBuffer, &b.Active); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

// UpsertBranch inserts or updates a branch mapping keyed by ERP location.
func (r *Repository) UpsertBranch(ctx context.Context, b Branch) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO branch_mappings (name, erp_location_id, erp_price_list_id, marketplace_store_id, stock_buffer, active)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (erp_location_id) DO UPDATE SET
name=EXCLUDED.name, erp_price_list_id=EXCLUDED.erp_price_list_id,
marketplace_store_id=EXCLUDED.marketplace_store_id, stock_buffer=EXCLUDED.stock_buffer, active=EXCLUDED.active
RETURNING id`, b.Name, b.ERPLocationID, b.ERPPriceListID, nullString(b.MarketplaceStoreID), b.StockBuffer, b.Active).Scan(&id)
	return id, err
}

// CategoryRules returns all category rules ordered by category name.
func (r *Repository) CategoryRules(ctx context.Context) ([]CategoryRule, error) {
	rows, err := r.pool.Query(ctx, `SELECT category_code, COALESCE(category_name, ''), sync_enabled, price_adjustment_percentage
FROM category_rules ORDER BY category_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rules := []CategoryRule{}
	for rows.Next() {
		var rule CategoryRule
		var pct float64
		if err := rows.Scan(&rule.CategoryCode, &rule.CategoryName, &rule.SyncEnabled, &pct); err != nil {
			return nil, err
		}
		rule.PriceAdjustmentPct = decimal.NewFromFloat(pct)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// UpsertRule inserts or updates a category rule keyed by category code.
func (r *Repository) UpsertRule(ctx context.Context, rule CategoryRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	pct, _ := rule.PriceAdjustmentPct.Float64()
	_, err := r.pool.Exec(ctx, `INSERT INTO category_rules (category_code, category_name, sync_enabled, price_adjustment_percentage)
VALUES ($1,$2,$3,$4)
ON CONFLICT (category_code) DO UPDATE SET
category_name=EXCLUDED.category_name, sync_enabled=EXCLUDED.sync_enabled,
price_adjustment_percentage=EXCLUDED.price_adjustment_percentage`, rule.CategoryCode, rule.CategoryName, rule.SyncEnabled, pct)
	return err
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
