package settings

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Branch maps an ERP location to a marketplace store.
type Branch struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name" validate:"required"`
	ERPLocationID      int64  `json:"erp_location_id" validate:"required,gt=0"`
	ERPPriceListID     int64  `json:"erp_price_list_id" validate:"required,gt=0"`
	MarketplaceStoreID string `json:"marketplace_store_id"`
	StockBuffer        int    `json:"stock_buffer" validate:"gte=0"`
	Active             bool   `json:"active"`
}

// CategoryRule controls whether a product category is synced and what
// price adjustment applies to it.
type CategoryRule struct {
	CategoryCode       string          `json:"category_code" validate:"required"`
	CategoryName       string          `json:"category_name"`
	SyncEnabled        bool            `json:"sync_enabled"`
	PriceAdjustmentPct decimal.Decimal `json:"price_adjustment_pct"`
}

// MarketplaceConfig holds the credentials required to talk to the
// marketplace API. All three identifiers are mandatory for a run.
type MarketplaceConfig struct {
	APIKey     string `validate:"required"`
	APISecret  string `validate:"required"`
	SupplierID string `validate:"required"`
	TestMode   bool
}

// ErrIncompleteMarketplaceConfig indicates missing mandatory credentials.
var ErrIncompleteMarketplaceConfig = errors.New("settings: marketplace api settings incomplete")

var validate = validator.New()

// Validate reports whether the mandatory marketplace fields are present.
func (c MarketplaceConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return ErrIncompleteMarketplaceConfig
	}
	return nil
}

// Validate checks branch fields before persisting.
func (b Branch) Validate() error {
	return validate.Struct(b)
}

// Validate checks rule fields before persisting.
func (r CategoryRule) Validate() error {
	return validate.Struct(r)
}
