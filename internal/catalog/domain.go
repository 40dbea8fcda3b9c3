// Package catalog reads branch-level product data from the ERP database.
package catalog

import "github.com/shopspring/decimal"

// Product is one in-stock, web-visible ERP product for a branch.
// It is read-only to the reconciliation engine.
type Product struct {
	ERPProductID  int64
	Barcode       string
	Name          string
	CategoryCode  string
	Unit          string
	VATRate       int
	StockQuantity int
	UnitPrice     decimal.Decimal
}

// Lookup is a generic id/name pair for ERP reference data.
type Lookup struct {
	ID   int64
	Name string
}

// PriceUpdate describes one price correction to write back to the ERP.
type PriceUpdate struct {
	ERPProductID int64
	PriceListID  int64
	NewPrice     decimal.Decimal
}
