package catalog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stoksync/stoksync/internal/platform/db"
	"github.com/stoksync/stoksync/internal/settings"
)

// Repository reads the mirrored ERP schema over a dedicated pool.
//
// Per the adapter contract, InStockProducts swallows connectivity and SQL
// errors: they are logged here and the caller sees an empty result.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{pool: pool, logger: logger}
}

// ErrInvalidPriceUpdate indicates a price update with missing ids or a
// non-positive price.
var ErrInvalidPriceUpdate = errors.New("catalog: invalid price update")

// ErrERPUnavailable indicates the ERP mirror connection was never established.
var ErrERPUnavailable = errors.New("catalog: erp mirror unavailable")

// InStockProducts returns the web-visible products with positive stock at
// the branch's ERP location, priced from the branch's price list. The
// returned slice is empty on any failure.
func (r *Repository) InStockProducts(ctx context.Context, branch settings.Branch) ([]Product, error) {
	if r == nil || r.pool == nil {
		return []Product{}, nil
	}
	if branch.ERPLocationID <= 0 || branch.ERPPriceListID <= 0 {
		r.logger.Warn("branch missing erp location or price list id", slog.String("branch", branch.Name))
		return []Product{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT p.id, COALESCE(b.barcode, ''), p.name,
COALESCE(g.code, ''), COALESCE(u.name, ''), COALESCE(p.vat_rate, 0),
COALESCE(s.quantity, 0), COALESCE(f.price, 0)
FROM erp_products p
LEFT JOIN erp_product_barcodes b ON b.product_id = p.id AND b.is_default
LEFT JOIN erp_product_groups g ON g.id = p.group_id
LEFT JOIN erp_units u ON u.id = p.unit_id
LEFT JOIN erp_stock_quantities s ON s.product_id = p.id AND s.location_id = $1
LEFT JOIN erp_price_list_entries f ON f.product_id = p.id AND f.price_list_id = $2
WHERE p.web_visible AND COALESCE(s.quantity, 0) > 0
ORDER BY p.id`, branch.ERPLocationID, branch.ERPPriceListID)
	if err != nil {
		r.logger.Error("fetch erp products", slog.String("branch", branch.Name), slog.Any("error", err))
		return []Product{}, nil
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		var p Product
		var price float64
		if err := rows.Scan(&p.ERPProductID, &p.Barcode, &p.Name, &p.CategoryCode, &p.Unit, &p.VATRate, &p.StockQuantity, &price); err != nil {
			r.logger.Error("scan erp product", slog.String("branch", branch.Name), slog.Any("error", err))
			return []Product{}, nil
		}
		p.UnitPrice = decimal.NewFromFloat(price)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("iterate erp products", slog.String("branch", branch.Name), slog.Any("error", err))
		return []Product{}, nil
	}
	return products, nil
}

// Locations lists the ERP stock locations for the admin surface.
func (r *Repository) Locations(ctx context.Context) ([]Lookup, error) {
	return r.lookups(ctx, `SELECT id, name FROM erp_locations ORDER BY name`)
}

// PriceLists lists the ERP price list definitions.
func (r *Repository) PriceLists(ctx context.Context) ([]Lookup, error) {
	return r.lookups(ctx, `SELECT id, name FROM erp_price_lists ORDER BY name`)
}

// Categories lists the ERP product groups used as category codes.
func (r *Repository) Categories(ctx context.Context) ([]Lookup, error) {
	return r.lookups(ctx, `SELECT id, code FROM erp_product_groups ORDER BY code`)
}

func (r *Repository) lookups(ctx context.Context, query string) ([]Lookup, error) {
	if r == nil || r.pool == nil {
		return nil, ErrERPUnavailable
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Lookup{}
	for rows.Next() {
		var item Lookup
		if err := rows.Scan(&item.ID, &item.Name); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdatePrices writes corrected prices back to the ERP price table in one
// transaction. Any invalid item rolls the whole batch back.
func (r *Repository) UpdatePrices(ctx context.Context, updates []PriceUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if r == nil || r.pool == nil {
		return ErrERPUnavailable
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, update := range updates {
			if update.ERPProductID <= 0 || update.PriceListID <= 0 || !update.NewPrice.IsPositive() {
				return ErrInvalidPriceUpdate
			}
			price, _ := update.NewPrice.Float64()
			if _, err := tx.Exec(ctx, `UPDATE erp_price_list_entries SET price=$1
WHERE product_id=$2 AND price_list_id=$3`, price, update.ERPProductID, update.PriceListID); err != nil {
				return err
			}
		}
		return nil
	})
}
