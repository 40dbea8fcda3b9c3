package syncer

import (
	"github.com/shopspring/decimal"

	"github.com/stoksync/stoksync/internal/marketplace"
)

var hundred = decimal.NewFromInt(100)

// SellingPrice applies the category adjustment percentage to the unit
// price and rounds half-up to two decimals.
func SellingPrice(unitPrice, adjustmentPct decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(adjustmentPct.Div(hundred))
	return unitPrice.Mul(factor).Round(2)
}

// BufferedQuantity subtracts the branch safety buffer from the stock on
// hand, clamped at zero.
func BufferedQuantity(stock, buffer int) int {
	quantity := stock - buffer
	if quantity < 0 {
		return 0
	}
	return quantity
}

// PartitionUpdates splits staged updates into submission-sized chunks,
// preserving order.
func PartitionUpdates(items []marketplace.ItemUpdate, size int) [][]marketplace.ItemUpdate {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	chunks := make([][]marketplace.ItemUpdate, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
