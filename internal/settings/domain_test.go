package settings

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMarketplaceConfigValidate(t *testing.T) {
	valid := MarketplaceConfig{APIKey: "k", APISecret: "s", SupplierID: "100"}
	require.NoError(t, valid.Validate())

	cases := []MarketplaceConfig{
		{},
		{APIKey: "k"},
		{APIKey: "k", APISecret: "s"},
		{APISecret: "s", SupplierID: "100"},
	}
	for _, cfg := range cases {
		require.ErrorIs(t, cfg.Validate(), ErrIncompleteMarketplaceConfig)
	}
}

func TestBranchValidate(t *testing.T) {
	branch := Branch{Name: "Merkez", ERPLocationID: 1, ERPPriceListID: 1, StockBuffer: 2}
	require.NoError(t, branch.Validate())

	branch.ERPLocationID = 0
	require.Error(t, branch.Validate())

	branch.ERPLocationID = 1
	branch.StockBuffer = -1
	require.Error(t, branch.Validate())

	branch.StockBuffer = 0
	branch.Name = ""
	require.Error(t, branch.Validate())
}

func TestCategoryRuleValidate(t *testing.T) {
	rule := CategoryRule{CategoryCode: "GIDA", PriceAdjustmentPct: decimal.NewFromInt(10)}
	require.NoError(t, rule.Validate())

	rule.CategoryCode = ""
	require.Error(t, rule.Validate())
}
