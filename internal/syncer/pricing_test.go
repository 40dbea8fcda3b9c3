package syncer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stoksync/stoksync/internal/marketplace"
)

func TestSellingPriceAppliesAdjustment(t *testing.T) {
	cases := []struct {
		name string
		unit string
		pct  string
		want string
	}{
		{"ten percent markup", "100", "10", "110"},
		{"discount", "100", "-5", "95"},
		{"rounds half up", "10.005", "0", "10.01"},
		{"fractional markup", "24.50", "10", "26.95"},
		{"zero stays zero", "0", "10", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			unit := decimal.RequireFromString(tc.unit)
			pct := decimal.RequireFromString(tc.pct)
			want := decimal.RequireFromString(tc.want)
			got := SellingPrice(unit, pct)
			require.True(t, want.Equal(got), "want %s got %s", want, got)
		})
	}
}

func TestBufferedQuantityClampsAtZero(t *testing.T) {
	require.Equal(t, 8, BufferedQuantity(10, 2))
	require.Equal(t, 0, BufferedQuantity(5, 8))
	require.Equal(t, 0, BufferedQuantity(0, 0))
	require.Equal(t, 7, BufferedQuantity(7, 0))
}

func TestPartitionUpdates(t *testing.T) {
	items := make([]marketplace.ItemUpdate, 120)
	chunks := PartitionUpdates(items, 50)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 50)
	require.Len(t, chunks[1], 50)
	require.Len(t, chunks[2], 20)

	require.Nil(t, PartitionUpdates(nil, 50))
	require.Nil(t, PartitionUpdates(items, 0))

	exact := PartitionUpdates(make([]marketplace.ItemUpdate, 100), 50)
	require.Len(t, exact, 2)
}
