package syncer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stoksync/stoksync/internal/issues"
)

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		reason string
		want   string
	}{
		{"item not found", issues.TypeUnmatched},
		{"Product Not Found in catalog", issues.TypeUnmatched},
		{"Ürün bulunamadı", issues.TypeUnmatched},
		// Capital I must lower to dotless ı for the match to hold.
		{"ÜRÜN BULUNAMADI", issues.TypeUnmatched},
		{"price out of range", issues.TypeUpdateError},
		{"stok limiti aşıldı", issues.TypeUpdateError},
		{"", issues.TypeUpdateError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ClassifyFailure(tc.reason), "reason %q", tc.reason)
	}
}
