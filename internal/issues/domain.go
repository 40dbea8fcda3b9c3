// Package issues keeps the deduplicated ledger of problems found during
// reconciliation runs.
package issues

import (
	"errors"
	"time"
)

// Issue types recorded by the engine. The reference labels are kept so
// existing dashboards and operator habits keep working.
const (
	TypeUnpriced    = "Fiyatsız Ürün"
	TypeUnmatched   = "Eşleşmemiş Ürün"
	TypeUpdateError = "API Güncelleme Hatası"
)

// Issue is one persisted product/branch-level problem.
type Issue struct {
	ID           int64          `json:"id"`
	ERPProductID *int64         `json:"erp_product_id,omitempty"`
	Barcode      string         `json:"barcode"`
	BranchName   string         `json:"branch_name"`
	Type         string         `json:"type"`
	Message      string         `json:"message"`
	Details      map[string]any `json:"details,omitempty"`
	Resolved     bool           `json:"resolved"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Input describes a problem to record. ERPProductID may be nil when the
// marketplace only reported a barcode.
type Input struct {
	ERPProductID *int64
	Barcode      string
	BranchName   string
	Type         string
	Message      string
	Details      map[string]any
}

// ErrIssueNotFound indicates a missing issue row.
var ErrIssueNotFound = errors.New("issues: issue not found")

// ErrMissingType indicates an issue recorded without a type.
var ErrMissingType = errors.New("issues: issue type required")

// TypeCount pairs an issue type with its unresolved count.
type TypeCount struct {
	Type  string
	Count int
}
