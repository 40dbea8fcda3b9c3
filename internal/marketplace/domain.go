// Package marketplace implements the client for the marketplace grocery API.
package marketplace

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ItemUpdate is one stock/price line submitted to the marketplace.
type ItemUpdate struct {
	Barcode       string          `json:"barcode"`
	Quantity      int             `json:"quantity"`
	SellingPrice  decimal.Decimal `json:"sellingPrice"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	StoreID       string          `json:"storeId"`
}

// SubmitResult is the response to a batch submission. A missing
// BatchRequestID means the whole batch was rejected.
type SubmitResult struct {
	BatchRequestID string `json:"batchRequestId"`
	Message        string `json:"message"`
}

// Batch terminal and in-flight statuses reported by the marketplace.
const (
	BatchStatusCompleted  = "COMPLETED"
	BatchStatusProcessing = "PROCESSING"

	ItemStatusFailure = "FAILURE"
)

// BatchItem is one item result inside a polled batch.
type BatchItem struct {
	Status         string       `json:"status"`
	FailureReasons []string     `json:"failureReasons"`
	RequestItem    BatchItemRef `json:"requestItem"`
}

// BatchItemRef echoes the submitted item the result refers to.
type BatchItemRef struct {
	Barcode string `json:"barcode"`
}

// BatchStatus is the polled state of a previously submitted batch.
type BatchStatus struct {
	BatchRequestID string      `json:"batchRequestId"`
	Status         string      `json:"status"`
	Items          []BatchItem `json:"items"`
}

// Category is one marketplace category node.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Brand is one marketplace brand entry.
type Brand struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ErrEmptyBatch indicates a submission without items.
var ErrEmptyBatch = errors.New("marketplace: empty batch")

// The API expects plain JSON numbers for prices.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}
