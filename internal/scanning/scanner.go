// Package scanning reads receipt images with a vision model and returns the
// fields the receipt form needs.
package scanning

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrIncompleteScan is returned when the model reply lacks a field the
// receipt cannot be saved without.
var ErrIncompleteScan = errors.New("incomplete scan")

// DefaultCurrency is used when the receipt shows no currency.
const DefaultCurrency = "USD"

// ReceiptData contains extracted information from a receipt
type ReceiptData struct {
	StoreName    string              `json:"store_name"`
	Website      string              `json:"website"`
	TotalAmount  decimal.NullDecimal `json:"total_amount"`
	Currency     string              `json:"currency"`
	Date         string              `json:"date"` // YYYY-MM-DD
	Category     string              `json:"category"`
	BarcodeValue string              `json:"barcode_value"`
	Summary      string              `json:"summary"`
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and extracts metadata
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error)
	// Close closes the scanner and releases resources
	Close() error
}
