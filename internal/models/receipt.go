package models

import (
	"github.com/shopspring/decimal"
)

// Receipt is one digitized purchase. Receipts are immutable once saved.
type Receipt struct {
	ID        string   `json:"id"`
	UserEmail string   `json:"user_email"`
	StoreName string   `json:"store_name"`
	Website   string   `json:"website,omitempty"` // used for logo lookup
	Total     Money    `json:"total"`
	Date      Date     `json:"date"`
	Category  Category `json:"category"`
	Barcode   string   `json:"barcode,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Image     []byte   `json:"image,omitempty"`
	ImageType string   `json:"image_type,omitempty"`
	CreatedAt int64    `json:"created_at"` // epoch milliseconds
}

// Money is a decimal amount in a single currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"` // ISO code or symbol as printed
}

// NewMoney returns an amount in the given currency.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}
