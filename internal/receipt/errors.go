package receipt

import "errors"

var (
	// ErrInvalidReceipt is returned when a receipt misses a required field.
	ErrInvalidReceipt = errors.New("invalid receipt")
	// ErrReceiptExists is returned when saving over an existing id.
	ErrReceiptExists = errors.New("receipt already exists")
	// ErrReceiptNotFound is returned when the receipt is absent or owned by
	// someone else.
	ErrReceiptNotFound = errors.New("receipt not found")
)

// IsDomainError reports whether err is one of the receipt errors above.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrInvalidReceipt) ||
		errors.Is(err, ErrReceiptExists) ||
		errors.Is(err, ErrReceiptNotFound)
}
