// Package receipt turns scanned images into saved receipts and serves them
// back to their owner.
package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-keeper/internal/models"
	"github.com/zombor/receipt-keeper/internal/scanning"
)

// ReceiptStore is the slice of the persistence layer receipts need.
type ReceiptStore interface {
	SaveReceipt(ctx context.Context, receipt *models.Receipt) error
	GetReceipt(ctx context.Context, id string) (*models.Receipt, error)
	GetReceiptsByUser(ctx context.Context, userEmail string) ([]*models.Receipt, error)
	DeleteReceipt(ctx context.Context, id string) error
}

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles receipt operations
type Service struct {
	store       ReceiptStore
	scanner     scanning.Scanner
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with UUID ids and the wall clock
func NewService(store ReceiptStore, scanner scanning.Scanner) *Service {
	return NewServiceWithDeps(store, scanner, uuidGenerator{}, defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store ReceiptStore, scanner scanning.Scanner, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		store:       store,
		scanner:     scanner,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// ScanReceipt reads an image and returns a draft receipt for owner to
// review. Nothing is saved.
func (s *Service) ScanReceipt(ctx context.Context, owner string, data []byte, contentType string) (*models.Receipt, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidReceipt)
	}

	scanned, err := s.scanner.ScanReceipt(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	date, err := models.ParseDate(scanned.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", scanning.ErrIncompleteScan, err)
	}
	category, err := models.ParseCategory(scanned.Category)
	if err != nil {
		category = models.CategoryOther
	}

	return &models.Receipt{
		ID:        s.idGenerator.Generate(),
		UserEmail: owner,
		StoreName: normalizeStoreName(scanned.StoreName),
		Website:   scanned.Website,
		Total:     models.NewMoney(scanned.TotalAmount.Decimal, scanned.Currency),
		Date:      date,
		Category:  category,
		Barcode:   scanned.BarcodeValue,
		Summary:   scanned.Summary,
		Image:     data,
		ImageType: contentType,
		CreatedAt: s.timeSource.Now().UnixMilli(),
	}, nil
}

// SaveReceipt stores a reviewed receipt under owner. Saved receipts are
// immutable, so reusing one of owner's ids is rejected. An id taken by
// another user is replaced with a fresh one.
func (s *Service) SaveReceipt(ctx context.Context, owner string, receipt *models.Receipt) (*models.Receipt, error) {
	if receipt == nil {
		return nil, fmt.Errorf("%w: missing receipt", ErrInvalidReceipt)
	}

	r := *receipt
	r.UserEmail = owner
	r.StoreName = normalizeStoreName(r.StoreName)
	r.Total.Currency = strings.TrimSpace(r.Total.Currency)
	if r.ID == "" {
		r.ID = s.idGenerator.Generate()
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = s.timeSource.Now().UnixMilli()
	}
	if err := validate(&r); err != nil {
		return nil, err
	}

	existing, err := s.store.GetReceipt(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("checking receipt %s: %w", r.ID, err)
	}
	switch {
	case existing == nil:
	case existing.UserEmail == owner:
		return nil, fmt.Errorf("%w: %s", ErrReceiptExists, r.ID)
	default:
		// Another user's id is treated as unused.
		r.ID = s.idGenerator.Generate()
	}

	if err := s.store.SaveReceipt(ctx, &r); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}
	return &r, nil
}

// ListReceipts returns owner's receipts newest first
func (s *Service) ListReceipts(ctx context.Context, owner string) ([]*models.Receipt, error) {
	receipts, err := s.store.GetReceiptsByUser(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// GroupByStore returns owner's receipts grouped by store.
func (s *Service) GroupByStore(ctx context.Context, owner string) ([]*StoreGroup, error) {
	receipts, err := s.ListReceipts(ctx, owner)
	if err != nil {
		return nil, err
	}
	return groupByStore(receipts), nil
}

// GetReceiptImage returns the stored image and its MIME type.
func (s *Service) GetReceiptImage(ctx context.Context, owner, id string) ([]byte, string, error) {
	receipt, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, "", err
	}
	if receipt == nil || len(receipt.Image) == 0 {
		return nil, "", fmt.Errorf("%w: %s", ErrReceiptNotFound, id)
	}
	return receipt.Image, receipt.ImageType, nil
}

// DeleteReceipt removes one of owner's receipts. Unknown ids and receipts
// owned by someone else are ignored.
func (s *Service) DeleteReceipt(ctx context.Context, owner, id string) error {
	receipt, err := s.owned(ctx, owner, id)
	if err != nil {
		return err
	}
	if receipt == nil {
		slog.Debug("Ignoring delete of unknown receipt", "id", id)
		return nil
	}

	if err := s.store.DeleteReceipt(ctx, id); err != nil {
		return fmt.Errorf("deleting receipt: %w", err)
	}
	return nil
}

// owned returns the receipt if owner owns it, nil otherwise.
func (s *Service) owned(ctx context.Context, owner, id string) (*models.Receipt, error) {
	receipt, err := s.store.GetReceipt(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	if receipt == nil || receipt.UserEmail != owner {
		return nil, nil
	}
	return receipt, nil
}

func validate(r *models.Receipt) error {
	var missing []string
	if r.StoreName == "" {
		missing = append(missing, "store name")
	}
	if r.Total.Currency == "" {
		missing = append(missing, "currency")
	}
	if r.Total.Amount.IsNegative() {
		missing = append(missing, "non-negative total")
	}
	if r.CreatedAt < 0 {
		missing = append(missing, "non-negative creation time")
	}
	if r.Date.IsZero() {
		missing = append(missing, "date")
	}
	if !r.Category.Valid() {
		missing = append(missing, "category")
	}
	if len(r.Image) == 0 || r.ImageType == "" {
		missing = append(missing, "image")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: needs %s", ErrInvalidReceipt, strings.Join(missing, ", "))
	}
	return nil
}

// normalizeStoreName makes "Target ", "target" and "TARGET" group together.
func normalizeStoreName(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}
