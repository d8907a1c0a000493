package receipt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/fuel-receipts/internal/scanning"
)

// ErrUnusableReceipt is returned when a receipt has no usable amount, so there is
// nothing for a reviewer to complete. The user should retake the photo.
var ErrUnusableReceipt = errors.New("could not read an amount from the receipt, please retake the photo")

// ExtractionError carries the display message of a failed recognition
type ExtractionError struct {
	Message string
}

func (e *ExtractionError) Error() string {
	return e.Message
}

// ReceiptExtractor runs the receipt OCR pipeline
type ReceiptExtractor interface {
	Process(ctx context.Context, image io.Reader, contentType string) (*scanning.Result, error)
}

// IDGenerator generates unique IDs for transactions
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// Upload is a receipt image submitted for a fuel purchase
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
	VehicleID   string
	DriverID    string
	CardID      string
}

// Scan is an extraction preview that has not been stored
type Scan struct {
	Result     *scanning.Result  `json:"result"`
	Validation *scanning.Verdict `json:"validation,omitempty"`
}

// Service handles fuel transaction operations
type Service struct {
	db          DB
	extractor   ReceiptExtractor
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, extractor ReceiptExtractor, storage Storage) *Service {
	return NewServiceWithDeps(db, extractor, storage, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor ReceiptExtractor, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_ ")

	// Phone cameras produce long names
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// ScanReceipt runs the extraction pipeline without storing anything, so the user
// can check the result and retake the photo if needed
func (s *Service) ScanReceipt(ctx context.Context, data []byte, contentType string) (*Scan, error) {
	result, err := s.extractor.Process(ctx, bytes.NewReader(data), contentType)
	if err != nil {
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	scan := &Scan{Result: result}
	if result.Succeeded {
		verdict := scanning.Validate(result.Fields)
		scan.Validation = &verdict
	}
	return scan, nil
}

// ProcessReceipt scans a receipt, uploads the image and records the transaction.
// Partial extractions are stored for manual review.
func (s *Service) ProcessReceipt(ctx context.Context, upload Upload) (*Transaction, error) {
	result, err := s.extractor.Process(ctx, bytes.NewReader(upload.Data), upload.ContentType)
	if err != nil {
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}
	if !result.Succeeded {
		return nil, &ExtractionError{Message: result.ErrorMessage}
	}

	verdict := scanning.Validate(result.Fields)
	if !verdict.IsValid && !verdict.RequiresManualReview {
		slog.Warn("Receipt has no usable amount",
			"filename", upload.Filename,
			"issues", verdict.Issues,
			"confidence", result.Confidence,
		)
		return nil, ErrUnusableReceipt
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	key, err := s.storage.Save(ctx, fmt.Sprintf("%s_%s", id, sanitizeFilename(upload.Filename)), upload.Data)
	if err != nil {
		return nil, fmt.Errorf("saving receipt image: %w", err)
	}

	t := &Transaction{
		ID:            id,
		VehicleID:     upload.VehicleID,
		DriverID:      upload.DriverID,
		CardID:        upload.CardID,
		ReceiptURL:    s.storage.URL(key),
		Filename:      key,
		ContentType:   upload.ContentType,
		ExtractedData: result.Fields,
		RawText:       result.RawText,
		Confidence:    result.Confidence,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	t.applyVerdict(verdict)

	if err := s.db.SaveTransaction(ctx, t); err != nil {
		// Clean up the image if the record could not be written
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			slog.Warn("Failed to delete orphaned receipt image", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("saving transaction: %w", err)
	}

	slog.Info("Fuel transaction recorded",
		"id", t.ID,
		"status", t.Status,
		"confidence", t.Confidence,
		"manual_review", t.ManualReviewRequired,
	)
	return t, nil
}

// CorrectTransaction applies fields entered by a reviewer and re-validates the
// transaction. Nil fields in corrections keep their extracted values.
func (s *Service) CorrectTransaction(ctx context.Context, id string, corrections scanning.Fields) (*Transaction, error) {
	t, err := s.db.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	t.ExtractedData = mergeFields(t.ExtractedData, corrections)
	t.applyVerdict(scanning.Validate(t.ExtractedData))
	t.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("saving transaction: %w", err)
	}
	return t, nil
}

func mergeFields(base, override scanning.Fields) scanning.Fields {
	if override.Amount != nil {
		base.Amount = override.Amount
	}
	if override.Date != nil {
		base.Date = override.Date
	}
	if override.Time != nil {
		base.Time = override.Time
	}
	if override.StationName != nil {
		base.StationName = override.StationName
	}
	if override.FuelType != nil {
		base.FuelType = override.FuelType
	}
	if override.Quantity != nil {
		base.Quantity = override.Quantity
	}
	if override.PricePerLiter != nil {
		base.PricePerLiter = override.PricePerLiter
	}
	return base
}

// GetTransaction retrieves a transaction by ID
func (s *Service) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	t, err := s.db.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns transactions, optionally only those in one status
func (s *Service) ListTransactions(ctx context.Context, status Status) ([]*Transaction, error) {
	transactions, err := s.db.ListTransactions(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return transactions, nil
}

// DeleteTransaction removes a transaction and its receipt image
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	t, err := s.db.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("getting transaction for deletion: %w", err)
	}

	if err := s.storage.Delete(ctx, t.Filename); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete receipt image", "key", t.Filename, "error", err)
	}

	if err := s.db.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("deleting transaction from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the receipt image of a transaction
func (s *Service) GetReceiptFile(ctx context.Context, id string) ([]byte, string, error) {
	t, err := s.db.GetTransaction(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("getting transaction: %w", err)
	}

	data, err := s.storage.Get(ctx, t.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, t.ContentType, nil
}

// GetFile retrieves a stored receipt image by storage key
func (s *Service) GetFile(ctx context.Context, key string) ([]byte, error) {
	data, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("getting file: %w", err)
	}
	return data, nil
}
