package receipt

import (
	"time"

	"github.com/zombor/fuel-receipts/internal/scanning"
)

// Status is the review state of a fuel transaction
type Status string

const (
	// StatusCompleted marks a transaction whose required receipt fields were all extracted
	StatusCompleted Status = "completed"

	// StatusManual marks a transaction waiting for a human to complete its fields
	StatusManual Status = "manual"
)

// Transaction is a fuel purchase recorded from a scanned receipt
type Transaction struct {
	ID                   string          `json:"id"`
	VehicleID            string          `json:"vehicle_id,omitempty"`
	DriverID             string          `json:"driver_id,omitempty"`
	CardID               string          `json:"card_id,omitempty"`
	ReceiptURL           string          `json:"receipt_image_url"`
	Filename             string          `json:"filename"`
	ContentType          string          `json:"content_type"`
	ExtractedData        scanning.Fields `json:"extracted_data"`
	RawText              string          `json:"ocr_raw_text"`
	Confidence           int             `json:"ocr_confidence"`
	Status               Status          `json:"status"`
	ManualReviewRequired bool            `json:"manual_review_required"`
	Issues               []string        `json:"issues"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// applyVerdict sets the review state from a validation verdict
func (t *Transaction) applyVerdict(v scanning.Verdict) {
	t.Status = StatusManual
	if v.IsValid {
		t.Status = StatusCompleted
	}
	t.ManualReviewRequired = v.RequiresManualReview
	t.Issues = v.Issues
}
