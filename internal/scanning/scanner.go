package scanning

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey is returned when the recognition service has no credential configured
	ErrMissingAPIKey = errors.New("OCR API key not configured")

	// ErrNoTextDetected is returned when the recognition service found no text in the image
	ErrNoTextDetected = errors.New("no text detected in image")

	// ErrEncodeImage wraps failures reading or normalizing the uploaded image
	ErrEncodeImage = errors.New("encoding image")
)

// ServiceError is a failure reported by the recognition service, either through a
// non-success HTTP status or an error embedded in the response body.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Vision API error: %d", e.StatusCode)
}

// TextAnnotation is the recognized text plus the page structure carrying word confidences
type TextAnnotation struct {
	Text  string  `json:"text"`
	Pages []*Page `json:"pages,omitempty"`
}

type Page struct {
	Blocks []*Block `json:"blocks,omitempty"`
}

type Block struct {
	Paragraphs []*Paragraph `json:"paragraphs,omitempty"`
}

type Paragraph struct {
	Words []*Word `json:"words,omitempty"`
}

// Word carries an optional confidence in [0,1]
type Word struct {
	Confidence *float64 `json:"confidence,omitempty"`
}

// Recognizer defines the interface for text recognition services
type Recognizer interface {
	// CheckConfig reports a missing credential or other deployment misconfiguration
	CheckConfig() error

	// Recognize sends a base64 encoded image and returns the recognized text
	Recognize(ctx context.Context, content string) (*TextAnnotation, error)

	// Close closes the recognizer and releases resources
	Close() error
}
