package scanning

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// Result is the outcome of one receipt extraction
type Result struct {
	Succeeded    bool   `json:"success"`
	Fields       Fields `json:"extracted_data"`
	RawText      string `json:"raw_text"`
	Confidence   int    `json:"confidence"`
	ErrorMessage string `json:"error,omitempty"`
}

// Extractor runs the receipt pipeline: encode, recognize, extract fields and
// score confidence. It holds no per-call state and is safe for concurrent use.
type Extractor struct {
	recognizer Recognizer
}

// NewExtractor creates an Extractor backed by the given recognizer
func NewExtractor(recognizer Recognizer) *Extractor {
	return &Extractor{recognizer: recognizer}
}

// Process extracts receipt fields from an image. Configuration and encoding
// failures are returned as errors before any call to the recognition service.
// Recognition failures are reported through a Result with Succeeded=false.
func (e *Extractor) Process(ctx context.Context, image io.Reader, contentType string) (*Result, error) {
	if e.recognizer == nil {
		return nil, ErrMissingAPIKey
	}
	if err := e.recognizer.CheckConfig(); err != nil {
		return nil, err
	}

	content, err := EncodeImage(image, contentType)
	if err != nil {
		return nil, err
	}

	annotation, err := e.recognizer.Recognize(ctx, content)
	if err != nil {
		slog.Error("Receipt recognition failed",
			"content_type", contentType,
			"encoded_size", len(content),
			"error", err,
		)
		return &Result{
			Succeeded:    false,
			ErrorMessage: failureMessage(err),
		}, nil
	}

	result := &Result{
		Succeeded:  true,
		Fields:     ExtractFields(annotation.Text),
		RawText:    annotation.Text,
		Confidence: Confidence(annotation),
	}
	slog.Info("Receipt extracted",
		"confidence", result.Confidence,
		"text_length", len(result.RawText),
	)
	return result, nil
}

// unexpectedFailureMessage is shown for transport and other failures whose details
// stay in the logs
const unexpectedFailureMessage = "Failed to process receipt. Please try again."

// failureMessage turns a recognition error into a message suitable for display
func failureMessage(err error) string {
	var serviceErr *ServiceError
	switch {
	case errors.As(err, &serviceErr):
		return serviceErr.Error()
	case errors.Is(err, ErrNoTextDetected):
		return "No text detected in image"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Receipt processing was cancelled"
	}
	return unexpectedFailureMessage
}
