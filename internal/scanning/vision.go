package scanning

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

// Vision implements the Recognizer interface using the Google Cloud Vision
// images:annotate endpoint, authenticated with an API key.
type Vision struct {
	service *vision.Service
}

// NewVision creates a Vision recognizer. An empty API key is not an error here so
// that the service can start; every Recognize call then fails with ErrMissingAPIKey.
func NewVision(apiKey string, opts ...option.ClientOption) (*Vision, error) {
	if apiKey == "" {
		return &Vision{}, nil
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := vision.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}
	return &Vision{service: service}, nil
}

// CheckConfig reports whether an API key was configured
func (v *Vision) CheckConfig() error {
	if v.service == nil {
		return ErrMissingAPIKey
	}
	return nil
}

// Recognize requests plain and document text detection for a base64 encoded image
func (v *Vision) Recognize(ctx context.Context, content string) (*TextAnnotation, error) {
	if err := v.CheckConfig(); err != nil {
		return nil, err
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{
			{
				Image: &vision.Image{Content: content},
				Features: []*vision.Feature{
					{Type: "TEXT_DETECTION"},
					{Type: "DOCUMENT_TEXT_DETECTION"},
				},
			},
		},
	}

	resp, err := v.service.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, &ServiceError{StatusCode: apiErr.Code}
		}
		return nil, fmt.Errorf("calling vision API: %w", err)
	}

	if len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, ErrNoTextDetected
	}
	result := resp.Responses[0]

	if result.Error != nil {
		message := result.Error.Message
		if message == "" {
			message = fmt.Sprintf("Vision API error: code %d", result.Error.Code)
		}
		return nil, &ServiceError{StatusCode: resp.HTTPStatusCode, Message: message}
	}

	if result.FullTextAnnotation == nil || result.FullTextAnnotation.Text == "" {
		return nil, ErrNoTextDetected
	}

	return fromVisionAnnotation(result.FullTextAnnotation), nil
}

// Close is a no-op; the underlying HTTP client has nothing to release
func (v *Vision) Close() error {
	return nil
}

// fromVisionAnnotation copies the page structure. The API omits zero confidences,
// so a zero value is treated as absent.
func fromVisionAnnotation(a *vision.TextAnnotation) *TextAnnotation {
	out := &TextAnnotation{Text: a.Text}
	for _, p := range a.Pages {
		if p == nil {
			continue
		}
		page := &Page{}
		for _, b := range p.Blocks {
			if b == nil {
				continue
			}
			block := &Block{}
			for _, para := range b.Paragraphs {
				if para == nil {
					continue
				}
				paragraph := &Paragraph{}
				for _, w := range para.Words {
					if w == nil {
						continue
					}
					word := &Word{}
					if w.Confidence != 0 {
						c := w.Confidence
						word.Confidence = &c
					}
					paragraph.Words = append(paragraph.Words, word)
				}
				block.Paragraphs = append(block.Paragraphs, paragraph)
			}
			page.Blocks = append(page.Blocks, block)
		}
		out.Pages = append(out.Pages, page)
	}
	return out
}
