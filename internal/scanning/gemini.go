package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// transcribePrompt is shared by the LLM based recognizers. They return raw text
// only; field extraction still runs through ExtractFields.
const transcribePrompt = `You are reading a photographed fuel station receipt. Transcribe every line of text exactly as printed, top to bottom, one receipt line per output line.

Important:
- Do not summarize, translate, correct or reformat numbers, dates or times
- Keep currency markers (KES, KSh, $) and units (L, Ltrs, /Litre) as printed
- Do not add any commentary before or after the text
- Do not use markdown code blocks
- If the image contains no readable text, return an empty response`

// DefaultGeminiModel is used when no model name is given
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini implements the Recognizer interface using Google Gemini. It returns no
// word confidences, so results from it always score 0.
type Gemini struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// NewGemini creates a Gemini recognizer. An empty API key yields a recognizer whose
// CheckConfig reports ErrMissingAPIKey.
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	if apiKey == "" {
		return &Gemini{modelName: modelName}, nil
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:    client,
		model:     client.GenerativeModel(modelName),
		modelName: modelName,
	}, nil
}

// CheckConfig reports whether an API key was configured
func (g *Gemini) CheckConfig() error {
	if g.client == nil {
		return ErrMissingAPIKey
	}
	return nil
}

// Recognize transcribes the receipt text
func (g *Gemini) Recognize(ctx context.Context, content string) (*TextAnnotation, error) {
	if err := g.CheckConfig(); err != nil {
		return nil, err
	}

	imageData, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("decoding image content: %w", err)
	}

	resp, err := g.model.GenerateContent(ctx,
		genai.ImageData(imageFormat(imageData), imageData),
		genai.Text(transcribePrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrNoTextDetected
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	transcript := cleanTranscript(text.String())
	if transcript == "" {
		return nil, ErrNoTextDetected
	}
	return &TextAnnotation{Text: transcript}, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// imageFormat returns the format suffix genai.ImageData expects ("png", "jpeg")
func imageFormat(data []byte) string {
	switch {
	case len(data) >= 8 && string(data[1:4]) == "PNG":
		return "png"
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8:
		return "jpeg"
	case len(data) >= 4 && string(data[:4]) == "GIF8":
		return "gif"
	}
	return "png"
}

// cleanTranscript removes markdown fences LLMs sometimes add despite the prompt
func cleanTranscript(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
