package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ollama implements the Recognizer interface using a local Ollama vision model
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama recognizer instance
// Models that transcribe receipts reasonably well:
//   - qwen2-vl:7b (best OCR of the local models)
//   - llava:1.6
//   - llava-phi3 (smaller, faster, less accurate)
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			Timeout: 120 * time.Second, // vision models are slow on CPU
		},
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// CheckConfig always succeeds; a local Ollama needs no credential
func (o *Ollama) CheckConfig() error {
	return nil
}

// Recognize transcribes the receipt text
func (o *Ollama) Recognize(ctx context.Context, content string) (*TextAnnotation, error) {
	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an OCR engine. You output the exact text printed in images and nothing else.",
			},
			{
				Role:    "user",
				Content: transcribePrompt,
				Images:  []string{content},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Ollama API error (status %d): %s", resp.StatusCode, bytes.TrimSpace(body)),
		}
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if chatResp.Error != "" {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: chatResp.Error}
	}

	text := cleanTranscript(chatResp.Message.Content)
	if text == "" {
		return nil, ErrNoTextDetected
	}
	return &TextAnnotation{Text: text}, nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
