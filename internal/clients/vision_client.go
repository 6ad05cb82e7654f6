/**
 * Vision Client - OpenAI-compatible multimodal chat completions
 *
 * Sends a screenshot plus a locate prompt to a vision model (GLM-4V by default,
 * anything speaking the /chat/completions dialect works) and returns the raw text
 * answer. Parsing the answer is the caller's job.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/ui-locator/internal/logging"
)

// DefaultTemperature keeps answers close to deterministic.
const DefaultTemperature = 0.1

// VisionClient handles communication with the vision model endpoint
type VisionClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *logging.Logger
}

// VisionConfig holds the endpoint settings
type VisionConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// ChatCompletionRequest is the subset of the chat completions request we send
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// ChatMessage carries multimodal content parts
type ChatMessage struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart is either a text part or an image_url part
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL holds a data URL for inline images
type ImageURL struct {
	URL string `json:"url"`
}

// ChatCompletionResponse is the subset of the response we read
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewVisionClient creates a new vision client
func NewVisionClient(cfg VisionConfig) *VisionClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &VisionClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.NewLogger("VisionClient"),
	}
}

// Query sends one PNG screenshot and a prompt, and returns the model's text answer trimmed.
func (c *VisionClient) Query(ctx context.Context, imagePNG []byte, prompt string) (string, error) {
	requestID := uuid.New().String()
	startTime := time.Now()

	c.logger.Info("Requesting element location from vision model",
		"model", c.model,
		"requestId", requestID,
		"imageSize", len(imagePNG),
		"promptLength", len(prompt))

	endpoint := fmt.Sprintf("%s/chat/completions", c.baseURL)

	reqBody, err := json.Marshal(&ChatCompletionRequest{
		Model: c.model,
		Messages: []ChatMessage{{
			Role: "user",
			Content: []ContentPart{
				{
					Type:     "image_url",
					ImageURL: &ImageURL{URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(imagePNG)},
				},
				{Type: "text", Text: prompt},
			},
		}},
		Temperature: DefaultTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request to vision model failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision model returned error status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("vision model error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("vision model returned no choices")
	}

	text, err := contentText(chatResp.Choices[0].Message.Content)
	if err != nil {
		return "", err
	}

	c.logger.Info("Vision model answered",
		"requestId", requestID,
		"model", chatResp.Model,
		"totalTokens", chatResp.Usage.TotalTokens,
		"answerLength", len(text),
		"duration", time.Since(startTime))

	return strings.TrimSpace(text), nil
}

// contentText accepts content as a plain string or as a list of text parts.
func contentText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("vision model returned empty content")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("failed to parse message content: %w", err)
	}

	var b strings.Builder
	for _, p := range parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String(), nil
}

// HealthCheck verifies the endpoint answers and the key is accepted
func (c *VisionClient) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/models", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
