package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"leadmatch/internal/logging"
	"leadmatch/internal/model"
)

// ProviderConfig configures one OpenAI-style backend
type ProviderConfig struct {
	Name               string
	APIKey             string
	APIBase            string
	Model              string
	TranscriptionModel string
	ChatExtraBody      string // JSON string for extra_body (e.g., {"chat_template_kwargs":{"thinking":false}})
	Temperature        float64
	MaxTokens          int
	Timeout            int
}

// OpenAIClient talks to any OpenAI-compatible HTTP API (NVIDIA, Groq, local
// gateways) without an SDK
type OpenAIClient struct {
	config     ProviderConfig
	extraBody  map[string]any
	httpClient *http.Client
}

// NewOpenAIClient creates a new OpenAI-compatible client
func NewOpenAIClient(cfg ProviderConfig) *OpenAIClient {
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30
	}

	c := &OpenAIClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}

	// Parse extra_body once; a bad value is logged and ignored
	if cfg.ChatExtraBody != "" {
		var extraBody map[string]any
		if err := json.Unmarshal([]byte(cfg.ChatExtraBody), &extraBody); err == nil {
			c.extraBody = extraBody
			logging.Debugf("✅ ChatExtraBody parsed successfully for %s: %+v", cfg.Name, extraBody)
		} else {
			log.Printf("Warning: Failed to parse extra body for %s: %v", cfg.Name, err)
		}
	}
	return c
}

// Name identifies the provider in logs
func (c *OpenAIClient) Name() string {
	return c.config.Name
}

// IsEnabled returns whether the client is configured and ready
func (c *OpenAIClient) IsEnabled() bool {
	return c.config.APIKey != "" && c.config.APIBase != ""
}

// ChatCompletionRequest represents a chat completion request
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	ExtraBody      map[string]any  `json:"extra_body,omitempty"`
}

// ChatMessage represents a single message in the conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat specifies the format of the response
type ResponseFormat struct {
	Type string `json:"type"` // "json_object" or "text"
}

// ChatCompletionResponse represents the API response
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// TranscriptionResponse is the body of /audio/transcriptions
type TranscriptionResponse struct {
	Text string `json:"text"`
}

// Chat sends the system prompt and messages and returns the first choice
func (c *OpenAIClient) Chat(ctx context.Context, system string, messages []model.Message, opts ChatOptions) (string, error) {
	req := ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    make([]ChatMessage, 0, len(messages)+1),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		ExtraBody:   c.extraBody,
	}
	if system != "" {
		req.Messages = append(req.Messages, ChatMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, ChatMessage{Role: m.Role, Content: m.Content})
	}
	if opts.JSON {
		req.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	resp, err := c.ChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from %s", c.config.Name)
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatCompletion performs a chat completion request
func (c *OpenAIClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if !c.IsEnabled() {
		return nil, fmt.Errorf("%s: %w", c.config.Name, ErrCapabilityUnavailable)
	}

	// Apply default parameters from config
	if req.Model == "" {
		req.Model = c.config.Model
	}
	if req.Temperature == 0 && c.config.Temperature > 0 {
		req.Temperature = c.config.Temperature
	}
	if req.MaxTokens == 0 && c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.config.APIBase)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.config.APIKey))

	body, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	logging.Debugf("%s chat: model %s, %d tokens", c.config.Name, result.Model, result.Usage.TotalTokens)
	return &result, nil
}

// Transcribe uploads audio to /audio/transcriptions as multipart form data
func (c *OpenAIClient) Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error) {
	if !c.IsEnabled() || c.config.TranscriptionModel == "" {
		return "", fmt.Errorf("%s transcription: %w", c.config.Name, ErrCapabilityUnavailable)
	}
	if filename == "" {
		filename = "voice.ogg"
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	_ = form.WriteField("model", c.config.TranscriptionModel)
	if language != "" {
		_ = form.WriteField("language", language)
	}
	_ = form.WriteField("response_format", "json")
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	url := fmt.Sprintf("%s/audio/transcriptions", c.config.APIBase)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.config.APIKey))

	body, err := c.do(httpReq)
	if err != nil {
		return "", err
	}

	var result TranscriptionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal transcription: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

func (c *OpenAIClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
