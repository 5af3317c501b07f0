package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"leadmatch/internal/logging"
	"leadmatch/internal/model"
)

// SDKProvider serves chat and Whisper transcription through the go-openai SDK
type SDKProvider struct {
	config ProviderConfig
	client *openai.Client
}

// NewSDKProvider creates an SDK-backed provider. An empty APIBase keeps the
// SDK default (api.openai.com).
func NewSDKProvider(cfg ProviderConfig) *SDKProvider {
	p := &SDKProvider{config: cfg}
	if cfg.APIKey == "" {
		return p
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.APIBase, "/")
	}
	p.client = openai.NewClientWithConfig(clientCfg)
	return p
}

// Name identifies the provider in logs
func (p *SDKProvider) Name() string {
	return p.config.Name
}

// IsEnabled returns whether the provider has a client
func (p *SDKProvider) IsEnabled() bool {
	return p.client != nil
}

// Chat runs one chat completion
func (p *SDKProvider) Chat(ctx context.Context, system string, messages []model.Message, opts ChatOptions) (string, error) {
	if !p.IsEnabled() {
		return "", fmt.Errorf("%s: %w", p.config.Name, ErrCapabilityUnavailable)
	}

	req := openai.ChatCompletionRequest{
		Model:       p.config.Model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)+1),
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	}
	if req.Temperature == 0 {
		req.Temperature = float32(p.config.Temperature)
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = p.config.MaxTokens
	}
	if system != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s chat completion failed: %w", p.config.Name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from %s", p.config.Name)
	}
	logging.Debugf("%s chat: model %s, %d tokens", p.config.Name, resp.Model, resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}

// Transcribe sends audio to the Whisper endpoint
func (p *SDKProvider) Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error) {
	if !p.IsEnabled() {
		return "", fmt.Errorf("%s transcription: %w", p.config.Name, ErrCapabilityUnavailable)
	}
	if filename == "" {
		filename = "voice.ogg"
	}

	modelName := p.config.TranscriptionModel
	if modelName == "" {
		modelName = openai.Whisper1
	}

	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    modelName,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
		Language: language,
	})
	if err != nil {
		return "", fmt.Errorf("%s transcription failed: %w", p.config.Name, err)
	}
	return strings.TrimSpace(resp.Text), nil
}
