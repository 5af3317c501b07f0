package service

import (
	"context"
	"errors"

	"leadmatch/internal/model"
)

var (
	// ErrCapabilityUnavailable means no configured provider could serve the call
	ErrCapabilityUnavailable = errors.New("language capability unavailable")
	// ErrExtractionParse means the model answered with something that is not JSON
	ErrExtractionParse = errors.New("extraction output not parseable")
)

// ChatOptions tune one completion call
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
	JSON        bool // ask for a JSON object response
}

// Provider is one language-model backend
type Provider interface {
	// Name identifies the provider in logs
	Name() string

	// IsEnabled returns whether the provider is configured and ready
	IsEnabled() bool

	// Chat returns the assistant message for the conversation
	Chat(ctx context.Context, system string, messages []model.Message, opts ChatOptions) (string, error)

	// Transcribe turns audio into text
	Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error)
}

// Assistant is the language capability the conversation depends on
type Assistant interface {
	Available() bool
	GenerateReply(ctx context.Context, transcript []model.Message, system string) (string, error)
	ExtractFields(ctx context.Context, transcript []model.Message) (*model.ExtractionResult, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Ensure implementations satisfy the interfaces
var (
	_ Provider  = (*OpenAIClient)(nil)
	_ Provider  = (*SDKProvider)(nil)
	_ Assistant = (*LLMService)(nil)
)
