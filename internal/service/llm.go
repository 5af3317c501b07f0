package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"leadmatch/internal/config"
	"leadmatch/internal/logging"
	"leadmatch/internal/model"
)

// Provider names accepted in LLM_PROVIDERS
const (
	ProviderOpenAI     = "openai"
	ProviderCompatible = "compatible"
)

// LLMService tries providers in priority order and falls through on failure
type LLMService struct {
	providers    []Provider
	transcribers []Provider
	limiter      *rate.Limiter
	temperature  float64
	maxTokens    int
	language     string
	timeout      time.Duration
}

// BuildProviders creates the chat chain in configured order and the
// transcription chain (Groq-style endpoint first, OpenAI Whisper second)
func BuildProviders(cfg config.LLMConfig) (chat []Provider, transcribers []Provider) {
	sdk := NewSDKProvider(ProviderConfig{
		Name:        ProviderOpenAI,
		APIKey:      cfg.OpenAIKey,
		APIBase:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	})
	compatible := NewOpenAIClient(ProviderConfig{
		Name:          ProviderCompatible,
		APIKey:        cfg.CompatibleKey,
		APIBase:       cfg.CompatibleBaseURL,
		Model:         cfg.CompatibleModel,
		ChatExtraBody: cfg.ChatExtraBody,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		Timeout:       cfg.Timeout,
	})

	for _, name := range cfg.Providers {
		switch name {
		case ProviderOpenAI:
			chat = append(chat, sdk)
		case ProviderCompatible:
			chat = append(chat, compatible)
		default:
			log.Printf("⚠️  Unknown LLM provider %q, skipping", name)
		}
	}

	groq := NewOpenAIClient(ProviderConfig{
		Name:               "groq",
		APIKey:             cfg.TranscriptionKey,
		APIBase:            cfg.TranscriptionBaseURL,
		TranscriptionModel: cfg.TranscriptionModel,
		Timeout:            cfg.Timeout,
	})
	transcribers = []Provider{groq, sdk}
	return chat, transcribers
}

// NewLLMService creates the provider chain with a shared request limiter
func NewLLMService(cfg config.LLMConfig, providers, transcribers []Provider) *LLMService {
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &LLMService{
		providers:    providers,
		transcribers: transcribers,
		limiter:      rate.NewLimiter(limit, burst),
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		language:     cfg.TranscriptionLang,
		timeout:      timeout,
	}
}

// Available reports whether any chat provider is configured
func (s *LLMService) Available() bool {
	for _, p := range s.providers {
		if p.IsEnabled() {
			return true
		}
	}
	return false
}

// GenerateReply answers the client; an empty system prompt uses the default
func (s *LLMService) GenerateReply(ctx context.Context, transcript []model.Message, system string) (string, error) {
	if system == "" {
		system = DefaultSystemPrompt
	}
	return s.chat(ctx, system, transcript, ChatOptions{
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
}

// ExtractFields reads the requirement fields out of the whole transcript
func (s *LLMService) ExtractFields(ctx context.Context, transcript []model.Message) (*model.ExtractionResult, error) {
	prompt, err := transcriptPrompt(transcript)
	if err != nil {
		return nil, err
	}

	raw, err := s.chat(ctx, ExtractionPrompt, []model.Message{{Role: "user", Content: prompt}}, ChatOptions{
		Temperature: 0.1,
		MaxTokens:   s.maxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	result, err := ParseExtraction(raw)
	if err != nil {
		log.Printf("⚠️  Extraction output not parseable: %v", err)
		return result, err
	}
	logging.Debugf("🧩 Extracted %d fields, complete=%t", len(result.Fields), result.IsComplete)
	return result, nil
}

// Transcribe converts a voice message to text
func (s *LLMService) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("empty audio")
	}

	var lastErr error
	for _, p := range s.transcribers {
		if !p.IsEnabled() {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		text, err := p.Transcribe(callCtx, audio, filename, s.language)
		cancel()
		if err != nil {
			if errors.Is(err, ErrCapabilityUnavailable) {
				continue
			}
			log.Printf("❌ Transcription with %s failed: %v, trying next provider", p.Name(), err)
			lastErr = err
			continue
		}
		if text != "" {
			return text, nil
		}
	}
	return "", unavailable("transcription", lastErr)
}

func (s *LLMService) chat(ctx context.Context, system string, messages []model.Message, opts ChatOptions) (string, error) {
	var lastErr error
	for _, p := range s.providers {
		if !p.IsEnabled() {
			logging.Debugf("Provider %s not configured, skipping", p.Name())
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		reply, err := p.Chat(callCtx, system, messages, opts)
		cancel()
		if err != nil {
			log.Printf("❌ Generation with %s failed: %v, trying next provider", p.Name(), err)
			lastErr = err
			continue
		}
		if reply = strings.TrimSpace(reply); reply == "" {
			lastErr = fmt.Errorf("%s returned an empty reply", p.Name())
			continue
		}
		return reply, nil
	}
	return "", unavailable("chat", lastErr)
}

func unavailable(what string, lastErr error) error {
	if lastErr == nil {
		return fmt.Errorf("%s: %w", what, ErrCapabilityUnavailable)
	}
	return fmt.Errorf("%s: all providers failed: %w (last error: %v)", what, ErrCapabilityUnavailable, lastErr)
}
