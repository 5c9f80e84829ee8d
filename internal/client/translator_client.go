package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/seekhub/translator/internal/config"
)

const (
	// MaxRetries is the number of extra attempts after a rate-limit response
	MaxRetries = 3

	// BaseBackoff is the first retry delay; it doubles per attempt
	BaseBackoff = 2 * time.Second

	// MaxBackoff caps the retry delay
	MaxBackoff = 30 * time.Second
)

// TranslateRequest is one unit of text to translate.
type TranslateRequest struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
	Style          string
	Specialization string
}

// ImproveRequest asks for a revised translation given reviewer feedback.
type ImproveRequest struct {
	OriginalText       string
	CurrentTranslation string
	SourceLanguage     string
	TargetLanguage     string
	Feedback           string
}

// Translator is the machine-translation collaborator.
type Translator interface {
	Translate(ctx context.Context, req TranslateRequest) (string, error)
	Improve(ctx context.Context, req ImproveRequest) (string, error)
}

// TranslatorClient calls an OpenAI-compatible chat completions endpoint.
type TranslatorClient struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewTranslator returns the real client when an API key is configured and
// the mock translator otherwise.
func NewTranslator(cfg *config.TranslatorConfig) Translator {
	if cfg.APIKey == "" {
		return &MockTranslator{}
	}
	return NewTranslatorClient(cfg)
}

func NewTranslatorClient(cfg *config.TranslatorConfig) *TranslatorClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &TranslatorClient{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: timeout,
	}
}

func (c *TranslatorClient) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	return c.complete(ctx, translateSystemPrompt(req), req.Text)
}

func (c *TranslatorClient) Improve(ctx context.Context, req ImproveRequest) (string, error) {
	return c.complete(ctx, improveSystemPrompt(req), improveUserPrompt(req))
}

func (c *TranslatorClient) complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * BaseBackoff
			if backoff > MaxBackoff {
				backoff = MaxBackoff
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: shared.ChatModel(c.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
			Temperature: openai.Float(0.3),
		})
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return "", fmt.Errorf("translation request failed: %w", err)
		}

		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("no completion choices returned")
		}
		return strings.TrimSpace(completion.Choices[0].Message.Content), nil
	}

	return "", fmt.Errorf("translation rate limited after %d retries: %w", MaxRetries, lastErr)
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

func translateSystemPrompt(req TranslateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional translator. Translate the user's text from %s to %s.", req.SourceLanguage, req.TargetLanguage)
	if req.Style != "" {
		fmt.Fprintf(&b, " Use a %s style.", req.Style)
	}
	if req.Specialization != "" && req.Specialization != "general" {
		fmt.Fprintf(&b, " The text belongs to the %s domain; use its established terminology.", req.Specialization)
	}
	b.WriteString(" Preserve paragraph breaks and formatting. Reply with the translation only.")
	return b.String()
}

func improveSystemPrompt(req ImproveRequest) string {
	return fmt.Sprintf("You are a professional translation editor working from %s to %s. "+
		"Revise the current translation according to the reviewer's feedback. "+
		"Reply with the improved translation only.", req.SourceLanguage, req.TargetLanguage)
}

func improveUserPrompt(req ImproveRequest) string {
	return fmt.Sprintf("Original text:\n%s\n\nCurrent translation:\n%s\n\nFeedback:\n%s",
		req.OriginalText, req.CurrentTranslation, req.Feedback)
}

// MockTranslator is used when no provider is configured. It tags the input
// with the target language so results are recognizable in development.
type MockTranslator struct {
	Err error
}

func (m *MockTranslator) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return fmt.Sprintf("[%s] %s", req.TargetLanguage, req.Text), nil
}

func (m *MockTranslator) Improve(ctx context.Context, req ImproveRequest) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return fmt.Sprintf("[%s] %s", req.TargetLanguage, strings.TrimSpace(req.CurrentTranslation)), nil
}
