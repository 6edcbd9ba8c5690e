package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var (
	ErrReasoningEngineUnavailable = errors.New("reasoning engine not configured")
	ErrReasoningEngineError       = errors.New("reasoning engine request failed")
)

// ReasoningEngine produces free text for a prompt
type ReasoningEngine interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Configured reports whether credentials are present
	Configured() bool
}

const (
	geminiTemperature     = 0.7
	geminiTopP            = 0.8
	geminiMaxOutputTokens = 8192

	maxRetries     = 3
	initialBackoff = time.Second
)

// GeminiEngine is a ReasoningEngine backed by the Gemini API
type GeminiEngine struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *zap.Logger
}

// NewGeminiEngine creates a Gemini-backed engine. An empty apiKey yields an
// unconfigured engine whose calls fail with ErrReasoningEngineUnavailable.
func NewGeminiEngine(ctx context.Context, apiKey, modelName string, logger *zap.Logger) (*GeminiEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY not set; judgments and argument responses are disabled")
		return &GeminiEngine{logger: logger}, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(geminiTemperature)
	model.SetTopP(geminiTopP)
	model.SetMaxOutputTokens(geminiMaxOutputTokens)

	logger.Info("Gemini client initialized", zap.String("model", modelName))
	return &GeminiEngine{client: client, model: model, logger: logger}, nil
}

func (e *GeminiEngine) Configured() bool {
	return e != nil && e.model != nil
}

// Generate sends prompt as a single text part and joins the text parts of
// every candidate. Transient failures are retried with exponential backoff;
// a response without candidates is an engine error.
func (e *GeminiEngine) Generate(ctx context.Context, prompt string) (string, error) {
	if !e.Configured() {
		return "", ErrReasoningEngineUnavailable
	}

	var resp *genai.GenerateContentResponse
	var err error
	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrReasoningEngineError, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		resp, err = e.model.GenerateContent(ctx, genai.Text(prompt))
		if err == nil {
			break
		}
		e.logger.Warn("Gemini request failed", zap.Int("attempt", attempt+1), zap.Error(err))
		if !retryable(err) {
			return "", fmt.Errorf("%w: %v", ErrReasoningEngineError, err)
		}
	}
	if err != nil {
		return "", fmt.Errorf("%w: failed after %d attempts: %v", ErrReasoningEngineError, maxRetries, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", ErrReasoningEngineError)
	}

	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	// empty text is left to the parser, which degrades it to a fallback
	return b.String(), nil
}

// retryable reports whether a failed request may succeed if sent again.
// Blocked prompts, cancellation and client errors other than 408 and 429
// are final.
func retryable(err error) bool {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusRequestTimeout, apiErr.Code == http.StatusTooManyRequests:
			return true
		case apiErr.Code >= 400 && apiErr.Code < 500:
			return false
		}
	}
	return true
}

// Close releases the client
func (e *GeminiEngine) Close() error {
	if e == nil || e.client == nil {
		return nil
	}
	return e.client.Close()
}
