package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 8192
	modelNotFoundMark  = "not_found_error"
)

// FallbackModels are tried, in order, after the configured model.
var FallbackModels = []string{
	"claude-sonnet-4-20250514",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-sonnet-20241022",
	"claude-3-5-haiku-20241022",
}

// AnthropicBackend is LLM backend B. It walks a chain of candidate models
// and moves to the next one only when the API reports the model as missing.
type AnthropicBackend struct {
	apiKey     string
	baseURL    string
	model      string
	fallbacks  []string
	timeout    time.Duration
	httpClient *http.Client
}

// NewAnthropicBackend creates the backend.
func NewAnthropicBackend(apiKey, baseURL, modelName string, timeout time.Duration) *AnthropicBackend {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	return &AnthropicBackend{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      modelName,
		fallbacks:  FallbackModels,
		timeout:    timeout,
		httpClient: newHTTPClient(),
	}
}

// Kind implements Translator.
func (b *AnthropicBackend) Kind() types.ProviderKind { return types.ProviderAnthropic }

// CandidateModels returns primary followed by fallbacks, without blanks or
// duplicates.
func CandidateModels(primary string, fallbacks []string) []string {
	seen := make(map[string]bool, len(fallbacks)+1)
	out := make([]string, 0, len(fallbacks)+1)
	for _, m := range append([]string{primary}, fallbacks...) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Translate implements Translator.
func (b *AnthropicBackend) Translate(ctx context.Context, req Request) (string, error) {
	if b.apiKey == "" {
		return "", types.NewAppErrorWithDetails(types.ErrProviderAuthOrConfig,
			"provider is not configured", "anthropic: missing api key", nil)
	}

	candidates := CandidateModels(b.model, b.fallbacks)
	system := buildSystemPrompt(req.Domain, req.SourceLanguage, req.TargetLanguage)
	user := buildUserPrompt(req.Text, req.TargetLanguage)

	var lastErr error
	for i, m := range candidates {
		logger.Debug("trying model",
			logger.String("provider", "anthropic"),
			logger.String("model", m),
			logger.Int("attempt", i+1),
			logger.Int("candidates", len(candidates)))

		out, err := b.call(ctx, m, system, user)
		if err == nil {
			if i > 0 {
				logger.Info("fallback model succeeded", logger.String("provider", "anthropic"), logger.String("model", m))
			}
			return out, nil
		}
		lastErr = err
		if types.CodeOf(err) != types.ErrProviderModelNotFound {
			return "", err
		}
		logger.Warn("model not found, trying next candidate", logger.String("model", m))
	}

	return "", types.NewAppErrorWithDetails(types.ErrProviderModelNotFound,
		"no available model",
		fmt.Sprintf("tried: %s", strings.Join(candidates, ", ")),
		lastErr)
}

func (b *AnthropicBackend) call(ctx context.Context, modelName, system, user string) (string, error) {
	payload := anthropicRequest{
		Model:     modelName,
		MaxTokens: anthropicMaxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: user}},
	}
	headers := map[string]string{
		"x-api-key":         b.apiKey,
		"anthropic-version": anthropicVersion,
	}

	body, status, err := postJSON(ctx, b.httpClient, types.ProviderAnthropic, b.timeout, b.baseURL+"/messages", headers, payload)
	if err != nil {
		if status == http.StatusNotFound && strings.Contains(string(body), modelNotFoundMark) {
			return "", types.NewAppErrorWithDetails(types.ErrProviderModelNotFound,
				"model not found", modelName, unwrapAppError(err))
		}
		return "", err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", types.NewAppError(types.ErrProvider, "failed to parse API response", err)
	}
	var sb strings.Builder
	for _, part := range resp.Content {
		if part.Type == "text" || part.Type == "" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", types.NewAppError(types.ErrProvider, "API returned no content", nil)
	}
	return cleanTranslationResult(sb.String()), nil
}

// unwrapAppError keeps the message of err without its code so that a
// wrapping AppError decides the classification.
func unwrapAppError(err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return errors.New(appErr.Error())
	}
	return err
}
