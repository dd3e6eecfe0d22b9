package translator

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

const (
	routerReferer = "https://github.com/doc-translator/doc-translator"
	routerTitle   = "Document Translator"
)

// ChatMessage is a chat message whose content may mix text and images.
type ChatMessage struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// MarshalJSON sends a single text part as a plain string, which every
// routed model accepts.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	if len(m.Content) == 1 && m.Content[0].Type == "text" {
		return json.Marshal(struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{m.Role, m.Content[0].Text})
	}
	type plain ChatMessage
	return json.Marshal(plain(m))
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// TextMessage builds a text-only message.
func TextMessage(role, text string) ChatMessage {
	return ChatMessage{Role: role, Content: []ContentPart{{Type: "text", Text: text}}}
}

// ChatCompletionRequest represents the request body for chat completions.
type ChatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// ChatCompletionResponse represents the response from the chat completions API.
type ChatCompletionResponse struct {
	ID      string    `json:"id"`
	Model   string    `json:"model"`
	Choices []Choice  `json:"choices"`
	Usage   Usage     `json:"usage"`
	Error   *APIError `json:"error,omitempty"`
}

// Choice represents a choice in the chat completion response.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant message of a choice.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError represents an error object embedded in a 200 response.
type APIError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"`
}

// RouterBackend is the LLM router backend. It honours a per-request model
// and is also the completion client of the vision translator.
type RouterBackend struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewRouterBackend creates the backend.
func NewRouterBackend(apiKey, baseURL, modelName string, timeout time.Duration) *RouterBackend {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if modelName == "" {
		modelName = "openai/gpt-4o"
	}
	return &RouterBackend{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      modelName,
		timeout:    timeout,
		httpClient: newHTTPClient(),
	}
}

// Kind implements Translator.
func (b *RouterBackend) Kind() types.ProviderKind { return types.ProviderOpenRouter }

// Model returns the default model.
func (b *RouterBackend) Model() string { return b.model }

// Timeout returns the per-call bound.
func (b *RouterBackend) Timeout() time.Duration { return b.timeout }

// Translate implements Translator.
func (b *RouterBackend) Translate(ctx context.Context, req Request) (string, error) {
	out, err := b.Complete(ctx, req.Model, []ChatMessage{
		TextMessage("system", buildSystemPrompt(req.Domain, req.SourceLanguage, req.TargetLanguage)),
		TextMessage("user", buildUserPrompt(req.Text, req.TargetLanguage)),
	})
	if err != nil {
		return "", err
	}
	return cleanTranslationResult(out), nil
}

// Complete sends messages to modelName, or to the default model when it is
// empty, and returns the first choice's content.
func (b *RouterBackend) Complete(ctx context.Context, modelName string, messages []ChatMessage) (string, error) {
	if b.apiKey == "" {
		return "", types.NewAppErrorWithDetails(types.ErrProviderAuthOrConfig,
			"provider is not configured", "openrouter: missing api key", nil)
	}
	if modelName == "" {
		modelName = b.model
	}

	headers := map[string]string{
		"Authorization": "Bearer " + b.apiKey,
		"HTTP-Referer":  routerReferer,
		"X-Title":       routerTitle,
	}
	logger.Debug("calling chat completions", logger.String("provider", "openrouter"), logger.String("model", modelName))

	body, _, err := postJSON(ctx, b.httpClient, types.ProviderOpenRouter, b.timeout,
		b.baseURL+"/chat/completions", headers, ChatCompletionRequest{Model: modelName, Messages: messages})
	if err != nil {
		return "", err
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", types.NewAppError(types.ErrProvider, "failed to parse API response", err)
	}
	if resp.Error != nil {
		return "", types.NewAppErrorWithDetails(types.ErrProviderUnavailable,
			"API returned an error", resp.Error.Message, nil)
	}
	if len(resp.Choices) == 0 {
		return "", types.NewAppError(types.ErrProvider, "no choices in API response", nil)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", types.NewAppError(types.ErrProvider, "API returned empty content", nil)
	}

	logger.Debug("chat completion finished",
		logger.String("model", modelName),
		logger.Int("promptTokens", resp.Usage.PromptTokens),
		logger.Int("completionTokens", resp.Usage.CompletionTokens))
	return content, nil
}
