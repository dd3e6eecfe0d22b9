package translator

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

// chatGenerator is the part of an eino chat model the backend uses.
type chatGenerator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// OpenAIBackend is LLM backend A, built on an eino OpenAI chat model.
type OpenAIBackend struct {
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration

	once    sync.Once
	chat    chatGenerator
	initErr error
}

// NewOpenAIBackend creates the backend. The chat model is constructed on
// first use and reused afterwards.
func NewOpenAIBackend(apiKey, baseURL, modelName string, timeout time.Duration) *OpenAIBackend {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &OpenAIBackend{apiKey: apiKey, baseURL: baseURL, model: modelName, timeout: timeout}
}

// newOpenAIBackendWithChat injects a chat model, for tests.
func newOpenAIBackendWithChat(chat chatGenerator, modelName string, timeout time.Duration) *OpenAIBackend {
	b := &OpenAIBackend{model: modelName, timeout: timeout, chat: chat}
	b.once.Do(func() {})
	return b
}

// Kind implements Translator.
func (b *OpenAIBackend) Kind() types.ProviderKind { return types.ProviderOpenAI }

func (b *OpenAIBackend) chatModel(ctx context.Context) (chatGenerator, error) {
	b.once.Do(func() {
		if b.apiKey == "" {
			b.initErr = types.NewAppErrorWithDetails(types.ErrProviderAuthOrConfig,
				"provider is not configured", "openai: missing api key", nil)
			return
		}
		cfg := &openai.ChatModelConfig{
			Model:  b.model,
			APIKey: b.apiKey,
		}
		if b.baseURL != "" {
			cfg.BaseURL = b.baseURL
		}
		cm, err := openai.NewChatModel(ctx, cfg)
		if err != nil {
			b.initErr = types.NewAppError(types.ErrProviderAuthOrConfig, "failed to create chat model", err)
			return
		}
		b.chat = cm
	})
	return b.chat, b.initErr
}

// Translate implements Translator.
func (b *OpenAIBackend) Translate(ctx context.Context, req Request) (string, error) {
	chat, err := b.chatModel(ctx)
	if err != nil {
		return "", err
	}

	callCtx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	logger.Debug("calling chat model", logger.String("provider", "openai"), logger.String("model", b.model))
	resp, err := chat.Generate(callCtx, []*schema.Message{
		schema.SystemMessage(buildSystemPrompt(req.Domain, req.SourceLanguage, req.TargetLanguage)),
		schema.UserMessage(buildUserPrompt(req.Text, req.TargetLanguage)),
	})
	if err != nil {
		if callCtx.Err() != nil {
			return "", wrapCallError(types.ProviderOpenAI, b.timeout, callCtx.Err())
		}
		return "", types.NewAppErrorWithDetails(types.ErrProvider, "chat model call failed", "openai", err)
	}
	if resp == nil || resp.Content == "" {
		return "", types.NewAppError(types.ErrProvider, "chat model returned no content", nil)
	}
	return cleanTranslationResult(resp.Content), nil
}
