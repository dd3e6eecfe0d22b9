// Package translator provides a uniform translate capability over the
// supported translation backends: a classical NMT service and three
// LLM-based backends.
package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"doc-translator/internal/chunker"
	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

const (
	// MaxChunkSize is the maximum size of a text chunk sent to a backend (in characters)
	MaxChunkSize = chunker.DefaultMaxChars
)

// Request is a single translate call.
type Request struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
	Domain         types.Domain
	// Model overrides the backend's default model. Only the LLM router honours it.
	Model string
}

// Translator is implemented by every backend.
type Translator interface {
	Kind() types.ProviderKind
	Translate(ctx context.Context, req Request) (string, error)
}

// Registry holds one constructed backend per provider kind. It is built once
// at process start and shared read-only by concurrent jobs.
type Registry struct {
	backends map[types.ProviderKind]Translator
}

// NewRegistry creates a Registry from the given backends.
func NewRegistry(backends ...Translator) *Registry {
	r := &Registry{backends: make(map[types.ProviderKind]Translator, len(backends))}
	for _, b := range backends {
		if b != nil {
			r.backends[b.Kind()] = b
		}
	}
	return r
}

// NewRegistryFromConfig builds all four backends from configuration.
// Backends whose credentials are missing are still registered and fail on
// first use with a configuration error.
func NewRegistryFromConfig(cfg *types.Config) *Registry {
	restore, err := LoadRestoreConfig(cfg.RestoreConfigPath)
	if err != nil {
		logger.Warn("using default restore config", logger.Err(err))
		restore = DefaultRestoreConfig()
	}
	return NewRegistry(
		NewNMTBackend(NMTConfig{
			ProjectID:       cfg.GoogleProjectID,
			Location:        cfg.GoogleLocation,
			CredentialsFile: cfg.GoogleCredentialsFile,
			Glossaries:      cfg.Glossaries,
			Timeout:         cfg.Timeout(),
			Restore:         restore,
		}),
		NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.Timeout()),
		NewAnthropicBackend(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.AnthropicModel, cfg.Timeout()),
		NewRouterBackend(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, cfg.OpenRouterModel, cfg.Timeout()),
	)
}

// Get returns the backend for kind. Unknown kinds resolve to the LLM router.
func (r *Registry) Get(kind types.ProviderKind) (Translator, error) {
	kind = types.ParseProvider(string(kind))
	b, ok := r.backends[kind]
	if !ok {
		return nil, types.NewAppErrorWithDetails(types.ErrProviderAuthOrConfig,
			"translation backend is not registered", string(kind), nil)
	}
	return b, nil
}

// Router returns the LLM router backend when it is registered.
func (r *Registry) Router() (*RouterBackend, bool) {
	b, ok := r.backends[types.ProviderOpenRouter].(*RouterBackend)
	return b, ok
}

// Translate translates one text unit with the backend for kind. Texts longer
// than MaxChunkSize are chunked and translated sequentially; the translated
// chunks are re-joined with the original boundary characters.
func (r *Registry) Translate(ctx context.Context, kind types.ProviderKind, req Request) (string, error) {
	backend, err := r.Get(kind)
	if err != nil {
		return "", err
	}
	return TranslateChunked(ctx, backend, req)
}

// TranslateChunked applies the chunker in front of a single backend.
func TranslateChunked(ctx context.Context, backend Translator, req Request) (string, error) {
	if req.Domain == "" {
		req.Domain = types.DomainGeneral
	}
	pieces := chunker.Split(req.Text, MaxChunkSize)
	if len(pieces) == 0 {
		return "", nil
	}

	log := logger.With(logger.String("provider", string(backend.Kind())))
	if len(pieces) > 1 {
		log.Info("text split into chunks", logger.Int("chunkCount", len(pieces)), logger.Int("length", len(req.Text)))
	}

	translated := make([]string, len(pieces))
	for i, p := range pieces {
		chunkReq := req
		chunkReq.Text = p.Text
		start := time.Now()
		out, err := backend.Translate(ctx, chunkReq)
		if err != nil {
			log.Error("chunk translation failed", err, logger.Int("chunkIndex", i+1), logger.Int("totalChunks", len(pieces)))
			return "", err
		}
		log.Debug("chunk translated",
			logger.Int("chunkIndex", i+1),
			logger.Int("totalChunks", len(pieces)),
			logger.Duration("elapsed", time.Since(start)))
		translated[i] = out
	}
	return chunker.Join(pieces, translated), nil
}

// withTimeout bounds a single external call.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = types.DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

// wrapCallError classifies a transport-level failure from a backend call.
func wrapCallError(provider types.ProviderKind, timeout time.Duration, err error) error {
	if types.IsTimeout(err) {
		return types.NewAppErrorWithDetails(types.ErrProviderTimeout,
			"translation request timed out",
			fmt.Sprintf("%s did not respond within %s; try a faster model or a longer timeout", provider, timeout),
			err)
	}
	return types.NewAppErrorWithDetails(types.ErrNetwork, "API request failed", string(provider), err)
}

// cleanTranslationResult strips wrapping a chat model sometimes adds around
// the translated text.
func cleanTranslationResult(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = StripCodeFence(s)
	}
	return s
}

// StripCodeFence removes a leading ```lang line and a trailing ``` line.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
