package translator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	translate "cloud.google.com/go/translate/apiv3"
	"cloud.google.com/go/translate/apiv3/translatepb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

// nmtClient is the part of the Cloud Translation client the backend uses.
type nmtClient interface {
	TranslateText(ctx context.Context, req *translatepb.TranslateTextRequest, opts ...gax.CallOption) (*translatepb.TranslateTextResponse, error)
}

// NMTConfig configures the classical NMT backend.
type NMTConfig struct {
	ProjectID       string
	Location        string
	CredentialsFile string
	// Glossaries maps a domain to a glossary id or full resource name.
	Glossaries map[string]string
	Timeout    time.Duration
	Restore    *RestoreConfig
}

// NMTBackend is the classical NMT backend on Google Cloud Translation v3.
// Its output goes through the formatting restorer.
type NMTBackend struct {
	cfg NMTConfig

	once    sync.Once
	client  nmtClient
	initErr error
}

// NewNMTBackend creates the backend. The client is dialled on first use.
func NewNMTBackend(cfg NMTConfig) *NMTBackend {
	if cfg.Location == "" {
		cfg.Location = "global"
	}
	if cfg.Restore == nil {
		cfg.Restore = DefaultRestoreConfig()
	}
	return &NMTBackend{cfg: cfg}
}

// newNMTBackendWithClient injects a client, for tests.
func newNMTBackendWithClient(cfg NMTConfig, client nmtClient) *NMTBackend {
	b := NewNMTBackend(cfg)
	b.client = client
	b.once.Do(func() {})
	return b
}

// Kind implements Translator.
func (b *NMTBackend) Kind() types.ProviderKind { return types.ProviderGoogle }

func (b *NMTBackend) getClient() (nmtClient, error) {
	b.once.Do(func() {
		if b.cfg.ProjectID == "" {
			b.initErr = types.NewAppErrorWithDetails(types.ErrProviderAuthOrConfig,
				"provider is not configured", "google: missing project id", nil)
			return
		}
		var opts []option.ClientOption
		if b.cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(b.cfg.CredentialsFile))
		}
		c, err := translate.NewTranslationClient(context.Background(), opts...)
		if err != nil {
			b.initErr = types.NewAppError(types.ErrProviderAuthOrConfig, "failed to create translation client", err)
			return
		}
		b.client = c
	})
	return b.client, b.initErr
}

func (b *NMTBackend) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", b.cfg.ProjectID, b.cfg.Location)
}

// glossaryFor returns the glossary resource for domain, or "" when none
// applies. Glossaries need a concrete source language.
func (b *NMTBackend) glossaryFor(domain types.Domain, source string) string {
	if domain == "" || types.IsAutoLanguage(source) {
		return ""
	}
	id := b.cfg.Glossaries[string(domain)]
	if id == "" {
		return ""
	}
	if strings.Contains(id, "/") {
		return id
	}
	return b.parent() + "/glossaries/" + id
}

// Translate implements Translator.
func (b *NMTBackend) Translate(ctx context.Context, req Request) (string, error) {
	client, err := b.getClient()
	if err != nil {
		return "", err
	}

	tr := &translatepb.TranslateTextRequest{
		Parent:             b.parent(),
		Contents:           []string{req.Text},
		MimeType:           "text/plain",
		TargetLanguageCode: req.TargetLanguage,
	}
	if !types.IsAutoLanguage(req.SourceLanguage) {
		tr.SourceLanguageCode = req.SourceLanguage
	}
	glossary := b.glossaryFor(req.Domain, req.SourceLanguage)
	if glossary != "" {
		tr.GlossaryConfig = &translatepb.TranslateTextGlossaryConfig{Glossary: glossary}
	}

	callCtx, cancel := withTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	logger.Debug("calling translation API",
		logger.String("provider", "google"),
		logger.String("target", req.TargetLanguage),
		logger.Bool("glossary", glossary != ""))

	resp, err := client.TranslateText(callCtx, tr)
	if err != nil {
		if callCtx.Err() != nil {
			return "", wrapCallError(types.ProviderGoogle, b.cfg.Timeout, callCtx.Err())
		}
		return "", classifyRPCError(err)
	}

	translations := resp.GetGlossaryTranslations()
	if len(translations) == 0 {
		translations = resp.GetTranslations()
	}
	if len(translations) == 0 {
		return "", types.NewAppError(types.ErrProvider, "translation API returned no translations", nil)
	}

	var sb strings.Builder
	for _, t := range translations {
		sb.WriteString(t.GetTranslatedText())
	}
	return PostprocessChunkWithOptions(sb.String(), req.Text, b.cfg.Restore), nil
}

// classifyRPCError maps a Cloud API status to an AppError.
func classifyRPCError(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return types.NewAppErrorWithDetails(types.ErrProviderAuthOrConfig, "API authentication failed", "google", err)
	case codes.DeadlineExceeded:
		return types.NewAppErrorWithDetails(types.ErrProviderTimeout, "translation request timed out", "google", err)
	case codes.Unavailable:
		return types.NewAppErrorWithDetails(types.ErrProviderUnavailable, "API unavailable", "google", err)
	case codes.ResourceExhausted:
		return types.NewAppErrorWithDetails(types.ErrRateLimit, "API rate limit exceeded", "google", err)
	case codes.NotFound:
		return types.NewAppErrorWithDetails(types.ErrProviderModelNotFound, "API resource not found", "google", err)
	default:
		return types.NewAppErrorWithDetails(types.ErrProvider, "translation request failed", "google", err)
	}
}
