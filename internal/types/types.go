// Package types defines core data types and enums for the document translator.
package types

import (
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	// Classical NMT (Google Cloud Translation v3)
	GoogleProjectID       string `json:"google_project_id"`
	GoogleLocation        string `json:"google_location"`
	GoogleCredentialsFile string `json:"google_credentials_file"`

	// LLM backend A
	OpenAIAPIKey  string `json:"openai_api_key"`
	OpenAIBaseURL string `json:"openai_base_url"`
	OpenAIModel   string `json:"openai_model"`

	// LLM backend B
	AnthropicAPIKey  string `json:"anthropic_api_key"`
	AnthropicBaseURL string `json:"anthropic_base_url"`
	AnthropicModel   string `json:"anthropic_model"`

	// LLM router
	OpenRouterAPIKey      string `json:"openrouter_api_key"`
	OpenRouterBaseURL     string `json:"openrouter_base_url"`
	OpenRouterModel       string `json:"openrouter_model"`
	OpenRouterVisionModel string `json:"openrouter_vision_model"`

	// TimeoutMs bounds every external API call.
	TimeoutMs           int               `json:"timeout_ms"`
	DisableVisionRefine bool              `json:"disable_vision_refine"`
	Glossaries          map[string]string `json:"glossaries"` // domain -> glossary id
	RestoreConfigPath   string            `json:"restore_config_path,omitempty"`

	DatabasePath    string `json:"database_path"`
	ErrorLedgerPath string `json:"error_ledger_path"`
	MaxParallelJobs int    `json:"max_parallel_jobs"`

	LogFile  string `json:"log_file"`
	LogLevel string `json:"log_level"`
}

// Timeout returns TimeoutMs as a duration, falling back to DefaultTimeout.
func (c *Config) Timeout() time.Duration {
	if c == nil || c.TimeoutMs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// DefaultTimeout is the per-call bound for external APIs.
const DefaultTimeout = 5 * time.Minute

// ProviderKind selects a translation backend.
type ProviderKind string

const (
	ProviderGoogle     ProviderKind = "google"
	ProviderOpenAI     ProviderKind = "openai"
	ProviderAnthropic  ProviderKind = "anthropic"
	ProviderOpenRouter ProviderKind = "openrouter"
)

// AllProviders lists every backend kind.
var AllProviders = []ProviderKind{ProviderGoogle, ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter}

// ParseProvider maps a provider name to a kind. Missing or unknown names
// resolve to the LLM router.
func ParseProvider(s string) ProviderKind {
	switch ProviderKind(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderGoogle:
		return ProviderGoogle
	case ProviderOpenAI:
		return ProviderOpenAI
	case ProviderAnthropic:
		return ProviderAnthropic
	default:
		return ProviderOpenRouter
	}
}

// Domain is the content category that selects prompt terminology.
type Domain string

const (
	DomainGeneral     Domain = "general"
	DomainLegal       Domain = "legal"
	DomainMedical     Domain = "medical"
	DomainTechnical   Domain = "technical"
	DomainCertificate Domain = "certificate"
)

// NormalizeDomain lower-cases d and defaults an empty value to general.
func NormalizeDomain(d string) Domain {
	d = strings.ToLower(strings.TrimSpace(d))
	if d == "" {
		return DomainGeneral
	}
	return Domain(d)
}

// Known reports whether d has a dedicated prompt.
func (d Domain) Known() bool {
	switch d {
	case DomainGeneral, DomainLegal, DomainMedical, DomainTechnical, DomainCertificate:
		return true
	}
	return false
}

// OCRQuality controls OCR feature level and preprocessing strength.
type OCRQuality string

const (
	OCRLow  OCRQuality = "low"
	OCRHigh OCRQuality = "high"
)

// ParseOCRQuality returns OCRHigh for "high" and OCRLow for anything else.
func ParseOCRQuality(s string) OCRQuality {
	if strings.EqualFold(strings.TrimSpace(s), string(OCRHigh)) {
		return OCRHigh
	}
	return OCRLow
}

// AutoLanguage is the source language meaning "detect".
const AutoLanguage = "auto"

// IsAutoLanguage reports whether lang asks for detection.
func IsAutoLanguage(lang string) bool {
	lang = strings.TrimSpace(lang)
	return lang == "" || strings.EqualFold(lang, AutoLanguage)
}

// Segment is one translatable unit of a document.
type Segment struct {
	ID             string `json:"id"`
	OriginalText   string `json:"originalText"`
	TranslatedText string `json:"translatedText"`
	IsEdited       bool   `json:"isEdited"`
	PageNumber     *int   `json:"pageNumber,omitempty"`
	Order          int    `json:"order"`
}

// SourceType describes where a CLI input reference points.
type SourceType string

const (
	SourceTypeURL       SourceType = "url"
	SourceTypeLocalFile SourceType = "local_file"
)

// SourceInfo describes a parsed input reference.
type SourceInfo struct {
	SourceType  SourceType `json:"source_type"`
	OriginalRef string     `json:"original_ref"`
	FileName    string     `json:"file_name"`
	MIMEType    string     `json:"mime_type,omitempty"`
}
