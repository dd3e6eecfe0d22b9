package types

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want ProviderKind
	}{
		{"google", ProviderGoogle},
		{"OpenAI", ProviderOpenAI},
		{" anthropic ", ProviderAnthropic},
		{"openrouter", ProviderOpenRouter},
		{"", ProviderOpenRouter},
		{"deepl", ProviderOpenRouter},
	}
	for _, tt := range tests {
		if got := ParseProvider(tt.in); got != tt.want {
			t.Errorf("ParseProvider(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeDomain(t *testing.T) {
	if got := NormalizeDomain(""); got != DomainGeneral {
		t.Errorf("empty domain = %s, want general", got)
	}
	if got := NormalizeDomain("Legal"); got != DomainLegal || !got.Known() {
		t.Errorf("Legal = %s", got)
	}
	if NormalizeDomain("finance").Known() {
		t.Error("finance should not be a known domain")
	}
}

func TestParseOCRQuality(t *testing.T) {
	if ParseOCRQuality("HIGH") != OCRHigh {
		t.Error("HIGH should parse as high")
	}
	for _, s := range []string{"", "low", "medium"} {
		if ParseOCRQuality(s) != OCRLow {
			t.Errorf("%q should parse as low", s)
		}
	}
}

func TestIsAutoLanguage(t *testing.T) {
	for _, s := range []string{"", "auto", "AUTO", " auto "} {
		if !IsAutoLanguage(s) {
			t.Errorf("%q should be auto", s)
		}
	}
	if IsAutoLanguage("en") {
		t.Error("en is not auto")
	}
}

func TestConfigTimeout(t *testing.T) {
	var nilCfg *Config
	if nilCfg.Timeout() != DefaultTimeout {
		t.Error("nil config should use default timeout")
	}
	if (&Config{TimeoutMs: 1500}).Timeout() != 1500*time.Millisecond {
		t.Error("TimeoutMs not honoured")
	}
}

// ============================================================================
// Errors
// ============================================================================

func TestAppErrorChain(t *testing.T) {
	root := errors.New("connection reset")
	err := fmt.Errorf("wrapped: %w", NewAppErrorWithDetails(ErrNetwork, "fetch failed", "https://x", root))

	if !errors.Is(err, root) {
		t.Error("AppError should unwrap to its cause")
	}
	if CodeOf(err) != ErrNetwork {
		t.Errorf("CodeOf = %s", CodeOf(err))
	}
	if want := "wrapped: fetch failed: https://x: connection reset"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), CategoryTimeout},
		{"timeout code", NewAppError(ErrProviderTimeout, "slow", nil), CategoryTimeout},
		{"wrapped deadline", NewAppError(ErrProvider, "call", context.DeadlineExceeded), CategoryTimeout},
		{"model not found", NewAppError(ErrProviderModelNotFound, "none", nil), CategoryModelUnavailable},
		{"unavailable", NewAppError(ErrProviderUnavailable, "503", nil), CategoryModelUnavailable},
		{"auth", NewAppError(ErrProviderAuthOrConfig, "no key", nil), CategoryConfiguration},
		{"unsupported", NewAppError(ErrUnsupportedFileType, "text/csv", nil), CategoryUnsupportedFile},
		{"plain", errors.New("boom"), CategoryFailed},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategoryOf(tt.err); got != tt.want {
				t.Errorf("CategoryOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

// ============================================================================
// Job lifecycle
// ============================================================================

func TestJobLifecycleSuccess(t *testing.T) {
	job := &TranslationJob{OrderID: "o1", FileName: "a.pdf"}
	if err := job.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if job.Status != StatusTranslating || job.Progress != 0 || job.Segments == nil || len(job.Segments) != 0 {
		t.Fatalf("unexpected state after Begin: %+v", job)
	}

	segs := []Segment{{ID: "a", Order: 0}, {ID: "b", Order: 1}}
	if err := job.Complete(segs); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if job.Status != StatusReview || job.Progress != 100 || len(job.Segments) != 2 {
		t.Fatalf("unexpected state after Complete: %+v", job)
	}
	if err := job.Begin(); err == nil {
		t.Error("Begin from review should fail")
	}
}

func TestJobLifecycleFailure(t *testing.T) {
	job := &TranslationJob{Status: StatusPending}
	if err := job.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := job.Fail(NewAppError(ErrProviderTimeout, "too slow", nil)); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if job.Status != StatusPending || job.Progress != 0 {
		t.Errorf("unexpected state after Fail: %+v", job)
	}
	if job.ErrorCategory != CategoryTimeout || job.LastError == "" {
		t.Errorf("error not recorded: %+v", job)
	}
	if err := job.Complete(nil); err == nil {
		t.Error("Complete from pending should fail")
	}
}

func TestValidateSegments(t *testing.T) {
	if err := ValidateSegments([]Segment{{Order: 0}, {Order: 1}}); err != nil {
		t.Errorf("valid segments rejected: %v", err)
	}
	if err := ValidateSegments([]Segment{{Order: 0}, {Order: 2}}); err == nil {
		t.Error("gap in order should be rejected")
	}
}
