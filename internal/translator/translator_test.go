package translator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"doc-translator/internal/types"
)

// fakeBackend records every request and answers with fn.
type fakeBackend struct {
	kind types.ProviderKind
	fn   func(req Request) (string, error)

	mu    sync.Mutex
	calls []Request
}

func (f *fakeBackend) Kind() types.ProviderKind { return f.kind }

func (f *fakeBackend) Translate(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.fn(req)
}

func upper(req Request) (string, error) { return strings.ToUpper(req.Text), nil }

// ============================================================
// Registry Tests
// ============================================================

func TestRegistry_UnknownProviderUsesRouter(t *testing.T) {
	router := &fakeBackend{kind: types.ProviderOpenRouter, fn: upper}
	nmt := &fakeBackend{kind: types.ProviderGoogle, fn: upper}
	r := NewRegistry(nmt, router)

	for _, name := range []types.ProviderKind{"", "deepl", "OPENROUTER"} {
		b, err := r.Get(name)
		if err != nil {
			t.Fatalf("Get(%q) error: %v", name, err)
		}
		if b.Kind() != types.ProviderOpenRouter {
			t.Errorf("Get(%q) = %s, want openrouter", name, b.Kind())
		}
	}

	b, err := r.Get(types.ProviderGoogle)
	if err != nil || b.Kind() != types.ProviderGoogle {
		t.Errorf("Get(google) = %v, %v", b, err)
	}
}

func TestRegistry_MissingBackend(t *testing.T) {
	r := NewRegistry(&fakeBackend{kind: types.ProviderGoogle, fn: upper})
	_, err := r.Get(types.ProviderAnthropic)
	if types.CodeOf(err) != types.ErrProviderAuthOrConfig {
		t.Errorf("CodeOf = %s, want %s", types.CodeOf(err), types.ErrProviderAuthOrConfig)
	}
}

func TestNewRegistryFromConfig_RegistersAllKinds(t *testing.T) {
	r := NewRegistryFromConfig(&types.Config{})
	for _, k := range types.AllProviders {
		b, err := r.Get(k)
		if err != nil {
			t.Fatalf("Get(%s) error: %v", k, err)
		}
		if b.Kind() != k {
			t.Errorf("Get(%s).Kind() = %s", k, b.Kind())
		}
	}
	if _, ok := r.Router(); !ok {
		t.Error("Router() should be registered")
	}
}

func TestNewRegistryFromConfig_MissingCredentials(t *testing.T) {
	r := NewRegistryFromConfig(&types.Config{})
	ctx := context.Background()
	for _, k := range types.AllProviders {
		_, err := r.Translate(ctx, k, Request{Text: "hello", TargetLanguage: "fr"})
		if types.CodeOf(err) != types.ErrProviderAuthOrConfig {
			t.Errorf("%s: CodeOf = %s, want %s (err=%v)", k, types.CodeOf(err), types.ErrProviderAuthOrConfig, err)
		}
	}
}

// ============================================================
// Chunked Translation Tests
// ============================================================

func TestTranslateChunked_ShortTextSingleCall(t *testing.T) {
	f := &fakeBackend{kind: types.ProviderOpenAI, fn: upper}
	out, err := TranslateChunked(context.Background(), f, Request{Text: "hello\nworld", TargetLanguage: "de"})
	if err != nil {
		t.Fatalf("TranslateChunked error: %v", err)
	}
	if out != "HELLO\nWORLD" {
		t.Errorf("got %q", out)
	}
	if len(f.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(f.calls))
	}
	if f.calls[0].Domain != types.DomainGeneral {
		t.Errorf("domain = %q, want general", f.calls[0].Domain)
	}
}

func TestTranslateChunked_LongTextKeepsSeparators(t *testing.T) {
	para := func(c string) string { return strings.Repeat(c, 2500) }
	text := para("a") + "\n\n" + para("b") + "\n\n" + para("c")

	f := &fakeBackend{kind: types.ProviderOpenAI, fn: upper}
	out, err := TranslateChunked(context.Background(), f, Request{Text: text, TargetLanguage: "de", Domain: types.DomainLegal})
	if err != nil {
		t.Fatalf("TranslateChunked error: %v", err)
	}
	if out != strings.ToUpper(text) {
		t.Error("joined translation does not match the upper-cased input")
	}
	if len(f.calls) != 3 {
		t.Errorf("calls = %d, want 3", len(f.calls))
	}
	for i, c := range f.calls {
		if len(c.Text) > MaxChunkSize {
			t.Errorf("call %d sent %d chars", i, len(c.Text))
		}
		if c.Domain != types.DomainLegal {
			t.Errorf("call %d domain = %q", i, c.Domain)
		}
	}
}

func TestTranslateChunked_StopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeBackend{kind: types.ProviderOpenAI, fn: func(Request) (string, error) { return "", boom }}
	text := strings.Repeat("x", 3000) + "\n\n" + strings.Repeat("y", 3000)
	_, err := TranslateChunked(context.Background(), f, Request{Text: text})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if len(f.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(f.calls))
	}
}

func TestTranslateChunked_EmptyText(t *testing.T) {
	f := &fakeBackend{kind: types.ProviderOpenAI, fn: upper}
	out, err := TranslateChunked(context.Background(), f, Request{Text: "  \n "})
	if err != nil || out != "" {
		t.Errorf("got %q, %v", out, err)
	}
	if len(f.calls) != 0 {
		t.Errorf("calls = %d, want 0", len(f.calls))
	}
}

// ============================================================
// Helper Tests
// ============================================================

func TestWrapCallError(t *testing.T) {
	err := wrapCallError(types.ProviderOpenRouter, time.Minute, context.DeadlineExceeded)
	if types.CodeOf(err) != types.ErrProviderTimeout {
		t.Errorf("CodeOf = %s", types.CodeOf(err))
	}
	if types.CategoryOf(err) != types.CategoryTimeout {
		t.Errorf("CategoryOf = %s", types.CategoryOf(err))
	}
	if !strings.Contains(err.Error(), "faster model") {
		t.Errorf("message should suggest a faster model: %s", err.Error())
	}

	err = wrapCallError(types.ProviderOpenRouter, time.Minute, errors.New("connection refused"))
	if types.CodeOf(err) != types.ErrNetwork {
		t.Errorf("CodeOf = %s", types.CodeOf(err))
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"```\nbody\n```", "body"},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"  ```text\nline1\nline2\n```  ", "line1\nline2"},
	}
	for _, tt := range tests {
		if got := StripCodeFence(tt.in); got != tt.want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLanguageName(t *testing.T) {
	tests := map[string]string{
		"ar":   "Arabic",
		"fr":   "French",
		"auto": "the detected source language",
		"":     "the detected source language",
	}
	for code, want := range tests {
		if got := LanguageName(code); got != want {
			t.Errorf("LanguageName(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestBuildSystemPrompt_Domains(t *testing.T) {
	legal := buildSystemPrompt(types.DomainLegal, "en", "ar")
	if !strings.Contains(legal, "legal translator") || !strings.Contains(legal, "Arabic") {
		t.Errorf("legal prompt missing domain or language:\n%s", legal)
	}
	unknown := buildSystemPrompt("astrology", "en", "ar")
	if !strings.Contains(unknown, domainGuidance[types.DomainGeneral]) {
		t.Error("unknown domain should use the general guidance")
	}
	user := buildUserPrompt("| a | b |", "fr")
	if !strings.Contains(user, "TABLE ALIGNMENT") || !strings.HasSuffix(user, "| a | b |") {
		t.Errorf("user prompt should embed the text after the table rules:\n%s", user)
	}
}
