package translator

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/translate/apiv3/translatepb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"doc-translator/internal/types"
)

type fakeNMT struct {
	reply    string
	glossary string
	err      error
	last     *translatepb.TranslateTextRequest
}

func (f *fakeNMT) TranslateText(ctx context.Context, req *translatepb.TranslateTextRequest, opts ...gax.CallOption) (*translatepb.TranslateTextResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	resp := &translatepb.TranslateTextResponse{
		Translations: []*translatepb.Translation{{TranslatedText: f.reply}},
	}
	if f.glossary != "" && req.GetGlossaryConfig() != nil {
		resp.GlossaryTranslations = []*translatepb.Translation{{TranslatedText: f.glossary}}
	}
	return resp, nil
}

func nmtConfig() NMTConfig {
	return NMTConfig{
		ProjectID:  "proj",
		Location:   "us-central1",
		Glossaries: map[string]string{"legal": "legal-terms", "medical": "projects/p/locations/l/glossaries/med"},
		Timeout:    time.Second,
	}
}

func TestNMT_AutoSourceIsOmitted(t *testing.T) {
	fake := &fakeNMT{reply: "Hola"}
	b := newNMTBackendWithClient(nmtConfig(), fake)

	out, err := b.Translate(context.Background(), Request{Text: "Hello", SourceLanguage: "auto", TargetLanguage: "es", Domain: types.DomainLegal})
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if out != "Hola" {
		t.Errorf("got %q", out)
	}
	if fake.last.GetSourceLanguageCode() != "" {
		t.Errorf("source = %q, want empty", fake.last.GetSourceLanguageCode())
	}
	if fake.last.GetGlossaryConfig() != nil {
		t.Error("glossary requires a concrete source language")
	}
	if fake.last.GetParent() != "projects/proj/locations/us-central1" {
		t.Errorf("parent = %q", fake.last.GetParent())
	}
	if fake.last.GetMimeType() != "text/plain" {
		t.Errorf("mime = %q", fake.last.GetMimeType())
	}
}

func TestNMT_GlossaryApplied(t *testing.T) {
	fake := &fakeNMT{reply: "plain", glossary: "with glossary"}
	b := newNMTBackendWithClient(nmtConfig(), fake)

	out, err := b.Translate(context.Background(), Request{Text: "Hello", SourceLanguage: "en", TargetLanguage: "es", Domain: types.DomainLegal})
	if err != nil {
		t.Fatal(err)
	}
	if out != "with glossary" {
		t.Errorf("got %q, want glossary translation", out)
	}
	if g := fake.last.GetGlossaryConfig().GetGlossary(); g != "projects/proj/locations/us-central1/glossaries/legal-terms" {
		t.Errorf("glossary = %q", g)
	}
	if fake.last.GetSourceLanguageCode() != "en" {
		t.Errorf("source = %q", fake.last.GetSourceLanguageCode())
	}

	b.Translate(context.Background(), Request{Text: "Hello", SourceLanguage: "en", TargetLanguage: "es", Domain: types.DomainMedical})
	if g := fake.last.GetGlossaryConfig().GetGlossary(); g != "projects/p/locations/l/glossaries/med" {
		t.Errorf("full resource name should pass through, got %q", g)
	}

	b.Translate(context.Background(), Request{Text: "Hello", SourceLanguage: "en", TargetLanguage: "es", Domain: types.DomainTechnical})
	if fake.last.GetGlossaryConfig() != nil {
		t.Error("domain without glossary should not set one")
	}
}

func TestNMT_OutputIsRestored(t *testing.T) {
	fake := &fakeNMT{reply: "| أ | ب |\n---\n| س | ص |"}
	b := newNMTBackendWithClient(nmtConfig(), fake)

	out, err := b.Translate(context.Background(), Request{Text: "| A | B |\n|---|---|\n| x | y |", SourceLanguage: "en", TargetLanguage: "ar"})
	if err != nil {
		t.Fatal(err)
	}
	if want := "| أ | ب |\n|---|---|\n| س | ص |"; out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestNMT_RPCErrors(t *testing.T) {
	tests := []struct {
		code codes.Code
		want types.ErrorCode
	}{
		{codes.PermissionDenied, types.ErrProviderAuthOrConfig},
		{codes.Unavailable, types.ErrProviderUnavailable},
		{codes.ResourceExhausted, types.ErrRateLimit},
		{codes.DeadlineExceeded, types.ErrProviderTimeout},
		{codes.InvalidArgument, types.ErrProvider},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			b := newNMTBackendWithClient(nmtConfig(), &fakeNMT{err: status.Error(tt.code, "rpc failed")})
			_, err := b.Translate(context.Background(), Request{Text: "x", TargetLanguage: "es"})
			if types.CodeOf(err) != tt.want {
				t.Errorf("CodeOf = %s, want %s", types.CodeOf(err), tt.want)
			}
		})
	}
}

func TestNMT_MissingProject(t *testing.T) {
	b := NewNMTBackend(NMTConfig{})
	_, err := b.Translate(context.Background(), Request{Text: "x", TargetLanguage: "es"})
	if types.CodeOf(err) != types.ErrProviderAuthOrConfig {
		t.Errorf("CodeOf = %s", types.CodeOf(err))
	}
}
