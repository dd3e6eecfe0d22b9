package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"doc-translator/internal/types"
)

const notFoundBody = `{"type":"error","error":{"type":"not_found_error","message":"model: %s"}}`

// mockAnthropicServer answers /messages. Models in missing get a 404
// not_found_error; any other model gets reply.
func mockAnthropicServer(t *testing.T, missing map[string]bool, reply string, tried *[]string) *httptest.Server {
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" || r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		body, _ := io.ReadAll(r.Body)
		var req anthropicRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}

		mu.Lock()
		*tried = append(*tried, req.Model)
		mu.Unlock()

		if missing[req.Model] {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, notFoundBody, req.Model)
			return
		}
		fmt.Fprintf(w, `{"content":[{"type":"text","text":%q}],"stop_reason":"end_turn"}`, reply)
	}))
}

func TestCandidateModels(t *testing.T) {
	got := CandidateModels("claude-3-5-haiku-20241022", FallbackModels)
	if got[0] != "claude-3-5-haiku-20241022" {
		t.Errorf("primary should come first: %v", got)
	}
	if len(got) != len(FallbackModels) {
		t.Errorf("duplicate primary should be removed: %v", got)
	}

	got = CandidateModels("", []string{"a", " ", "b", "a"})
	if strings.Join(got, ",") != "a,b" {
		t.Errorf("got %v, want [a b]", got)
	}
}

func TestAnthropic_FallbackDeterminism(t *testing.T) {
	candidates := CandidateModels("custom-model", FallbackModels)

	for k := 0; k < len(candidates); k++ {
		t.Run(fmt.Sprintf("missing=%d", k), func(t *testing.T) {
			missing := make(map[string]bool)
			for _, m := range candidates[:k] {
				missing[m] = true
			}
			var tried []string
			srv := mockAnthropicServer(t, missing, "bonjour", &tried)
			defer srv.Close()

			b := NewAnthropicBackend("test-key", srv.URL, "custom-model", time.Second)
			out, err := b.Translate(context.Background(), Request{Text: "hello", TargetLanguage: "fr"})
			if err != nil {
				t.Fatalf("Translate error: %v", err)
			}
			if out != "bonjour" {
				t.Errorf("got %q, want bonjour", out)
			}
			if strings.Join(tried, ",") != strings.Join(candidates[:k+1], ",") {
				t.Errorf("tried %v, want %v", tried, candidates[:k+1])
			}
		})
	}
}

func TestAnthropic_AllModelsMissing(t *testing.T) {
	candidates := CandidateModels("custom-model", FallbackModels)
	missing := make(map[string]bool)
	for _, m := range candidates {
		missing[m] = true
	}
	var tried []string
	srv := mockAnthropicServer(t, missing, "", &tried)
	defer srv.Close()

	b := NewAnthropicBackend("test-key", srv.URL, "custom-model", time.Second)
	_, err := b.Translate(context.Background(), Request{Text: "hello", TargetLanguage: "fr"})
	if types.CodeOf(err) != types.ErrProviderModelNotFound {
		t.Fatalf("CodeOf = %s, want %s", types.CodeOf(err), types.ErrProviderModelNotFound)
	}
	for _, m := range candidates {
		if !strings.Contains(err.Error(), m) {
			t.Errorf("error should list %s: %v", m, err)
		}
	}
	if types.CategoryOf(err) != types.CategoryModelUnavailable {
		t.Errorf("CategoryOf = %s", types.CategoryOf(err))
	}
}

func TestAnthropic_OtherErrorAborts(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	b := NewAnthropicBackend("test-key", srv.URL, "", time.Second)
	_, err := b.Translate(context.Background(), Request{Text: "hello", TargetLanguage: "fr"})
	if types.CodeOf(err) != types.ErrProviderAuthOrConfig {
		t.Errorf("CodeOf = %s", types.CodeOf(err))
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestAnthropic_PlainNotFoundIsNotFallback(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	b := NewAnthropicBackend("test-key", srv.URL, "", time.Second)
	_, err := b.Translate(context.Background(), Request{Text: "hello", TargetLanguage: "fr"})
	if err == nil {
		t.Fatal("expected error")
	}
	if types.CodeOf(err) == types.ErrProviderModelNotFound {
		t.Error("a 404 without the marker must not walk the chain")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestAnthropic_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	b := NewAnthropicBackend("test-key", srv.URL, "", 50*time.Millisecond)
	_, err := b.Translate(context.Background(), Request{Text: "hello", TargetLanguage: "fr"})
	if types.CategoryOf(err) != types.CategoryTimeout {
		t.Errorf("CategoryOf = %s, err = %v", types.CategoryOf(err), err)
	}
}

func TestAnthropic_MissingKey(t *testing.T) {
	b := NewAnthropicBackend("", "", "", time.Second)
	_, err := b.Translate(context.Background(), Request{Text: "hello"})
	if types.CodeOf(err) != types.ErrProviderAuthOrConfig {
		t.Errorf("CodeOf = %s", types.CodeOf(err))
	}
}
