package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"doc-translator/internal/parser"
	"doc-translator/internal/types"
)

var pdfHeader = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")

func newTestFetcher() *BlobFetcher {
	return NewBlobFetcher(WithRetryDelay(time.Millisecond))
}

func TestFetch_UsesHeaderContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf; charset=binary")
		w.Write(pdfHeader)
	}))
	defer srv.Close()

	blob, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/orders/1/contract.pdf")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if blob.ContentType != parser.MimePDF {
		t.Errorf("ContentType = %q, want %q", blob.ContentType, parser.MimePDF)
	}
	if blob.FileName != "contract.pdf" {
		t.Errorf("FileName = %q", blob.FileName)
	}
	if string(blob.Data) != string(pdfHeader) {
		t.Error("body mismatch")
	}
}

func TestFetch_SniffsOctetStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(pdfHeader)
	}))
	defer srv.Close()

	blob, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/blob/abc")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if blob.ContentType != parser.MimePDF {
		t.Errorf("ContentType = %q, want sniffed pdf", blob.ContentType)
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("\x89PNG\r\n\x1a\n"))
	}))
	defer srv.Close()

	blob, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/scan.png")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if blob.ContentType != parser.MimePNG {
		t.Errorf("ContentType = %q", blob.ContentType)
	}
}

func TestFetch_DoesNotRetryNotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/missing.pdf")
	if err == nil {
		t.Fatal("expected error")
	}
	if types.CodeOf(err) != types.ErrFetchRejected {
		t.Errorf("expected DOWNLOAD_ERROR, got %s", types.CodeOf(err))
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestFetch_MaxSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	f := NewBlobFetcher(WithMaxSize(16), WithRetryDelay(time.Millisecond))
	_, err := f.Fetch(context.Background(), srv.URL+"/big.pdf")
	if types.CodeOf(err) != types.ErrInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestFetch_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com/a.pdf", "example.com/a.pdf"} {
		_, err := newTestFetcher().Fetch(context.Background(), u)
		if types.CodeOf(err) != types.ErrInvalidInput {
			t.Errorf("Fetch(%q): expected INVALID_INPUT, got %v", u, err)
		}
	}
}

func TestReadLocal(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "scan")
	if err := os.WriteFile(p, pdfHeader, 0600); err != nil {
		t.Fatal(err)
	}
	blob, err := ReadLocal(p)
	if err != nil {
		t.Fatalf("ReadLocal failed: %v", err)
	}
	if blob.ContentType != parser.MimePDF || blob.FileName != "scan" {
		t.Errorf("unexpected blob: %q %q", blob.ContentType, blob.FileName)
	}

	_, err = ReadLocal(filepath.Join(dir, "nope.pdf"))
	if types.CodeOf(err) != types.ErrInvalidInput {
		t.Errorf("expected INVALID_INPUT for missing file, got %v", err)
	}
}

func TestFileNameFromURL(t *testing.T) {
	testCases := []struct {
		url      string
		expected string
	}{
		{"https://example.com/files/contract.pdf", "contract.pdf"},
		{"https://example.com/files/my%20scan.png?x=1", "my scan.png"},
		{"https://example.com/", "download"},
		{"https://example.com", "download"},
	}
	for _, tc := range testCases {
		if got := fileNameFromURL(tc.url); got != tc.expected {
			t.Errorf("fileNameFromURL(%q) = %q, want %q", tc.url, got, tc.expected)
		}
	}
}

func TestHandleHTTPError(t *testing.T) {
	testCases := []struct {
		statusCode int
		code       types.ErrorCode
		substr     string
	}{
		{404, types.ErrFetchRejected, "not found"},
		{403, types.ErrFetchRejected, "forbidden"},
		{429, types.ErrRateLimit, "rate limit"},
		{500, types.ErrNetwork, "server error"},
		{503, types.ErrNetwork, "server error"},
		{400, types.ErrFetchRejected, "download failed"},
	}
	for _, tc := range testCases {
		err := handleHTTPError(tc.statusCode, "https://example.com/test")
		if types.CodeOf(err) != tc.code {
			t.Errorf("%d: code = %s, want %s", tc.statusCode, types.CodeOf(err), tc.code)
		}
		if !strings.Contains(strings.ToLower(err.Error()), tc.substr) {
			t.Errorf("%d: %q does not contain %q", tc.statusCode, err.Error(), tc.substr)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"server error", handleHTTPError(500, "u"), true},
		{"rate limit", handleHTTPError(429, "u"), true},
		{"not found", handleHTTPError(404, "u"), false},
		{"deadline", types.NewAppError(types.ErrNetwork, "x", context.DeadlineExceeded), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isRetryableError(tc.err); got != tc.expected {
				t.Errorf("isRetryableError(%v) = %v, want %v", tc.err, got, tc.expected)
			}
		})
	}
}
