// Package downloader fetches source documents by URL or from the local disk.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"doc-translator/internal/logger"
	"doc-translator/internal/parser"
	"doc-translator/internal/types"
)

const (
	// DefaultTimeout is the default HTTP client timeout for downloads
	DefaultTimeout = 300 * time.Second
	// MaxRetries is the maximum number of retry attempts for network errors
	MaxRetries = 3
	// BaseRetryDelay is the base delay between retries (will be multiplied by attempt number)
	BaseRetryDelay = 2 * time.Second
	// DefaultMaxSize caps the size of a fetched document
	DefaultMaxSize int64 = 100 << 20
)

// Blob is a fetched document.
type Blob struct {
	Data        []byte
	ContentType string
	FileName    string
}

// BlobFetcher downloads documents over HTTP.
type BlobFetcher struct {
	httpClient *http.Client
	maxSize    int64
	retryDelay time.Duration
}

// Option configures a BlobFetcher.
type Option func(*BlobFetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *BlobFetcher) { f.httpClient = c }
}

// WithMaxSize sets the maximum accepted body size in bytes.
func WithMaxSize(n int64) Option {
	return func(f *BlobFetcher) { f.maxSize = n }
}

// WithRetryDelay sets the base delay between retries.
func WithRetryDelay(d time.Duration) Option {
	return func(f *BlobFetcher) { f.retryDelay = d }
}

// NewBlobFetcher creates a BlobFetcher with sensible defaults.
func NewBlobFetcher(opts ...Option) *BlobFetcher {
	f := &BlobFetcher{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return types.NewAppError(types.ErrNetwork, "too many redirects", nil)
				}
				return nil
			},
		},
		maxSize:    DefaultMaxSize,
		retryDelay: BaseRetryDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads rawURL and returns its bytes and content type.
// Network errors, 5xx and 429 responses are retried.
func (f *BlobFetcher) Fetch(ctx context.Context, rawURL string) (*Blob, error) {
	logger.Info("fetching document", logger.String("url", rawURL))

	if rawURL == "" {
		return nil, types.NewAppError(types.ErrInvalidInput, "URL cannot be empty", nil)
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		logger.Warn("fetch failed: invalid URL format", logger.String("url", rawURL))
		return nil, types.NewAppError(types.ErrInvalidInput, "invalid URL format: must start with http:// or https://", nil)
	}

	var lastErr error
	for attempt := 1; attempt <= MaxRetries; attempt++ {
		logger.Debug("fetch attempt", logger.Int("attempt", attempt), logger.String("url", rawURL))
		blob, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			logger.Info("fetch completed",
				logger.String("url", rawURL),
				logger.Int("bytes", len(blob.Data)),
				logger.String("contentType", blob.ContentType))
			return blob, nil
		}

		lastErr = err
		logger.Warn("fetch attempt failed", logger.Int("attempt", attempt), logger.Err(err))

		if !isRetryableError(err) {
			return nil, err
		}

		if attempt < MaxRetries {
			delay := f.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, types.NewAppError(types.ErrNetwork, "fetch cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	logger.Error("fetch failed after all retries", lastErr, logger.String("url", rawURL), logger.Int("maxRetries", MaxRetries))
	return nil, types.NewAppErrorWithDetails(
		types.ErrNetwork,
		"download failed after multiple retries",
		fmt.Sprintf("attempted %d times", MaxRetries),
		lastErr,
	)
}

func (f *BlobFetcher) fetchOnce(ctx context.Context, rawURL string) (*Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "failed to create HTTP request", err)
	}
	req.Header.Set("User-Agent", "doc-translator/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrNetwork, "network request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleHTTPError(resp.StatusCode, rawURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, types.NewAppError(types.ErrNetwork, "failed to read response body", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "document too large",
			fmt.Sprintf("limit is %d bytes", f.maxSize), nil)
	}

	name := fileNameFromURL(rawURL)
	return &Blob{
		Data:        data,
		ContentType: resolveContentType(resp.Header.Get("Content-Type"), name, data),
		FileName:    name,
	}, nil
}

// ReadLocal reads a document from disk and detects its MIME type.
func ReadLocal(filePath string) (*Blob, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "file not found", filePath, err)
		}
		return nil, types.NewAppError(types.ErrInternal, "failed to read file", err)
	}
	name := filepath.Base(filePath)
	return &Blob{
		Data:        data,
		ContentType: resolveContentType("", name, data),
		FileName:    name,
	}, nil
}

// resolveContentType prefers a concrete header value, then the file
// extension, then content sniffing.
func resolveContentType(header, name string, data []byte) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	if mt := parser.MimeTypeFromName(name); mt != "" {
		return mt
	}
	return sniff(data)
}

func sniff(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

// fileNameFromURL returns the last path segment of rawURL.
func fileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "download"
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		return "download"
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}

// handleHTTPError creates an appropriate AppError based on the HTTP status code.
func handleHTTPError(statusCode int, rawURL string) error {
	switch statusCode {
	case http.StatusNotFound:
		return types.NewAppErrorWithDetails(
			types.ErrFetchRejected,
			"resource not found",
			fmt.Sprintf("URL: %s returned 404", rawURL),
			nil,
		)
	case http.StatusForbidden, http.StatusUnauthorized:
		return types.NewAppErrorWithDetails(
			types.ErrFetchRejected,
			"access forbidden",
			fmt.Sprintf("URL: %s returned %d", rawURL, statusCode),
			nil,
		)
	case http.StatusTooManyRequests:
		return types.NewAppErrorWithDetails(
			types.ErrRateLimit,
			"rate limit exceeded",
			"too many requests, please try again later",
			nil,
		)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return types.NewAppErrorWithDetails(
			types.ErrNetwork,
			"server error",
			fmt.Sprintf("URL: %s returned %d", rawURL, statusCode),
			nil,
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrFetchRejected,
			"download failed",
			fmt.Sprintf("URL: %s returned status %d", rawURL, statusCode),
			nil,
		)
	}
}

// isRetryableError determines if an error should trigger a retry.
// Network errors and server errors (5xx) are retryable.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrNetwork, types.ErrRateLimit:
			return true
		default:
			return false
		}
	}

	return true
}
