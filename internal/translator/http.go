package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

// apiErrorBody covers the error envelopes of the chat APIs we call:
// {"error": {"message", "type", "code"}}.
type apiErrorBody struct {
	Type  string `json:"type"`
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// handleAPIHTTPError creates an appropriate AppError based on the HTTP status code.
func handleAPIHTTPError(provider types.ProviderKind, statusCode int, body []byte) error {
	errorDetails := ""
	var errResp apiErrorBody
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		errorDetails = errResp.Error.Message
	} else if len(body) > 0 {
		errorDetails = truncate(strings.TrimSpace(string(body)), 300)
	}
	details := fmt.Sprintf("%s status %d: %s", provider, statusCode, errorDetails)

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return types.NewAppErrorWithDetails(types.ErrProviderAuthOrConfig,
			"API authentication failed", details, nil)
	case statusCode == http.StatusNotFound:
		return types.NewAppErrorWithDetails(types.ErrProvider,
			"API resource not found", details, nil)
	case statusCode == http.StatusTooManyRequests:
		return types.NewAppErrorWithDetails(types.ErrRateLimit,
			"API rate limit exceeded", details, nil)
	case statusCode == http.StatusBadRequest:
		return types.NewAppErrorWithDetails(types.ErrProvider,
			"invalid API request", details, nil)
	case statusCode >= 500:
		return types.NewAppErrorWithDetails(types.ErrProviderUnavailable,
			"API server error", details, nil)
	default:
		return types.NewAppErrorWithDetails(types.ErrProvider,
			"API request failed", details, nil)
	}
}

// postJSON sends payload to url under a per-call timeout and returns the
// response body for a 200 reply.
func postJSON(ctx context.Context, client *http.Client, provider types.ProviderKind, timeout time.Duration,
	url string, headers map[string]string, payload interface{}) ([]byte, int, error) {

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrInternal, "failed to marshal request body", err)
	}

	callCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrInternal, "failed to create HTTP request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if callCtx.Err() != nil {
			err = fmt.Errorf("%w: %v", callCtx.Err(), err)
		}
		logger.Error("API request failed", err, logger.String("provider", string(provider)))
		return nil, 0, wrapCallError(provider, timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if callCtx.Err() != nil {
			err = fmt.Errorf("%w: %v", callCtx.Err(), err)
		}
		return nil, resp.StatusCode, wrapCallError(provider, timeout, err)
	}

	logger.Debug("API call finished",
		logger.String("provider", string(provider)),
		logger.Int("statusCode", resp.StatusCode),
		logger.Duration("elapsed", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return body, resp.StatusCode, handleAPIHTTPError(provider, resp.StatusCode, body)
	}
	return body, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func newHTTPClient() *http.Client {
	// Per-call deadlines come from the request context.
	return &http.Client{}
}
