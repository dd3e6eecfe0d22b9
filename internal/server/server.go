// Package server exposes the translation pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"doc-translator/internal/jobs"
	"doc-translator/internal/logger"
	"doc-translator/internal/pipeline"
	"doc-translator/internal/types"
)

// maxBodyBytes covers a base64-encoded 100 MiB upload.
const maxBodyBytes = 140 << 20

// JobRunner runs translation jobs.
type JobRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*types.TranslationJob, error)
	RunAll(ctx context.Context, reqs []pipeline.Request) []jobs.Outcome
}

// JobReader reads stored jobs.
type JobReader interface {
	Get(ctx context.Context, orderID, fileName string) (*types.TranslationJob, error)
	ListByOrder(ctx context.Context, orderID string) ([]*types.TranslationJob, error)
}

// Server holds the HTTP handlers.
type Server struct {
	runner JobRunner
	store  JobReader
}

// New creates a Server.
func New(runner JobRunner, store JobReader) *Server {
	return &Server{runner: runner, store: store}
}

// Router returns the HTTP handler with all routes configured.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", s.createJob)
		r.Post("/orders/{orderId}/jobs", s.createOrderJobs)
		r.Get("/jobs/{orderId}", s.listJobs)
		r.Get("/jobs/{orderId}/{fileName}", s.getJob)
	})
	return r
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error    string          `json:"error"`
	Category types.Category  `json:"category"`
	Code     types.ErrorCode `json:"code"`
}

// OrderRequest is the body of POST /v1/orders/{orderId}/jobs. Shared
// parameters apply to every file that leaves them empty.
type OrderRequest struct {
	pipeline.Request
	Files []pipeline.Request `json:"files"`
}

// OrderResult is one file's outcome in an order response.
type OrderResult struct {
	FileName string                `json:"fileName"`
	Job      *types.TranslationJob `json:"job,omitempty"`
	Error    *ErrorResponse        `json:"error,omitempty"`
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := s.runner.Run(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) createOrderJobs(w http.ResponseWriter, r *http.Request) {
	var body OrderRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if len(body.Files) == 0 {
		writeError(w, types.NewAppError(types.ErrInvalidInput, "files must not be empty", nil))
		return
	}

	orderID := chi.URLParam(r, "orderId")
	reqs := make([]pipeline.Request, len(body.Files))
	for i, f := range body.Files {
		reqs[i] = mergeDefaults(f, body.Request)
		reqs[i].OrderID = orderID
		reqs[i].FileIndex = i
	}

	outcomes := s.runner.RunAll(r.Context(), reqs)
	results := make([]OrderResult, len(outcomes))
	for i, out := range outcomes {
		results[i] = OrderResult{FileName: out.FileName, Job: out.Job}
		if out.Err != nil {
			resp := errorResponse(out.Err)
			results[i].Error = &resp
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderId": orderID, "results": results})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListByOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.Get(r.Context(), chi.URLParam(r, "orderId"), chi.URLParam(r, "fileName"))
	if errors.Is(err, jobs.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:    err.Error(),
			Category: types.CategoryFailed,
			Code:     types.ErrInvalidInput,
		})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func mergeDefaults(f, shared pipeline.Request) pipeline.Request {
	if f.SourceLanguage == "" {
		f.SourceLanguage = shared.SourceLanguage
	}
	if f.TargetLanguage == "" {
		f.TargetLanguage = shared.TargetLanguage
	}
	if f.Provider == "" {
		f.Provider = shared.Provider
	}
	if f.Domain == "" {
		f.Domain = shared.Domain
	}
	if f.Model == "" {
		f.Model = shared.Model
	}
	if f.OCRQuality == "" {
		f.OCRQuality = shared.OCRQuality
	}
	return f
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return types.NewAppError(types.ErrInvalidInput, "invalid request body", err)
	}
	return nil
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	switch types.CodeOf(err) {
	case types.ErrUnsupportedFileType:
		return http.StatusUnsupportedMediaType
	case types.ErrInvalidInput:
		return http.StatusBadRequest
	}
	switch types.CategoryOf(err) {
	case types.CategoryTimeout:
		return http.StatusGatewayTimeout
	case types.CategoryModelUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func errorResponse(err error) ErrorResponse {
	return ErrorResponse{
		Error:    err.Error(),
		Category: types.CategoryOf(err),
		Code:     types.CodeOf(err),
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", logger.Err(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.String("requestId", chimiddleware.GetReqID(r.Context())),
			logger.Duration("elapsed", time.Since(start)))
	})
}
