package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"doc-translator/internal/config"
	"doc-translator/internal/downloader"
	"doc-translator/internal/errors"
	"doc-translator/internal/jobs"
	"doc-translator/internal/logger"
	"doc-translator/internal/ocr"
	"doc-translator/internal/parser"
	"doc-translator/internal/pdf"
	"doc-translator/internal/pipeline"
	"doc-translator/internal/server"
	"doc-translator/internal/translator"
	"doc-translator/internal/types"
	"doc-translator/internal/vision"

	"github.com/google/uuid"
)

// DefaultDataDir is where the job database and failure ledger live unless
// the config says otherwise.
const DefaultDataDir = ".doc-translator"

// TranslateParams are the per-run options of TranslateFile.
type TranslateParams struct {
	OrderID        string
	SourceLanguage string
	TargetLanguage string
	Provider       types.ProviderKind
	Domain         types.Domain
	Model          string
	OCRQuality     types.OCRQuality
}

// App is the application controller. It wires configuration, translation
// backends, the pipeline, the job store and the failure ledger.
type App struct {
	config   *config.ConfigManager
	registry *translator.Registry
	fetcher  *downloader.BlobFetcher
	pipeline *pipeline.Pipeline
	store    *jobs.SQLiteStore
	runner   *jobs.Runner
	errorMgr *errors.ErrorManager
}

// NewAppWithConfig creates an App and loads configuration from configPath.
// An empty path uses the default location.
func NewAppWithConfig(configPath string) (*App, error) {
	configMgr, err := config.NewConfigManager(configPath)
	if err != nil {
		return nil, err
	}
	if err := configMgr.Load(); err != nil {
		return nil, err
	}
	return &App{config: configMgr}, nil
}

// startup builds every module from the loaded configuration.
func (a *App) startup() error {
	cfg := a.config.GetConfig()

	dbPath, ledgerDir, err := dataPaths(cfg)
	if err != nil {
		return err
	}

	a.registry = translator.NewRegistryFromConfig(cfg)
	a.fetcher = downloader.NewBlobFetcher()

	var imageTranslator pipeline.ImageTranslator
	if router, ok := a.registry.Router(); ok {
		imageTranslator = vision.New(router, cfg.OpenRouterVisionModel, cfg.DisableVisionRefine)
	}

	a.pipeline = pipeline.New(pipeline.Deps{
		Fetcher:    a.fetcher,
		Text:       a.registry,
		Vision:     imageTranslator,
		OCR:        ocr.NewGoogleVisionEngine(cfg.GoogleCredentialsFile, cfg.Timeout()),
		PDF:        pdf.NewParser(),
		Rasterizer: pdf.NewFitzRasterizer(pdf.DefaultDPI),
	})

	a.store, err = jobs.OpenSQLiteStore(dbPath)
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to open job store", err)
	}
	a.errorMgr, err = errors.NewErrorManager(ledgerDir)
	if err != nil {
		a.store.Close()
		return types.NewAppError(types.ErrConfig, "failed to open failure ledger", err)
	}
	a.runner = jobs.NewRunner(a.pipeline, a.store, a.errorMgr, cfg.MaxParallelJobs)

	logger.Info("application started",
		logger.String("database", dbPath),
		logger.String("ledger", ledgerDir),
		logger.Int("maxParallelJobs", cfg.MaxParallelJobs))
	return nil
}

// shutdown releases the job store.
func (a *App) shutdown() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("failed to close job store", logger.Err(err))
		}
	}
}

// dataPaths resolves the job database path and the ledger directory.
func dataPaths(cfg *types.Config) (string, string, error) {
	dbPath, ledgerDir := cfg.DatabasePath, cfg.ErrorLedgerPath
	if dbPath == "" || ledgerDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", "", types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		base := filepath.Join(homeDir, DefaultDataDir)
		if dbPath == "" {
			dbPath = filepath.Join(base, "jobs.db")
		}
		if ledgerDir == "" {
			ledgerDir = filepath.Join(base, "errors")
		}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return "", "", types.NewAppError(types.ErrConfig, "failed to create data directory", err)
	}
	return dbPath, ledgerDir, nil
}

// TranslateFile translates a local path or URL as one job.
func (a *App) TranslateFile(ctx context.Context, input string, params TranslateParams) (*types.TranslationJob, error) {
	info, err := parser.Describe(input)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(a.config.GetConfig(), types.ParseProvider(string(params.Provider))); err != nil {
		return nil, err
	}

	req := pipeline.Request{
		OrderID:        params.OrderID,
		FileName:       info.FileName,
		SourceLanguage: params.SourceLanguage,
		TargetLanguage: params.TargetLanguage,
		Provider:       params.Provider,
		Domain:         params.Domain,
		Model:          params.Model,
		OCRQuality:     params.OCRQuality,
	}
	if req.OrderID == "" {
		req.OrderID = uuid.NewString()
	}

	switch info.SourceType {
	case types.SourceTypeURL:
		req.FileURL = info.OriginalRef
	case types.SourceTypeLocalFile:
		blob, err := downloader.ReadLocal(info.OriginalRef)
		if err != nil {
			return nil, err
		}
		req.Data = blob.Data
		req.MIMEType = blob.ContentType
	}

	logger.Info("translating file",
		logger.String("orderId", req.OrderID),
		logger.String("fileName", req.FileName),
		logger.String("source", string(info.SourceType)))
	return a.runner.Run(ctx, req)
}

// ListJobs returns the stored jobs of an order.
func (a *App) ListJobs(ctx context.Context, orderID string) ([]*types.TranslationJob, error) {
	return a.store.ListByOrder(ctx, orderID)
}

// GetJob returns one stored job.
func (a *App) GetJob(ctx context.Context, orderID, fileName string) (*types.TranslationJob, error) {
	return a.store.Get(ctx, orderID, fileName)
}

// Failures returns the failure ledger, optionally restricted to one order.
func (a *App) Failures(orderID string) []*errors.ErrorRecord {
	all := a.errorMgr.ListErrors()
	if orderID == "" {
		return all
	}
	prefix := orderID + "/"
	filtered := make([]*errors.ErrorRecord, 0, len(all))
	for _, rec := range all {
		if strings.HasPrefix(rec.ID, prefix) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// ExportFailures writes retryable failure ids to path.
func (a *App) ExportFailures(path string) error {
	if err := a.errorMgr.ExportErrorIDs(path); err != nil {
		return fmt.Errorf("export failures: %w", err)
	}
	return nil
}

// Handler returns the HTTP intake handler.
func (a *App) Handler() http.Handler {
	return server.New(a.runner, a.store).Router()
}
