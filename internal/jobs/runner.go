package jobs

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	ledger "doc-translator/internal/errors"
	"doc-translator/internal/logger"
	"doc-translator/internal/pipeline"
	"doc-translator/internal/types"
)

// Core runs the translation pipeline for one file.
type Core interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// FailureLedger records failed jobs for later retry.
type FailureLedger interface {
	RecordError(id, fileName string, stage ledger.ErrorStage, category types.Category, errorMsg string) error
	RemoveError(id string) error
	GetError(id string) (*ledger.ErrorRecord, bool)
	IncrementRetry(id string) error
}

// Outcome is the result of one file in a RunAll batch.
type Outcome struct {
	FileName string                `json:"fileName"`
	Job      *types.TranslationJob `json:"job,omitempty"`
	Err      error                 `json:"-"`
}

// Runner owns the job lifecycle around the pipeline: it creates the job,
// invokes the core and persists the outcome.
type Runner struct {
	core        Core
	store       JobStore
	ledger      FailureLedger
	maxParallel int
}

// NewRunner creates a Runner. ledger may be nil.
func NewRunner(core Core, store JobStore, failures FailureLedger, maxParallel int) *Runner {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &Runner{core: core, store: store, ledger: failures, maxParallel: maxParallel}
}

// Run translates one file. The returned job reflects the persisted state
// even when err is non-nil.
func (r *Runner) Run(ctx context.Context, req pipeline.Request) (*types.TranslationJob, error) {
	if req.OrderID == "" || req.FileName == "" {
		return nil, types.NewAppError(types.ErrInvalidInput, "orderId and fileName are required", nil)
	}
	log := logger.With(logger.String("orderId", req.OrderID), logger.String("fileName", req.FileName))

	job, err := r.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := job.Begin(); err != nil {
		return job, types.NewAppError(types.ErrInvalidInput, "job cannot be started", err)
	}
	if err := r.store.Save(ctx, job); err != nil {
		return job, err
	}

	id := ledger.RecordID(req.OrderID, req.FileName)
	if r.ledger != nil {
		if _, ok := r.ledger.GetError(id); ok {
			if err := r.ledger.IncrementRetry(id); err != nil {
				log.Warn("failed to bump retry count", logger.Err(err))
			}
		}
	}

	result, runErr := r.core.Run(ctx, req)
	if runErr == nil {
		if err := job.Complete(result.Segments); err != nil {
			runErr = types.NewAppError(types.ErrInternal, "pipeline produced invalid segments", err)
		}
	}
	if runErr != nil {
		// revert even when the caller's context is already gone
		saveCtx := context.WithoutCancel(ctx)
		if err := job.Fail(runErr); err != nil {
			log.Error("failed to revert job", err)
		}
		if err := r.store.Save(saveCtx, job); err != nil {
			log.Error("failed to persist failed job", err)
		}
		r.recordFailure(log, id, req.FileName, runErr)
		return job, runErr
	}

	if err := r.store.Save(ctx, job); err != nil {
		return job, err
	}
	if r.ledger != nil {
		if err := r.ledger.RemoveError(id); err != nil {
			log.Warn("failed to clear failure record", logger.Err(err))
		}
	}
	log.Info("job ready for review", logger.Int("segments", len(job.Segments)))
	return job, nil
}

// prepare loads or creates the job and applies the request parameters.
// A job in review is sent back to pending for re-translation; approved and
// completed jobs are final.
func (r *Runner) prepare(ctx context.Context, req pipeline.Request) (*types.TranslationJob, error) {
	job, err := r.store.Get(ctx, req.OrderID, req.FileName)
	switch {
	case errors.Is(err, ErrNotFound):
		job = &types.TranslationJob{OrderID: req.OrderID, FileName: req.FileName, Status: types.StatusPending}
	case err != nil:
		return nil, err
	}

	switch job.Status {
	case types.StatusApproved, types.StatusCompleted:
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "job is already finalised",
			fmt.Sprintf("status %s", job.Status), nil)
	case types.StatusReview, types.StatusTranslating:
		// a translating job here was interrupted mid-run
		job.Status = types.StatusPending
	}

	job.FileIndex = req.FileIndex
	job.Provider = types.ParseProvider(string(req.Provider))
	job.Domain = types.NormalizeDomain(string(req.Domain))
	job.Model = req.Model
	job.OCRQuality = types.ParseOCRQuality(string(req.OCRQuality))
	job.SourceLanguage = req.SourceLanguage
	if job.SourceLanguage == "" {
		job.SourceLanguage = types.AutoLanguage
	}
	job.TargetLanguage = req.TargetLanguage
	return job, nil
}

func (r *Runner) recordFailure(log logger.Logger, id, fileName string, err error) {
	stage := ledger.ErrorStage(pipeline.StageOf(err))
	category := types.CategoryOf(err)
	log.Error("job failed", err,
		logger.String("stage", string(stage)),
		logger.String("category", string(category)))
	if r.ledger == nil {
		return
	}
	if lerr := r.ledger.RecordError(id, fileName, stage, category, err.Error()); lerr != nil {
		log.Warn("failed to record failure", logger.Err(lerr))
	}
}

// RunAll translates every file of an order, at most maxParallel at a time.
// One file's failure does not stop the others. Outcomes follow the order
// of reqs.
func (r *Runner) RunAll(ctx context.Context, reqs []pipeline.Request) []Outcome {
	outcomes := make([]Outcome, len(reqs))
	var g errgroup.Group
	g.SetLimit(r.maxParallel)
	for i, req := range reqs {
		g.Go(func() error {
			job, err := r.Run(ctx, req)
			outcomes[i] = Outcome{FileName: req.FileName, Job: job, Err: err}
			return nil
		})
	}
	g.Wait()
	return outcomes
}
