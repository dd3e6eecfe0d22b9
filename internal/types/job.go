package types

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a TranslationJob.
type JobStatus string

const (
	StatusPending     JobStatus = "pending"
	StatusTranslating JobStatus = "translating"
	StatusReview      JobStatus = "review"
	StatusApproved    JobStatus = "approved"
	StatusCompleted   JobStatus = "completed"
)

// TranslationJob is the request/response envelope for one file.
type TranslationJob struct {
	OrderID   string `json:"orderId"`
	FileName  string `json:"fileName"`
	FileIndex int    `json:"fileIndex"`

	Provider       ProviderKind `json:"provider"`
	Domain         Domain       `json:"domain"`
	Model          string       `json:"model,omitempty"`
	OCRQuality     OCRQuality   `json:"ocrQuality"`
	SourceLanguage string       `json:"sourceLanguage"`
	TargetLanguage string       `json:"targetLanguage"`

	Segments []Segment `json:"segments"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`

	LastError     string   `json:"lastError,omitempty"`
	ErrorCategory Category `json:"errorCategory,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Begin moves the job into translating with progress 0 and no segments.
// A job may begin from pending or from a fresh zero value.
func (j *TranslationJob) Begin() error {
	if j.Status != "" && j.Status != StatusPending {
		return fmt.Errorf("cannot start job in status %s", j.Status)
	}
	j.Status = StatusTranslating
	j.Progress = 0
	j.Segments = []Segment{}
	j.LastError = ""
	j.ErrorCategory = ""
	j.touch()
	return nil
}

// Complete stores the finished segments and moves the job to review.
func (j *TranslationJob) Complete(segments []Segment) error {
	if j.Status != StatusTranslating {
		return fmt.Errorf("cannot complete job in status %s", j.Status)
	}
	if err := ValidateSegments(segments); err != nil {
		return err
	}
	if segments == nil {
		segments = []Segment{}
	}
	j.Segments = segments
	j.Status = StatusReview
	j.Progress = 100
	j.touch()
	return nil
}

// Fail reverts the job to pending and records the cause.
func (j *TranslationJob) Fail(cause error) error {
	if j.Status != StatusTranslating {
		return fmt.Errorf("cannot fail job in status %s", j.Status)
	}
	j.Status = StatusPending
	j.Progress = 0
	if cause != nil {
		j.LastError = cause.Error()
		j.ErrorCategory = CategoryOf(cause)
	}
	j.touch()
	return nil
}

func (j *TranslationJob) touch() {
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
}

// ValidateSegments checks that every segment's order equals its index.
func ValidateSegments(segments []Segment) error {
	for i, s := range segments {
		if s.Order != i {
			return fmt.Errorf("segment %d has order %d", i, s.Order)
		}
	}
	return nil
}
