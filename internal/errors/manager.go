// Package errors keeps a persistent ledger of failed translation jobs so
// they can be reviewed and retried.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"doc-translator/internal/types"
)

// ErrorStage is the pipeline step a job failed in.
type ErrorStage string

const (
	StageFetch       ErrorStage = "fetch"
	StageExtract     ErrorStage = "extract"
	StageOCR         ErrorStage = "ocr"
	StageTranslation ErrorStage = "translation"
)

const ledgerFile = "errors.json"

// ErrorRecord is one failed job.
type ErrorRecord struct {
	ID         string         `json:"id"` // orderId/fileName
	FileName   string         `json:"file_name"`
	Stage      ErrorStage     `json:"stage"`
	Category   types.Category `json:"category"`
	ErrorMsg   string         `json:"error_msg"`
	Timestamp  time.Time      `json:"timestamp"`
	CanRetry   bool           `json:"can_retry"`
	RetryCount int            `json:"retry_count"`
	LastRetry  time.Time      `json:"last_retry"`
}

// ErrorManager persists ErrorRecords to a JSON file.
type ErrorManager struct {
	baseDir string
	mu      sync.RWMutex
	errors  map[string]*ErrorRecord // key: ID
}

// RecordID builds the ledger key for a job.
func RecordID(orderID, fileName string) string {
	return orderID + "/" + fileName
}

// NewErrorManager creates a manager rooted at baseDir, loading any existing
// records. An empty baseDir uses ~/.doc-translator/errors.
func NewErrorManager(baseDir string) (*ErrorManager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".doc-translator", "errors")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create errors directory: %w", err)
	}

	em := &ErrorManager{
		baseDir: baseDir,
		errors:  make(map[string]*ErrorRecord),
	}
	if err := em.load(); err != nil {
		return nil, err
	}
	return em, nil
}

// RecordError stores a failure, keeping the retry history of an existing
// record with the same id.
func (em *ErrorManager) RecordError(id, fileName string, stage ErrorStage, category types.Category, errorMsg string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	record := &ErrorRecord{
		ID:        id,
		FileName:  fileName,
		Stage:     stage,
		Category:  category,
		ErrorMsg:  errorMsg,
		Timestamp: time.Now(),
		CanRetry:  category != types.CategoryUnsupportedFile,
	}
	if existing, ok := em.errors[id]; ok {
		record.RetryCount = existing.RetryCount
		record.LastRetry = existing.LastRetry
	}
	em.errors[id] = record

	return em.save()
}

// IncrementRetry bumps the retry counter of a record.
func (em *ErrorManager) IncrementRetry(id string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if record, ok := em.errors[id]; ok {
		record.RetryCount++
		record.LastRetry = time.Now()
		return em.save()
	}
	return fmt.Errorf("error record not found: %s", id)
}

// RemoveError drops a record after the job succeeds. Unknown ids are a no-op.
func (em *ErrorManager) RemoveError(id string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if _, ok := em.errors[id]; !ok {
		return nil
	}
	delete(em.errors, id)
	return em.save()
}

// ListErrors returns copies of all records, oldest first.
func (em *ErrorManager) ListErrors() []*ErrorRecord {
	em.mu.RLock()
	defer em.mu.RUnlock()

	records := make([]*ErrorRecord, 0, len(em.errors))
	for _, record := range em.errors {
		recordCopy := *record
		records = append(records, &recordCopy)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].ID < records[j].ID
		}
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records
}

// GetError returns a copy of the record for id.
func (em *ErrorManager) GetError(id string) (*ErrorRecord, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	record, ok := em.errors[id]
	if !ok {
		return nil, false
	}
	recordCopy := *record
	return &recordCopy, true
}

// ClearAll removes every record.
func (em *ErrorManager) ClearAll() error {
	em.mu.Lock()
	defer em.mu.Unlock()

	em.errors = make(map[string]*ErrorRecord)
	return em.save()
}

func (em *ErrorManager) load() error {
	data, err := os.ReadFile(filepath.Join(em.baseDir, ledgerFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read errors file: %w", err)
	}

	var records []*ErrorRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal errors: %w", err)
	}
	for _, record := range records {
		em.errors[record.ID] = record
	}
	return nil
}

func (em *ErrorManager) save() error {
	records := make([]*ErrorRecord, 0, len(em.errors))
	for _, record := range em.errors {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}
	if err := os.WriteFile(filepath.Join(em.baseDir, ledgerFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write errors file: %w", err)
	}
	return nil
}

// ExportErrorIDs writes the id of every retryable record to outputPath, one
// per line.
func (em *ErrorManager) ExportErrorIDs(outputPath string) error {
	em.mu.RLock()
	ids := make([]string, 0, len(em.errors))
	for id, record := range em.errors {
		if record.CanRetry {
			ids = append(ids, id)
		}
	}
	em.mu.RUnlock()

	sort.Strings(ids)
	content := ""
	if len(ids) > 0 {
		content = strings.Join(ids, "\n") + "\n"
	}
	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write error IDs file: %w", err)
	}
	return nil
}

// GetStageDisplayName returns a human-readable stage name.
func GetStageDisplayName(stage ErrorStage) string {
	switch stage {
	case StageFetch:
		return "Download"
	case StageExtract:
		return "Text extraction"
	case StageOCR:
		return "OCR"
	case StageTranslation:
		return "Translation"
	default:
		return string(stage)
	}
}
