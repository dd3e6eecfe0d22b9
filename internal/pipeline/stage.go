package pipeline

import "errors"

// Stage names the pipeline step a failure came from.
type Stage string

const (
	StageFetch       Stage = "fetch"
	StageExtract     Stage = "extract"
	StageOCR         Stage = "ocr"
	StageTranslation Stage = "translation"
)

// StageError attaches a Stage to an error.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage recorded in err's chain, or StageExtract when
// there is none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageExtract
}
