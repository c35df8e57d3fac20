package pipeline

import "fmt"

// Stage names one step of the generation pipeline. Stages run strictly in
// order and are never re-entered.
type Stage string

const (
	StageValidate     Stage = "ValidateInput"
	StageReadTemplate Stage = "ReadTemplate"
	StageGenerateQR   Stage = "GenerateQR"
	StageRender       Stage = "Render"
	StageConvert      Stage = "Convert"
	StagePersist      Stage = "Persist"
	StageRecordLedger Stage = "RecordLedger"
)

// StageError wraps the cause of a pipeline failure with the stage it
// occurred in, so one structured failure record can name both.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageFailed(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
