// Package pipeline implements the stateful message analysis pipeline: the
// orchestrator, its classification stages, the geocode cache, and the
// semantic deduplication index.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"crisislens_server/core/domain"
)

// =============================================================================
// Stage Contract
// =============================================================================

// ErrorKind classifies a recoverable stage failure.
type ErrorKind string

const (
	KindModelUnavailable ErrorKind = "MODEL_UNAVAILABLE"
	KindTimeout          ErrorKind = "TIMEOUT"
	KindInvalidInput     ErrorKind = "INVALID_INPUT"
)

// StageError is a recoverable per-stage failure. The orchestrator records it
// and leaves the stage's output field unset; it never reaches the caller.
type StageError struct {
	Stage string
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// newStageError wraps err, deriving the kind from the error when possible.
func newStageError(stage string, err error) *StageError {
	kind := KindModelUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func invalidInput(stage, reason string) *StageError {
	return &StageError{Stage: stage, Kind: KindInvalidInput, Err: errors.New(reason)}
}

// StageContext carries the message through the pipeline. Stages read prior
// outputs from Record and write their own result into it.
type StageContext struct {
	Message   domain.Message
	CleanText string
	Language  string
	Record    *domain.AnalysisRecord
}

// Stage is one classification step. A nil return means the stage's result
// was written into the record; a StageError means that field stays unset.
type Stage interface {
	Name() string
	Run(ctx context.Context, sc *StageContext) *StageError
}
