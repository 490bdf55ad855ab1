package detections

import (
	"errors"
	"fmt"
)

var (
	ErrDecode          = errors.New("image decode failed")
	ErrMalformedOutput = errors.New("malformed model output")
)

// Stage is one step of a detection request.
type Stage int

const (
	StageDecoding Stage = iota
	StageResizing
	StageInferring
	StageDecodingOutput
	StageResolvingLabels
	StageDone
)

var stageNames = [...]string{
	StageDecoding:        "decoding",
	StageResizing:        "resizing",
	StageInferring:       "inferring",
	StageDecodingOutput:  "decoding-output",
	StageResolvingLabels: "resolving-labels",
	StageDone:            "done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError is the terminal Failed(stage, cause) state of a pipeline run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage that produced err, if err came out of a pipeline.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return 0, false
}
