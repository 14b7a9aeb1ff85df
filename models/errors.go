package models

import "fmt"

// Error codes used in run-level error handling and the monitor API.
const (
	ErrCodeTimeout           = "RENDER_TIMEOUT"
	ErrCodeRender            = "RENDER_FAILED"
	ErrCodeNetwork           = "NETWORK_UNREACHABLE"
	ErrCodeSession           = "SESSION_UNAVAILABLE"
	ErrCodeSessionExhausted  = "SESSION_RETRIES_EXHAUSTED"
	ErrCodeInputLoad         = "INPUT_LOAD_FAILED"
	ErrCodeCheckpointCorrupt = "CHECKPOINT_CORRUPT"
	ErrCodeCheckpointSave    = "CHECKPOINT_SAVE_FAILED"
	ErrCodeSinkOpen          = "SINK_OPEN_FAILED"
	ErrCodeSinkWrite         = "SINK_WRITE_FAILED"
	ErrCodeInterrupted       = "RUN_INTERRUPTED"
)

// ErrorDetail is the structured error shape exposed by the monitor API.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PipelineError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type PipelineError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a new PipelineError.
func NewPipelineError(code, message string, err error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *PipelineError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
