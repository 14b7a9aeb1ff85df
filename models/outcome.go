package models

import "errors"

// Outcome classifies the result of one URL's render attempt.
type Outcome string

const (
	// OutcomeSuccess means the page rendered and a signal bundle was extracted.
	OutcomeSuccess Outcome = "success"

	// OutcomeTimeout means the render did not finish within the per-URL deadline.
	OutcomeTimeout Outcome = "timeout"

	// OutcomeRenderError means the page itself failed to load or evaluate.
	OutcomeRenderError Outcome = "render_error"

	// OutcomeSessionError means the browser session is unusable, independent
	// of the URL being processed. It drives the driver's recovery policy.
	OutcomeSessionError Outcome = "session_error"

	// OutcomeNetworkError means the target host was unreachable
	// (DNS failure, connection refused, TLS handshake never completed).
	OutcomeNetworkError Outcome = "network_error"
)

// String returns the stable wire form used in the output sink.
func (o Outcome) String() string { return string(o) }

// Valid reports whether o is one of the known outcome values.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeTimeout, OutcomeRenderError, OutcomeSessionError, OutcomeNetworkError:
		return true
	}
	return false
}

// ParseOutcome converts a stored string back into an Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	o := Outcome(s)
	return o, o.Valid()
}

// OutcomeForError maps a render error to its outcome classification.
// Unclassified errors count as render errors, matching the adapter's
// default failure mode.
func OutcomeForError(err error) Outcome {
	var pe *PipelineError
	if !errors.As(err, &pe) {
		return OutcomeRenderError
	}
	switch pe.Code {
	case ErrCodeTimeout:
		return OutcomeTimeout
	case ErrCodeNetwork:
		return OutcomeNetworkError
	case ErrCodeSession:
		return OutcomeSessionError
	default:
		return OutcomeRenderError
	}
}
