package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/webtrawl/trawl/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			"deadline exceeded",
			fmt.Errorf("navigate: %w", context.DeadlineExceeded),
			models.ErrCodeTimeout,
		},
		{
			"canceled",
			context.Canceled,
			models.ErrCodeTimeout,
		},
		{
			"dns failure reported by browser",
			errors.New(`navigation failed: page load error net::ERR_NAME_NOT_RESOLVED`),
			models.ErrCodeNetwork,
		},
		{
			"connection refused reported by browser",
			errors.New(`page load error net::ERR_CONNECTION_REFUSED`),
			models.ErrCodeNetwork,
		},
		{
			"closed devtools socket",
			fmt.Errorf("send request: %w", net.ErrClosed),
			models.ErrCodeSession,
		},
		{
			"transport eof",
			fmt.Errorf("read frame: %w", io.EOF),
			models.ErrCodeSession,
		},
		{
			"op error dialing browser",
			&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			models.ErrCodeSession,
		},
		{
			"target torn down",
			errors.New("rod: target closed"),
			models.ErrCodeSession,
		},
		{
			"anything else",
			errors.New("eval exception: ReferenceError"),
			models.ErrCodeRender,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := classify(tt.err, "render failed")
			if perr.Code != tt.wantCode {
				t.Errorf("classify() code = %q, want %q", perr.Code, tt.wantCode)
			}
			if !errors.Is(perr, tt.err) && perr.Err == nil {
				t.Errorf("classify() lost the cause: %v", perr)
			}
		})
	}
}

func TestClassifyPassesThroughTypedErrors(t *testing.T) {
	orig := models.NewPipelineError(models.ErrCodeSession, "session gone", errors.New("ws dropped"))
	got := classify(fmt.Errorf("wrapped: %w", orig), "ignored message")
	if got.Code != models.ErrCodeSession || got.Message != "session gone" {
		t.Errorf("classify() = %v, want the wrapped typed error unchanged", got)
	}
}

func TestClassifiedOutcomes(t *testing.T) {
	tests := []struct {
		err  error
		want models.Outcome
	}{
		{classify(context.DeadlineExceeded, "x"), models.OutcomeTimeout},
		{classify(errors.New("net::ERR_ADDRESS_UNREACHABLE"), "x"), models.OutcomeNetworkError},
		{classify(net.ErrClosed, "x"), models.OutcomeSessionError},
		{classify(errors.New("other"), "x"), models.OutcomeRenderError},
	}
	for _, tt := range tests {
		if got := models.OutcomeForError(tt.err); got != tt.want {
			t.Errorf("OutcomeForError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
