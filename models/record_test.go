package models

import (
	"reflect"
	"testing"
)

func TestHeader(t *testing.T) {
	got := Header([]string{"forms", "iframes"})
	want := []string{"index", "url", "label", "outcome", "elapsed_seconds", "forms", "iframes"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Header() = %v, want %v", got, want)
	}
}

func TestRowFollowsSchemaOrder(t *testing.T) {
	rec := ResultRecord{
		Index:          42,
		URL:            "https://example.com",
		Label:          1,
		Outcome:        OutcomeSuccess,
		Signals:        SignalBundle{"forms": 2, "iframes": 0, "tls_valid": 1},
		ElapsedSeconds: 1.5,
	}

	got := rec.Row([]string{"tls_valid", "forms", "iframes"})
	want := []string{"42", "https://example.com", "1", "success", "1.500", "1", "2", "0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Row() = %v, want %v", got, want)
	}
}

func TestRowMissingSignalsAreZero(t *testing.T) {
	rec := ResultRecord{
		Index:          0,
		URL:            "https://down.example",
		Outcome:        OutcomeTimeout,
		ElapsedSeconds: 15,
	}

	got := rec.Row([]string{"forms", "scripts"})
	want := []string{"0", "https://down.example", "0", "timeout", "15.000", "0", "0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Row() = %v, want %v", got, want)
	}
}

func TestOutcomeParseRoundTrip(t *testing.T) {
	outcomes := []Outcome{
		OutcomeSuccess, OutcomeTimeout, OutcomeRenderError,
		OutcomeSessionError, OutcomeNetworkError,
	}
	for _, o := range outcomes {
		parsed, ok := ParseOutcome(o.String())
		if !ok || parsed != o {
			t.Errorf("ParseOutcome(%q) = %v, %v", o.String(), parsed, ok)
		}
	}

	if _, ok := ParseOutcome("exploded"); ok {
		t.Error("ParseOutcome accepted an unknown value")
	}
}

func TestOutcomeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"timeout code", NewPipelineError(ErrCodeTimeout, "deadline", nil), OutcomeTimeout},
		{"network code", NewPipelineError(ErrCodeNetwork, "dns", nil), OutcomeNetworkError},
		{"session code", NewPipelineError(ErrCodeSession, "no session", nil), OutcomeSessionError},
		{"render code", NewPipelineError(ErrCodeRender, "bad page", nil), OutcomeRenderError},
		{"plain error", errPlain{}, OutcomeRenderError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutcomeForError(tt.err); got != tt.want {
				t.Errorf("OutcomeForError() = %v, want %v", got, tt.want)
			}
		})
	}
}

type errPlain struct{}

func (errPlain) Error() string { return "plain" }

func TestCountersObserve(t *testing.T) {
	var c RunCounters
	c.Observe(OutcomeSuccess)
	c.Observe(OutcomeSuccess)
	c.Observe(OutcomeTimeout)
	c.Observe(OutcomeNetworkError)

	if c.TotalProcessed != 4 {
		t.Errorf("TotalProcessed = %d, want 4", c.TotalProcessed)
	}
	if c.Succeeded != 2 || c.Failed != 2 {
		t.Errorf("Succeeded/Failed = %d/%d, want 2/2", c.Succeeded, c.Failed)
	}
	if c.Timeouts != 1 || c.NetworkErrors != 1 {
		t.Errorf("Timeouts/NetworkErrors = %d/%d, want 1/1", c.Timeouts, c.NetworkErrors)
	}
	if rate := c.SuccessRate(); rate != 0.5 {
		t.Errorf("SuccessRate() = %v, want 0.5", rate)
	}
}
