package sink

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/webtrawl/trawl/models"
)

var testSchema = []string{"forms", "scripts"}

func testRecord(index int64, outcome models.Outcome) models.ResultRecord {
	return models.ResultRecord{
		Index:          index,
		URL:            "https://example.com/page",
		Label:          1,
		Outcome:        outcome,
		Signals:        models.SignalBundle{"forms": 2, "scripts": 7},
		ElapsedSeconds: 0.25,
	}
}

func TestOpenWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")

	s, err := Open(path, testSchema)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := s.Count(); got != 0 {
		t.Errorf("Count() on fresh file = %d, want 0", got)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopening must not duplicate the header.
	s, err = Open(path, testSchema)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	s.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := "index,url,label,outcome,elapsed_seconds,forms,scripts\n"
	if string(data) != want {
		t.Errorf("file content = %q, want %q", data, want)
	}
}

func TestAppendAndReopenPreservesCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")

	s, err := Open(path, testSchema)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for i := int64(0); i < 3; i++ {
		if err := s.Append(testRecord(i, models.OutcomeSuccess)); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}
	if got := s.Count(); got != 3 {
		t.Errorf("Count() after appends = %d, want 3", got)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(path, testSchema)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if got := s.Count(); got != 3 {
		t.Errorf("Count() after reopen = %d, want 3", got)
	}
	if err := s.Append(testRecord(3, models.OutcomeTimeout)); err != nil {
		t.Fatalf("Append after reopen error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("file has %d lines, want 5 (header + 4 rows): %q", len(lines), data)
	}
	if !strings.HasPrefix(lines[4], "3,") {
		t.Errorf("last row = %q, want index 3 first", lines[4])
	}
	if !strings.Contains(lines[4], ",timeout,") {
		t.Errorf("last row = %q, want timeout outcome", lines[4])
	}
}

func TestReopenTruncatesTornFinalLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")

	s, err := Open(path, testSchema)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for i := int64(0); i < 2; i++ {
		if err := s.Append(testRecord(i, models.OutcomeSuccess)); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Simulate a crash mid-append: a partial row with no trailing newline.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	if _, err := f.WriteString("2,https://example.com/pa"); err != nil {
		t.Fatalf("WriteString() error = %v", err)
	}
	f.Close()

	s, err = Open(path, testSchema)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if got := s.Count(); got != 2 {
		t.Errorf("Count() after torn reopen = %d, want 2", got)
	}
	if err := s.Append(testRecord(2, models.OutcomeRenderError)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(data), "example.com/pa\n") || strings.Contains(string(data), "example.com/pa2") {
		t.Errorf("torn fragment survived reopen: %q", data)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("file has %d lines, want 4 (header + 3 rows): %q", len(lines), data)
	}
	if !strings.HasPrefix(lines[3], "2,") || !strings.Contains(lines[3], ",render_error,") {
		t.Errorf("replacement row = %q, want index 2 with render_error", lines[3])
	}
}

func TestOpenRejectsMismatchedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")

	s, err := Open(path, testSchema)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.Close()

	_, err = Open(path, []string{"forms", "scripts", "iframes"})
	if err == nil {
		t.Fatal("Open() with different schema succeeded, want error")
	}
	var perr *models.PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T, want *models.PipelineError", err)
	}
	if perr.Code != models.ErrCodeSinkOpen {
		t.Errorf("error code = %q, want %q", perr.Code, models.ErrCodeSinkOpen)
	}
}

func TestRowCount(t *testing.T) {
	dir := t.TempDir()

	if got, err := RowCount(filepath.Join(dir, "missing.csv")); err != nil || got != 0 {
		t.Errorf("RowCount(missing) = (%d, %v), want (0, nil)", got, err)
	}

	path := filepath.Join(dir, "results.csv")
	s, err := Open(path, testSchema)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for i := int64(0); i < 4; i++ {
		if err := s.Append(testRecord(i, models.OutcomeSuccess)); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}
	s.Close()

	if got, err := RowCount(path); err != nil || got != 4 {
		t.Errorf("RowCount() = (%d, %v), want (4, nil)", got, err)
	}
}
