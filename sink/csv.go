// Package sink stores result records as an append-only CSV dataset.
// Row order equals input index order; rows are never removed or edited
// within a run. The header is written once, on first creation, and the
// column set is fixed for the life of the dataset file.
package sink

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/webtrawl/trawl/models"
)

// CSVSink appends result records to a single CSV file.
// It is owned by one extraction driver at a time and is not safe for
// concurrent use.
type CSVSink struct {
	file   *os.File
	w      *csv.Writer
	schema []string
	rows   int64
}

// Open opens the dataset for appending, creating it (with a header) when it
// does not exist. When resuming into an existing file it verifies the header
// against the expected schema, counts the durable rows, and drops a torn
// final line left by a crash mid-append.
//
// None of the sink's fields may contain newlines, so terminated-line
// counting is an exact row count for this schema.
func Open(path string, signalSchema []string) (*CSVSink, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeSinkOpen, "failed to open output file", err)
	}

	s := &CSVSink{file: f, schema: append([]string(nil), signalSchema...)}
	header := models.Header(s.schema)

	end, rows, existingHeader, scanErr := scan(f)
	if scanErr != nil {
		f.Close()
		return nil, models.NewPipelineError(models.ErrCodeSinkOpen, "failed to scan existing output file", scanErr)
	}

	if existingHeader == nil {
		// Fresh (or headerless torn) file: start from a clean header.
		if err := f.Truncate(0); err != nil {
			f.Close()
			return nil, models.NewPipelineError(models.ErrCodeSinkOpen, "failed to reset output file", err)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, models.NewPipelineError(models.ErrCodeSinkOpen, "failed to seek output file", err)
		}
		s.w = csv.NewWriter(f)
		if err := s.w.Write(header); err != nil {
			f.Close()
			return nil, models.NewPipelineError(models.ErrCodeSinkOpen, "failed to write header", err)
		}
		if err := s.Flush(); err != nil {
			f.Close()
			return nil, err
		}
		return s, nil
	}

	if !equalHeader(existingHeader, header) {
		f.Close()
		return nil, models.NewPipelineError(
			models.ErrCodeSinkOpen,
			fmt.Sprintf("output file header %v does not match expected schema %v", existingHeader, header),
			nil,
		)
	}

	// Drop a torn trailing line so every remaining row is complete. Anything
	// past the last flush is by definition newer than the last checkpoint,
	// so truncating it never loses committed progress.
	if info, err := f.Stat(); err == nil && info.Size() > end {
		slog.Warn("output file has a torn final line, truncating",
			"path", path,
			"size", info.Size(),
			"keep", end,
		)
		if err := f.Truncate(end); err != nil {
			f.Close()
			return nil, models.NewPipelineError(models.ErrCodeSinkOpen, "failed to truncate torn output row", err)
		}
	}
	if _, err := f.Seek(end, io.SeekStart); err != nil {
		f.Close()
		return nil, models.NewPipelineError(models.ErrCodeSinkOpen, "failed to seek output file", err)
	}

	s.w = csv.NewWriter(f)
	s.rows = rows
	return s, nil
}

// Append writes one record as a single row. The row only becomes durable at
// the next Flush; the driver flushes before every checkpoint save.
func (s *CSVSink) Append(rec models.ResultRecord) error {
	if err := s.w.Write(rec.Row(s.schema)); err != nil {
		return models.NewPipelineError(models.ErrCodeSinkWrite, "failed to append result row", err)
	}
	s.rows++
	return nil
}

// Flush pushes buffered rows through to the storage medium (csv flush plus
// fsync), so a subsequent checkpoint save never refers to rows that are not
// physically durable.
func (s *CSVSink) Flush() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return models.NewPipelineError(models.ErrCodeSinkWrite, "failed to flush output rows", err)
	}
	if err := s.file.Sync(); err != nil {
		return models.NewPipelineError(models.ErrCodeSinkWrite, "failed to sync output file", err)
	}
	return nil
}

// Count returns the number of result rows (excluding the header) durably
// present at open time plus everything appended since.
func (s *CSVSink) Count() int64 { return s.rows }

// Schema returns the signal column set this sink was opened with.
func (s *CSVSink) Schema() []string { return append([]string(nil), s.schema...) }

// Close flushes and closes the underlying file.
func (s *CSVSink) Close() error {
	if err := s.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// RowCount reports the number of complete result rows in a dataset file
// without opening it for writing. Used by the status command to cross-check
// the checkpoint. Returns 0 for a missing file.
func RowCount(path string) (int64, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	_, rows, header, err := scan(f)
	if err != nil {
		return 0, err
	}
	if header == nil {
		return 0, nil
	}
	return rows, nil
}

// scan walks the file once, returning the byte offset just past the last
// terminated line, the number of complete data rows, and the parsed header
// line (nil when no complete header exists).
func scan(f *os.File) (end int64, rows int64, header []string, err error) {
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return 0, 0, nil, err
	}

	r := bufio.NewReaderSize(f, 64*1024)
	var offset int64
	first := true

	for {
		line, readErr := r.ReadString('\n')
		if readErr == io.EOF {
			// Unterminated tail (torn write): excluded from end/rows.
			return end, rows, header, nil
		}
		if readErr != nil {
			return 0, 0, nil, readErr
		}

		offset += int64(len(line))
		end = offset

		if first {
			first = false
			header, err = parseHeaderLine(line)
			if err != nil {
				return 0, 0, nil, err
			}
			continue
		}
		rows++
	}
}

func parseHeaderLine(line string) ([]string, error) {
	rec, err := csv.NewReader(strings.NewReader(line)).Read()
	if err != nil {
		return nil, fmt.Errorf("unreadable header line: %w", err)
	}
	return rec, nil
}

func equalHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
