// Package dataset loads the input URL list. The list is read fully at
// startup and never modified during a run; an entry's index is its position
// in the loaded sequence and is the unit of progress tracking, so loading
// must be deterministic for resume to line up.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/webtrawl/trawl/models"
)

// Sized for the list scale this tool targets; at one million entries the
// false-positive rate stays around 0.1%.
const bloomCapacity = 1_000_000

// Entry is one input list row.
type Entry struct {
	Index int64
	URL   string
	Label int
}

// List is the loaded input list. ApproxDuplicates is a bloom-filter estimate
// of repeated URLs; duplicates are still processed (index is the progress
// unit), the tally only exists to flag a suspect input file.
type List struct {
	Entries          []Entry
	ApproxDuplicates int64
}

// Len returns the number of entries.
func (l *List) Len() int { return len(l.Entries) }

// Load reads a CSV input list. The file must have a header row naming a
// `url` column; a `label` column is optional (missing or empty cells default
// to 0). Other columns are ignored. URLs without an http or https scheme get
// `https://` prefixed.
//
// Any unreadable or malformed row is fatal: a list that silently loses rows
// would renumber every entry after it and corrupt resume offsets.
func Load(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeInputLoad, "failed to open input list", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, models.NewPipelineError(models.ErrCodeInputLoad, "input list is empty", nil)
	}
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeInputLoad, "failed to read input header", err)
	}

	urlCol, labelCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "url":
			urlCol = i
		case "label":
			labelCol = i
		}
	}
	if urlCol < 0 {
		return nil, models.NewPipelineError(
			models.ErrCodeInputLoad,
			fmt.Sprintf("input header %v has no url column", header),
			nil,
		)
	}

	list := &List{}
	seen := bloom.NewWithEstimates(bloomCapacity, 0.001)

	for row := 1; ; row++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, models.NewPipelineError(
				models.ErrCodeInputLoad,
				fmt.Sprintf("failed to parse input row %d", row),
				err,
			)
		}

		rawURL := strings.TrimSpace(rec[urlCol])
		if rawURL == "" {
			return nil, models.NewPipelineError(
				models.ErrCodeInputLoad,
				fmt.Sprintf("input row %d has an empty url", row),
				nil,
			)
		}

		label := 0
		if labelCol >= 0 && labelCol < len(rec) {
			if cell := strings.TrimSpace(rec[labelCol]); cell != "" {
				label, err = strconv.Atoi(cell)
				if err != nil {
					return nil, models.NewPipelineError(
						models.ErrCodeInputLoad,
						fmt.Sprintf("input row %d has a non-integer label %q", row, cell),
						err,
					)
				}
			}
		}

		u := NormalizeURL(rawURL)
		if seen.TestAndAddString(u) {
			list.ApproxDuplicates++
		}
		list.Entries = append(list.Entries, Entry{
			Index: int64(len(list.Entries)),
			URL:   u,
			Label: label,
		})
	}

	if len(list.Entries) == 0 {
		return nil, models.NewPipelineError(models.ErrCodeInputLoad, "input list has no entries", nil)
	}

	if list.ApproxDuplicates > 0 {
		slog.Warn("input list contains repeated urls",
			"path", path,
			"entries", len(list.Entries),
			"approx_duplicates", list.ApproxDuplicates,
		)
	}
	return list, nil
}

// NormalizeURL prefixes https:// when the value carries no http(s) scheme.
// Ranked-domain lists ship bare hostnames.
func NormalizeURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}
