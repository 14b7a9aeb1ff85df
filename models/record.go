package models

import "strconv"

// SignalBundle is the opaque set of extracted page signals for one URL.
// The engine stores it faithfully but never interprets individual keys;
// the key set is fixed by the extraction collaborator for the life of a run.
type SignalBundle map[string]float64

// Clone returns an independent copy of the bundle.
func (b SignalBundle) Clone() SignalBundle {
	if b == nil {
		return nil
	}
	c := make(SignalBundle, len(b))
	for k, v := range b {
		c[k] = v
	}
	return c
}

// ResultRecord is the immutable outcome of one processed input index.
// Records are created once, written to the output sink, and never mutated.
type ResultRecord struct {
	// Index is the position in the input list. It is the unit of progress
	// tracking because duplicate URLs may exist in the list.
	Index int64

	// URL is the target that was rendered.
	URL string

	// Label is the ground-truth classification from the input list
	// (0 = benign, 1 = phishing); 0 when the input carries no label column.
	Label int

	// Outcome classifies the render attempt.
	Outcome Outcome

	// Signals holds the extracted page signals. Empty on failure outcomes.
	Signals SignalBundle

	// ElapsedSeconds is the wall-clock duration of this URL's render attempt.
	ElapsedSeconds float64
}

// FixedColumns are the sink columns that precede the signal schema.
var FixedColumns = []string{"index", "url", "label", "outcome", "elapsed_seconds"}

// Header returns the full sink header for the given signal schema.
func Header(schema []string) []string {
	h := make([]string, 0, len(FixedColumns)+len(schema))
	h = append(h, FixedColumns...)
	h = append(h, schema...)
	return h
}

// Row flattens the record into one sink row ordered by the given signal
// schema. Signals missing from the bundle (every failure outcome) are
// written as zero so the column count stays constant.
func (r ResultRecord) Row(schema []string) []string {
	row := make([]string, 0, len(FixedColumns)+len(schema))
	row = append(row,
		strconv.FormatInt(r.Index, 10),
		r.URL,
		strconv.Itoa(r.Label),
		r.Outcome.String(),
		strconv.FormatFloat(r.ElapsedSeconds, 'f', 3, 64),
	)
	for _, key := range schema {
		row = append(row, formatSignal(r.Signals[key]))
	}
	return row
}

// formatSignal renders counts as plain integers and everything else in the
// shortest float form, so the dataset stays friendly to downstream parsers.
func formatSignal(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
