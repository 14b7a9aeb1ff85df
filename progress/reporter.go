// Package progress renders human-readable run feedback: a startup banner,
// periodic progress lines, and the final summary. Output goes to an injected
// writer; structured logging stays with slog, this is operator-facing text.
package progress

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/webtrawl/trawl/models"
)

const rule = "=================================================="

// Reporter prints run feedback. A nil Reporter is silent, so callers never
// need to guard their calls.
type Reporter struct {
	w io.Writer
}

// NewReporter returns a Reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Banner prints the run header: list size and, when resuming, the offset and
// the tallies inherited from the previous runs.
func (r *Reporter) Banner(snap models.ProgressSnapshot) {
	if r == nil {
		return
	}
	fmt.Fprintln(r.w, rule)
	fmt.Fprintf(r.w, "trawl: %d urls\n", snap.TotalEntries)
	if snap.ResumeOffset > 0 {
		fmt.Fprintf(r.w, "resuming at index %d (%.2f%% already done)\n",
			snap.ResumeOffset, snap.PercentDone())
		fmt.Fprintf(r.w, "inherited: %d processed, %d ok, %d failed\n",
			snap.Counters.TotalProcessed, snap.Counters.Succeeded, snap.Counters.Failed)
	} else {
		fmt.Fprintln(r.w, "starting from the top of the list")
	}
	fmt.Fprintln(r.w, rule)
}

// Progress prints one periodic progress line.
func (r *Reporter) Progress(snap models.ProgressSnapshot) {
	if r == nil {
		return
	}
	fmt.Fprintf(r.w, "processed %d/%d (%.2f%%) | ok %d | failed %d | %.2f/s | eta %s\n",
		snap.NextIndex,
		snap.TotalEntries,
		snap.PercentDone(),
		snap.Counters.Succeeded,
		snap.Counters.Failed,
		snap.RatePerSecond,
		formatETA(snap.ETASeconds),
	)
}

// Summary prints the final block. The completed/stopped distinction comes
// from the snapshot state, not the exit path, so resumed and fresh runs
// render identically.
func (r *Reporter) Summary(snap models.ProgressSnapshot) {
	if r == nil {
		return
	}
	verdict := "run completed: input list exhausted"
	if snap.State != models.RunStateCompleted {
		verdict = "run stopped early: list NOT exhausted, rerun to resume"
	}

	fmt.Fprintln(r.w, rule)
	fmt.Fprintln(r.w, verdict)

	tw := tabwriter.NewWriter(r.w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  processed:\t%d/%d (%.2f%%)\n", snap.NextIndex, snap.TotalEntries, snap.PercentDone())
	fmt.Fprintf(tw, "  success:\t%d (%.2f%%)\n", snap.Counters.Succeeded, snap.Counters.SuccessRate()*100)
	fmt.Fprintf(tw, "  timeouts:\t%d\n", snap.Counters.Timeouts)
	fmt.Fprintf(tw, "  render errors:\t%d\n", snap.Counters.RenderErrors)
	fmt.Fprintf(tw, "  session errors:\t%d\n", snap.Counters.SessionErrors)
	fmt.Fprintf(tw, "  network errors:\t%d\n", snap.Counters.NetworkErrors)
	fmt.Fprintf(tw, "  this run:\t%s\n", snap.UpdatedAt.Sub(snap.StartedAt).Round(time.Second))
	fmt.Fprintf(tw, "  all runs:\t%s\n", time.Duration(snap.ElapsedRunSeconds*float64(time.Second)).Round(time.Second))
	if snap.RatePerSecond > 0 {
		fmt.Fprintf(tw, "  rate:\t%.2f/s\n", snap.RatePerSecond)
	}
	tw.Flush()
	fmt.Fprintln(r.w, rule)
}

// formatETA renders an ETA compactly; sub-second and unknown values both
// show as a dash.
func formatETA(seconds float64) string {
	if seconds < 1 {
		return "-"
	}
	d := time.Duration(seconds * float64(time.Second))
	if d > time.Hour {
		return d.Round(time.Minute).String()
	}
	return d.Round(time.Second).String()
}
