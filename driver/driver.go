// Package driver walks the input list through the render client, one URL at
// a time, appending a result row per entry and checkpointing progress so the
// run can be killed and resumed at any point without losing or duplicating
// indices.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/webtrawl/trawl/config"
	"github.com/webtrawl/trawl/dataset"
	"github.com/webtrawl/trawl/models"
	"github.com/webtrawl/trawl/progress"
	"github.com/webtrawl/trawl/render"
)

// ErrStopped reports a run that ended gracefully before exhausting the input
// list (interrupt during processing or backoff). The checkpoint is final;
// rerunning resumes where this run left off.
var ErrStopped = errors.New("run stopped before the input list was exhausted")

// Renderer is the per-URL collaborator. Process renders one URL into a
// signal bundle; RefreshSession replaces a broken browser session.
type Renderer interface {
	Process(ctx context.Context, rawURL string) (*render.Result, error)
	RefreshSession(ctx context.Context) error
}

// Sink receives committed result rows. Flush must make all appended rows
// durable; the driver calls it before every checkpoint save.
type Sink interface {
	Append(rec models.ResultRecord) error
	Flush() error
	Count() int64
}

// Checkpoints persists resume state. Load returns (nil, nil) when no
// checkpoint exists and an error when one exists but cannot be trusted.
type Checkpoints interface {
	Load() (*models.CheckpointState, error)
	Save(st models.CheckpointState) error
}

// Driver owns the extraction loop. Exactly one render is in flight at any
// time; Snapshot is the only method safe to call from other goroutines.
type Driver struct {
	cfg      config.DriverConfig
	list     *dataset.List
	renderer Renderer
	sink     Sink
	store    Checkpoints
	reporter *progress.Reporter
	policy   RetryPolicy
	limiter  *rate.Limiter

	startedAt   time.Time
	baseElapsed float64
	counters    models.RunCounters
	lastIndex   int64 // highest committed index, -1 before the first commit
	processed   int64 // commits by this run only

	mu   sync.Mutex
	snap models.ProgressSnapshot
}

// New wires a Driver. Zero cadences fall back to defaults; RefreshEvery 0
// disables proactive refresh and RPS 0 disables the politeness limiter.
func New(cfg config.DriverConfig, list *dataset.List, r Renderer, s Sink, cp Checkpoints, rep *progress.Reporter) *Driver {
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 100
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 10
	}

	policy := RetryPolicy{
		MaxAttempts: cfg.SessionRetries,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultRetryPolicy.MaxDelay
	}

	d := &Driver{
		cfg:       cfg,
		list:      list,
		renderer:  r,
		sink:      s,
		store:     cp,
		reporter:  rep,
		policy:    policy,
		lastIndex: -1,
	}
	if cfg.RPS > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	return d
}

// Run executes the extraction loop until the list is exhausted, the context
// is canceled, or the session cannot be recovered. Whatever the exit path,
// a final checkpoint covers everything committed.
//
// Returns nil when the list was exhausted, ErrStopped on a graceful early
// stop, and a typed error for fatal conditions.
func (d *Driver) Run(ctx context.Context) error {
	d.startedAt = time.Now()
	d.setState(models.RunStateInitializing)

	offset := d.resume()
	total := int64(d.list.Len())
	d.publish(offset)

	if offset > 0 {
		d.setState(models.RunStateResuming)
		slog.Info("resuming run",
			"offset", offset,
			"total", total,
			"inherited_processed", d.counters.TotalProcessed,
		)
	}
	d.reporter.Banner(d.Snapshot())

	if offset >= total {
		slog.Info("input list already exhausted", "total", total)
		d.setState(models.RunStateCompleted)
		d.reporter.Summary(d.Snapshot())
		return nil
	}

	d.setState(models.RunStateProcessing)

	stopped := false
	var runErr error

loop:
	for i := offset; i < total; i++ {
		// The interrupt is honored between renders, never mid-render.
		select {
		case <-ctx.Done():
			slog.Info("stop requested, finishing up", "next_index", i)
			stopped = true
			break loop
		default:
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				stopped = true
				break loop
			}
		}

		rec, err := d.processEntry(ctx, d.list.Entries[i])
		if err != nil {
			if errors.Is(err, ErrStopped) {
				stopped = true
			} else {
				runErr = err
			}
			break loop
		}

		if err := d.commit(*rec); err != nil {
			runErr = err
			break loop
		}

		if d.cfg.RefreshEvery > 0 && d.processed%int64(d.cfg.RefreshEvery) == 0 {
			slog.Info("proactive session refresh", "processed_this_run", d.processed)
			if err := d.renderer.RefreshSession(context.WithoutCancel(ctx)); err != nil {
				// The next render surfaces any lasting damage as a session
				// error and goes through recovery.
				slog.Warn("proactive session refresh failed", "error", err)
			}
		}
		if d.processed%int64(d.cfg.CheckpointEvery) == 0 {
			if err := d.checkpointNow(); err != nil {
				runErr = err
				break loop
			}
		}
		if d.processed%int64(d.cfg.ProgressEvery) == 0 {
			d.reporter.Progress(d.Snapshot())
		}
	}

	d.setState(models.RunStateShuttingDown)
	if d.processed > 0 {
		if err := d.checkpointNow(); err != nil {
			slog.Error("final flush failed, rows since the last flush may not be durable", "error", err)
			if runErr == nil {
				runErr = err
			}
		}
	}

	switch {
	case runErr != nil:
		d.setState(models.RunStateStopped)
		d.reporter.Summary(d.Snapshot())
		return runErr
	case stopped:
		d.setState(models.RunStateStopped)
		d.reporter.Summary(d.Snapshot())
		slog.Info("run stopped", "next_index", d.lastIndex+1, "total", total)
		return ErrStopped
	default:
		d.setState(models.RunStateCompleted)
		d.reporter.Summary(d.Snapshot())
		slog.Info("run completed",
			"processed", d.counters.TotalProcessed,
			"succeeded", d.counters.Succeeded,
			"failed", d.counters.Failed,
		)
		return nil
	}
}

// Snapshot returns a copy of the live run state for the monitor API and the
// progress reporter.
func (d *Driver) Snapshot() models.ProgressSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

// resume determines the starting offset by reconciling the checkpoint with
// the rows durably present in the sink, inheriting counters when the
// checkpoint is usable. Never trusts state it cannot verify: an unreadable
// checkpoint degrades to the row count with zeroed counters.
func (d *Driver) resume() int64 {
	rows := d.sink.Count()

	st, err := d.store.Load()
	if err != nil {
		slog.Warn("checkpoint unreadable, falling back to output row count",
			"rows", rows, "error", err)
		st = nil
	}

	offset := rows
	if st != nil {
		offset = st.NextIndex()
		switch {
		case rows > offset:
			// Crash after appending rows but before the checkpoint. The rows
			// are durable, so skip past them instead of duplicating.
			slog.Info("output file is ahead of the checkpoint, skipping written rows",
				"checkpoint_next", st.NextIndex(), "rows", rows)
			offset = rows
		case rows < offset:
			slog.Warn("output file is behind the checkpoint; rows below the offset are missing",
				"checkpoint_next", st.NextIndex(), "rows", rows)
		}
		d.counters = st.Counters
		d.baseElapsed = st.ElapsedRunSeconds
	} else if rows > 0 {
		slog.Warn("no usable checkpoint; resuming from output rows with zeroed counters",
			"offset", rows)
	}

	d.lastIndex = offset - 1
	return offset
}

// processEntry renders one entry. Per-URL failures (timeout, render error,
// network error) are terminal for the entry and never retried. Session
// failures trigger bounded recovery: back off, refresh the session, render
// the same entry again.
func (d *Driver) processEntry(ctx context.Context, entry dataset.Entry) (*models.ResultRecord, error) {
	// The in-flight render always completes; cancellation applies between
	// URLs and during backoff only.
	renderCtx := context.WithoutCancel(ctx)

	res, err := d.renderer.Process(renderCtx, entry.URL)
	if err == nil {
		return buildRecord(entry, res, models.OutcomeSuccess), nil
	}
	if outcome := models.OutcomeForError(err); outcome != models.OutcomeSessionError {
		slog.Debug("url failed",
			"index", entry.Index, "url", entry.URL, "outcome", outcome, "error", err)
		return buildRecord(entry, res, outcome), nil
	}

	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		delay := d.policy.Delay(attempt)
		slog.Warn("render session lost, recovering",
			"index", entry.Index,
			"attempt", attempt,
			"max_attempts", d.policy.MaxAttempts,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ErrStopped
		case <-time.After(delay):
		}

		if refreshErr := d.renderer.RefreshSession(renderCtx); refreshErr != nil {
			err = refreshErr
			continue
		}

		res, err = d.renderer.Process(renderCtx, entry.URL)
		if err == nil {
			return buildRecord(entry, res, models.OutcomeSuccess), nil
		}
		if outcome := models.OutcomeForError(err); outcome != models.OutcomeSessionError {
			return buildRecord(entry, res, outcome), nil
		}
	}

	return nil, models.NewPipelineError(
		models.ErrCodeSessionExhausted,
		fmt.Sprintf("session never recovered after %d attempts at index %d", d.policy.MaxAttempts, entry.Index),
		err,
	)
}

// commit makes a record part of the run: appended to the sink, tallied, and
// visible to resume arithmetic. Exactly one commit happens per index.
func (d *Driver) commit(rec models.ResultRecord) error {
	if err := d.sink.Append(rec); err != nil {
		return err
	}
	d.counters.Observe(rec.Outcome)
	d.lastIndex = rec.Index
	d.processed++
	d.publish(rec.Index + 1)
	return nil
}

// checkpointNow makes committed rows durable and then records them in the
// checkpoint. The order is load-bearing: a checkpoint must never claim more
// progress than the sink physically holds. A flush failure is returned, since
// rows the sink cannot make durable would turn the next checkpoint into a
// lie. A failed save is only logged: the rows stay durable, and the cost is
// redone work on a later resume.
func (d *Driver) checkpointNow() error {
	if err := d.sink.Flush(); err != nil {
		return err
	}
	st := models.CheckpointState{
		LastProcessedIndex: d.lastIndex,
		Counters:           d.counters,
		SavedAt:            time.Now().UTC(),
		ElapsedRunSeconds:  d.baseElapsed + time.Since(d.startedAt).Seconds(),
	}
	if err := d.store.Save(st); err != nil {
		slog.Error("checkpoint save failed, continuing",
			"last_index", st.LastProcessedIndex, "error", err)
		return nil
	}
	slog.Debug("checkpoint saved", "last_index", st.LastProcessedIndex, "rows", d.sink.Count())
	return nil
}

// publish refreshes the shared snapshot after each commit.
func (d *Driver) publish(nextIndex int64) {
	now := time.Now()
	elapsed := now.Sub(d.startedAt).Seconds()

	var perSec float64
	if elapsed > 0 && d.processed > 0 {
		perSec = float64(d.processed) / elapsed
	}
	var eta float64
	if perSec > 0 {
		eta = float64(int64(d.list.Len())-nextIndex) / perSec
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.snap.StartedAt.IsZero() {
		// First publish of the run fixes the resume offset.
		d.snap.StartedAt = d.startedAt
		d.snap.ResumeOffset = nextIndex
	}
	d.snap.NextIndex = nextIndex
	d.snap.TotalEntries = int64(d.list.Len())
	d.snap.Counters = d.counters
	d.snap.ElapsedRunSeconds = d.baseElapsed + elapsed
	d.snap.RatePerSecond = perSec
	d.snap.ETASeconds = eta
	d.snap.UpdatedAt = now
}

func (d *Driver) setState(state string) {
	d.mu.Lock()
	d.snap.State = state
	d.snap.UpdatedAt = time.Now()
	d.mu.Unlock()
}

func buildRecord(entry dataset.Entry, res *render.Result, outcome models.Outcome) *models.ResultRecord {
	if res == nil {
		res = &render.Result{Signals: models.SignalBundle{}}
	}
	return &models.ResultRecord{
		Index:          entry.Index,
		URL:            entry.URL,
		Label:          entry.Label,
		Outcome:        outcome,
		Signals:        res.Signals,
		ElapsedSeconds: res.Elapsed.Seconds(),
	}
}
