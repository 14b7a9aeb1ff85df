package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/webtrawl/trawl/api"
	"github.com/webtrawl/trawl/checkpoint"
	"github.com/webtrawl/trawl/config"
	"github.com/webtrawl/trawl/dataset"
	"github.com/webtrawl/trawl/driver"
	"github.com/webtrawl/trawl/models"
	"github.com/webtrawl/trawl/notify"
	"github.com/webtrawl/trawl/progress"
	"github.com/webtrawl/trawl/render"
	"github.com/webtrawl/trawl/signals"
	"github.com/webtrawl/trawl/sink"
)

// Exit codes. A code 3 exit leaves the checkpoint and sink in a state a
// rerun with the same paths will pick up.
const (
	exitOK      = 0
	exitStartup = 1
	exitStopped = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		inputPath  = flag.String("input", "", "input list CSV (overrides TRAWL_INPUT)")
		outputPath = flag.String("output", "", "result sink CSV (overrides TRAWL_OUTPUT)")
		cpPath     = flag.String("checkpoint", "", "checkpoint file (overrides TRAWL_CHECKPOINT)")
		limit      = flag.Int("limit", 0, "process at most N entries, 0 means all")
		status     = flag.Bool("status", false, "print checkpoint status and exit")
	)
	flag.Parse()

	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	if *inputPath != "" {
		cfg.Paths.Input = *inputPath
	}
	if *outputPath != "" {
		cfg.Paths.Output = *outputPath
	}
	if *cpPath != "" {
		cfg.Paths.Checkpoint = *cpPath
	}
	if *limit > 0 {
		cfg.Driver.Limit = *limit
	}

	// ── 2. Initialise structured logging ────────────────────────────
	// Logs go to stderr; stdout is reserved for the progress report.
	initLogger(cfg.Log)

	if *status {
		return printStatus(cfg.Paths)
	}

	slog.Info("trawl starting",
		"input", cfg.Paths.Input,
		"output", cfg.Paths.Output,
		"checkpoint", cfg.Paths.Checkpoint,
	)

	// ── 3. Load input list ──────────────────────────────────────────
	list, err := dataset.Load(cfg.Paths.Input)
	if err != nil {
		slog.Error("failed to load input list", "error", err)
		return exitStartup
	}
	if cfg.Driver.Limit > 0 && cfg.Driver.Limit < list.Len() {
		list.Entries = list.Entries[:cfg.Driver.Limit]
		slog.Info("input list truncated", "limit", cfg.Driver.Limit)
	}

	// ── 4. Open result sink ─────────────────────────────────────────
	snk, err := sink.Open(cfg.Paths.Output, signals.Schema())
	if err != nil {
		slog.Error("failed to open result sink", "error", err)
		return exitStartup
	}
	defer snk.Close()

	// ── 5. Launch browser session ───────────────────────────────────
	// The first interrupt cancels ctx; the driver finishes the render in
	// flight, checkpoints, and returns.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ex := signals.New(signals.Config{
		Keywords:   cfg.Signals.Keywords,
		MaxAnchors: cfg.Signals.MaxAnchors,
		TLSTimeout: cfg.Signals.TLSTimeout,
		ProbeCache: cfg.Signals.ProbeCache,
	})
	rc, err := render.NewClient(ctx, cfg.Render, ex)
	if err != nil {
		slog.Error("failed to start browser session", "error", err)
		return exitStartup
	}
	defer rc.Close()

	// ── 6. Assemble extraction driver ───────────────────────────────
	store := checkpoint.NewStore(cfg.Paths.Checkpoint)
	reporter := progress.NewReporter(os.Stdout)
	d := driver.New(cfg.Driver, list, rc, snk, store, reporter)

	// ── 7. Monitor API (optional) ───────────────────────────────────
	if cfg.Monitor.Addr != "" {
		srv := &http.Server{
			Addr:    cfg.Monitor.Addr,
			Handler: api.NewRouter(d, cfg.Monitor, time.Now()),
		}
		go func() {
			slog.Info("monitor listening", "addr", cfg.Monitor.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("monitor server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	// ── 8. Run ──────────────────────────────────────────────────────
	runErr := d.Run(ctx)

	// ── 9. Notify webhook ───────────────────────────────────────────
	// Delivery survives the interrupt: it runs on its own deadline, not
	// the canceled signal context.
	if notifier := notify.New(cfg.Notify); notifier != nil {
		eventType := notify.EventRunCompleted
		payload := runPayload{Snapshot: d.Snapshot()}
		if runErr != nil {
			eventType = notify.EventRunStopped
			payload.Error = errorDetail(runErr)
		}
		notifyCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		notifier.DeliverWithRetry(notifyCtx, notify.NewEvent(eventType, payload))
		cancel()
	}

	// ── 10. Verdict ─────────────────────────────────────────────────
	switch {
	case runErr == nil:
		slog.Info("run complete")
		return exitOK
	case errors.Is(runErr, driver.ErrStopped):
		slog.Warn("run stopped before the list was exhausted, rerun to resume")
		return exitStopped
	default:
		slog.Error("run aborted", "error", runErr)
		return exitStopped
	}
}

// runPayload is the webhook event body for run lifecycle events.
type runPayload struct {
	Snapshot models.ProgressSnapshot `json:"snapshot"`
	Error    *models.ErrorDetail     `json:"error,omitempty"`
}

// errorDetail flattens a run error for the webhook payload.
func errorDetail(err error) *models.ErrorDetail {
	var pe *models.PipelineError
	if errors.As(err, &pe) {
		return pe.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeInterrupted, Message: err.Error()}
}

// printStatus reports checkpoint and sink state without touching either.
func printStatus(paths config.PathsConfig) int {
	st, err := checkpoint.NewStore(paths.Checkpoint).Load()
	if err != nil {
		fmt.Printf("checkpoint: unreadable (%v)\n", err)
	} else if st == nil {
		fmt.Println("checkpoint: none")
	} else {
		fmt.Printf("checkpoint: last index %d, saved %s\n",
			st.LastProcessedIndex, st.SavedAt.Format(time.RFC3339))
		fmt.Printf("  processed %d, ok %d, failed %d\n",
			st.Counters.TotalProcessed, st.Counters.Succeeded, st.Counters.Failed)
	}

	rows, rowsErr := sink.RowCount(paths.Output)
	if rowsErr != nil {
		fmt.Printf("output: unreadable (%v)\n", rowsErr)
		return exitStartup
	}
	fmt.Printf("output: %d rows\n", rows)

	resume := rows
	if st != nil && st.NextIndex() > resume {
		resume = st.NextIndex()
	}
	fmt.Printf("a rerun would resume at index %d\n", resume)

	if st != nil && st.NextIndex() != rows {
		fmt.Printf("note: checkpoint and output disagree (%d vs %d rows); the larger wins on resume\n",
			st.NextIndex(), rows)
	}
	return exitOK
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
