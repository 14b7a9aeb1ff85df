package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/webtrawl/trawl/config"
)

// Event types delivered at the end of a run.
const (
	EventRunCompleted = "run.completed"
	EventRunStopped   = "run.stopped"
)

// retryDelays is the wait before each attempt after the first.
// Attempts beyond the ladder reuse the final entry.
var retryDelays = []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second}

// Event is the payload sent to the webhook endpoint.
type Event struct {
	Type      string      `json:"type"` // "run.completed" or "run.stopped"
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Notifier delivers run lifecycle events to a webhook endpoint.
// A nil Notifier is valid and drops every event, so callers never need to
// guard the unconfigured case.
type Notifier struct {
	cfg    config.NotifyConfig
	client *http.Client
}

// New returns a Notifier, or nil when no webhook URL is configured.
func New(cfg config.NotifyConfig) *Notifier {
	if cfg.WebhookURL == "" {
		return nil
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Deliver sends one event synchronously.
// The request body is signed with HMAC-SHA256 if a secret is configured.
// Header: X-Trawl-Signature: sha256=<hex>
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	if n == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Trawl-Webhook/1.0")

	if n.cfg.Secret != "" {
		mac := hmac.New(sha256.New, []byte(n.cfg.Secret))
		mac.Write(body)
		sig := hex.EncodeToString(mac.Sum(nil))
		req.Header.Set("X-Trawl-Signature", "sha256="+sig)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverWithRetry sends an event with bounded retries, waiting 1s, 5s,
// then 30s between attempts. It blocks until delivery succeeds, attempts
// run out, or ctx ends. The process exits right after the run, so the
// retries cannot be handed to a background goroutine.
func (n *Notifier) DeliverWithRetry(ctx context.Context, event *Event) error {
	if n == nil {
		return nil
	}
	attempts := n.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(delayFor(attempt)):
			case <-ctx.Done():
				return fmt.Errorf("notify: abandoned after %d attempts: %w", attempt-1, ctx.Err())
			}
		}

		err := n.Deliver(ctx, event)
		if err == nil {
			slog.Info("webhook delivered",
				"url", n.cfg.WebhookURL,
				"event", event.Type,
				"attempt", attempt,
			)
			return nil
		}
		lastErr = err
		slog.Warn("webhook delivery failed",
			"url", n.cfg.WebhookURL,
			"event", event.Type,
			"attempt", attempt,
			"error", err,
		)
	}

	slog.Error("webhook delivery exhausted all retries",
		"url", n.cfg.WebhookURL,
		"event", event.Type,
	)
	return lastErr
}

// delayFor returns the wait before the given attempt (2-based: the first
// attempt never waits).
func delayFor(attempt int) time.Duration {
	i := attempt - 2
	if i >= len(retryDelays) {
		i = len(retryDelays) - 1
	}
	return retryDelays[i]
}

// NewEvent builds a timestamped event.
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
}
