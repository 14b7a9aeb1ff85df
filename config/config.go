package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Paths   PathsConfig
	Render  RenderConfig
	Driver  DriverConfig
	Signals SignalsConfig
	Monitor MonitorConfig
	Notify  NotifyConfig
	Log     LogConfig
}

// PathsConfig holds the three files a run revolves around. Command-line
// flags override these.
type PathsConfig struct {
	// Input is the URL list to walk.
	Input string // default: "input.csv"

	// Output is the result dataset, appended across resumes.
	Output string // default: "results.csv"

	// Checkpoint is the resume state file.
	Checkpoint string // default: "checkpoint.json"
}

// RenderConfig controls the browser session.
type RenderConfig struct {
	// BrowserURL is a remote DevTools endpoint (e.g. "ws://browser:9222" or
	// "http://browser:9222"). Empty means launch a local browser.
	BrowserURL string

	// BrowserBin overrides the Chromium binary path for local launches.
	BrowserBin string

	// Headless controls whether a local browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// Proxy is the proxy URL for browser traffic.
	Proxy string

	// UserAgent overrides the browser's user agent.
	UserAgent string // default: a current desktop Chrome UA

	// ExtraHeaders are sent with every request ("Name=Value,Name=Value").
	ExtraHeaders map[string]string // default: Accept-Language en-US

	// Timeout is the hard deadline for rendering one URL.
	Timeout time.Duration // default: 15s

	// BlockedResourceTypes lists resource types the hijack router drops.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockTrackers additionally drops known ad/analytics hosts. Off by
	// default because it shifts script counts on ad-heavy pages.
	BlockTrackers bool // default: false

	// Stealth injects the stealth JS into every new document.
	Stealth bool // default: true

	// ReadyAttempts bounds the wait for a remote endpoint at startup.
	ReadyAttempts int // default: 30

	// ReadyDelay is the pause between endpoint readiness probes.
	ReadyDelay time.Duration // default: 2s
}

// DriverConfig controls the extraction driver's cadences and retry policy.
type DriverConfig struct {
	// CheckpointEvery is the checkpoint cadence in processed URLs.
	CheckpointEvery int // default: 100

	// RefreshEvery proactively replaces the browser session after this many
	// processed URLs. 0 disables proactive refresh.
	RefreshEvery int // default: 500

	// ProgressEvery is the progress-line cadence in processed URLs.
	ProgressEvery int // default: 10

	// SessionRetries bounds consecutive session-recovery attempts for one
	// URL before the run is declared dead.
	SessionRetries int // default: 10

	// RetryBaseDelay is the first session-recovery backoff.
	RetryBaseDelay time.Duration // default: 2s

	// RetryMaxDelay caps the session-recovery backoff.
	RetryMaxDelay time.Duration // default: 60s

	// RPS caps render starts per second. 0 disables the limiter.
	RPS float64 // default: 2

	// Limit truncates the input list to its first N entries. 0 means all.
	Limit int // default: 0
}

// SignalsConfig controls signal extraction.
type SignalsConfig struct {
	// Keywords overrides the suspicious keyword list.
	Keywords []string // default: built-in list

	// MaxAnchors is how many anchors are examined for external links.
	MaxAnchors int // default: 50

	// TLSTimeout is the certificate probe deadline.
	TLSTimeout time.Duration // default: 5s

	// ProbeCache is how many per-host TLS outcomes are kept. Negative
	// disables caching.
	ProbeCache int // default: 4096
}

// MonitorConfig controls the optional in-process monitor API.
type MonitorConfig struct {
	// Addr is the listen address ("host:port"). Empty disables the API.
	Addr string

	// Mode is the gin mode: "debug", "release", "test".
	Mode string // default: "release"
}

// NotifyConfig controls the completion webhook.
type NotifyConfig struct {
	// WebhookURL receives a JSON event when the run reaches a terminal
	// state. Empty disables delivery.
	WebhookURL string

	// Secret signs the payload (X-Trawl-Signature, HMAC-SHA256).
	Secret string

	// Timeout is the per-delivery HTTP timeout.
	Timeout time.Duration // default: 10s

	// MaxAttempts bounds delivery retries.
	MaxAttempts int // default: 3
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Paths: PathsConfig{
			Input:      envOr("TRAWL_INPUT", "input.csv"),
			Output:     envOr("TRAWL_OUTPUT", "results.csv"),
			Checkpoint: envOr("TRAWL_CHECKPOINT", "checkpoint.json"),
		},
		Render: RenderConfig{
			BrowserURL: os.Getenv("TRAWL_BROWSER_URL"),
			BrowserBin: os.Getenv("TRAWL_BROWSER_BIN"),
			Headless:   envBoolOr("TRAWL_HEADLESS", true),
			NoSandbox:  envBoolOr("TRAWL_NO_SANDBOX", false),
			Proxy:      os.Getenv("TRAWL_PROXY"),
			UserAgent:  envOr("TRAWL_USER_AGENT", ""),
			ExtraHeaders: envMapOr("TRAWL_EXTRA_HEADERS", map[string]string{
				"Accept-Language": "en-US,en;q=0.9",
			}),
			Timeout: envDurationOr("TRAWL_RENDER_TIMEOUT", 15*time.Second),
			BlockedResourceTypes: envSliceOr("TRAWL_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockTrackers: envBoolOr("TRAWL_BLOCK_TRACKERS", false),
			Stealth:       envBoolOr("TRAWL_STEALTH", true),
			ReadyAttempts: envIntOr("TRAWL_BROWSER_READY_ATTEMPTS", 30),
			ReadyDelay:    envDurationOr("TRAWL_BROWSER_READY_DELAY", 2*time.Second),
		},
		Driver: DriverConfig{
			CheckpointEvery: envIntOr("TRAWL_CHECKPOINT_EVERY", 100),
			RefreshEvery:    envIntOr("TRAWL_REFRESH_EVERY", 500),
			ProgressEvery:   envIntOr("TRAWL_PROGRESS_EVERY", 10),
			SessionRetries:  envIntOr("TRAWL_SESSION_RETRIES", 10),
			RetryBaseDelay:  envDurationOr("TRAWL_SESSION_RETRY_BASE", 2*time.Second),
			RetryMaxDelay:   envDurationOr("TRAWL_SESSION_RETRY_MAX", 60*time.Second),
			RPS:             envFloatOr("TRAWL_RENDER_RPS", 2.0),
			Limit:           envIntOr("TRAWL_LIMIT", 0),
		},
		Signals: SignalsConfig{
			Keywords:   envSliceOr("TRAWL_SUSPICIOUS_KEYWORDS", nil),
			MaxAnchors: envIntOr("TRAWL_MAX_ANCHORS", 50),
			TLSTimeout: envDurationOr("TRAWL_TLS_PROBE_TIMEOUT", 5*time.Second),
			ProbeCache: envIntOr("TRAWL_TLS_PROBE_CACHE", 4096),
		},
		Monitor: MonitorConfig{
			Addr: os.Getenv("TRAWL_MONITOR_ADDR"),
			Mode: envOr("TRAWL_MONITOR_MODE", "release"),
		},
		Notify: NotifyConfig{
			WebhookURL:  os.Getenv("TRAWL_WEBHOOK_URL"),
			Secret:      os.Getenv("TRAWL_WEBHOOK_SECRET"),
			Timeout:     envDurationOr("TRAWL_WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts: envIntOr("TRAWL_WEBHOOK_RETRIES", 3),
		},
		Log: LogConfig{
			Level:  envOr("TRAWL_LOG_LEVEL", "info"),
			Format: envOr("TRAWL_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

func envMapOr(key string, fallback map[string]string) map[string]string {
	if v := os.Getenv(key); v != "" {
		result := make(map[string]string)
		for _, pair := range strings.Split(v, ",") {
			name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if ok && name != "" {
				result[name] = value
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
