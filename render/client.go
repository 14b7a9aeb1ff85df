// Package render drives a headless browser session and turns one URL at a
// time into a signal bundle. A Client owns exactly one browser connection and
// one page; the extraction driver serializes calls, so nothing here is safe
// for concurrent use.
package render

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/webtrawl/trawl/config"
	"github.com/webtrawl/trawl/models"
	"github.com/webtrawl/trawl/signals"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36"

const (
	domStableWait = 300 * time.Millisecond
	domStableDiff = 0.1
)

// Client renders pages through a browser session. The session survives many
// renders; RefreshSession tears it down and builds a new one.
type Client struct {
	cfg       config.RenderConfig
	extractor *signals.Extractor
	launcher  *launcher.Launcher
	browser   *rod.Browser
	page      *rod.Page
	router    *rod.HijackRouter
	remote    bool
}

// Result is the product of one render. On error the driver still receives a
// Result carrying whatever was gathered before the failure (the TLS probe
// runs before navigation, so its columns survive a failed page load).
type Result struct {
	Signals  models.SignalBundle
	Title    string
	FinalURL string
	Elapsed  time.Duration
}

// NewClient establishes the first browser session. With BrowserURL set it
// connects to a remote DevTools endpoint (waiting for it to become ready);
// otherwise it launches a local headless browser.
func NewClient(ctx context.Context, cfg config.RenderConfig, ex *signals.Extractor) (*Client, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = chromeUA
	}
	c := &Client{cfg: cfg, extractor: ex, remote: cfg.BrowserURL != ""}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Process renders one URL and extracts its signals.
//
// Lifecycle:
//
//	1. TLS probe            – certificate check before the browser touches the URL
//	2. Timeout guard        – hard deadline on navigation + extraction
//	3. DEFER: about:blank   – drop the DOM so a million renders cannot leak
//	4. Navigate
//	5. Wait                 – DOM stable
//	6. Redirect count       – performance navigation entry
//	7. Extract              – page.HTML + signal extraction
func (c *Client) Process(ctx context.Context, rawURL string) (*Result, error) {
	start := time.Now()
	res := &Result{Signals: models.SignalBundle{}, FinalURL: rawURL}

	// ── 1. TLS probe ─────────────────────────────────────────────────
	valid, invalid := c.extractor.ProbeTLS(ctx, rawURL)
	res.Signals[signals.KeyTLSValid] = valid
	res.Signals[signals.KeyTLSInvalid] = invalid

	// ── 2. Timeout guard ─────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	// ── 3. DEFER: park the page ──────────────────────────────────────
	// Uses the bare page reference (no request context) so cleanup
	// still works after the deadline has expired.
	page := c.page
	defer func() {
		res.Elapsed = time.Since(start)
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
	}()

	p := page.Context(ctx)

	// ── 4. Navigate ──────────────────────────────────────────────────
	if err := p.Navigate(rawURL); err != nil {
		return res, classify(err, "navigation to target URL failed")
	}

	// ── 5. Wait strategy ─────────────────────────────────────────────
	// A deadline hit here resurfaces at extraction, so non-convergence is
	// only worth a debug line.
	if stableErr := p.WaitDOMStable(domStableWait, domStableDiff); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"url", rawURL, "error", stableErr)
	}

	// ── 6. Redirect count (best-effort) ──────────────────────────────
	redirects := 0
	if out, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].redirectCount || 0;
		} catch (e) {}
		return 0;
	}`); err == nil {
		redirects = out.Value.Int()
	}
	if finalURL := evalStringOrEmpty(p, `() => window.location.href`); finalURL != "" {
		res.FinalURL = finalURL
	}

	// ── 7. Extract ───────────────────────────────────────────────────
	source, err := p.HTML()
	if err != nil {
		return res, classify(err, "failed to extract page HTML")
	}
	rep, err := c.extractor.Extract(source, rawURL, res.FinalURL, redirects)
	if err != nil {
		return res, models.NewPipelineError(models.ErrCodeRender, "signal extraction failed", err)
	}
	for k, v := range rep.Signals {
		res.Signals[k] = v
	}
	res.Title = rep.Title

	slog.Debug("page rendered",
		"url", rawURL,
		"final_url", res.FinalURL,
		"title", res.Title,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

// RefreshSession replaces the browser session with a fresh one. Used both
// proactively (cadence) and reactively (session errors); it must succeed
// even when the old session is already dead.
func (c *Client) RefreshSession(ctx context.Context) error {
	slog.Info("refreshing render session", "remote", c.remote)
	c.teardown()
	return c.connect(ctx)
}

// Close tears the session down for good.
func (c *Client) Close() {
	slog.Info("render client shutting down")
	c.teardown()
}

func (c *Client) connect(ctx context.Context) error {
	controlURL, err := c.controlURL(ctx)
	if err != nil {
		return err
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return models.NewPipelineError(models.ErrCodeSession, "failed to connect to browser", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		return models.NewPipelineError(models.ErrCodeSession, "failed to open page", err)
	}

	// Stealth and header overrides must be installed before any navigation.
	if c.cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}
	if c.cfg.UserAgent != "" {
		if uaErr := (proto.NetworkSetUserAgentOverride{UserAgent: c.cfg.UserAgent}).Call(page); uaErr != nil {
			slog.Warn("user agent override failed", "error", uaErr)
		}
	}
	if len(c.cfg.ExtraHeaders) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(c.cfg.ExtraHeaders),
		}.Call(page)
	}

	c.router = mountHijack(page, c.cfg.BlockedResourceTypes, c.cfg.BlockTrackers)
	c.browser = browser
	c.page = page
	slog.Info("render session ready", "remote", c.remote, "stealth", c.cfg.Stealth)
	return nil
}

// controlURL produces a DevTools websocket URL, launching a browser when no
// remote endpoint is configured.
func (c *Client) controlURL(ctx context.Context) (string, error) {
	if c.remote {
		return c.resolveEndpoint(ctx)
	}

	l := launcher.New().
		Headless(c.cfg.Headless).
		NoSandbox(c.cfg.NoSandbox)

	if c.cfg.BrowserBin != "" {
		l = l.Bin(c.cfg.BrowserBin)
	}
	if c.cfg.Proxy != "" {
		l = l.Proxy(c.cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return "", models.NewPipelineError(models.ErrCodeSession, "failed to launch browser", err)
	}
	c.launcher = l
	slog.Info("browser launched", "controlURL", controlURL)
	return controlURL, nil
}

// resolveEndpoint polls the remote endpoint until it answers version
// discovery. Containerized browsers routinely come up after this process
// does, so startup waits instead of failing.
func (c *Client) resolveEndpoint(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.ReadyAttempts; attempt++ {
		u, err := launcher.ResolveURL(c.cfg.BrowserURL)
		if err == nil {
			slog.Info("browser endpoint ready", "endpoint", c.cfg.BrowserURL, "attempt", attempt)
			return u, nil
		}
		lastErr = err
		slog.Warn("browser endpoint not ready",
			"endpoint", c.cfg.BrowserURL,
			"attempt", attempt,
			"max_attempts", c.cfg.ReadyAttempts,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return "", models.NewPipelineError(models.ErrCodeSession, "interrupted while waiting for browser endpoint", ctx.Err())
		case <-time.After(c.cfg.ReadyDelay):
		}
	}
	return "", models.NewPipelineError(models.ErrCodeSession, "browser endpoint never became ready", lastErr)
}

// teardown releases the page, the connection, and any launched process. All
// steps tolerate an already-dead session.
func (c *Client) teardown() {
	if c.router != nil {
		_ = c.router.Stop()
		c.router = nil
	}
	if c.page != nil {
		_ = c.page.Close()
		c.page = nil
	}
	if c.browser != nil {
		// For a remote browser this drops the websocket without killing the
		// shared process; a launched browser is killed below.
		if err := c.browser.Close(); err != nil {
			slog.Debug("browser close during teardown", "error", err)
		}
		c.browser = nil
	}
	if c.launcher != nil {
		c.launcher.Kill()
		c.launcher.Cleanup()
		c.launcher = nil
	}
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
