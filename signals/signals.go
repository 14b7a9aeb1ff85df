// Package signals turns a rendered page into the numeric feature columns of
// the output dataset. The extraction driver treats the bundle as opaque; the
// column set and semantics live entirely here.
package signals

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/webtrawl/trawl/cache"
	"github.com/webtrawl/trawl/models"
)

// Signal column names, in schema order.
const (
	KeyTLSValid        = "tls_valid"
	KeyTLSInvalid      = "tls_invalid"
	KeyRedirects       = "redirects"
	KeyForms           = "forms"
	KeyPasswordFields  = "password_fields"
	KeyIframes         = "iframes"
	KeyScripts         = "scripts"
	KeyExternalAnchors = "external_anchors"
	KeySuspiciousWords = "suspicious_keywords"
	KeyInteractive     = "interactive_elements"
)

// Schema returns the ordered signal column names. The order is part of the
// output file format and must not change between a run and its resume.
func Schema() []string {
	return []string{
		KeyTLSValid,
		KeyTLSInvalid,
		KeyRedirects,
		KeyForms,
		KeyPasswordFields,
		KeyIframes,
		KeyScripts,
		KeyExternalAnchors,
		KeySuspiciousWords,
		KeyInteractive,
	}
}

// Precompiled selectors for the per-page queries.
var (
	selForm     = cascadia.MustCompile("form")
	selPassword = cascadia.MustCompile(`input[type="password"]`)
	selIframe   = cascadia.MustCompile("iframe")
	selScript   = cascadia.MustCompile("script")
	selAnchor   = cascadia.MustCompile("a")
	selButton   = cascadia.MustCompile("button")
	selInput    = cascadia.MustCompile("input")
)

// Config tunes the extractor. Zero values select the defaults.
type Config struct {
	Keywords   []string      // suspicious keywords; default DefaultKeywords
	MaxAnchors int           // anchors examined for external links; default 50
	TLSTimeout time.Duration // per-phase TLS probe timeout; default 5s
	ProbeCache int           // per-host TLS outcomes kept; default 4096, negative disables
}

// Extractor computes signal bundles. Safe for reuse across pages; it holds
// no per-page state beyond the host-keyed probe cache.
type Extractor struct {
	keywords   []string
	maxAnchors int
	tlsTimeout time.Duration
	probes     *cache.Cache[probeOutcome]
}

// New builds an Extractor, filling unset Config fields with defaults.
func New(cfg Config) *Extractor {
	e := &Extractor{
		keywords:   cfg.Keywords,
		maxAnchors: cfg.MaxAnchors,
		tlsTimeout: cfg.TLSTimeout,
	}
	if len(e.keywords) == 0 {
		e.keywords = DefaultKeywords
	}
	if e.maxAnchors <= 0 {
		e.maxAnchors = 50
	}
	if e.tlsTimeout <= 0 {
		e.tlsTimeout = 5 * time.Second
	}
	if cfg.ProbeCache >= 0 {
		size := cfg.ProbeCache
		if size == 0 {
			size = 4096
		}
		e.probes = cache.New[probeOutcome](size, probeTTL)
	}
	return e
}

// Report is the outcome of a page extraction. Title is display metadata for
// logs, not a dataset column.
type Report struct {
	Signals models.SignalBundle
	Title   string
}

// Extract computes the page-content signals from rendered HTML.
// requestedURL is the URL handed to the browser, finalURL the address after
// navigation settled, redirectCount the navigation entry's redirect count.
// The TLS columns are not set here; they come from ProbeTLS, which runs
// before navigation.
func (e *Extractor) Extract(source, requestedURL, finalURL string, redirectCount int) (Report, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return Report{}, err
	}

	forms := doc.FindMatcher(selForm).Length()
	passwords := doc.FindMatcher(selPassword).Length()
	buttons := doc.FindMatcher(selButton).Length()
	inputs := doc.FindMatcher(selInput).Length()

	bundle := models.SignalBundle{
		KeyRedirects:       redirectFlag(requestedURL, finalURL, redirectCount),
		KeyForms:           float64(forms),
		KeyPasswordFields:  float64(passwords),
		KeyIframes:         float64(doc.FindMatcher(selIframe).Length()),
		KeyScripts:         float64(doc.FindMatcher(selScript).Length()),
		KeyExternalAnchors: float64(e.externalAnchors(doc, finalURL)),
		KeySuspiciousWords: float64(e.CountKeywords(source)),
		// interactive_elements = forms + password fields + buttons + all inputs.
		KeyInteractive: float64(forms + passwords + buttons + inputs),
	}
	return Report{Signals: bundle, Title: Title(source)}, nil
}

// externalAnchors counts anchors among the first maxAnchors whose absolute
// http(s) target lives on a different host than the final page URL.
// Relative and non-http targets are skipped.
func (e *Extractor) externalAnchors(doc *goquery.Document, finalURL string) int {
	pageHost := hostOf(finalURL)
	external := 0
	doc.FindMatcher(selAnchor).EachWithBreak(func(i int, a *goquery.Selection) bool {
		if i >= e.maxAnchors {
			return false
		}
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			return true
		}
		if h := hostOf(href); h != "" && h != pageHost {
			external++
		}
		return true
	})
	return external
}

// redirectFlag reports whether navigation moved away from the requested URL.
// A trailing-slash-only difference does not count.
func redirectFlag(requestedURL, finalURL string, redirectCount int) float64 {
	if redirectCount > 0 {
		return 1
	}
	if strings.TrimSuffix(finalURL, "/") != strings.TrimSuffix(requestedURL, "/") {
		return 1
	}
	return 0
}
