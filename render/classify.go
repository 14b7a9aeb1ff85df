package render

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/webtrawl/trawl/models"
)

// classify wraps a raw render error as a typed PipelineError so the driver
// can map it to an outcome.
//
// Two distinct failure planes meet here. The browser reports target-side
// trouble as `net::ERR_*` strings inside CDP replies; those are network
// outcomes for the URL. A Go-level transport error, on the other hand, means
// our websocket to the browser itself broke (all target networking happens
// inside the browser), so those are session errors, not verdicts about the
// URL.
func classify(err error, msg string) *models.PipelineError {
	var perr *models.PipelineError
	if errors.As(err, &perr) {
		return perr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewPipelineError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewPipelineError(models.ErrCodeTimeout, "render canceled", err)
	case isBrowserNetError(err):
		return models.NewPipelineError(models.ErrCodeNetwork, msg, err)
	case isSessionError(err):
		return models.NewPipelineError(models.ErrCodeSession, msg, err)
	default:
		return models.NewPipelineError(models.ErrCodeRender, msg, err)
	}
}

// isBrowserNetError matches failures the browser reported about the target.
func isBrowserNetError(err error) bool {
	return strings.Contains(err.Error(), "net::ERR_")
}

// isSessionError matches a broken browser connection or a torn-down target.
func isSessionError(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) ||
		errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return true
	}
	s := err.Error()
	for _, marker := range []string{
		"websocket",
		"connection closed",
		"target closed",
		"session closed",
		"browser has been closed",
		"cdp.Client",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
