package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/webtrawl/trawl/config"
)

func testNotifier(url, secret string, attempts int) *Notifier {
	return New(config.NotifyConfig{
		WebhookURL:  url,
		Secret:      secret,
		Timeout:     2 * time.Second,
		MaxAttempts: attempts,
	})
}

func stubDelays(t *testing.T, d ...time.Duration) {
	t.Helper()
	old := retryDelays
	retryDelays = d
	t.Cleanup(func() { retryDelays = old })
}

func TestDeliverSignsBody(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Trawl-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
	}))
	defer srv.Close()

	n := testNotifier(srv.URL, "s3cret", 1)
	if err := n.Deliver(context.Background(), NewEvent(EventRunCompleted, map[string]int{"total": 5})); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
}

func TestDeliverWithoutSecretOmitsSignature(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Trawl-Signature")
	}))
	defer srv.Close()

	n := testNotifier(srv.URL, "", 1)
	if err := n.Deliver(context.Background(), NewEvent(EventRunStopped, nil)); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if gotSig != "" {
		t.Errorf("signature = %q, want none", gotSig)
	}
}

func TestDeliverTreatsHTTPErrorAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := testNotifier(srv.URL, "", 1)
	if err := n.Deliver(context.Background(), NewEvent(EventRunCompleted, nil)); err == nil {
		t.Fatal("Deliver() succeeded against a 500 endpoint")
	}
}

func TestDeliverWithRetryEventuallySucceeds(t *testing.T) {
	stubDelays(t, time.Millisecond)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	n := testNotifier(srv.URL, "", 3)
	if err := n.DeliverWithRetry(context.Background(), NewEvent(EventRunCompleted, nil)); err != nil {
		t.Fatalf("DeliverWithRetry() error = %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("endpoint hit %d times, want 3", got)
	}
}

func TestDeliverWithRetryGivesUp(t *testing.T) {
	stubDelays(t, time.Millisecond)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := testNotifier(srv.URL, "", 2)
	if err := n.DeliverWithRetry(context.Background(), NewEvent(EventRunStopped, nil)); err == nil {
		t.Fatal("DeliverWithRetry() succeeded, want exhaustion error")
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("endpoint hit %d times, want 2", got)
	}
}

func TestDeliverWithRetryHonorsContext(t *testing.T) {
	stubDelays(t, time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	n := testNotifier(srv.URL, "", 3)
	start := time.Now()
	err := n.DeliverWithRetry(ctx, NewEvent(EventRunCompleted, nil))
	if err == nil {
		t.Fatal("DeliverWithRetry() succeeded, want context error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("waited %v for a dead context, want a prompt return", elapsed)
	}
}

func TestNilNotifierIsSilent(t *testing.T) {
	n := New(config.NotifyConfig{})
	if n != nil {
		t.Fatalf("New() without a URL = %v, want nil", n)
	}
	if err := n.Deliver(context.Background(), NewEvent(EventRunCompleted, nil)); err != nil {
		t.Errorf("nil Deliver() error = %v", err)
	}
	if err := n.DeliverWithRetry(context.Background(), NewEvent(EventRunStopped, nil)); err != nil {
		t.Errorf("nil DeliverWithRetry() error = %v", err)
	}
}
