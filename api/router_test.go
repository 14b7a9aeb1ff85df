package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webtrawl/trawl/config"
	"github.com/webtrawl/trawl/models"
)

type fixedSource struct {
	snap models.ProgressSnapshot
}

func (f fixedSource) Snapshot() models.ProgressSnapshot { return f.snap }

func testRouter(snap models.ProgressSnapshot) *gin.Engine {
	return NewRouter(fixedSource{snap}, config.MonitorConfig{Mode: gin.TestMode}, time.Now())
}

func get(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthReportsRunning(t *testing.T) {
	r := testRouter(models.ProgressSnapshot{State: models.RunStateProcessing})

	w := get(t, r, "/api/v1/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if resp.Status != "running" {
		t.Errorf("Status = %q, want running", resp.Status)
	}
	if resp.State != models.RunStateProcessing {
		t.Errorf("State = %q, want %q", resp.State, models.RunStateProcessing)
	}
}

func TestHealthReportsDrainingOnShutdown(t *testing.T) {
	r := testRouter(models.ProgressSnapshot{State: models.RunStateShuttingDown})

	var resp models.HealthResponse
	w := get(t, r, "/api/v1/health")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if resp.Status != "draining" {
		t.Errorf("Status = %q, want draining", resp.Status)
	}
}

func TestProgressServesSnapshot(t *testing.T) {
	snap := models.ProgressSnapshot{
		State:        models.RunStateProcessing,
		NextIndex:    250,
		TotalEntries: 1000,
		Counters:     models.RunCounters{TotalProcessed: 250, Succeeded: 230, Failed: 20},
	}
	r := testRouter(snap)

	w := get(t, r, "/api/v1/progress")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got models.ProgressSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.NextIndex != 250 || got.TotalEntries != 1000 {
		t.Errorf("snapshot = next %d of %d, want 250 of 1000", got.NextIndex, got.TotalEntries)
	}
	if got.Counters.Succeeded != 230 {
		t.Errorf("Succeeded = %d, want 230", got.Counters.Succeeded)
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	r := testRouter(models.ProgressSnapshot{})
	if w := get(t, r, "/api/v1/run"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
