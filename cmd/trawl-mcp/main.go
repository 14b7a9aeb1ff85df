package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// progressResponse mirrors the monitor's progress API model.
type progressResponse struct {
	State        string  `json:"state"`
	ResumeOffset int64   `json:"resume_offset"`
	NextIndex    int64   `json:"next_index"`
	TotalEntries int64   `json:"total_entries"`
	Counters     struct {
		TotalProcessed int64 `json:"total_processed"`
		Succeeded      int64 `json:"successful"`
		Failed         int64 `json:"failed"`
		Timeouts       int64 `json:"timeout_errors"`
		RenderErrors   int64 `json:"render_errors"`
		SessionErrors  int64 `json:"session_errors"`
		NetworkErrors  int64 `json:"network_errors"`
	} `json:"counters"`
	ElapsedRunSeconds float64 `json:"elapsed_run_seconds"`
	RatePerSecond     float64 `json:"rate_per_second"`
	ETASeconds        float64 `json:"eta_seconds"`
}

// healthResponse mirrors the monitor's health API model.
type healthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	State   string `json:"state"`
	Version string `json:"version"`
}

func main() {
	monitorURL := os.Getenv("TRAWL_MONITOR_URL")
	if monitorURL == "" {
		monitorURL = "http://127.0.0.1:8077"
	}

	s := server.NewMCPServer(
		"trawl",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	statusTool := mcp.NewTool("run_status",
		mcp.WithDescription("Report the progress of the running extraction job: position in the input list, outcome counters, processing rate, and estimated time remaining."),
	)
	s.AddTool(statusTool, handleRunStatus(monitorURL))

	healthTool := mcp.NewTool("run_health",
		mcp.WithDescription("Check whether the extraction job is up, and whether it is processing or draining for shutdown."),
	)
	s.AddTool(healthTool, handleRunHealth(monitorURL))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiGet fetches a monitor endpoint and returns the response body.
func apiGet(ctx context.Context, client *http.Client, monitorURL, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, monitorURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("monitor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("monitor returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func handleRunStatus(monitorURL string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body, err := apiGet(ctx, client, monitorURL, "/api/v1/progress")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("progress request failed: %v (is the job running with a monitor address set?)", err)), nil
		}

		var p progressResponse
		if err := json.Unmarshal(body, &p); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse progress response: %v", err)), nil
		}

		percent := 0.0
		if p.TotalEntries > 0 {
			percent = float64(p.NextIndex) / float64(p.TotalEntries) * 100
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("State: %s\n", p.State))
		sb.WriteString(fmt.Sprintf("Progress: %d/%d (%.2f%%), started at index %d\n",
			p.NextIndex, p.TotalEntries, percent, p.ResumeOffset))
		sb.WriteString(fmt.Sprintf("Outcomes: %d ok, %d failed (%d timeouts, %d render, %d session, %d network)\n",
			p.Counters.Succeeded, p.Counters.Failed,
			p.Counters.Timeouts, p.Counters.RenderErrors,
			p.Counters.SessionErrors, p.Counters.NetworkErrors))
		if p.RatePerSecond > 0 {
			sb.WriteString(fmt.Sprintf("Rate: %.2f URLs/s, ETA %s\n",
				p.RatePerSecond, time.Duration(p.ETASeconds*float64(time.Second)).Round(time.Second)))
		}
		sb.WriteString(fmt.Sprintf("Elapsed across all runs: %s\n",
			time.Duration(p.ElapsedRunSeconds*float64(time.Second)).Round(time.Second)))

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleRunHealth(monitorURL string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body, err := apiGet(ctx, client, monitorURL, "/api/v1/health")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("health request failed: %v (is the job running with a monitor address set?)", err)), nil
		}

		var h healthResponse
		if err := json.Unmarshal(body, &h); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse health response: %v", err)), nil
		}

		result := fmt.Sprintf("Status: %s\nState: %s\nUptime: %s\nVersion: %s",
			h.Status, h.State, h.Uptime, h.Version)
		return mcp.NewToolResultText(result), nil
	}
}
