package models

// RunCounters are the aggregate tallies for a run. They are owned
// exclusively by the extraction driver while processing and handed to the
// checkpoint store as a plain snapshot, never shared as mutable state.
type RunCounters struct {
	TotalProcessed int64 `json:"total_processed"`
	Succeeded      int64 `json:"successful"`
	Failed         int64 `json:"failed"`
	Timeouts       int64 `json:"timeout_errors"`
	RenderErrors   int64 `json:"render_errors"`
	SessionErrors  int64 `json:"session_errors"`
	NetworkErrors  int64 `json:"network_errors"`
}

// Observe records one processed URL's outcome.
func (c *RunCounters) Observe(o Outcome) {
	c.TotalProcessed++
	switch o {
	case OutcomeSuccess:
		c.Succeeded++
		return
	case OutcomeTimeout:
		c.Timeouts++
	case OutcomeRenderError:
		c.RenderErrors++
	case OutcomeSessionError:
		c.SessionErrors++
	case OutcomeNetworkError:
		c.NetworkErrors++
	}
	c.Failed++
}

// SuccessRate returns the fraction of processed URLs that succeeded,
// in [0, 1]. Zero when nothing has been processed yet.
func (c RunCounters) SuccessRate() float64 {
	if c.TotalProcessed == 0 {
		return 0
	}
	return float64(c.Succeeded) / float64(c.TotalProcessed)
}
