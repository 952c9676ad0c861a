// Package stats tracks lock-free monotonic counters surfaced over the
// /api/stats admin endpoint.
package stats

import "sync/atomic"

// Stats holds four monotonic counters. All operations use relaxed atomics
// — these are display counters for an admin endpoint, not an accounting
// ledger, so no happens-before relationship with the rest of the request
// pipeline is required.
type Stats struct {
	totalRequests atomic.Int64
	inputTokens   atomic.Int64
	outputTokens  atomic.Int64
	toolCalls     atomic.Int64
}

// New returns a zeroed Stats ready for concurrent use.
func New() *Stats {
	return &Stats{}
}

// IncRequests increments the total-requests counter by one.
func (s *Stats) IncRequests() {
	s.totalRequests.Add(1)
}

// AddInputTokens adds n to the input-tokens counter.
func (s *Stats) AddInputTokens(n int64) {
	if n <= 0 {
		return
	}
	s.inputTokens.Add(n)
}

// AddOutputTokens adds n to the output-tokens counter.
func (s *Stats) AddOutputTokens(n int64) {
	if n <= 0 {
		return
	}
	s.outputTokens.Add(n)
}

// AddToolCalls adds n to the tool-calls counter.
func (s *Stats) AddToolCalls(n int64) {
	if n <= 0 {
		return
	}
	s.toolCalls.Add(n)
}

// Snapshot is the plain value object JSON-encoded by /api/stats.
type Snapshot struct {
	TotalRequests int64 `json:"total_requests"`
	InputTokens   int64 `json:"input_tokens"`
	OutputTokens  int64 `json:"output_tokens"`
	ToolCalls     int64 `json:"tool_calls"`
}

// Snapshot returns a point-in-time read of all four counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		TotalRequests: s.totalRequests.Load(),
		InputTokens:   s.inputTokens.Load(),
		OutputTokens:  s.outputTokens.Load(),
		ToolCalls:     s.toolCalls.Load(),
	}
}
