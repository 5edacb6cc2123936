// Package model defines shared data structures.
package model

import "time"

// Config defines generation and practice settings.
type Config struct {
	Provider       string
	Model          string
	BaseURL        string
	APIKey         string
	Temperature    float64
	TopP           float64
	MaxTokens      int
	MaxRetries     int
	Timeout        time.Duration
	PromptTemplate string
	FocusWeak      bool
	WeakTop        int
	WeakWindow     int
	Debug          bool
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Label       string
	Since       *time.Time
	Last        int
	CurveWindow int
}

// RunStats captures a completed practice run.
type RunStats struct {
	ID         int64
	RunID      string
	StartedAt  time.Time
	EndedAt    time.Time
	Label      string
	Prompt     string
	Snippet    string
	Chars      int
	Rejected   int
	Resets     int
	DurationMs int64
}

// CharStats stores per-character stats for a run. Correct counts accepted
// keystrokes and Incorrect counts rejected ones while the character was next.
type CharStats struct {
	Char         string
	Correct      int
	Incorrect    int
	LatencySumMs int64
	LatencyCount int64
}

// CharAggregate aggregates character stats across runs.
type CharAggregate struct {
	Char         string
	Correct      int
	Incorrect    int
	LatencySumMs int64
	LatencyCount int64
}

// RunAggregate summarizes a run for reporting.
type RunAggregate struct {
	ID         int64
	RunID      string
	EndedAt    time.Time
	Label      string
	Chars      int
	Rejected   int
	Resets     int
	DurationMs int64
}
