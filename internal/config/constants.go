package config

import "time"

const (
	// Agent models
	FollowupModel = "claude-sonnet-4-20250514"
	SummaryModel  = "claude-3-haiku-20240307"

	// Agent generation parameters
	FollowupMaxTokens   = 150
	FollowupTemperature = 0.7
	SummaryMaxTokens    = 200
	SummaryTemperature  = 0.5

	// Retry backoff caps
	RateLimitBackoffCap = 60 * time.Second
	TransientBackoffCap = 30 * time.Second

	// Summary theme bounds
	MinThemes = 2
	MaxThemes = 4

	// Mock invoker latency range
	MockLatencyMin = 50 * time.Millisecond
	MockLatencyMax = 150 * time.Millisecond

	// HTTP server timeouts
	ReadTimeout     = 15 * time.Second
	WriteTimeout    = 120 * time.Second
	ShutdownTimeout = 10 * time.Second
)
