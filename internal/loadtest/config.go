// Package loadtest drives a running podium instance with generated runs and
// checks that the daily board agrees with what was accepted.
package loadtest

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Players    int           // Distinct players
	Runs       int           // Runs to submit across all players
	CheatRatio float64       // Share of runs that claim an impossible victory
	RetryRatio float64       // Share of runs resent with the same Idempotency-Key
	TopN       int           // Board rows to verify
	Workers    int           // Concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	MinVictory float64       // Server anti-cheat floor in seconds
	OutputFile string        // Where generated runs are written; empty skips
	Verbose    bool
}

// GeneratedRun is one generated submission.
type GeneratedRun struct {
	PlayerID       string  `json:"player_id"`
	DisplayName    string  `json:"display_name"`
	Tag            string  `json:"tag"`
	Value          float64 `json:"value"`
	Victory        bool    `json:"victory"`
	Origin         string  `json:"-"`
	IdempotencyKey string  `json:"-"`
	Retry          bool    `json:"-"`
}

// Entry is a board row as served by the API.
type Entry struct {
	Rank        int     `json:"rank"`
	DisplayName string  `json:"display_name"`
	Tag         string  `json:"tag"`
	Value       float64 `json:"value"`
}

// SubmitResult is the subset of the submission response checked here.
type SubmitResult struct {
	Accepted bool `json:"accepted"`
	Flagged  bool `json:"flagged"`
}

// Outcome classifies one submission attempt.
type Outcome int

// Submission outcomes.
const (
	OutcomeAccepted Outcome = iota
	OutcomeRejected
	OutcomeDuplicate
	OutcomeRateLimited
	OutcomeFailed
)

// Stats holds run statistics.
type Stats struct {
	RunsGenerated int
	Submitted     int
	Accepted      int
	Rejected      int
	Duplicates    int
	RateLimited   int
	Failed        int
	BoardEntries  int
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}
