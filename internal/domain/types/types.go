// Package types contains the read shapes returned by the service.
package types

import "time"

// Entry is one leaderboard row.
type Entry struct {
	Rank        int       `json:"rank"`
	DisplayName string    `json:"display_name"`
	Tag         string    `json:"tag"`
	Value       float64   `json:"value"`
	Date        time.Time `json:"date"`
}

// SubmitResult is returned for every submission that reaches the pipeline.
// Nil ranks mean the rank could not be determined.
type SubmitResult struct {
	Accepted    bool   `json:"accepted"`
	ScoreID     uint64 `json:"score_id,omitempty"`
	DailyRank   *int   `json:"daily_rank"`
	AllTimeRank *int   `json:"all_time_rank"`
	IsNewBest   bool   `json:"is_new_best"`
	Flagged     bool   `json:"flagged"`
	Reason      string `json:"reason,omitempty"`
}

// Reward is the part of a tier revealed to the player who claimed it.
type Reward struct {
	Message   string  `json:"message"`
	Code      string  `json:"code"`
	Threshold float64 `json:"threshold"`
}

// RewardResult is the outcome of a reward check.
type RewardResult struct {
	Earned bool    `json:"earned"`
	Reward *Reward `json:"reward,omitempty"`
}
