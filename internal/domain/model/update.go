package model

import "time"

// RankingUpdate is a daily ranking write that could not reach the fast
// store and waits for replay.
type RankingUpdate struct {
	Day      string
	Member   string
	Value    float64
	QueuedAt time.Time
}
