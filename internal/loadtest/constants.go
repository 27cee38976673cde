package loadtest

import "time"

// Defaults applied by Normalize.
const (
	DefaultPlayers    = 200
	DefaultRuns       = 2000
	DefaultTopN       = 40
	DefaultTimeout    = 10 * time.Second
	DefaultMinVictory = 180.0
)

// Progress reporting interval.
const reportInterval = time.Second

const percentageMultiplier = 100
