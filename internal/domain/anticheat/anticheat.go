// Package anticheat decides whether a submitted run is plausible.
package anticheat

import "time"

// DefaultMinCompletion is the fastest legitimate full-game completion.
const DefaultMinCompletion = 180 * time.Second

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithMinCompletion sets the completion time floor for victory runs.
func WithMinCompletion(d time.Duration) Option {
	return func(g *Gate) {
		if d >= 0 {
			g.minSeconds = d.Seconds()
		}
	}
}

// WithMinCompletionSeconds sets the completion time floor in seconds.
func WithMinCompletionSeconds(s float64) Option {
	return func(g *Gate) {
		if s >= 0 {
			g.minSeconds = s
		}
	}
}

// Verdict is the outcome of a gate evaluation.
type Verdict struct {
	Accepted   bool
	ShouldFlag bool
}

// Gate is a pure predicate over a submitted value. It holds no state beyond
// its configuration and is safe for concurrent use.
type Gate struct {
	minSeconds float64
}

// New creates a gate with the default floor.
func New(opts ...Option) *Gate {
	g := &Gate{minSeconds: DefaultMinCompletion.Seconds()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MinCompletionSeconds returns the configured floor.
func (g *Gate) MinCompletionSeconds() float64 { return g.minSeconds }

// Evaluate rejects and flags victory runs shorter than the floor. Runs that
// do not claim a victory are informational and always accepted.
func (g *Gate) Evaluate(value float64, victory bool) Verdict {
	if victory && value < g.minSeconds {
		return Verdict{Accepted: false, ShouldFlag: true}
	}
	return Verdict{Accepted: true}
}
