package relay

import "sync/atomic"

type counters struct {
	turns   atomic.Int64
	failed  atomic.Int64
	skipped atomic.Int64
}

// Stats is a point-in-time view of relay activity.
type Stats struct {
	Turns         int64 `json:"turns"`
	FailedTurns   int64 `json:"failed_turns"`
	SkippedFrames int64 `json:"skipped_frames"`
}

// Stats returns the counters accumulated since the relay was created.
func (r *Relay) Stats() Stats {
	return Stats{
		Turns:         r.stats.turns.Load(),
		FailedTurns:   r.stats.failed.Load(),
		SkippedFrames: r.stats.skipped.Load(),
	}
}
