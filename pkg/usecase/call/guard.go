package call

import "sync/atomic"

// Guard is the interruption epoch. Every asynchronous result is tagged with
// the epoch it started under and applied only if the epoch is unchanged.
type Guard struct {
	epoch atomic.Uint64
}

// Current returns the current epoch.
func (g *Guard) Current() uint64 {
	return g.epoch.Load()
}

// Advance invalidates all in-flight work and returns the new epoch.
func (g *Guard) Advance() uint64 {
	return g.epoch.Add(1)
}

// IsCurrent reports whether work tagged with epoch may still take effect.
func (g *Guard) IsCurrent(epoch uint64) bool {
	return g.epoch.Load() == epoch
}
