package api

import (
	"sync"
	"time"

	"pantrywatch/internal/types"
)

// HeartbeatPresence tracks device interactivity from client heartbeats. The
// UI posts a heartbeat while it is in the foreground; the user counts as
// interactive until window elapses after the last one.
type HeartbeatPresence struct {
	mu     sync.Mutex
	last   time.Time
	window time.Duration
	clock  types.Clock
}

// NewHeartbeatPresence creates a presence tracker with the given freshness
// window. A process that has never received a heartbeat reports not
// interactive.
func NewHeartbeatPresence(window time.Duration, clock types.Clock) *HeartbeatPresence {
	return &HeartbeatPresence{window: window, clock: clock}
}

// Heartbeat records a client liveness signal.
func (p *HeartbeatPresence) Heartbeat() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = p.clock.Now()
}

// Interactive reports whether a heartbeat arrived within the freshness
// window.
func (p *HeartbeatPresence) Interactive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last.IsZero() {
		return false
	}
	return p.clock.Now().Sub(p.last) <= p.window
}

var _ types.Presence = (*HeartbeatPresence)(nil)
