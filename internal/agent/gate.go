package agent

import (
	"sync"
	"time"
)

// Gate rate-limits and deduplicates an agent's outgoing messages.
// Check and record happen under one lock, so two concurrent callers can never
// both pass for the same cooldown window.
type Gate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     string
	lastAt   time.Time
	has      bool
}

// NewGate creates a gate with the given cooldown.
func NewGate(cooldown time.Duration) *Gate {
	return &Gate{cooldown: cooldown}
}

// Allow reports whether content may be published at now, and records it if so.
// It rejects anything inside the cooldown window and any exact repeat of the
// last accepted content.
func (g *Gate) Allow(content string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.has {
		if now.Sub(g.lastAt) < g.cooldown {
			return false
		}
		if content == g.last {
			return false
		}
	}
	g.last, g.lastAt, g.has = content, now, true
	return true
}

// Last returns the last accepted content and when it was accepted.
func (g *Gate) Last() (content string, at time.Time, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last, g.lastAt, g.has
}
