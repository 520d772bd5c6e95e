package agent

import (
	"sync"
	"time"
)

// ActivityEntry is one line of an agent's activity log.
type ActivityEntry struct {
	Text    string    `json:"text"`
	Channel string    `json:"channel"`
	At      time.Time `json:"at"`
}

// ActivityLog is an in-memory, bounded, append-only activity record.
type ActivityLog struct {
	mu      sync.Mutex
	entries []ActivityEntry
	limit   int
}

// NewActivityLog keeps at most limit entries (0 = unbounded).
func NewActivityLog(limit int) *ActivityLog {
	return &ActivityLog{limit: limit}
}

// Append records an entry, evicting the oldest past the limit.
func (l *ActivityLog) Append(e ActivityEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if l.limit > 0 && len(l.entries) > l.limit {
		l.entries = append([]ActivityEntry(nil), l.entries[len(l.entries)-l.limit:]...)
	}
}

// Entries returns a copy, oldest first.
func (l *ActivityLog) Entries() []ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ActivityEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *ActivityLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
