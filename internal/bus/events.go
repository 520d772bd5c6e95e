// Package bus provides the in-process channel bus shared by agents and operators.
package bus

import (
	"fmt"
	"time"
)

// Message is one published line on a channel. Immutable once published.
type Message struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// String renders the message the way the operator console shows it.
func (m Message) String() string {
	return fmt.Sprintf("[%s] %s: %s", m.Channel, m.Sender, m.Content)
}

// Cursor marks how far a listener has read into a channel.
// Offset counts messages already observed; Generation changes whenever the
// channel is cleared so stale cursors restart from the beginning.
type Cursor struct {
	Generation uint64 `json:"generation"`
	Offset     int    `json:"offset"`
}
