package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// channelLog is the append-only history of one channel.
type channelLog struct {
	generation uint64
	messages   []Message
}

// ChannelBus maps channel names to ordered message histories.
// All mutation goes through one RWMutex, so publishers never interleave
// partial appends and readers never observe a torn slice.
type ChannelBus struct {
	mu       sync.RWMutex
	channels map[string]*channelLog
	order    []string
	now      func() time.Time
}

// NewChannelBus creates an empty bus, optionally pre-creating channels.
func NewChannelBus(channels ...string) *ChannelBus {
	b := &ChannelBus{
		channels: make(map[string]*channelLog),
		now:      time.Now,
	}
	b.Ensure(channels...)
	return b
}

// getOrCreate must be called with b.mu held for writing.
func (b *ChannelBus) getOrCreate(channel string) *channelLog {
	if log, ok := b.channels[channel]; ok {
		return log
	}
	log := &channelLog{}
	b.channels[channel] = log
	b.order = append(b.order, channel)
	return log
}

// Ensure creates any of the named channels that do not exist yet.
func (b *ChannelBus) Ensure(channels ...string) {
	if len(channels) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range channels {
		if ch != "" {
			b.getOrCreate(ch)
		}
	}
}

// Publish appends a message to channel, creating the channel if needed.
func (b *ChannelBus) Publish(channel, sender, content string) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Channel:   channel,
		Sender:    sender,
		Content:   content,
		Timestamp: b.now(),
	}

	b.mu.Lock()
	log := b.getOrCreate(channel)
	log.messages = append(log.messages, msg)
	b.mu.Unlock()
	return msg
}

// ReadNew returns the messages appended after cursor and the advanced cursor.
// A cursor from an older generation (the channel was cleared since) or one
// that points past the end is treated as a channel restart and reads from zero.
func (b *ChannelBus) ReadNew(channel string, cursor Cursor) ([]Message, Cursor) {
	b.mu.Lock()
	log := b.getOrCreate(channel)
	start := cursor.Offset
	if cursor.Generation != log.generation || start < 0 || start > len(log.messages) {
		start = 0
	}
	var out []Message
	if n := len(log.messages) - start; n > 0 {
		out = make([]Message, n)
		copy(out, log.messages[start:])
	}
	next := Cursor{Generation: log.generation, Offset: len(log.messages)}
	b.mu.Unlock()
	return out, next
}

// Tail returns a cursor positioned at the current end of channel, so the
// holder only sees messages published from now on.
func (b *ChannelBus) Tail(channel string) Cursor {
	b.mu.Lock()
	defer b.mu.Unlock()
	log := b.getOrCreate(channel)
	return Cursor{Generation: log.generation, Offset: len(log.messages)}
}

// Messages returns a copy of the full history of channel.
func (b *ChannelBus) Messages(channel string) []Message {
	return b.History(channel, 0)
}

// History returns the last limit messages of channel, oldest first.
// A limit of zero or less returns the whole history.
func (b *ChannelBus) History(channel string, limit int) []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	log, ok := b.channels[channel]
	if !ok {
		return []Message{}
	}
	start := 0
	if limit > 0 && len(log.messages) > limit {
		start = len(log.messages) - limit
	}
	out := make([]Message, len(log.messages)-start)
	copy(out, log.messages[start:])
	return out
}

// Clear empties channel. Listeners holding cursors into the old history
// restart from zero on their next read.
func (b *ChannelBus) Clear(channel string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	log := b.getOrCreate(channel)
	log.messages = nil
	log.generation++
}

// Exists reports whether channel has been created.
func (b *ChannelBus) Exists(channel string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.channels[channel]
	return ok
}

// Channels returns all channel names in creation order.
func (b *ChannelBus) Channels() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Len returns the number of messages currently held by channel.
func (b *ChannelBus) Len(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if log, ok := b.channels[channel]; ok {
		return len(log.messages)
	}
	return 0
}
