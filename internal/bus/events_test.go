package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_String(t *testing.T) {
	msg := Message{Channel: "General", Sender: "@operator", Content: "hello"}
	assert.Equal(t, "[General] @operator: hello", msg.String())
}

func TestCursor_ZeroValueReadsFromStart(t *testing.T) {
	b := NewChannelBus()
	b.Publish("General", "a", "one")

	msgs, next := b.ReadNew("General", Cursor{})
	assert.Len(t, msgs, 1)
	assert.Equal(t, 1, next.Offset)
}
