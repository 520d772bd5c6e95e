package agent

import (
	"fmt"

	"github.com/dayuer/officebot/internal/providers"
)

// Transcript is an agent's conversation history in model format.
// It is not safe for concurrent use; the owning Agent guards it.
type Transcript struct {
	turns    []providers.Message
	maxTurns int
}

// NewTranscript creates a transcript that keeps at most maxTurns turns.
// Zero means unbounded.
func NewTranscript(maxTurns int) *Transcript {
	return &Transcript{maxTurns: maxTurns}
}

func (t *Transcript) add(m providers.Message) {
	t.turns = append(t.turns, m)
	if t.maxTurns > 0 && len(t.turns) > t.maxTurns {
		drop := len(t.turns) - t.maxTurns
		t.turns = append([]providers.Message(nil), t.turns[drop:]...)
	}
}

// AddUser appends a channel message as a user turn.
func (t *Transcript) AddUser(sender, content string) {
	t.add(providers.Message{Role: providers.RoleUser, Content: fmt.Sprintf("%s: %s", sender, content)})
}

// AddAssistant appends a model turn, with any tool calls it requested.
func (t *Transcript) AddAssistant(content string, calls []providers.ToolCallRequest) {
	t.add(providers.Message{Role: providers.RoleAssistant, Content: content, ToolCalls: calls})
}

// AddToolResult appends the answer to one tool call.
func (t *Transcript) AddToolResult(callID, name, result string) {
	t.add(providers.Message{Role: providers.RoleTool, Content: result, ToolCallID: callID, Name: name})
}

// Window returns a copy of the last n turns, never starting on a tool turn
// whose assistant call fell outside the window.
func (t *Transcript) Window(n int) []providers.Message {
	start := 0
	if n > 0 && len(t.turns) > n {
		start = len(t.turns) - n
	}
	for start < len(t.turns) && t.turns[start].Role == providers.RoleTool {
		start++
	}
	out := make([]providers.Message, len(t.turns)-start)
	copy(out, t.turns[start:])
	return out
}

// Len returns the number of turns held.
func (t *Transcript) Len() int { return len(t.turns) }

