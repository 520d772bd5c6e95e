package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dayuer/officebot/internal/bus"
	"github.com/dayuer/officebot/internal/roles"
	"github.com/dayuer/officebot/internal/utils"
)

const defaultHistoryLimit = 10

// BroadcastTool posts one announcement to every channel.
type BroadcastTool struct {
	Access
	Bus *bus.ChannelBus
}

func (t *BroadcastTool) Name() string        { return roles.BroadcastMessage }
func (t *BroadcastTool) Description() string { return "Broadcast an announcement to every channel." }
func (t *BroadcastTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"text": stringProp("Announcement text"),
	}, "text")
}

func (t *BroadcastTool) Execute(_ context.Context, args map[string]any) (string, error) {
	if msg, denied := t.Denied(t.Name(), "broadcast messages"); denied {
		return msg, nil
	}
	var in struct {
		Text string `json:"text"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return ArgError(t.Name(), err), nil
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return "Error: text is required", nil
	}
	channels := t.Bus.Channels()
	for _, ch := range channels {
		t.Bus.Publish(ch, t.Seat.Name(), "[Broadcast] "+text)
	}
	t.Seat.RecordActivity("Broadcast: " + text)
	return fmt.Sprintf("Broadcast sent to %d channel(s): %s", len(channels), strings.Join(channels, ", ")), nil
}

// ChangeChannelTool moves the agent to another existing channel.
type ChangeChannelTool struct {
	Access
	Bus *bus.ChannelBus
}

func (t *ChangeChannelTool) Name() string        { return roles.ChangeChannel }
func (t *ChangeChannelTool) Description() string { return "Move to another existing channel." }
func (t *ChangeChannelTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"new_channel": stringProp("Name of the channel to join"),
	}, "new_channel")
}

func (t *ChangeChannelTool) Execute(_ context.Context, args map[string]any) (string, error) {
	if msg, denied := t.Denied(t.Name(), "change channels"); denied {
		return msg, nil
	}
	var in struct {
		NewChannel string `json:"new_channel"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return ArgError(t.Name(), err), nil
	}
	target := utils.NormalizeChannel(in.NewChannel)
	if target == "" {
		return "Error: new_channel is required", nil
	}
	if !t.Bus.Exists(target) {
		return fmt.Sprintf("Error: Channel '%s' does not exist", target), nil
	}
	if target == t.Seat.Channel() {
		return fmt.Sprintf("Already in #%s.", target), nil
	}
	old := t.Seat.SwitchChannel(target)
	t.Bus.Publish(old, t.Seat.Name(), fmt.Sprintf("%s switched to #%s", t.Seat.Name(), target))
	t.Seat.RecordActivity(fmt.Sprintf("Switched from #%s to #%s", old, target))
	return fmt.Sprintf("Switched from #%s to #%s.", old, target), nil
}

// ChannelHistoryTool returns the recent messages of the agent's channel.
type ChannelHistoryTool struct {
	Access
	Bus *bus.ChannelBus
}

func (t *ChannelHistoryTool) Name() string { return roles.ViewChannelHistory }
func (t *ChannelHistoryTool) Description() string {
	return "View the most recent messages of the current channel."
}
func (t *ChannelHistoryTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"limit": map[string]any{"type": "integer", "description": "How many messages to return (default 10)"},
	})
}

type historyEntry struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func (t *ChannelHistoryTool) Execute(_ context.Context, args map[string]any) (string, error) {
	if msg, denied := t.Denied(t.Name(), "view channel history"); denied {
		return msg, nil
	}
	var in struct {
		Limit flexInt `json:"limit"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return ArgError(t.Name(), err), nil
	}
	limit := defaultHistoryLimit
	if in.Limit.Set {
		if in.Limit.Value <= 0 {
			return "Error: limit must be positive", nil
		}
		limit = in.Limit.Value
	}

	channel := t.Seat.Channel()
	msgs := t.Bus.History(channel, limit)
	entries := make([]historyEntry, len(msgs))
	for i, m := range msgs {
		entries[i] = historyEntry{Sender: m.Sender, Content: m.Content, Timestamp: m.Timestamp}
	}
	return toJSON(map[string]any{
		"channel":  channel,
		"messages": entries,
	})
}

// SendMessageTool posts to a named channel through the agent's own gate.
type SendMessageTool struct {
	Access
	Bus *bus.ChannelBus
}

func (t *SendMessageTool) Name() string { return roles.SendMessage }
func (t *SendMessageTool) Description() string {
	return "Send a message to a channel. Subject to the same cooldown and duplicate checks as replies."
}
func (t *SendMessageTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"target_channel": stringProp("Channel to post in"),
		"content":        stringProp("Message text"),
	}, "target_channel", "content")
}

func (t *SendMessageTool) Execute(_ context.Context, args map[string]any) (string, error) {
	if msg, denied := t.Denied(t.Name(), "send messages"); denied {
		return msg, nil
	}
	var in struct {
		TargetChannel string `json:"target_channel"`
		Content       string `json:"content"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return ArgError(t.Name(), err), nil
	}
	target := utils.NormalizeChannel(in.TargetChannel)
	content := strings.TrimSpace(in.Content)
	if target == "" || content == "" {
		return "Error: target_channel and content are required", nil
	}
	if !t.Seat.Say(target, content) {
		return "Message not sent: cooldown active or duplicate of the last message.", nil
	}
	return fmt.Sprintf("Message sent to #%s.", target), nil
}
