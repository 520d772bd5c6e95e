package tools

import (
	"context"
	"strings"

	"github.com/dayuer/officebot/internal/bus"
	"github.com/dayuer/officebot/internal/roles"
)

// LogActivityTool records an activity note and announces it on the current channel.
type LogActivityTool struct {
	Access
	Bus *bus.ChannelBus
}

func (t *LogActivityTool) Name() string { return roles.LogActivity }
func (t *LogActivityTool) Description() string {
	return "Record what you just did in your activity log."
}
func (t *LogActivityTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"text": stringProp("Short description of the activity"),
	}, "text")
}

func (t *LogActivityTool) Execute(_ context.Context, args map[string]any) (string, error) {
	if msg, denied := t.Denied(t.Name(), "log activity"); denied {
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
	t.Seat.RecordActivity(text)
	t.Bus.Publish(t.Seat.Channel(), t.Seat.Name(), "[activity] "+text)
	return "Activity logged.", nil
}
