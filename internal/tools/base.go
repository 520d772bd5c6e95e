// Package tools defines the Tool interface and the role-gated office tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dayuer/officebot/internal/bus"
	"github.com/dayuer/officebot/internal/roles"
)

// Tool is the interface that all agent tools must implement.
type Tool interface {
	// Name returns the tool name used in LLM function calls.
	Name() string

	// Description returns what the tool does.
	Description() string

	// Parameters returns the JSON Schema for tool parameters.
	Parameters() map[string]any

	// Execute runs the tool with the given arguments.
	// Validation problems come back in the string as "Error: ..." with a nil
	// error; a non-nil error means a backend failure.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToSchema converts a tool to OpenAI function calling format.
func ToSchema(t Tool) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"parameters":  t.Parameters(),
		},
	}
}

// Seat is the agent a tool acts on behalf of.
type Seat interface {
	Name() string
	Role() roles.Role
	Channel() string

	// SwitchChannel moves the seat to channel, resets its cursor to the
	// channel tail and returns the previous channel.
	SwitchChannel(channel string) string

	// Say publishes through the seat's cooldown/dedup gate.
	Say(channel, content string) bool

	// RecordActivity appends to the seat's activity log.
	RecordActivity(text string)
}

// Deps are the collaborators shared by every tool of one seat.
type Deps struct {
	Seat  Seat
	Roles *roles.Registry
	Bus   *bus.ChannelBus
	Store EmployeeStore
}

// Access is the per-tool permission check, run inside Execute even though the
// agent loop already filtered the call.
type Access struct {
	Seat  Seat
	Roles *roles.Registry
}

// Denied returns the denial text when the seat's role may not use tool.
func (a Access) Denied(tool, action string) (string, bool) {
	if a.Roles != nil && a.Seat != nil && a.Roles.Allowed(a.Seat.Role(), tool) {
		return "", false
	}
	return fmt.Sprintf("Access Denied: You do not have permission to %s.", action), true
}

// decodeArgs maps loosely typed model arguments onto a typed struct.
func decodeArgs(args map[string]any, out any) error {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// ArgError formats a decode failure the way the model sees it.
func ArgError(tool string, err error) string {
	return fmt.Sprintf("Error: invalid arguments for %s: %v", tool, err)
}

// flexInt accepts 5, 5.0 or "5".
type flexInt struct {
	Value int
	Set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		f.Value, f.Set = int(n), true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected a number, got %s", data)
	}
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("expected a number, got %q", s)
	}
	f.Value, f.Set = v, true
	return nil
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
