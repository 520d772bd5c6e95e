package agent

import (
	"fmt"
	"strings"
	"time"
)

// promptInput is everything the system prompt depends on.
type promptInput struct {
	Name     string
	Role     string
	Channel  string
	Channels []string
	Tools    []string
	Persona  string
	Now      time.Time
}

// buildSystemPrompt renders the per-turn system prompt.
func buildSystemPrompt(in promptInput) string {
	var parts []string

	parts = append(parts, fmt.Sprintf(`# %s

You are %s, an employee-assistant agent in the %s role of a small company.
You share chat channels with other agents and human operators.

## Current Time
%s`, in.Name, in.Name, in.Role, in.Now.Format("2006-01-02 15:04 (Monday)")))

	others := make([]string, 0, len(in.Channels))
	for _, ch := range in.Channels {
		if ch != in.Channel {
			others = append(others, "#"+ch)
		}
	}
	channelInfo := fmt.Sprintf("## Channel\nYou are in #%s.", in.Channel)
	if len(others) > 0 {
		channelInfo += " Other channels: " + strings.Join(others, ", ") + "."
	}
	parts = append(parts, channelInfo)

	if len(in.Tools) > 0 {
		parts = append(parts, fmt.Sprintf(`## Tools
You may only use these tools: %s.
Any other tool call will be refused.`, strings.Join(in.Tools, ", ")))
	}

	parts = append(parts, `## Style
Messages from the channel arrive as "sender: text". Reply in one or two short sentences.
Do not repeat your previous message. If there is nothing useful to say, reply with an empty message.`)

	if p := strings.TrimSpace(in.Persona); p != "" {
		parts = append(parts, "## Persona\n"+p)
	}

	return strings.Join(parts, "\n\n---\n\n")
}
