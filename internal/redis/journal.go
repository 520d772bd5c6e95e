package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/dayuer/officebot/internal/timeline"
)

// ActivityJournal mirrors agent activity into per-agent Redis lists so other
// processes can tail it. Tool calls are not mirrored.
type ActivityJournal struct {
	Max int64 // list length cap; zero keeps everything
}

// RecordActivity appends "<RFC3339> #channel text" to the agent's list.
func (j ActivityJournal) RecordActivity(ctx context.Context, a timeline.Activity) error {
	at := a.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	entry := fmt.Sprintf("%s #%s %s", at.UTC().Format(time.RFC3339), a.Channel, a.Text)
	return AppendActivity(ctx, a.Agent, entry, j.Max)
}

func (j ActivityJournal) RecordToolCall(context.Context, timeline.ToolCall) error { return nil }
