package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dayuer/officebot/internal/redis"
	"github.com/dayuer/officebot/internal/timeline"
	"github.com/dayuer/officebot/internal/utils"
)

var (
	activityAgent string
	activityTool  string
	activityLimit int
	activitySince time.Duration
	activityLive  bool
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show the recorded agent activity",
	RunE:  runActivity,
}

var toolCallsCmd = &cobra.Command{
	Use:   "tool-calls",
	Short: "Show recorded tool calls, allowed and denied",
	RunE:  runToolCalls,
}

func init() {
	for _, c := range []*cobra.Command{activityCmd, toolCallsCmd} {
		c.Flags().StringVar(&activityAgent, "agent", "", "Only this agent")
		c.Flags().IntVarP(&activityLimit, "limit", "n", 20, "Maximum entries")
		c.Flags().DurationVar(&activitySince, "since", 0, "Only entries newer than this (e.g. 1h)")
	}
	toolCallsCmd.Flags().StringVar(&activityTool, "tool", "", "Only this tool")
	activityCmd.Flags().BoolVar(&activityLive, "redis", false, "Read the Redis mirror of --agent instead of the timeline")
	rootCmd.AddCommand(activityCmd, toolCallsCmd)
}

func activityFilter() timeline.Filter {
	f := timeline.Filter{Agent: activityAgent, Tool: activityTool, Limit: activityLimit}
	if activitySince > 0 {
		since := time.Now().Add(-activitySince)
		f.Since = &since
	}
	return f
}

func withTimeline(fn func(ctx context.Context, tl *timeline.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Timeline.Enabled {
		return errors.New("timeline is disabled (timeline.enabled=false)")
	}
	tl, err := openTimeline(cfg)
	if err != nil {
		return err
	}
	defer tl.Close()
	return fn(context.Background(), tl)
}

func runActivity(cmd *cobra.Command, args []string) error {
	if activityLive {
		return runRedisActivity()
	}
	return withTimeline(func(ctx context.Context, tl *timeline.Service) error {
		acts, err := tl.Activities(ctx, activityFilter())
		if err != nil {
			return err
		}
		for _, a := range acts {
			fmt.Printf("%s  %-20s #%-11s %s\n", a.CreatedAt.Local().Format(time.DateTime), a.Agent, a.Channel, a.Text)
		}
		return nil
	})
}

func runToolCalls(cmd *cobra.Command, args []string) error {
	return withTimeline(func(ctx context.Context, tl *timeline.Service) error {
		calls, err := tl.ToolCalls(ctx, activityFilter())
		if err != nil {
			return err
		}
		for _, c := range calls {
			mark := "ok"
			if !c.Allowed {
				mark = "DENIED"
			} else if c.ErrorText != "" {
				mark = "error"
			}
			fmt.Printf("%s  %-20s %-22s %-6s %s\n",
				c.CreatedAt.Local().Format(time.DateTime), c.Agent, c.Tool, mark,
				utils.TruncateString(c.Arguments, 60, ""))
		}
		return nil
	})
}

func runRedisActivity() error {
	if activityAgent == "" {
		return errors.New("--redis needs --agent")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !connectRedis(cfg) {
		return redis.ErrUnavailable
	}
	defer redis.Close()

	entries, err := redis.RecentActivity(context.Background(), activityAgent, int64(activityLimit))
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Println(e)
	}
	return nil
}
