package cmd

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dayuer/officebot/internal/config"
	"github.com/dayuer/officebot/internal/providers"
	"github.com/dayuer/officebot/internal/utils"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, agent lineup and role table",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("officebot status")
	fmt.Println()
	fmt.Printf("Config: %s\n", path)
	fmt.Printf("Model: %s\n", cfg.Agent.Model)
	if spec := providers.Detect(cfg.Provider.Name, cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Agent.Model); spec != nil {
		_, base := spec.ResolveEndpoint(cfg.Provider.APIKey, cfg.Provider.APIBase)
		fmt.Printf("Provider: %s (%s)\n", spec.Label(), base)
	} else {
		fmt.Println("Provider: not detected")
	}

	switch cfg.Store.Backend {
	case "redis":
		fmt.Printf("Store: redis key %s (%s)\n", cfg.Store.RedisKey, cfg.Redis.URL)
	default:
		fmt.Printf("Store: %s\n", utils.ExpandHome(cfg.Store.Path))
	}
	if cfg.Server.Enabled {
		fmt.Printf("Server: http://%s\n", cfg.Server.Addr())
	}

	lineup, reg, err := loadLineup(cfg)
	if err != nil {
		return err
	}

	fmt.Println("\nAgents:")
	for _, a := range lineup.Agents {
		fmt.Printf("  %-20s %-11s #%s\n", a.Name, a.Role, a.Channel)
	}

	fmt.Println("\nRoles:")
	for _, role := range reg.Roles() {
		tools, _ := reg.ToolsFor(role)
		fmt.Printf("  %-11s %s\n", role, strings.Join(tools, ", "))
	}

	if cfg.Timeline.Enabled {
		tl, err := openTimeline(cfg)
		if err != nil {
			return err
		}
		defer tl.Close()
		denied, err := tl.DeniedCount(context.Background())
		if err != nil {
			return err
		}
		if len(denied) > 0 {
			fmt.Println("\nDenied tool calls:")
			for _, name := range slices.Sorted(maps.Keys(denied)) {
				fmt.Printf("  %-20s %d\n", name, denied[name])
			}
		}
	}
	return nil
}
