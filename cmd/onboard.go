package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dayuer/officebot/internal/config"
	"github.com/dayuer/officebot/internal/employees"
	"github.com/dayuer/officebot/internal/utils"
	"github.com/spf13/cobra"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Write the default config, agent lineup and employee store",
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

const exampleRoster = `# Agent lineup. Roles: HR, Management, General.
agents:
  - name: HR_Agent
    role: HR
    channel: HR
  - name: Manager_Agent
    role: Management
    channel: Management
  - name: Operations_Agent1
    role: General
    channel: General
  - name: Operations_Agent2
    role: General
    channel: Tech
    # persona: "You keep an eye on infrastructure questions."
    # model: llama3.1

# Replace a role's tool row (optional):
# roles:
#   General: [list_employees, log_activity, send_message, view_channel_history]
`

func runOnboard(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
	} else {
		if err := config.Save(config.DefaultConfig(), path); err != nil {
			return fmt.Errorf("creating config: %w", err)
		}
		fmt.Printf("✓ Created config at %s\n", path)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rosterPath := utils.ExpandHome(cfg.Roster)
	if _, err := os.Stat(rosterPath); os.IsNotExist(err) {
		if _, err := utils.EnsureDir(filepath.Dir(rosterPath)); err != nil {
			return err
		}
		if err := os.WriteFile(rosterPath, []byte(exampleRoster), 0644); err != nil {
			return fmt.Errorf("writing agents.yaml: %w", err)
		}
		fmt.Printf("  Created %s\n", rosterPath)
	}

	if cfg.Store.Backend == "" || cfg.Store.Backend == "file" {
		storePath := utils.ExpandHome(cfg.Store.Path)
		if _, err := os.Stat(storePath); os.IsNotExist(err) {
			if err := employees.NewFileBackend(storePath).Save(context.Background(), employees.DefaultDocument()); err != nil {
				return fmt.Errorf("creating employee store: %w", err)
			}
			fmt.Printf("  Created %s\n", storePath)
		}
	}

	fmt.Println("\nofficebot is ready!")
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Pick a provider and model in %s (default: local Ollama)\n", path)
	fmt.Println("  2. Start the office: officebot run")
	return nil
}
