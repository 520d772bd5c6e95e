package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

const logo = `
  ___   __  __ _          _           _
 / _ \ / _|/ _(_) ___ ___| |__   ___ | |_
| | | | |_| |_| |/ __/ _ \ '_ \ / _ \| __|
| |_| |  _|  _| | (_|  __/ |_) | (_) | |_
 \___/|_| |_| |_|\___\___|_.__/ \___/ \__|
`

var configPath string

var rootCmd = &cobra.Command{
	Use:   "officebot",
	Short: "officebot: a small company of LLM agents sharing chat channels",
	Long: color.CyanString(logo) + "\nRole-gated LLM agents (HR, Management, General) that talk on shared\n" +
		"channels and keep the employee records.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.officebot/config.json)")
}
