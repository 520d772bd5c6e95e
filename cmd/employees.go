package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dayuer/officebot/internal/employees"
	"github.com/dayuer/officebot/internal/redis"
)

var employeesCmd = &cobra.Command{
	Use:   "employees",
	Short: "Inspect the employee records",
}

var employeesListCmd = &cobra.Command{
	Use:   "list [department]",
	Short: "List employees, optionally for one department",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *employees.Store) error {
			doc, err := s.List(ctx, firstArg(args))
			if err != nil {
				return err
			}
			for _, dept := range doc.Departments() {
				fmt.Printf("%s (%d)\n", dept, len(doc[dept]))
				for _, e := range doc[dept] {
					fmt.Printf("  %-24s %-24s %s\n", e.Name, e.Position, e.HireDate)
				}
			}
			return nil
		})
	},
}

var employeesStatsCmd = &cobra.Command{
	Use:   "stats [department]",
	Short: "Show headcount per position",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *employees.Store) error {
			stats, err := s.Stats(ctx, firstArg(args))
			if err != nil {
				return err
			}
			return printJSON(stats)
		})
	},
}

var employeesReportCmd = &cobra.Command{
	Use:   "report [department]",
	Short: "Print the headcount report",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s *employees.Store) error {
			report, err := s.Report(ctx, firstArg(args))
			if err != nil {
				return err
			}
			fmt.Print(report)
			return nil
		})
	},
}

func init() {
	employeesCmd.AddCommand(employeesListCmd, employeesStatsCmd, employeesReportCmd)
	rootCmd.AddCommand(employeesCmd)
}

func withStore(fn func(ctx context.Context, s *employees.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	connectRedis(cfg)
	defer redis.Close()

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	return fn(context.Background(), s)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
