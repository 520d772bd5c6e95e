package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dayuer/officebot/internal/console"
	"github.com/dayuer/officebot/internal/server"
	"github.com/dayuer/officebot/internal/utils"
)

var (
	runNoConsole bool
	runServer    bool
	runChannel   string
	runLogFile   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start every agent and follow the channels from the console",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runNoConsole, "no-console", false, "Run headless (no interactive console)")
	runCmd.Flags().BoolVar(&runServer, "server", false, "Also serve the HTTP/WebSocket API (overrides server.enabled)")
	runCmd.Flags().StringVar(&runChannel, "channel", "General", "Channel the console follows first")
	runCmd.Flags().StringVar(&runLogFile, "log-file", "", "Log file while the console is attached (default ~/.officebot/officebot.log)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The console owns stdout, so agent logs go to a file while it is attached.
	if !runNoConsole {
		closeLog, err := redirectLog(runLogFile)
		if err != nil {
			return err
		}
		defer closeLog()
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Println("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	errCh := make(chan error, 2)
	go func() { errCh <- rt.roster.Run(ctx) }()
	fmt.Printf("✓ %d agents on %d channels\n", rt.roster.Len(), len(rt.bus.Channels()))

	if runServer || cfg.Server.Enabled {
		scfg := server.Config{
			Addr:     cfg.Server.Addr(),
			APIKey:   cfg.Server.APIKey,
			Operator: cfg.Operator,
			Bus:      rt.bus,
			Agents:   rt.roster,
		}
		if rt.timeline != nil {
			scfg.Timeline = rt.timeline
		}
		srv := server.New(scfg)
		go func() {
			if err := srv.Start(ctx); err != nil {
				log.Printf("[Server] %v", err)
				cancel()
			}
		}()
		fmt.Printf("✓ API on http://%s\n", cfg.Server.Addr())
	}

	if runNoConsole {
		err := <-errCh
		if err != nil {
			log.Printf("[Roster] %v", err)
		}
		return nil
	}

	c := console.New(console.Config{
		Bus:      rt.bus,
		Agents:   rt.roster,
		Operator: cfg.Operator,
		Channel:  runChannel,
		In:       os.Stdin,
		Out:      os.Stdout,
	})
	if err := c.Run(ctx); err != nil {
		log.Printf("[Console] %v", err)
	}

	cancel()
	rt.roster.Stop()
	if err := <-errCh; err != nil {
		log.Printf("[Roster] %v", err)
	}
	return nil
}

// redirectLog points the standard logger at path (or the default log file)
// and returns a function that closes it.
func redirectLog(path string) (func(), error) {
	if path == "" {
		path = filepath.Join(utils.GetDataPath(), "officebot.log")
	} else {
		path = utils.ExpandHome(path)
	}
	if _, err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	prev := log.Writer()
	log.SetOutput(f)
	return func() {
		log.SetOutput(prev)
		f.Close()
	}, nil
}
