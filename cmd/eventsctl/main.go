package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/events-client/internal/app"
	"github.com/samvad-hq/events-client/internal/config"
	"github.com/samvad-hq/events-client/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "eventsctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &cli{}
	defer c.close()

	return newRootCmd(c).ExecuteContext(ctx)
}

// cli carries the state shared by every subcommand once the root pre-run has loaded it.
type cli struct {
	cfg     *config.Config
	session *app.Session
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "eventsctl",
		Short:         "Read and write events through the events API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsSession(cmd) {
				return nil
			}
			return c.open(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("base-url", "", "events API base URL (env API_BASE_URL)")
	flags.Int64("timeout", 0, "request timeout in milliseconds (env REQUEST_TIMEOUT_MS)")
	flags.String("log-level", "", "log level: debug, info, warn, error (env LOG_LEVEL)")
	flags.StringP("output", "o", "", "output format: json or yaml (env OUTPUT)")
	flags.Bool("fallback", true, "serve reads from the fallback when the API fails (env FALLBACK_ENABLED)")

	root.AddCommand(newGetCmd(c), newSendCmd(c), newEventsCmd(c))
	return root
}

// needsSession is false for cobra's help and shell-completion commands, which never
// talk to the API.
func needsSession(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		switch cmd.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

// open loads config, initializes the logger and builds the API session.
func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.DebugObj("eventsctl starting", "config", cfg)

	session, err := app.NewSession(cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize session", "error", err)
		return err
	}

	c.cfg = cfg
	c.session = session
	return nil
}

// close is safe to call when open never ran or failed.
func (c *cli) close() {
	c.session.Close()
	_ = logger.Close()
}
