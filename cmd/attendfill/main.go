package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"attendfill/internal/config"
	appLog "attendfill/internal/log"
)

var version = "0.1.0-dev"

// options holds the persistent CLI flags.
type options struct {
	configPath string
	verbose    bool
	seed       uint64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR, please fulfill schedule manually: %s\n", err)
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Sync()
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "attendfill",
		Short: "Fill in missing attendance records for the current month",
		Long: `attendfill walks every day from the 1st of the current month to today and
creates an attendance record for each working day that has none, skipping
weekends, approved time off and holidays of the configured region.

Running without a subcommand is the same as "attendfill run".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, opts, false)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath(), "path to config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().Uint64Var(&opts.seed, "seed", 0, "random seed for schedule generation (0 = time based)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Create the missing records of the current month once",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOnce(cmd, opts, false)
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "List which days of the current month still need a record, without creating any",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOnce(cmd, opts, true)
			},
		},
		newDaemonCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "attendfill", version)
			},
		},
	)
	return root
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
