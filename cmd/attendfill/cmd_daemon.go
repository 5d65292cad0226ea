package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"attendfill/internal/daemon"
	appLog "attendfill/internal/log"
	"attendfill/internal/walker"
	"attendfill/internal/web"
)

func newDaemonCmd(opts *options) *cobra.Command {
	var (
		listen string
		runNow bool
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run on the configured cron schedule, optionally serving status over HTTP",
		Long: `Runs the month walk every time the "cron" schedule of the config fires
(default: 19:00 Monday to Friday). Credentials are resolved once at startup.

When "listen" is set, a status server exposes /health, /api/status,
/api/last-run and POST /api/run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			creds, err := resolveCredentials(opts, cfg)
			if err != nil {
				return err
			}
			runner, err := newRunner(opts, cfg, false)
			if err != nil {
				return err
			}

			sched, err := daemon.New(cfg.Cron, func(ctx context.Context) (walker.Report, error) {
				return runner.Run(ctx, creds)
			}, web.NewStatus())
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			sched.Start()
			defer sched.Stop()
			appLog.Info("daemon started", "cron", cfg.Cron, "listen", cfg.Listen)

			if runNow {
				if err := sched.Trigger(); err != nil {
					appLog.Error("initial run not started", err)
				}
			}

			if cfg.Listen == "" {
				<-ctx.Done()
				appLog.Info("daemon exiting")
				return nil
			}

			srv := web.NewServer(cfg, sched.Status(), sched.Trigger)
			if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("status server: %w", err)
			}
			appLog.Info("daemon exiting")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "status server address (overrides config if set)")
	cmd.Flags().BoolVar(&runNow, "now", false, "start a run immediately instead of waiting for the first tick")
	return cmd
}
