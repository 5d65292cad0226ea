package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"attendfill/internal/config"
	"attendfill/internal/credentials"
	"attendfill/internal/ics"
	appLog "attendfill/internal/log"
	"attendfill/internal/remote"
	"attendfill/internal/schedule"
	"attendfill/internal/walker"
)

// loadConfig reads the config file, applies .env and environment overrides
// and sets the log level.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", opts.configPath, err)
	}

	level := appLog.ParseLevel(cfg.LogLevel)
	if opts.verbose {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	appLog.Info("effective config",
		"config_path", opts.configPath,
		"api_url", cfg.APIURL,
		"region", cfg.Region,
		"timeout", cfg.Timeout,
		"holiday_feeds", len(cfg.HolidayFeeds),
		"log_level", string(level),
	)
	return cfg, nil
}

func resolveCredentials(opts *options, cfg *config.Config) (credentials.Credentials, error) {
	path := config.ResolvePath(opts.configPath, cfg.CredentialsFile)
	return credentials.Resolve(path, credentials.NewTerminalPrompter())
}

// newRunner wires the remote client, the optional holiday feeds and the
// schedule policy into a walker.Runner.
func newRunner(opts *options, cfg *config.Config, dryRun bool) (*walker.Runner, error) {
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return nil, err
	}

	client := remote.NewClient(remote.Options{
		BaseURL: cfg.APIURL,
		Origin:  cfg.Origin,
		Timeout: timeout,
	})

	wopts := walker.Options{
		Region:  cfg.Region,
		Policy:  schedule.PolicyFrom(cfg.Schedule),
		Sampler: schedule.NewSampler(opts.seed),
		DryRun:  dryRun,
	}
	if len(cfg.HolidayFeeds) > 0 {
		for _, f := range cfg.HolidayFeeds {
			id := f.ID
			if id == "" {
				id = f.URL
			}
			wopts.Feeds = append(wopts.Feeds, ics.Source{ID: id, URL: f.URL})
		}
		wopts.FeedFetcher = ics.NewFetcher(config.ResolvePath(opts.configPath, cfg.CacheDir), timeout)
	}
	return walker.NewRunner(client, wopts), nil
}

// runOnce executes a single run (or a dry run) and prints the outcome.
func runOnce(cmd *cobra.Command, opts *options, dryRun bool) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	creds, err := resolveCredentials(opts, cfg)
	if err != nil {
		return err
	}
	runner, err := newRunner(opts, cfg, dryRun)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	rep, err := runner.Run(ctx, creds)

	// Records created before a failure stay on the platform, so they are
	// always listed.
	out := cmd.OutOrStdout()
	if dryRun {
		for _, e := range rep.Entries {
			status := string(e.Reason)
			if e.Planned {
				status = "missing"
			}
			fmt.Fprintf(out, "%s  %s\n", e.Day, status)
		}
	} else {
		for _, e := range rep.Entries {
			if e.Record != nil {
				fmt.Fprintln(out, walker.Describe(e.Day, *e.Record))
			}
		}
	}
	if err != nil {
		return err
	}
	if !dryRun {
		fmt.Fprintln(out, "Done!")
	}
	return nil
}
