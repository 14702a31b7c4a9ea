package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github-activity-resolver/internal/app"
	"github-activity-resolver/internal/config"
	"github-activity-resolver/internal/model"
)

// maxUsernames matches the limit of the HTTP endpoint.
const maxUsernames = 100

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <username>...",
		Short: "Resolves activity for one or more users and prints it as JSON",
		Long: `Resolves activity for the given GitHub users, serving from storage when the
store already has records and fetching from GitHub otherwise. The report is
printed to standard output as indented JSON.`,
		Args: cobra.RangeArgs(1, maxUsernames),
		RunE: runResolve,
	}
	cmd.Flags().Int("min-forks", 0, "Override MIN_FORK_COUNT for this run")
	cmd.Flags().Int("months", 0, "Override MONTHS_TO_ANALYZE for this run")
	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Logs go to stderr so stdout carries only the report.
	verbose, _ := cmd.Flags().GetBool("verbose")
	logOutput := io.Discard
	if verbose {
		logOutput = os.Stderr
	}
	logger, logLevel := app.NewLogger(logOutput)

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.SetLogLevel(cfg.LogLevel, logLevel)
	if verbose {
		logLevel.Set(slog.LevelDebug)
	}
	if err := applyOverrides(cmd, cfg); err != nil {
		return err
	}
	if cfg.GithubToken == "" {
		return errors.New("GITHUB_TOKEN environment variable is not set")
	}

	store, closeStore, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	service, err := app.NewService(cfg, store, logger)
	if err != nil {
		return err
	}
	report, err := service.ResolveActivity(ctx, args)
	if err != nil {
		return fmt.Errorf("failed to resolve activity: %w", err)
	}
	return printReport(cmd.OutOrStdout(), report)
}

// applyOverrides copies explicitly set flags onto cfg and revalidates it.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("min-forks") {
		cfg.MinForkCount, _ = cmd.Flags().GetInt("min-forks")
	}
	if cmd.Flags().Changed("months") {
		cfg.MonthsToAnalyze, _ = cmd.Flags().GetInt("months")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func printReport(w io.Writer, report model.ActivityReport) error {
	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}
