// Package main provides the reposcope CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/richinex/reposcope/analysis"
	"github.com/richinex/reposcope/cli"
	"github.com/spf13/cobra"
)

// Global flags
var configPath string

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "reposcope",
		Short: "AI-assisted GitHub repository analyzer",
		Long: `Analyze a GitHub repository with a language model.

reposcope fetches the repository tree, picks the files that matter most,
reads them and asks the model for a structured JSON analysis covering
architecture, technology stack and build, test and run commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (yaml, toml or json)")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		var ee *cli.ExitError
		if !errors.As(err, &ee) || ee.Code != cli.ExitUsage || ctx.Err() == nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.ExitCode(err))
}

func analyzeCmd() *cobra.Command {
	var opts cli.Options

	cmd := &cobra.Command{
		Use:   "analyze [owner/repo | url]",
		Short: "Analyze a repository and save the result",
		Long: `Analyze a GitHub repository.

The repository may be given as owner/repo, an https URL or a git@ remote.
Results are written to <output>/<owner>/<repo>_<timestamp>.json together
with a <repo>_latest.json copy. Failed runs save an error document instead.

Exit codes: 0 success, 1 usage or interrupted, 2 configuration,
3 analysis failed, 4 results could not be written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ConfigPath = configPath
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()
			return cli.Analyze(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Provider, "provider", "p", "", "AI provider (openai, anthropic, gemini)")
	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "Model name (see 'reposcope models')")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "Output directory for results")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format (json or yaml)")
	cmd.Flags().IntVar(&opts.MaxFiles, "max-files", 0, "Maximum number of files to analyze in detail")
	cmd.Flags().IntVar(&opts.MaxFileSize, "max-file-size", 0, "Maximum characters kept per file")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "Parallel file content fetches")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.Print, "print", false, "Print the analysis JSON after the summary")

	return cmd
}

func historyCmd() *cobra.Command {
	var repository string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded analysis runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.History(cmd.Context(), cmd.OutOrStdout(), configPath, repository, limit)
		},
	}

	cmd.Flags().StringVarP(&repository, "repo", "r", "", "Only show runs for owner/repo")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")

	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List supported models",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cli.Models(cmd.OutOrStdout())
		},
	}
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check required environment variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Doctor(cmd.OutOrStdout())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the analyzer version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reposcope %s\n", analysis.Version)
		},
	}
}
