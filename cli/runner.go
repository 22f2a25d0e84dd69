// Command execution for CLI commands.
//
// Information Hiding:
// - Wiring of settings into hosting, model, pipeline and storage
// - Exit code mapping
// - Output formatting hidden

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/richinex/reposcope/analysis"
	"github.com/richinex/reposcope/config"
	"github.com/richinex/reposcope/hosting"
	"github.com/richinex/reposcope/internal/apperr"
	"github.com/richinex/reposcope/llm"
	"github.com/richinex/reposcope/logging"
	"github.com/richinex/reposcope/metrics"
	"github.com/richinex/reposcope/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitUsage    = 1 // invalid arguments or interrupted
	ExitConfig   = 2 // configuration or environment invalid
	ExitAnalysis = 3 // analysis failed
	ExitIO       = 4 // results could not be written
)

// ExitError carries the exit code a command failed with.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

func exitErr(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitUsage
}

// Options holds flag values for the analyze command. Zero values leave the
// configured setting unchanged.
type Options struct {
	ConfigPath  string
	Provider    string
	Model       string
	OutputDir   string
	Format      string
	MaxFiles    int
	MaxFileSize int
	Concurrency int
	MetricsFile string
	LogLevel    string
	Print       bool

	Stdout io.Writer
	Stderr io.Writer
	Fs     afero.Fs // output filesystem; nil means the OS filesystem
}

func (o *Options) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
}

const ruler = "============================================================"

// Analyze runs one analysis of repo, saves the outcome and prints a summary.
// Error outcomes are saved too before returning an ExitError.
func Analyze(ctx context.Context, repo string, opts Options) error {
	opts.defaults()
	out := opts.Stdout

	ref, err := hosting.ParseRepositoryRef(repo)
	if err != nil {
		return exitErr(ExitUsage, err)
	}

	settings, warnings, err := loadSettings(opts)
	if err != nil {
		return exitErr(ExitConfig, err)
	}

	logger, err := logging.Setup(logging.Options{Level: settings.Log.Level, Dir: settings.Log.Dir, Console: opts.Stderr})
	if err != nil {
		return exitErr(ExitIO, err)
	}
	defer logger.Close()
	log := logger.Logger

	for _, w := range warnings {
		log.Warn().Msg(w)
	}
	if logger.FilePath != "" {
		fmt.Fprintf(out, "Log file: %s\n", logger.FilePath)
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var prom *metrics.PrometheusRecorder
	if settings.Output.MetricsFile != "" {
		prom = metrics.NewPrometheusRecorder(nil)
		recorder = prom
	}

	hc, err := hosting.NewClient(hosting.Config{
		BaseURL:     settings.Hosting.APIURL,
		Token:       settings.Hosting.Token,
		Timeout:     settings.Hosting.Timeout,
		MaxAttempts: settings.Hosting.MaxAttempts,
		BaseDelay:   settings.Hosting.BaseDelay,
		Logger:      log,
		Recorder:    recorder,
	})
	if err != nil {
		return exitErr(ExitConfig, err)
	}

	ai, err := createClient(settings, log, recorder)
	if err != nil {
		return exitErr(ExitConfig, err)
	}

	fmt.Fprintf(out, "Initializing analyzer with model: %s (%s)\n", settings.AI.Model, settings.AI.Provider)
	if opts.ConfigPath != "" {
		fmt.Fprintf(out, "Using configuration file: %s\n", opts.ConfigPath)
	}
	fmt.Fprintf(out, "Analyzing repository: %s\n", ref)

	pipeline := analysis.New(hc, ai, analysis.Options{
		MaxFiles:             settings.Analysis.MaxFiles,
		MaxFileSize:          settings.Analysis.MaxFileSize,
		MaxTotalContent:      settings.Analysis.MaxTotalContent,
		MaxFilesInPrompt:     settings.Analysis.MaxFilesInPrompt,
		FetchConcurrency:     settings.Analysis.FetchConcurrency,
		Filter:               settings.SelectionPolicy(),
		CommandCategories:    settings.Analysis.CommandCategories,
		CustomPromptTemplate: settings.Analysis.CustomPromptTemplate,
		Model:                settings.AI.Model,
		Logger:               log,
		Recorder:             recorder,
	})
	outcome := pipeline.Run(ctx, ref)

	if rc := outcome.Context; rc != nil {
		fmt.Fprintf(out, "Repository context fetched:\n")
		fmt.Fprintf(out, "  - %d total files\n", len(rc.Files))
		fmt.Fprintf(out, "  - %d files analyzed in detail\n", len(rc.Contents.Files))
	}

	format, _ := storage.ParseFormat(settings.Output.Format)
	writer := storage.NewWriter(opts.Fs, settings.Output.Dir, storage.WriterOptions{Format: format, Logger: log})
	path, saveErr := writer.Save(ref.Owner, ref.Name, outcome.Document())

	recordRun(ctx, settings, outcome, ref, path, log)
	if prom != nil {
		if err := prom.WriteTextfile(settings.Output.MetricsFile); err != nil {
			log.Warn().Err(err).Msg("failed to write metrics")
		}
	}

	if outcome.Failed() {
		if saveErr == nil {
			fmt.Fprintf(out, "Error details saved to: %s\n", path)
		}
		if outcome.Error.ErrorKind == string(apperr.KindCanceled) {
			fmt.Fprintln(out, "Analysis interrupted by user")
			return exitErr(ExitUsage, errors.New("analysis interrupted"))
		}
		return exitErr(ExitAnalysis, fmt.Errorf("analysis failed at %s: %s", outcome.Error.Stage, outcome.Error.Error))
	}
	if saveErr != nil {
		return exitErr(ExitIO, saveErr)
	}

	printSummary(out, outcome, ref, path, settings.AI.Model)
	if opts.Print {
		fmt.Fprintln(out, "\n"+ruler)
		if err := storage.Encode(out, storage.FormatJSON, outcome.Result); err != nil {
			return exitErr(ExitIO, err)
		}
	}
	return nil
}

// loadSettings layers flag overrides over the loaded configuration and
// validates the result.
func loadSettings(opts Options) (config.Settings, []string, error) {
	s, warnings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return s, warnings, err
	}

	if opts.Provider != "" {
		s.AI.Provider = opts.Provider
	}
	if opts.Model != "" {
		s.AI.Model = opts.Model
	}
	if opts.OutputDir != "" {
		s.Output.Dir = opts.OutputDir
	}
	if opts.Format != "" {
		s.Output.Format = opts.Format
	}
	if opts.MaxFiles > 0 {
		s.Analysis.MaxFiles = opts.MaxFiles
	}
	if opts.MaxFileSize > 0 {
		s.Analysis.MaxFileSize = opts.MaxFileSize
	}
	if opts.Concurrency > 0 {
		s.Analysis.FetchConcurrency = opts.Concurrency
	}
	if opts.MetricsFile != "" {
		s.Output.MetricsFile = opts.MetricsFile
	}
	if opts.LogLevel != "" {
		s.Log.Level = opts.LogLevel
	}

	more, err := s.Validate()
	return s, append(warnings, more...), err
}

func createClient(s config.Settings, log zerolog.Logger, recorder metrics.Recorder) (*llm.Client, error) {
	providerType, err := llm.ParseProviderType(s.AI.Provider)
	if err != nil {
		return nil, err
	}

	provider, err := providerType.
		Model(s.AI.Model).
		BaseURL(s.AI.BaseURL).
		MaxTokens(s.AI.MaxTokens).
		Temperature(float32(s.AI.Temperature)).
		APIKey(s.AI.APIKey)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindConfigurationInvalid, "cli.client", "cannot initialize AI client")
	}
	log.Info().
		Str(logging.KeyModel, provider.Model()).
		Str("provider", provider.Name()).
		Str("base_url", s.AI.BaseURL).
		Msg("initialized AI client")

	return llm.NewClient(provider, llm.ClientConfig{
		MaxAttempts: s.AI.MaxAttempts,
		BaseDelay:   s.AI.BaseDelay,
		Timeout:     s.AI.Timeout,
		Logger:      log,
		Recorder:    recorder,
	}), nil
}

// recordRun appends the outcome to the run ledger. Ledger failures never
// fail the command.
func recordRun(ctx context.Context, s config.Settings, o *analysis.Outcome, ref hosting.RepositoryRef, path string, log zerolog.Logger) {
	if s.Output.HistoryDB == "" {
		return
	}
	ledger, err := storage.OpenSqlite(s.Output.HistoryDB)
	if err != nil {
		log.Warn().Err(err).Msg("run ledger unavailable")
		return
	}
	defer ledger.Close()

	rec := storage.RunRecord{
		RunID:      o.RunID,
		Repository: ref.String(),
		Model:      s.AI.Model,
		Status:     storage.StatusSuccess,
		OutputPath: path,
		StartedAt:  o.StartedAt,
		FinishedAt: o.FinishedAt,
	}
	if rc := o.Context; rc != nil {
		rec.FilesTotal = len(rc.Files)
		rec.FilesAnalyzed = len(rc.Contents.Files)
		rec.SelectionMethod = rc.Selection.Method
	}
	if o.Failed() {
		rec.Status = storage.StatusError
		rec.ErrorKind = o.Error.ErrorKind
		rec.Stage = o.Error.Stage
	}

	// The ledger write must survive an interrupted analysis.
	if _, err := ledger.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn().Err(err).Msg("failed to record run")
	}
}

func printSummary(w io.Writer, o *analysis.Outcome, ref hosting.RepositoryRef, path, model string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Analysis completed successfully!")
	fmt.Fprintf(w, "Results saved to: %s\n", path)
	fmt.Fprintf(w, "Repository: %s\n", ref)
	fmt.Fprintf(w, "Model used: %s\n", model)

	section := o.Result.RepositoryAnalysis()
	if section == nil {
		return
	}
	fmt.Fprintf(w, "Architecture: %s\n", stringOr(section["architecture_type"], "Unknown"))
	fmt.Fprintf(w, "Primary tech: %s\n", stringOr(section["primary_technology"], "Unknown"))
	if stack, ok := section["technology_stack"].([]any); ok && len(stack) > 0 {
		fmt.Fprintf(w, "Technologies: %d identified\n", len(stack))
	}
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

// Doctor prints the environment report. It fails with ExitConfig when a
// required credential is missing.
func Doctor(w io.Writer) error {
	report := config.CheckEnvironment()

	fmt.Fprintf(w, "reposcope v%s (%s)\n", analysis.Version, report.GoVersion)
	fmt.Fprintln(w, "Environment variables:")
	for _, name := range []string{config.EnvGitHubToken, config.EnvAIKey, config.EnvAIBaseURL} {
		fmt.Fprintf(w, "  %-16s %s\n", name, report.Variables[name])
	}
	if len(report.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, msg := range report.Warnings {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
	if !report.OK() {
		fmt.Fprintln(w, "Environment validation failed:")
		for _, msg := range report.Errors {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
		return exitErr(ExitConfig, errors.New("environment validation failed"))
	}
	fmt.Fprintln(w, "Environment validation passed")
	return nil
}

// History prints the most recent runs from the ledger.
func History(ctx context.Context, w io.Writer, configPath, repository string, limit int) error {
	settings, _, err := config.Load(configPath)
	if err != nil {
		return exitErr(ExitConfig, err)
	}
	if settings.Output.HistoryDB == "" {
		return exitErr(ExitConfig, errors.New("no history database configured (output.history_db)"))
	}

	ledger, err := storage.OpenSqlite(settings.Output.HistoryDB)
	if err != nil {
		return exitErr(ExitIO, err)
	}
	defer ledger.Close()

	runs, err := ledger.ListRuns(ctx, repository, limit)
	if err != nil {
		return exitErr(ExitIO, err)
	}
	printRuns(w, runs)
	return nil
}

func printRuns(w io.Writer, runs []storage.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "%-20s %-30s %-8s %-14s %6s %8s  %s\n", "STARTED", "REPOSITORY", "STATUS", "MODEL", "FILES", "TOOK", "DETAIL")
	for _, r := range runs {
		detail := r.OutputPath
		if r.Status == storage.StatusError {
			detail = fmt.Sprintf("%s at %s", r.ErrorKind, r.Stage)
		}
		fmt.Fprintf(w, "%-20s %-30s %-8s %-14s %6s %8s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			truncateString(r.Repository, 30),
			r.Status,
			truncateString(r.Model, 14),
			fmt.Sprintf("%d/%d", r.FilesAnalyzed, r.FilesTotal),
			r.Duration().Round(time.Second),
			detail,
		)
	}
}

// Models prints the logical model names with their gateway identifiers.
func Models(w io.Writer) {
	fmt.Fprintln(w, "Available models:")
	for _, name := range llm.KnownModels() {
		marker := " "
		if name == llm.DefaultModel {
			marker = "*"
		}
		fmt.Fprintf(w, " %s %-14s %s\n", marker, name, llm.GatewayModel(name))
	}
	fmt.Fprintf(w, "\nProviders: %s\n", strings.Join(config.SupportedProviders(), ", "))
}

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
