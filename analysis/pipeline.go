// Analysis Pipeline - from repository reference to structured analysis.
//
// Information Hiding:
// - Stage ordering and which failures are terminal
// - Construction of selector, fetcher and structure analyzer
// - Prompt assembly, extraction and result metadata

package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/richinex/reposcope/content"
	"github.com/richinex/reposcope/hosting"
	"github.com/richinex/reposcope/internal/apperr"
	jsonx "github.com/richinex/reposcope/internal/json"
	"github.com/richinex/reposcope/logging"
	"github.com/richinex/reposcope/metrics"
	"github.com/richinex/reposcope/selection"
	"github.com/richinex/reposcope/structure"
	"github.com/rs/zerolog"
)

// Defaults for Options.
const (
	DefaultMaxFiles         = 50
	DefaultMaxFilesInPrompt = 200
)

// Hosting is the subset of the hosting client the pipeline uses.
type Hosting interface {
	Metadata(ctx context.Context, ref hosting.RepositoryRef) (hosting.Metadata, error)
	FileTree(ctx context.Context, ref hosting.RepositoryRef) ([]string, error)
	content.Source
}

// Invoker sends a prompt to a model and returns its reply text.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Options configures a Pipeline.
type Options struct {
	MaxFiles             int
	MaxFileSize          int
	MaxTotalContent      int
	MaxFilesInPrompt     int
	FetchConcurrency     int
	Filter               selection.Policy
	CommandCategories    []string
	CustomPromptTemplate string
	Model                string // logical model name reported as model_used

	Logger   zerolog.Logger
	Recorder metrics.Recorder
	Clock    func() time.Time
	NewRunID func() string
}

// RepositoryContext is everything gathered about a repository before the
// final model call. It belongs to a single Run.
type RepositoryContext struct {
	Ref       hosting.RepositoryRef
	Metadata  hosting.Metadata
	Files     []string // filtered tree
	Selection selection.Result
	Contents  content.FetchResult
	Structure structure.Result
	Timestamp time.Time
}

// Outcome is the product of one Run: a Result or an ErrorResult.
type Outcome struct {
	RunID      string
	Context    *RepositoryContext // nil when gathering failed
	Result     Result
	Error      *ErrorResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed reports whether the run ended with an ErrorResult.
func (o *Outcome) Failed() bool {
	return o.Error != nil
}

// Document returns the value to persist: the Result or the ErrorResult.
func (o *Outcome) Document() any {
	if o.Error != nil {
		return o.Error
	}
	return o.Result
}

// Pipeline runs the analysis stages in order.
type Pipeline struct {
	hosting  Hosting
	ai       Invoker
	opts     Options
	selector *selection.Selector
	analyzer *structure.Analyzer
	fetcher  *content.Fetcher
	logger   zerolog.Logger
	recorder metrics.Recorder
}

// New creates a pipeline. ai may be nil, in which case selection and
// structure analysis use their heuristics and the final stage fails.
func New(h Hosting, ai Invoker, opts Options) *Pipeline {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	if opts.MaxFilesInPrompt <= 0 {
		opts.MaxFilesInPrompt = DefaultMaxFilesInPrompt
	}
	if len(opts.CommandCategories) == 0 {
		opts.CommandCategories = DefaultCommandCategories
	}
	if opts.Filter.SupportedExts == nil && opts.Filter.ExcludedDirs == nil && opts.Filter.ExcludedExts == nil {
		opts.Filter = selection.DefaultPolicy()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	recorder := metrics.OrNoop(opts.Recorder)

	// Leave the component invokers nil rather than wrapping a nil ai.
	var selInvoker selection.Invoker
	var structInvoker structure.Invoker
	if ai != nil {
		selInvoker, structInvoker = ai, ai
	}

	return &Pipeline{
		hosting: h,
		ai:      ai,
		opts:    opts,
		selector: selection.NewSelector(selInvoker, selection.SelectorOptions{
			MaxFilesInPrompt: opts.MaxFilesInPrompt,
			Logger:           opts.Logger,
			Recorder:         recorder,
		}),
		analyzer: structure.NewAnalyzer(structInvoker, structure.AnalyzerOptions{
			MaxFilesInPrompt: opts.MaxFilesInPrompt,
			Logger:           opts.Logger,
			Recorder:         recorder,
		}),
		fetcher: content.NewFetcher(h, content.Options{
			MaxFileSize:     opts.MaxFileSize,
			MaxTotalContent: opts.MaxTotalContent,
			Concurrency:     opts.FetchConcurrency,
			Logger:          opts.Logger,
			Recorder:        recorder,
		}),
		logger:   opts.Logger,
		recorder: recorder,
	}
}

// Run analyses ref. It never panics on upstream failure and always returns
// an Outcome carrying either a Result or an ErrorResult.
func (p *Pipeline) Run(ctx context.Context, ref hosting.RepositoryRef) *Outcome {
	out := &Outcome{RunID: p.opts.NewRunID(), StartedAt: p.opts.Clock()}
	logger := p.logger.With().Str(logging.KeyRunID, out.RunID).Str(logging.KeyRepository, ref.String()).Logger()
	logger.Info().Msg("starting analysis")

	rc, stage, err := p.gather(ctx, ref, logger)
	if err != nil {
		return p.fail(out, logger, err, stage, ref)
	}
	out.Context = rc

	result, stage, err := p.analyze(ctx, rc, out.RunID, logger)
	if err != nil {
		return p.fail(out, logger, err, stage, ref)
	}

	out.Result = result
	out.FinishedAt = p.opts.Clock()
	p.recorder.IncRunOutcome("success")
	logger.Info().
		Int64(logging.KeyDurationMS, out.FinishedAt.Sub(out.StartedAt).Milliseconds()).
		Msg("AI analysis completed successfully")
	return out
}

// Gather runs every stage up to, but not including, the final model call.
func (p *Pipeline) Gather(ctx context.Context, ref hosting.RepositoryRef) (*RepositoryContext, error) {
	rc, _, err := p.gather(ctx, ref, p.logger)
	return rc, err
}

func (p *Pipeline) gather(ctx context.Context, ref hosting.RepositoryRef, logger zerolog.Logger) (*RepositoryContext, string, error) {
	rc := &RepositoryContext{Ref: ref, Timestamp: p.opts.Clock()}

	logger.Info().Str(logging.KeyStage, StageMetadata).Msg("fetching repository metadata")
	err := p.timed(StageMetadata, func() error {
		meta, err := p.hosting.Metadata(ctx, ref)
		if err == nil && len(meta) == 0 {
			err = apperr.New(apperr.KindNotFound, "analysis.metadata", "failed to fetch repository metadata")
		}
		rc.Metadata = meta
		return err
	})
	if err != nil {
		return nil, StageMetadata, err
	}

	logger.Info().Str(logging.KeyStage, StageTree).Msg("fetching complete file tree")
	var all []string
	err = p.timed(StageTree, func() error {
		tree, err := p.hosting.FileTree(ctx, ref)
		if err == nil && len(tree) == 0 {
			err = apperr.New(apperr.KindNotFound, "analysis.tree", "failed to fetch repository file tree")
		}
		all = tree
		return err
	})
	if err != nil {
		return nil, StageTree, err
	}

	rc.Files = selection.Filter(all, p.opts.Filter)
	logger.Info().
		Str(logging.KeyStage, StageFilter).
		Msgf("filtered %d files to %d relevant files", len(all), len(rc.Files))

	logger.Info().Str(logging.KeyStage, StageSelection).Msg("selecting important files for analysis")
	_ = p.timed(StageSelection, func() error {
		rc.Selection = p.selector.Select(ctx, rc.Files, rc.Metadata, p.opts.MaxFiles)
		return nil
	})
	if err := canceled(ctx, "analysis.selection"); err != nil {
		return nil, StageSelection, err
	}

	logger.Info().
		Str(logging.KeyStage, StageContent).
		Int(logging.KeyCount, len(rc.Selection.Paths)).
		Msg("fetching content for selected files")
	_ = p.timed(StageContent, func() error {
		rc.Contents = p.fetcher.Fetch(ctx, ref, rc.Selection.Paths)
		return nil
	})
	if err := canceled(ctx, "analysis.content"); err != nil {
		return nil, StageContent, err
	}
	if rc.Contents.RateLimited {
		logger.Warn().Msg("continuing with partial file contents after rate limit")
	}

	logger.Info().Str(logging.KeyStage, StageStructure).Msg("performing structure analysis")
	_ = p.timed(StageStructure, func() error {
		rc.Structure = p.analyzer.Analyze(ctx, rc.Files, rc.Metadata)
		return nil
	})
	if err := canceled(ctx, "analysis.structure"); err != nil {
		return nil, StageStructure, err
	}

	logger.Info().
		Int("total_files", len(rc.Files)).
		Int("analyzed_files", len(rc.Contents.Files)).
		Msg("repository context compiled")
	return rc, "", nil
}

func (p *Pipeline) analyze(ctx context.Context, rc *RepositoryContext, runID string, logger zerolog.Logger) (Result, string, error) {
	if p.ai == nil {
		return nil, StageAnalysis, apperr.New(apperr.KindConfigurationInvalid, "analysis.run", "no model client configured")
	}

	structureJSON, err := rc.Structure.JSON()
	if err != nil {
		return nil, StageAnalysis, apperr.Wrap(err, apperr.KindInternal, "analysis.prompt", "encode structure analysis")
	}
	if p.opts.CustomPromptTemplate != "" {
		logger.Info().Msg("using custom prompt template for analysis")
	} else {
		logger.Info().Msg("using default comprehensive prompt for analysis")
	}
	prompt := buildPrompt(rc, structureJSON, p.opts.CustomPromptTemplate, p.opts.CommandCategories, p.opts.MaxFilesInPrompt)

	var response string
	err = p.timed(StageAnalysis, func() error {
		var err error
		response, err = p.ai.Invoke(ctx, prompt)
		return err
	})
	if err != nil {
		return nil, StageAnalysis, err
	}

	doc, err := jsonx.ExtractObject(response)
	if err != nil {
		return nil, StageExtract, &extractError{err: err, response: response}
	}

	result := Result(doc)
	result["analysis_metadata"] = Metadata{
		AnalyzerVersion:   Version,
		ModelUsed:         p.opts.Model,
		AnalysisTimestamp: p.opts.Clock().Format(time.RFC3339),
		Repository:        rc.Ref.String(),
		FilesAnalyzed:     len(rc.Contents.Files),
		TotalFiles:        len(rc.Files),
		SelectionMethod:   rc.Selection.Method,
		StructureFallback: rc.Structure.Fallback(),
		RunID:             runID,
	}
	return result, "", nil
}

// extractError carries the model reply that could not be parsed.
type extractError struct {
	err      error
	response string
}

func (e *extractError) Error() string { return e.err.Error() }
func (e *extractError) Unwrap() error { return e.err }

func (p *Pipeline) fail(out *Outcome, logger zerolog.Logger, err error, stage string, ref hosting.RepositoryRef) *Outcome {
	out.FinishedAt = p.opts.Clock()

	var ee *extractError
	if errors.As(err, &ee) {
		message := "AI returned invalid JSON format"
		if errors.Is(ee.err, jsonx.ErrNoPayload) {
			message = "no valid JSON found in AI response"
		}
		out.Error = &ErrorResult{
			Error:              message,
			ErrorKind:          string(apperr.KindInvalidUpstreamOutput),
			Stage:              stage,
			Repository:         ref.String(),
			Timestamp:          out.FinishedAt.Format(time.RFC3339),
			RunID:              out.RunID,
			ErrorDetails:       ee.err.Error(),
			RawResponsePreview: responsePreview(ee.response),
		}
		logger.Debug().Str("response_preview", jsonx.Preview(ee.response, 500)).Msg("unparsable AI response")
	} else {
		out.Error = newErrorResult(err, stage, ref.String(), out.RunID, out.FinishedAt)
	}

	p.recorder.IncRunOutcome("error")
	logger.Error().
		Err(err).
		Str(logging.KeyStage, stage).
		Str("error_kind", out.Error.ErrorKind).
		Msg("analysis failed")
	return out
}

func (p *Pipeline) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.recorder.ObserveStageDuration(stage, time.Since(start))
	return err
}

func canceled(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(err, apperr.KindCanceled, op, "analysis interrupted")
	}
	return nil
}
