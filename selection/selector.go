package selection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/richinex/reposcope/hosting"
	jsonx "github.com/richinex/reposcope/internal/json"
	"github.com/richinex/reposcope/logging"
	"github.com/richinex/reposcope/metrics"
	"github.com/rs/zerolog"
)

// DefaultMaxFilesInPrompt bounds how many paths the selection prompt lists.
const DefaultMaxFilesInPrompt = 200

// Selection methods.
const (
	MethodAI        = "ai"
	MethodHeuristic = "heuristic"
)

// Fallback reasons.
const (
	ReasonModelUnavailable = "model_unavailable"
	ReasonModelError       = "model_error"
	ReasonNoPayload        = "no_json_array"
	ReasonInvalidJSON      = "invalid_json"
	ReasonNoValidPaths     = "no_valid_paths"
)

// Invoker sends a prompt to a model and returns its reply text.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Result is the outcome of a selection. Paths is never longer than the limit
// and every element belongs to the candidate list.
type Result struct {
	Paths          []string
	Method         string
	FallbackReason string // empty when Method is MethodAI
}

// SelectorOptions configures a Selector.
type SelectorOptions struct {
	MaxFilesInPrompt int
	Logger           zerolog.Logger
	Recorder         metrics.Recorder
}

// Selector picks the files most worth sending to the analysis model.
type Selector struct {
	invoker          Invoker
	maxFilesInPrompt int
	logger           zerolog.Logger
	recorder         metrics.Recorder
}

// NewSelector creates a selector. A nil invoker always selects heuristically.
func NewSelector(invoker Invoker, opts SelectorOptions) *Selector {
	if opts.MaxFilesInPrompt <= 0 {
		opts.MaxFilesInPrompt = DefaultMaxFilesInPrompt
	}
	return &Selector{
		invoker:          invoker,
		maxFilesInPrompt: opts.MaxFilesInPrompt,
		logger:           opts.Logger,
		recorder:         metrics.OrNoop(opts.Recorder),
	}
}

// Select asks the model for up to limit files from paths, falling back to
// Rank on any failure. It never returns an error.
func (s *Selector) Select(ctx context.Context, paths []string, meta hosting.Metadata, limit int) Result {
	if s.invoker == nil {
		return s.fallback(paths, limit, ReasonModelUnavailable)
	}

	s.logger.Debug().Int(logging.KeyCount, len(paths)).Msg("requesting AI file selection")
	response, err := s.invoker.Invoke(ctx, s.prompt(paths, meta, limit))
	res := Decide(response, err, paths, limit)

	switch {
	case res.Method == MethodAI:
		s.logger.Info().Int(logging.KeyCount, len(res.Paths)).Str(logging.KeyMethod, MethodAI).Msg("AI selected files for analysis")
	case err != nil:
		s.logger.Warn().Err(err).Msg("AI file selection failed, using heuristic selection")
	default:
		s.logger.Warn().Str("reason", res.FallbackReason).Msg("AI file selection unusable, using heuristic selection")
	}
	if res.Method == MethodHeuristic {
		s.recorder.IncFallback("selection", res.FallbackReason)
		s.logger.Info().Int(logging.KeyCount, len(res.Paths)).Str(logging.KeyMethod, MethodHeuristic).Msg("heuristic selection chose files")
	}
	return res
}

func (s *Selector) fallback(paths []string, limit int, reason string) Result {
	s.recorder.IncFallback("selection", reason)
	ranked := Rank(paths, limit)
	s.logger.Info().Int(logging.KeyCount, len(ranked)).Str("reason", reason).Msg("heuristic selection chose files")
	return Result{Paths: ranked, Method: MethodHeuristic, FallbackReason: reason}
}

// Decide turns a model reply into a selection. The reply must contain a JSON
// array; its string members that appear in paths are kept in reply order
// without duplicates. An error, an unparsable reply or an empty valid subset
// selects heuristically instead.
func Decide(response string, invokeErr error, paths []string, limit int) Result {
	heuristic := func(reason string) Result {
		return Result{Paths: Rank(paths, limit), Method: MethodHeuristic, FallbackReason: reason}
	}
	if limit <= 0 {
		return Result{Paths: []string{}, Method: MethodHeuristic, FallbackReason: ReasonNoValidPaths}
	}
	if invokeErr != nil {
		return heuristic(ReasonModelError)
	}

	items, err := jsonx.ExtractArray(response)
	if err != nil {
		if errors.Is(err, jsonx.ErrNoPayload) {
			return heuristic(ReasonNoPayload)
		}
		return heuristic(ReasonInvalidJSON)
	}

	known := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		known[p] = struct{}{}
	}
	seen := make(map[string]struct{})
	var valid []string
	for _, item := range items {
		p, ok := item.(string)
		if !ok {
			continue
		}
		if _, ok := known[p]; !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		valid = append(valid, p)
	}

	if len(valid) == 0 {
		return heuristic(ReasonNoValidPaths)
	}
	if len(valid) > limit {
		valid = valid[:limit]
	}
	return Result{Paths: valid, Method: MethodAI}
}

const selectionPrompt = `
You are an expert software engineer analyzing a repository to identify the most crucial files for understanding its build system, architecture, and development workflow.

REPOSITORY CONTEXT:
Name: %s
Description: %s
Primary Language: %s
Topics/Tags: %s
Size: %d KB
Stars: %d
Forks: %d
Total Files Available: %d

FILES TO ANALYZE (showing first %d of %d):
%s

SELECTION CRITERIA:
Select exactly %d files that are most important for:
1. Understanding build processes and dependencies
2. Identifying project structure and architecture
3. Recognizing CI/CD workflows and deployment
4. Detecting monorepo patterns or multi-language setups
5. Key configuration and documentation files

PRIORITIZE:
- Package managers: package.json, pom.xml, Cargo.toml, go.mod, requirements.txt, etc.
- Build tools: webpack.config.js, vite.config.js, tsconfig.json, Makefile, etc.
- CI/CD: .github/workflows/*, .gitlab-ci.yml, Jenkinsfile, etc.
- Containerization: Dockerfile, docker-compose.yml, k8s manifests
- Documentation: README.md, CONTRIBUTING.md, docs with setup info
- Root configuration files over nested ones (unless monorepo detected)

MONOREPO DETECTION:
If you detect monorepo patterns (multiple package.json files, lerna.json, nx.json, etc.),
include key files from different packages/workspaces.

OUTPUT FORMAT:
Return ONLY a valid JSON array of file paths, no additional text:
["path/to/file1", "path/to/file2", "path/to/file3", ...]

Ensure all selected files exist in the provided list above.
`

func (s *Selector) prompt(paths []string, meta hosting.Metadata, limit int) string {
	sample := paths
	if len(sample) > s.maxFilesInPrompt {
		sample = sample[:s.maxFilesInPrompt]
	}
	var list strings.Builder
	for i, p := range sample {
		if i > 0 {
			list.WriteByte('\n')
		}
		list.WriteString("- ")
		list.WriteString(p)
	}

	return fmt.Sprintf(selectionPrompt,
		meta.Name(),
		meta.Description(),
		meta.Language(),
		meta.TopicList("None specified"),
		meta.Int("size"),
		meta.Int("stargazers_count"),
		meta.Int("forks_count"),
		len(paths),
		len(sample), len(paths),
		list.String(),
		limit,
	)
}
