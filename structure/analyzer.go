// Structure Analyzer - repository organisation from the file list.
//
// Information Hiding:
// - Prompt wording and the expected JSON shape
// - Section validation of model output
// - Heuristic fallback when the model cannot be used

package structure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/richinex/reposcope/hosting"
	jsonx "github.com/richinex/reposcope/internal/json"
	"github.com/richinex/reposcope/logging"
	"github.com/richinex/reposcope/metrics"
	"github.com/rs/zerolog"
)

// DefaultMaxFilesInPrompt bounds how many paths the structure prompt lists.
const DefaultMaxFilesInPrompt = 200

// Analysis methods.
const (
	MethodAI        = "ai"
	MethodHeuristic = "heuristic"
)

// Fallback reasons.
const (
	ReasonModelUnavailable = "model_unavailable"
	ReasonModelError       = "model_error"
	ReasonNoPayload        = "no_json_object"
	ReasonInvalidJSON      = "invalid_json"
	ReasonIncomplete       = "missing_sections"
)

// Invoker sends a prompt to a model and returns its reply text.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Result is an analysis tagged with how it was produced.
type Result struct {
	Analysis       *Analysis // typed view; mistyped model fields are left zero
	Method         string
	FallbackReason string

	raw json.RawMessage // model output as returned, for AI results
}

// Fallback reports whether the heuristic produced the analysis.
func (r Result) Fallback() bool {
	return r.Method == MethodHeuristic
}

// JSON renders the analysis indented by two spaces. AI results are rendered
// from the model's own object so fields outside the known shape survive.
func (r Result) JSON() (string, error) {
	var v any = r.Analysis
	if len(r.raw) > 0 {
		var doc map[string]any
		if err := json.Unmarshal(r.raw, &doc); err != nil {
			return "", err
		}
		v = doc
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// AnalyzerOptions configures an Analyzer.
type AnalyzerOptions struct {
	MaxFilesInPrompt int
	Logger           zerolog.Logger
	Recorder         metrics.Recorder
}

// Analyzer produces a structure analysis, asking the model first.
type Analyzer struct {
	invoker          Invoker
	validate         *validator.Validate
	maxFilesInPrompt int
	logger           zerolog.Logger
	recorder         metrics.Recorder
}

// NewAnalyzer creates an analyzer. A nil invoker always uses the heuristic.
func NewAnalyzer(invoker Invoker, opts AnalyzerOptions) *Analyzer {
	if opts.MaxFilesInPrompt <= 0 {
		opts.MaxFilesInPrompt = DefaultMaxFilesInPrompt
	}
	return &Analyzer{
		invoker:          invoker,
		validate:         validator.New(),
		maxFilesInPrompt: opts.MaxFilesInPrompt,
		logger:           opts.Logger,
		recorder:         metrics.OrNoop(opts.Recorder),
	}
}

// Analyze returns a complete analysis of paths. It never fails: any model
// problem yields Heuristic(paths, meta).
func (a *Analyzer) Analyze(ctx context.Context, paths []string, meta hosting.Metadata) Result {
	if a.invoker == nil {
		return a.fallback(paths, meta, ReasonModelUnavailable, nil)
	}

	a.logger.Debug().Int(logging.KeyCount, len(paths)).Msg("requesting AI structure analysis")
	response, err := a.invoker.Invoke(ctx, a.prompt(paths, meta))
	if err != nil {
		return a.fallback(paths, meta, ReasonModelError, err)
	}

	payload, err := jsonx.Extract(response, jsonx.ObjectOpener, jsonx.ObjectCloser)
	if err != nil {
		if errors.Is(err, jsonx.ErrNoPayload) {
			return a.fallback(paths, meta, ReasonNoPayload, err)
		}
		return a.fallback(paths, meta, ReasonInvalidJSON, err)
	}

	var present sections
	if err := json.Unmarshal([]byte(payload), &present); err != nil {
		return a.fallback(paths, meta, ReasonInvalidJSON, err)
	}
	if err := a.validate.Struct(&present); err != nil {
		return a.fallback(paths, meta, ReasonIncomplete, err)
	}

	a.logger.Info().Str(logging.KeyMethod, MethodAI).Msg("AI structure analysis completed successfully")
	return Result{Analysis: typedView(payload), Method: MethodAI, raw: json.RawMessage(payload)}
}

// sections checks that every top-level section is present as an object.
// Leaf values are not inspected.
type sections struct {
	Directories      map[string]any `json:"directories" validate:"required"`
	Languages        map[string]any `json:"languages" validate:"required"`
	ProjectType      map[string]any `json:"project_type" validate:"required"`
	Features         map[string]any `json:"features" validate:"required"`
	MonorepoAnalysis map[string]any `json:"monorepo_analysis" validate:"required"`
	BuildSystem      map[string]any `json:"build_system" validate:"required"`
	Deployment       map[string]any `json:"deployment" validate:"required"`
	QualityAssurance map[string]any `json:"quality_assurance" validate:"required"`
	Insights         map[string]any `json:"insights" validate:"required"`
}

// typedView decodes payload into an Analysis. Fields whose type differs
// from the schema keep their zero value; the rest are still filled.
func typedView(payload string) *Analysis {
	var analysis Analysis
	_ = json.Unmarshal([]byte(payload), &analysis)
	return &analysis
}

func (a *Analyzer) fallback(paths []string, meta hosting.Metadata, reason string, err error) Result {
	if err != nil {
		a.logger.Warn().Err(err).Str("reason", reason).Msg("AI structure analysis failed")
	}
	a.logger.Info().Str(logging.KeyMethod, MethodHeuristic).Msg("using fallback heuristic structure analysis")
	a.recorder.IncFallback("structure", reason)
	return Result{Analysis: Heuristic(paths, meta), Method: MethodHeuristic, FallbackReason: reason}
}

const structurePrompt = `
You are an expert software architect analyzing a repository's structure and organization patterns.

REPOSITORY CONTEXT:
Name: %s
Description: %s
Primary Language: %s
Topics/Tags: %s
Size: %d KB
Created: %s
Last Updated: %s
Default Branch: %s

FILES STRUCTURE (showing %d of %d total files):
%s

ANALYSIS REQUIREMENTS:
Analyze the repository structure comprehensively, focusing on:

1. DIRECTORY ORGANIZATION: Identify main directories and their purposes
2. LANGUAGE DETECTION: All programming languages used (not just GitHub's primary)
3. PROJECT TYPE: Monorepo, single project, microservices, library, application, etc.
4. ARCHITECTURE PATTERNS: MVC, microservices, layered, modular, etc.
5. FRAMEWORKS & TOOLS: Web frameworks, build tools, testing frameworks
6. DEVELOPMENT WORKFLOW: Testing setup, CI/CD, documentation, deployment

SPECIFIC DETECTIONS:
- Monorepo indicators: multiple package.json, lerna.json, nx.json, workspaces
- Multi-language: different language files in different directories
- Testing: unit, integration, e2e test directories and files
- Documentation: README files, docs directories, wikis
- CI/CD: GitHub Actions, GitLab CI, Jenkins, etc.
- Containerization: Docker, Kubernetes, container registries
- Database: Migrations, schema files, ORM configurations

OUTPUT FORMAT:
Return ONLY a valid JSON object with this exact structure:

{
    "directories": {
        "main_directories": ["list of primary directories"],
        "source_directories": ["directories containing source code"],
        "config_directories": ["directories with configuration"],
        "test_directories": ["directories with tests"],
        "doc_directories": ["directories with documentation"]
    },
    "languages": {
        "primary_language": "main language detected",
        "secondary_languages": ["other languages found"],
        "language_distribution": {"language": "estimated_percentage"},
        "frameworks_detected": ["frameworks and libraries identified"]
    },
    "project_type": {
        "architecture": "monorepo|single-project|microservices|library|application",
        "complexity": "simple|moderate|complex|enterprise",
        "domain": "web|mobile|desktop|cli|library|api|fullstack|data|ml",
        "scale": "personal|team|enterprise|open-source"
    },
    "features": {
        "has_tests": boolean,
        "has_ci_cd": boolean,
        "has_documentation": boolean,
        "has_docker": boolean,
        "has_database": boolean,
        "has_api": boolean,
        "has_frontend": boolean,
        "has_backend": boolean
    },
    "monorepo_analysis": {
        "is_monorepo": boolean,
        "workspace_tool": "lerna|nx|rush|yarn-workspaces|npm-workspaces|none",
        "packages": ["list of package/workspace directories if monorepo"],
        "shared_dependencies": boolean
    },
    "build_system": {
        "build_tools": ["detected build tools"],
        "package_managers": ["npm|yarn|pip|maven|gradle|cargo|go-mod|etc"],
        "bundlers": ["webpack|rollup|vite|parcel|etc"],
        "task_runners": ["npm-scripts|gulp|grunt|make|etc"]
    },
    "deployment": {
        "deployment_targets": ["cloud platforms or deployment types detected"],
        "containerization": "docker|kubernetes|none",
        "infrastructure_as_code": "terraform|ansible|helm|none"
    },
    "quality_assurance": {
        "linting": ["eslint|pylint|golint|etc if detected"],
        "formatting": ["prettier|black|gofmt|etc if detected"],
        "testing_frameworks": ["jest|pytest|junit|etc if detected"],
        "code_coverage": boolean
    },
    "insights": {
        "architectural_patterns": ["patterns identified"],
        "notable_conventions": ["naming, structure, organization patterns"],
        "potential_improvements": ["suggestions based on structure analysis"],
        "estimated_team_size": "individual|small-team|large-team|enterprise",
        "maintenance_level": "active|maintained|legacy|experimental"
    }
}

Ensure the response is valid JSON only, with no additional text or markdown formatting.
`

func (a *Analyzer) prompt(paths []string, meta hosting.Metadata) string {
	sample := paths
	if len(sample) > a.maxFilesInPrompt {
		sample = sample[:a.maxFilesInPrompt]
	}
	var list strings.Builder
	for i, p := range sample {
		if i > 0 {
			list.WriteByte('\n')
		}
		list.WriteString("- ")
		list.WriteString(p)
	}

	return fmt.Sprintf(structurePrompt,
		meta.Name(),
		meta.Description(),
		meta.Language(),
		meta.TopicList("None"),
		meta.Int("size"),
		meta.Str("created_at", "Unknown"),
		meta.Str("updated_at", "Unknown"),
		meta.Str("default_branch", "main"),
		len(sample), len(paths),
		list.String(),
	)
}
