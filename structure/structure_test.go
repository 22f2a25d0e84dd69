package structure

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/richinex/reposcope/hosting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeInvoker) Invoke(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

const completeAnalysis = `{
  "directories": {"main_directories": ["cmd"], "source_directories": ["cmd"], "config_directories": [], "test_directories": [], "doc_directories": []},
  "languages": {"primary_language": "Go", "secondary_languages": [], "language_distribution": {"Go": "95%"}, "frameworks_detected": ["cobra"]},
  "project_type": {"architecture": "single-project", "complexity": "simple", "domain": "cli", "scale": "personal"},
  "features": {"has_tests": true, "has_ci_cd": false, "has_documentation": true, "has_docker": false, "has_database": false, "has_api": false, "has_frontend": false, "has_backend": true},
  "monorepo_analysis": {"is_monorepo": false, "workspace_tool": "none", "packages": [], "shared_dependencies": false},
  "build_system": {"build_tools": ["go"], "package_managers": ["go-mod"], "bundlers": [], "task_runners": ["make"]},
  "deployment": {"deployment_targets": [], "containerization": "none", "infrastructure_as_code": "none"},
  "quality_assurance": {"linting": ["golangci-lint"], "formatting": ["gofmt"], "testing_frameworks": ["go test"], "code_coverage": false},
  "insights": {"architectural_patterns": ["cli"], "notable_conventions": [], "potential_improvements": [], "estimated_team_size": "individual", "maintenance_level": "active"},
  "extra_notes": "kept verbatim"
}`

var goRepo = []string{"cmd/tool/main.go", "internal/app/run.go", "go.mod", "README.md"}

func TestAnalyzeAcceptsCompleteModelOutput(t *testing.T) {
	inv := &fakeInvoker{reply: "```json\n" + completeAnalysis + "\n```"}
	meta := hosting.Metadata{"name": "tool", "created_at": "2020-01-01T00:00:00Z", "default_branch": "trunk"}

	res := NewAnalyzer(inv, AnalyzerOptions{}).Analyze(context.Background(), goRepo, meta)
	require.Equal(t, MethodAI, res.Method)
	assert.False(t, res.Fallback())
	assert.Equal(t, "cli", res.Analysis.ProjectType.Domain)
	assert.Equal(t, []string{"cobra"}, res.Analysis.Languages.FrameworksDetected)
	assert.False(t, res.Analysis.Insights.FallbackAnalysis)

	out, err := res.JSON()
	require.NoError(t, err)
	assert.Contains(t, out, `"extra_notes": "kept verbatim"`)

	assert.Contains(t, inv.prompt, "Created: 2020-01-01T00:00:00Z")
	assert.Contains(t, inv.prompt, "Last Updated: Unknown")
	assert.Contains(t, inv.prompt, "Default Branch: trunk")
	assert.Contains(t, inv.prompt, "FILES STRUCTURE (showing 4 of 4 total files)")
	assert.Contains(t, inv.prompt, "Topics/Tags: None\n")
}

func TestAnalyzeKeepsMistypedLeafFields(t *testing.T) {
	reply := strings.Replace(completeAnalysis, `"code_coverage": false`, `"code_coverage": "partial"`, 1)
	reply = strings.Replace(reply, `"containerization": "none"`, `"containerization": ["docker", "kubernetes"]`, 1)

	res := NewAnalyzer(&fakeInvoker{reply: reply}, AnalyzerOptions{}).Analyze(context.Background(), goRepo, hosting.Metadata{})
	require.Equal(t, MethodAI, res.Method)
	assert.Empty(t, res.FallbackReason)

	assert.Equal(t, "cli", res.Analysis.ProjectType.Domain)
	assert.False(t, res.Analysis.QualityAssurance.CodeCoverage)
	assert.Empty(t, res.Analysis.Deployment.Containerization)
	assert.Equal(t, []string{"gofmt"}, res.Analysis.QualityAssurance.Formatting)

	out, err := res.JSON()
	require.NoError(t, err)
	assert.Contains(t, out, `"code_coverage": "partial"`)
	assert.Contains(t, out, "\"containerization\": [\n      \"docker\",\n      \"kubernetes\"\n    ]")
}

func TestAnalyzeFallsBack(t *testing.T) {
	var partial map[string]any
	require.NoError(t, json.Unmarshal([]byte(completeAnalysis), &partial))
	delete(partial, "deployment")
	incomplete, _ := json.Marshal(partial)

	tests := []struct {
		name   string
		inv    Invoker
		reason string
	}{
		{"no model", nil, ReasonModelUnavailable},
		{"model error", &fakeInvoker{err: errors.New("boom")}, ReasonModelError},
		{"prose", &fakeInvoker{reply: "Sorry, I cannot do that."}, ReasonNoPayload},
		{"broken json", &fakeInvoker{reply: `{"directories": {` + "\n}"}, ReasonInvalidJSON},
		{"section not an object", &fakeInvoker{reply: `{"features": "yes"}`}, ReasonInvalidJSON},
		{"null section", &fakeInvoker{reply: strings.Replace(completeAnalysis, `"insights": {`, `"insights": null, "ignored": {`, 1)}, ReasonIncomplete},
		{"missing section", &fakeInvoker{reply: string(incomplete)}, ReasonIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewAnalyzer(tt.inv, AnalyzerOptions{}).Analyze(context.Background(), goRepo, hosting.Metadata{"language": "Go"})
			assert.Equal(t, MethodHeuristic, res.Method)
			assert.Equal(t, tt.reason, res.FallbackReason)
			assert.True(t, res.Analysis.Insights.FallbackAnalysis)
			assert.Equal(t, "Go", res.Analysis.Languages.PrimaryLanguage)
		})
	}
}

func TestHeuristicSingleProject(t *testing.T) {
	paths := []string{
		"README.md",
		"src/app/main.py",
		"src/app/util.js",
		"tests/test_main.py",
		"docs/guide.md",
		".github/workflows/ci.yml",
		"Dockerfile",
		"config/settings.yaml",
	}
	a := Heuristic(paths, hosting.Metadata{})

	assert.Equal(t, []string{".github", ".github/workflows", "config", "docs", "src", "src/app", "tests"}, a.Directories.MainDirectories)
	assert.Equal(t, []string{"src", "src/app"}, a.Directories.SourceDirectories)
	assert.Equal(t, []string{".github", ".github/workflows", "config"}, a.Directories.ConfigDirectories)
	assert.Equal(t, []string{"tests"}, a.Directories.TestDirectories)
	assert.Equal(t, []string{"docs"}, a.Directories.DocDirectories)

	assert.Equal(t, "Unknown", a.Languages.PrimaryLanguage)
	assert.Equal(t, []string{"Python", "JavaScript"}, a.Languages.SecondaryLanguages)
	assert.Equal(t, map[string]any{"Python": "estimated", "JavaScript": "estimated"}, a.Languages.LanguageDistribution)

	assert.Equal(t, "single-project", a.ProjectType.Architecture)
	assert.Equal(t, "moderate", a.ProjectType.Complexity)
	assert.True(t, a.Features.HasTests)
	assert.True(t, a.Features.HasCICD)
	assert.True(t, a.Features.HasDocker)
	assert.True(t, a.Features.HasDocumentation)
	assert.True(t, a.Features.HasFrontend)
	assert.True(t, a.Features.HasBackend)
	assert.False(t, a.Features.HasDatabase)
	assert.Equal(t, "docker", a.Deployment.Containerization)
	assert.Equal(t, "unknown", a.MonorepoAnalysis.WorkspaceTool)
	assert.True(t, a.Insights.FallbackAnalysis)
}

func TestHeuristicMonorepo(t *testing.T) {
	paths := []string{"package.json", "packages/api/package.json", "packages/web/package.json", "nx.json"}
	a := Heuristic(paths, hosting.Metadata{"language": "TypeScript"})

	assert.Equal(t, "monorepo", a.ProjectType.Architecture)
	assert.True(t, a.MonorepoAnalysis.IsMonorepo)
	assert.Equal(t, "nx", a.MonorepoAnalysis.WorkspaceTool)
	assert.Equal(t, []string{"packages/api", "packages/web"}, a.MonorepoAnalysis.Packages)
	assert.Equal(t, "TypeScript", a.Languages.PrimaryLanguage)
	assert.Equal(t, "none", a.Deployment.Containerization)
}

func TestHeuristicBoundsAndShape(t *testing.T) {
	var paths []string
	for _, d := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		paths = append(paths, d+"/x.go", d+"/y.rs", d+"/z.rb", d+"/w.java", d+"/v.c", d+"/u.cs")
	}
	a := Heuristic(paths, nil)
	assert.Len(t, a.Directories.MainDirectories, 10)
	assert.Len(t, a.Languages.SecondaryLanguages, 5)
	assert.Len(t, a.Languages.LanguageDistribution, 3)

	out, err := json.Marshal(a)
	require.NoError(t, err)
	for _, section := range []string{"directories", "languages", "project_type", "features", "monorepo_analysis", "build_system", "deployment", "quality_assurance", "insights"} {
		assert.Contains(t, string(out), `"`+section+`"`)
	}
	assert.False(t, strings.Contains(string(out), "null"))
}

func TestHeuristicEmptyInput(t *testing.T) {
	a := Heuristic(nil, nil)
	assert.Empty(t, a.Directories.MainDirectories)
	assert.Equal(t, "single-project", a.ProjectType.Architecture)
	assert.False(t, a.Features.HasTests)
	assert.True(t, a.Insights.FallbackAnalysis)
}
