package structure

import (
	"path"
	"sort"
	"strings"

	"github.com/richinex/reposcope/hosting"
	"github.com/richinex/reposcope/selection"
)

var extensionLanguages = map[string]string{
	".js": "JavaScript", ".ts": "TypeScript", ".py": "Python",
	".java": "Java", ".go": "Go", ".rs": "Rust", ".cpp": "C++",
	".c": "C", ".cs": "C#", ".rb": "Ruby", ".php": "PHP",
	".swift": "Swift", ".kt": "Kotlin", ".scala": "Scala",
}

// workspaceMarkers maps monorepo tool files to the tool name, checked in order.
var workspaceMarkers = []struct {
	file string
	tool string
}{
	{"lerna.json", "lerna"},
	{"nx.json", "nx"},
	{"rush.json", "rush"},
	{"pnpm-workspace.yaml", "pnpm-workspaces"},
	{"turbo.json", "turborepo"},
}

var (
	frontendExts = []string{".html", ".css", ".js", ".ts"}
	backendExts  = []string{".py", ".java", ".go", ".php"}
)

const (
	maxMainDirectories     = 10
	maxSecondaryLanguages  = 5
	maxDistributionEntries = 3
)

// Heuristic derives an analysis from paths alone. Sections the paths cannot
// inform carry conservative defaults, and Insights.FallbackAnalysis is set.
func Heuristic(paths []string, meta hosting.Metadata) *Analysis {
	dirSet := make(map[string]struct{})
	extSeen := make(map[string]bool)
	var extOrder []string

	var (
		hasTests, hasCI, hasDocker, hasDocs bool
		packageJSONs                        []string
		workspaceTool                       string
	)

	for _, p := range paths {
		parts := strings.Split(p, "/")
		for i := 1; i < len(parts); i++ {
			dirSet[strings.Join(parts[:i], "/")] = struct{}{}
		}
		if ext := selection.Ext(p); ext != "" && !extSeen[ext] {
			extSeen[ext] = true
			extOrder = append(extOrder, ext)
		}

		lower := strings.ToLower(p)
		if strings.Contains(lower, "test") || strings.Contains(lower, "spec") {
			hasTests = true
		}
		if strings.Contains(p, ".github/") || strings.Contains(p, ".gitlab-ci") || strings.Contains(lower, "jenkinsfile") {
			hasCI = true
		}
		if strings.Contains(lower, "dockerfile") || strings.Contains(lower, "docker-compose") {
			hasDocker = true
		}
		if strings.Contains(lower, "readme") || strings.Contains(lower, "doc") {
			hasDocs = true
		}
		if strings.HasSuffix(p, "package.json") {
			packageJSONs = append(packageJSONs, p)
		}
		if workspaceTool == "" {
			base := path.Base(p)
			for _, m := range workspaceMarkers {
				if base == m.file {
					workspaceTool = m.tool
					break
				}
			}
		}
	}

	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	var detected []string
	for _, ext := range extOrder {
		if lang, ok := extensionLanguages[ext]; ok {
			detected = append(detected, lang)
		}
	}
	distribution := make(map[string]any)
	for _, lang := range head(detected, maxDistributionEntries) {
		distribution[lang] = "estimated"
	}

	isMonorepo := len(packageJSONs) > 1 || workspaceTool != ""
	architecture := "single-project"
	if isMonorepo {
		architecture = "monorepo"
	}
	packages := []string{}
	if isMonorepo {
		for _, pj := range packageJSONs {
			if dir := path.Dir(pj); dir != "." {
				packages = append(packages, dir)
			}
		}
	}
	if workspaceTool == "" {
		workspaceTool = "unknown"
	}
	containerization := "none"
	if hasDocker {
		containerization = "docker"
	}

	primary := meta.Str("language", "Unknown")

	return &Analysis{
		Directories: &Directories{
			MainDirectories:   head(dirs, maxMainDirectories),
			SourceDirectories: matching(dirs, "src", "lib", "app"),
			ConfigDirectories: matching(dirs, "config", "conf", ".github"),
			TestDirectories:   matching(dirs, "test", "spec", "__tests__"),
			DocDirectories:    matching(dirs, "doc", "docs", "documentation"),
		},
		Languages: &Languages{
			PrimaryLanguage:      primary,
			SecondaryLanguages:   head(detected, maxSecondaryLanguages),
			LanguageDistribution: distribution,
			FrameworksDetected:   []string{},
		},
		ProjectType: &ProjectType{
			Architecture: architecture,
			Complexity:   "moderate",
			Domain:       "unknown",
			Scale:        "unknown",
		},
		Features: &Features{
			HasTests:         hasTests,
			HasCICD:          hasCI,
			HasDocumentation: hasDocs,
			HasDocker:        hasDocker,
			HasFrontend:      anySeen(extSeen, frontendExts),
			HasBackend:       anySeen(extSeen, backendExts),
		},
		MonorepoAnalysis: &MonorepoAnalysis{
			IsMonorepo:    isMonorepo,
			WorkspaceTool: workspaceTool,
			Packages:      packages,
		},
		BuildSystem: &BuildSystem{
			BuildTools:      []string{},
			PackageManagers: []string{},
			Bundlers:        []string{},
			TaskRunners:     []string{},
		},
		Deployment: &Deployment{
			DeploymentTargets:    []string{},
			Containerization:     containerization,
			InfrastructureAsCode: "none",
		},
		QualityAssurance: &QualityAssurance{
			Linting:           []string{},
			Formatting:        []string{},
			TestingFrameworks: []string{},
		},
		Insights: &Insights{
			ArchitecturalPatterns: []string{},
			NotableConventions:    []string{},
			PotentialImprovements: []string{},
			EstimatedTeamSize:     "unknown",
			MaintenanceLevel:      "unknown",
			FallbackAnalysis:      true,
		},
	}
}

// head returns at most n leading elements, never nil.
func head(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	return append([]string{}, s...)
}

func matching(dirs []string, needles ...string) []string {
	out := []string{}
	for _, d := range dirs {
		for _, n := range needles {
			if strings.Contains(d, n) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

func anySeen(seen map[string]bool, exts []string) bool {
	for _, e := range exts {
		if seen[e] {
			return true
		}
	}
	return false
}
