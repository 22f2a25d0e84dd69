package selection

import (
	"path"
	"sort"
	"strings"
)

// PriorityPatterns lists path fragments in descending importance: package
// managers and build files, tool configuration, CI/CD and deployment, then
// documentation.
var PriorityPatterns = []string{
	"package.json", "pom.xml", "build.gradle", "Cargo.toml", "go.mod",
	"requirements.txt", "setup.py", "pyproject.toml", "composer.json",
	"Gemfile", "mix.exs", "project.clj", "deps.edn",

	"tsconfig.json", "webpack.config.js", "vite.config.js", "rollup.config.js",
	"babel.config.js", "jest.config.js", "cypress.json",

	"Dockerfile", ".github/workflows", ".gitlab-ci.yml", "Jenkinsfile",
	"docker-compose.yml", "k8s.yml", "kubernetes.yml",

	"README.md", "CONTRIBUTING.md", ".env.example", "makefile", "Makefile",
}

// Score weights.
const (
	patternWeight = 10
	rootBonus     = 5
	configBonus   = 3
	docBonus      = 2
)

var docNames = map[string]bool{"readme.md": true, "license": true, "contributing.md": true}

// Score returns the heuristic importance of a single path.
func Score(fp string) int {
	score := 0
	lower := strings.ToLower(fp)
	for i, pattern := range PriorityPatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			score += (len(PriorityPatterns) - i) * patternWeight
			break
		}
	}

	if !strings.Contains(fp, "/") {
		score += rootBonus
	}
	base := strings.ToLower(path.Base(fp))
	if strings.Contains(base, "config") || strings.Contains(base, "setup") {
		score += configBonus
	}
	if docNames[base] {
		score += docBonus
	}
	return score
}

type scored struct {
	path  string
	score int
}

// Rank orders paths by Score, highest first, and returns at most limit of
// them. Zero-score paths are dropped; ties keep input order.
func Rank(paths []string, limit int) []string {
	if limit <= 0 {
		return []string{}
	}

	candidates := make([]scored, 0, len(paths))
	for _, fp := range paths {
		if s := Score(fp); s > 0 {
			candidates = append(candidates, scored{path: fp, score: s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	ranked := make([]string, len(candidates))
	for i, c := range candidates {
		ranked[i] = c.path
	}
	return ranked
}
