// File selection - filtering, heuristic ranking and AI-assisted choice.
//
// Information Hiding:
// - Exclusion rules and the supported extension set hidden behind Filter
// - Priority pattern table and scoring weights hidden behind Rank
// - Prompt wording and response validation hidden behind Selector

package selection

import (
	"path"
	"strings"
)

// Default exclusion and inclusion sets.
var (
	DefaultExcludedDirs = []string{
		"node_modules", ".git", "__pycache__", "dist", "build",
		"target", ".idea", ".vscode", "coverage", ".nyc_output",
	}
	DefaultExcludedExts = []string{
		".log", ".tmp", ".cache", ".lock", ".map", ".min.js", ".min.css",
	}
	DefaultSupportedExts = []string{
		".js", ".ts", ".jsx", ".tsx", ".py", ".java", ".go", ".rs", ".rb",
		".php", ".cpp", ".c", ".cs", ".swift", ".kt", ".scala", ".clj",
		".json", ".yaml", ".yml", ".toml", ".xml", ".md", ".txt", ".sh",
		".dockerfile", ".makefile",
	}
)

// Policy configures Filter.
type Policy struct {
	ExcludedDirs  []string // matched against whole path segments
	ExcludedExts  []string // matched as path suffixes
	SupportedExts []string // lowercase, with leading dot
}

// DefaultPolicy returns the built-in exclusion and inclusion sets.
func DefaultPolicy() Policy {
	return Policy{
		ExcludedDirs:  DefaultExcludedDirs,
		ExcludedExts:  DefaultExcludedExts,
		SupportedExts: DefaultSupportedExts,
	}
}

// Filter keeps the paths worth analysing, preserving input order. A path is
// dropped when a segment names an excluded directory, when it ends with an
// excluded extension, or when it has an extension outside the supported set.
// Paths without an extension are kept.
func Filter(paths []string, p Policy) []string {
	dirs := make(map[string]struct{}, len(p.ExcludedDirs))
	for _, d := range p.ExcludedDirs {
		dirs[d] = struct{}{}
	}
	supported := make(map[string]struct{}, len(p.SupportedExts))
	for _, e := range p.SupportedExts {
		supported[strings.ToLower(e)] = struct{}{}
	}

	kept := make([]string, 0, len(paths))
	for _, fp := range paths {
		if inExcludedDir(fp, dirs) || hasExcludedExt(fp, p.ExcludedExts) {
			continue
		}
		if ext := Ext(fp); ext != "" {
			if _, ok := supported[ext]; !ok {
				continue
			}
		}
		kept = append(kept, fp)
	}
	return kept
}

// Ext returns the lowercased extension of the final path element. Dotfiles
// such as ".gitignore" have no extension.
func Ext(fp string) string {
	base := path.Base(fp)
	i := strings.LastIndex(base, ".")
	if i <= 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i:])
}

func inExcludedDir(fp string, dirs map[string]struct{}) bool {
	for _, seg := range strings.Split(fp, "/") {
		if _, ok := dirs[seg]; ok {
			return true
		}
	}
	return false
}

func hasExcludedExt(fp string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(fp, ext) {
			return true
		}
	}
	return false
}
