package analysis

import (
	_ "embed"
	"strconv"
	"strings"

	"github.com/richinex/reposcope/content"
	"github.com/richinex/reposcope/selection"
)

//go:embed prompts/comprehensive.txt
var comprehensivePrompt string

// Placeholders recognised in prompt templates.
const (
	PlaceholderRepoName          = "{REPO_NAME}"
	PlaceholderDescription       = "{DESCRIPTION}"
	PlaceholderLanguage          = "{LANGUAGE}"
	PlaceholderTopics            = "{TOPICS}"
	PlaceholderTotalFiles        = "{TOTAL_FILES}"
	PlaceholderFileStructure     = "{FILE_STRUCTURE}"
	PlaceholderFileContents      = "{FILE_CONTENTS}"
	PlaceholderStructureAnalysis = "{STRUCTURE_ANALYSIS}"
	PlaceholderCommandCategories = "{COMMAND_CATEGORIES}"
)

// DefaultCommandCategories lists the command groups offered to custom templates.
var DefaultCommandCategories = []string{
	"setup", "install", "build", "test", "dev", "production",
	"deployment", "database", "docker", "ci_cd", "maintenance",
}

const ruler = "============================================================"

// FormatFileContents renders files between FILE/END FILE banners, each with
// its size in characters and extension.
func FormatFileContents(files []content.File) string {
	if len(files) == 0 {
		return "No file contents available for analysis."
	}

	parts := make([]string, 0, len(files))
	for _, f := range files {
		ext := selection.Ext(f.Path)
		if ext == "" {
			ext = "no extension"
		}
		var b strings.Builder
		b.WriteString("\n" + ruler + "\n")
		b.WriteString("FILE: " + f.Path + "\n")
		b.WriteString("SIZE: " + strconv.Itoa(len([]rune(f.Content))) + " characters\n")
		b.WriteString("TYPE: " + ext + "\n")
		b.WriteString(ruler + "\n")
		b.WriteString(strings.TrimSpace(f.Content) + "\n")
		b.WriteString("\n" + ruler + "\n")
		b.WriteString("END FILE: " + f.Path + "\n")
		b.WriteString(ruler + "\n")
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n")
}

// buildPrompt fills the custom template when one is configured, otherwise
// the built-in comprehensive prompt.
func buildPrompt(rc *RepositoryContext, structureJSON, customTemplate string, categories []string, maxFilesInPrompt int) string {
	meta := rc.Metadata
	sample := rc.Files
	if len(sample) > maxFilesInPrompt {
		sample = sample[:maxFilesInPrompt]
	}
	listing := make([]string, len(sample))
	for i, p := range sample {
		listing[i] = "- " + p
	}

	template := comprehensivePrompt
	if strings.TrimSpace(customTemplate) != "" {
		template = customTemplate
	}

	r := strings.NewReplacer(
		PlaceholderRepoName, rc.Ref.String(),
		PlaceholderDescription, meta.Description(),
		PlaceholderLanguage, meta.Language(),
		PlaceholderTopics, meta.TopicList("None specified"),
		PlaceholderTotalFiles, strconv.Itoa(len(rc.Files)),
		PlaceholderFileStructure, strings.Join(listing, "\n"),
		PlaceholderFileContents, FormatFileContents(rc.Contents.Files),
		PlaceholderStructureAnalysis, structureJSON,
		PlaceholderCommandCategories, strings.Join(categories, ", "),
		"{STARS}", thousands(meta.Int("stargazers_count")),
		"{FORKS}", thousands(meta.Int("forks_count")),
		"{SIZE}", thousands(meta.Int("size")),
		"{CREATED}", meta.Str("created_at", "Unknown"),
		"{UPDATED}", meta.Str("updated_at", "Unknown"),
		"{DEFAULT_BRANCH}", meta.Str("default_branch", "main"),
		"{FILES_ANALYZED}", thousands(len(rc.Contents.Files)),
	)
	return r.Replace(template)
}

// thousands formats n with comma separators.
func thousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
