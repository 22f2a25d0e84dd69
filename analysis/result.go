package analysis

import (
	"time"

	"github.com/richinex/reposcope/internal/apperr"
	jsonx "github.com/richinex/reposcope/internal/json"
)

// Version is reported as analyzer_version in every result.
var Version = "1.0.0"

// Pipeline stages, reported in error results and logs.
const (
	StageMetadata  = "metadata"
	StageTree      = "tree"
	StageFilter    = "filter"
	StageSelection = "selection"
	StageContent   = "content"
	StageStructure = "structure"
	StageAnalysis  = "analysis"
	StageExtract   = "extract"
)

// Result is the model's analysis object with analysis_metadata appended.
type Result map[string]any

// Metadata describes the run that produced a Result.
type Metadata struct {
	AnalyzerVersion   string `json:"analyzer_version" yaml:"analyzer_version"`
	ModelUsed         string `json:"model_used" yaml:"model_used"`
	AnalysisTimestamp string `json:"analysis_timestamp" yaml:"analysis_timestamp"`
	Repository        string `json:"repository" yaml:"repository"`
	FilesAnalyzed     int    `json:"files_analyzed" yaml:"files_analyzed"`
	TotalFiles        int    `json:"total_files" yaml:"total_files"`
	SelectionMethod   string `json:"selection_method" yaml:"selection_method"`
	StructureFallback bool   `json:"structure_fallback" yaml:"structure_fallback"`
	RunID             string `json:"run_id" yaml:"run_id"`
}

// RepositoryAnalysis returns the repository_analysis section, if present.
func (r Result) RepositoryAnalysis() map[string]any {
	section, _ := r["repository_analysis"].(map[string]any)
	return section
}

// ErrorResult is produced for every terminal failure.
type ErrorResult struct {
	Error              string `json:"error" yaml:"error"`
	ErrorKind          string `json:"error_kind" yaml:"error_kind"`
	Stage              string `json:"stage" yaml:"stage"`
	Repository         string `json:"repository" yaml:"repository"`
	Timestamp          string `json:"timestamp" yaml:"timestamp"`
	RunID              string `json:"run_id" yaml:"run_id"`
	ErrorDetails       string `json:"error_details,omitempty" yaml:"error_details,omitempty"`
	RawResponsePreview string `json:"raw_response_preview,omitempty" yaml:"raw_response_preview,omitempty"`
}

func newErrorResult(err error, stage, repository, runID string, now time.Time) *ErrorResult {
	return &ErrorResult{
		Error:      err.Error(),
		ErrorKind:  string(apperr.KindOf(err)),
		Stage:      stage,
		Repository: repository,
		Timestamp:  now.Format(time.RFC3339),
		RunID:      runID,
	}
}

// responsePreview returns the first PreviewLength characters of s, with an
// ellipsis when s was longer.
func responsePreview(s string) string {
	p := jsonx.Preview(s, jsonx.PreviewLength)
	if len(p) < len(s) {
		return p + "..."
	}
	return p
}
