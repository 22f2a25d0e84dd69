// Result Writer - saves analysis documents to disk.
//
// Information Hiding:
// - File naming (timestamped, latest, fallback) hidden behind Save
// - JSON and YAML encoding details
// - Filesystem access through afero so tests run in memory

package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a format name to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format: %q (expected json or yaml)", s)
	}
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// Encode writes doc to w. JSON is indented by two spaces without HTML
// escaping; YAML uses two-space indentation.
func Encode(w io.Writer, format Format, doc any) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toPlain(doc)); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	}
}

// toPlain round-trips doc through JSON so YAML output uses the same field
// names as JSON output.
func toPlain(doc any) any {
	b, err := json.Marshal(doc)
	if err != nil {
		return doc
	}
	var plain any
	if err := json.Unmarshal(b, &plain); err != nil {
		return doc
	}
	return plain
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	Format Format
	Clock  func() time.Time
	Logger zerolog.Logger
}

// Writer saves documents under a base directory.
type Writer struct {
	fs     afero.Fs
	dir    string
	format Format
	clock  func() time.Time
	logger zerolog.Logger
}

// NewWriter creates a writer rooted at dir.
// Use afero.NewOsFs() for real filesystem operations,
// or afero.NewMemMapFs() for testing.
func NewWriter(fs afero.Fs, dir string, opts WriterOptions) *Writer {
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Writer{fs: fs, dir: dir, format: opts.Format, clock: opts.Clock, logger: opts.Logger}
}

// Save writes doc as <dir>/<owner>/<repo>_<YYYYMMDD_HHMMSS><ext> and refreshes
// <dir>/<owner>/<repo>_latest<ext>. When the owner directory cannot be
// written, it falls back to <dir>/<owner>_<repo>_analysis<ext>. It returns the
// path of the primary file written.
func (w *Writer) Save(owner, repo string, doc any) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, w.format, doc); err != nil {
		return "", err
	}
	data := buf.Bytes()
	ext := w.format.Ext()

	ownerDir := filepath.Join(w.dir, owner)
	stamped := filepath.Join(ownerDir, fmt.Sprintf("%s_%s%s", repo, w.clock().Format("20060102_150405"), ext))
	latest := filepath.Join(ownerDir, repo+"_latest"+ext)

	err := w.fs.MkdirAll(ownerDir, 0755)
	if err == nil {
		err = afero.WriteFile(w.fs, stamped, data, 0644)
	}
	if err == nil {
		if lerr := afero.WriteFile(w.fs, latest, data, 0644); lerr != nil {
			w.logger.Warn().Err(lerr).Str("path", latest).Msg("failed to update latest result")
		}
		w.logger.Info().Str("path", stamped).Msg("results saved")
		return stamped, nil
	}

	w.logger.Warn().Err(err).Str("path", stamped).Msg("failed to save results, trying fallback location")
	fallback := filepath.Join(w.dir, fmt.Sprintf("%s_%s_analysis%s", owner, repo, ext))
	if err := w.fs.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := afero.WriteFile(w.fs, fallback, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save results: %w", err)
	}
	w.logger.Info().Str("path", fallback).Msg("results saved to fallback location")
	return fallback, nil
}
