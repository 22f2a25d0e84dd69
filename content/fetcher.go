// Content Fetcher - budgeted retrieval of selected file contents.
//
// Information Hiding:
// - Per-file truncation and the total budget rule
// - Windowed parallel fetching that yields the same result as a sequential pass
// - Classification of per-file failures into skip counters

package content

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/richinex/reposcope/hosting"
	"github.com/richinex/reposcope/internal/apperr"
	"github.com/richinex/reposcope/logging"
	"github.com/richinex/reposcope/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Defaults for Options.
const (
	DefaultMaxFileSize     = 10000
	DefaultMaxTotalContent = 100000
	DefaultConcurrency     = 4
)

// TruncationMarker is appended to files cut at the per-file limit.
const TruncationMarker = "\n... (truncated)"

// Source reads a single file from a repository. A missing file returns
// ("", false, nil).
type Source interface {
	FileContent(ctx context.Context, ref hosting.RepositoryRef, path string) (string, bool, error)
}

// File is one fetched file.
type File struct {
	Path      string
	Content   string
	Truncated bool
}

// FetchResult holds fetched files in input order and what happened to the rest.
type FetchResult struct {
	Files      []File
	TotalChars int // sum of rune counts of Files

	Fetched     int
	Truncated   int
	Missing     int
	Binary      int
	Failed      int
	Oversized   int // files larger than the whole budget on their own
	NotFetched  int // paths never examined because fetching stopped
	RateLimited bool
	Interrupted bool
}

// Map returns the files keyed by path.
func (r FetchResult) Map() map[string]string {
	m := make(map[string]string, len(r.Files))
	for _, f := range r.Files {
		m[f.Path] = f.Content
	}
	return m
}

// Options configures a Fetcher.
type Options struct {
	MaxFileSize     int // runes per file before truncation
	MaxTotalContent int // runes across all files
	Concurrency     int // 1 fetches sequentially
	Logger          zerolog.Logger
	Recorder        metrics.Recorder
}

// Fetcher retrieves file contents under per-file and total size budgets.
type Fetcher struct {
	source   Source
	opts     Options
	logger   zerolog.Logger
	recorder metrics.Recorder
}

// NewFetcher creates a fetcher reading from source.
func NewFetcher(source Source, opts Options) *Fetcher {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.MaxTotalContent <= 0 {
		opts.MaxTotalContent = DefaultMaxTotalContent
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Fetcher{
		source:   source,
		opts:     opts,
		logger:   opts.Logger,
		recorder: metrics.OrNoop(opts.Recorder),
	}
}

type outcome struct {
	text  string
	found bool
	err   error
}

// Fetch retrieves paths in order. A file is accepted only while the running
// total plus its length stays within MaxTotalContent; the first file that does
// not fit ends the fetch. A file that exceeds MaxTotalContent by itself can
// never fit and is skipped instead. Missing, binary and failed files are
// skipped. A rate limit or cancellation stops early and returns what was
// gathered so far.
//
// With Concurrency above 1 a window is requested in full before the budget is
// applied, so files past the cutoff may cost a request each while still being
// counted in NotFetched.
func (f *Fetcher) Fetch(ctx context.Context, ref hosting.RepositoryRef, paths []string) FetchResult {
	var res FetchResult

	for start := 0; start < len(paths); start += f.opts.Concurrency {
		end := min(start+f.opts.Concurrency, len(paths))
		window := paths[start:end]
		outcomes := f.fetchWindow(ctx, ref, window)

		for i, out := range outcomes {
			p := window[i]
			remaining := len(paths) - (start + i)

			switch {
			case out.err == nil && !out.found:
				res.Missing++
				continue
			case out.err == nil:
			case apperr.Is(out.err, apperr.KindRateLimited):
				f.logger.Warn().Str(logging.KeyPath, p).Msg("hit rate limit while fetching file contents")
				res.RateLimited = true
				res.NotFetched += remaining
				return f.finish(res, len(paths))
			case ctx.Err() != nil:
				res.Interrupted = true
				res.NotFetched += remaining
				return f.finish(res, len(paths))
			case apperr.Is(out.err, apperr.KindCanceled):
				// sibling request cancelled after a rate limit later in the window
				res.NotFetched++
				continue
			case errors.Is(out.err, hosting.ErrBinaryContent):
				f.logger.Debug().Str(logging.KeyPath, p).Msg("skipping binary file")
				res.Binary++
				continue
			default:
				f.logger.Warn().Err(out.err).Str(logging.KeyPath, p).Msg("failed to fetch file content")
				res.Failed++
				continue
			}

			text, truncated := Truncate(out.text, f.opts.MaxFileSize)
			size := utf8.RuneCountInString(text)
			if size > f.opts.MaxTotalContent {
				f.logger.Warn().
					Str(logging.KeyPath, p).
					Int("chars", size).
					Int("max_total_chars", f.opts.MaxTotalContent).
					Msg("file exceeds the total content budget, skipping")
				res.Oversized++
				continue
			}
			if res.TotalChars+size > f.opts.MaxTotalContent {
				f.logger.Warn().
					Int("max_total_chars", f.opts.MaxTotalContent).
					Int(logging.KeyCount, start+i).
					Msgf("reached maximum total content size, stopping at %d/%d files", start+i+1, len(paths))
				res.NotFetched += remaining
				return f.finish(res, len(paths))
			}
			if truncated {
				f.logger.Debug().Str(logging.KeyPath, p).Int("max_chars", f.opts.MaxFileSize).Msg("truncating large file")
				res.Truncated++
			}
			res.Files = append(res.Files, File{Path: p, Content: text, Truncated: truncated})
			res.TotalChars += size
			res.Fetched++
			f.recorder.AddContentChars(size)
		}
	}
	return f.finish(res, len(paths))
}

// fetchWindow fetches window concurrently. Outcomes are returned in window
// order. A rate limit cancels the requests still in flight.
func (f *Fetcher) fetchWindow(ctx context.Context, ref hosting.RepositoryRef, window []string) []outcome {
	outcomes := make([]outcome, len(window))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range window {
		g.Go(func() error {
			f.logger.Debug().Str(logging.KeyPath, p).Msg("fetching content")
			text, found, err := f.source.FileContent(gctx, ref, p)
			outcomes[i] = outcome{text: text, found: found, err: err}
			if apperr.Is(err, apperr.KindRateLimited) {
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (f *Fetcher) finish(res FetchResult, total int) FetchResult {
	f.logger.Info().
		Int("fetched", res.Fetched).
		Int("total", total).
		Int("total_chars", res.TotalChars).
		Int("missing", res.Missing).
		Int("binary", res.Binary).
		Int("failed", res.Failed).
		Int("oversized", res.Oversized).
		Int("not_fetched", res.NotFetched).
		Bool("rate_limited", res.RateLimited).
		Msgf("fetched content for %d/%d files", res.Fetched, total)
	return res
}

// Truncate cuts s to limit runes and appends TruncationMarker when it is longer.
func Truncate(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + TruncationMarker, true
		}
		n++
	}
	return s, false
}
