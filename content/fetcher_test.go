package content

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/richinex/reposcope/hosting"
	"github.com/richinex/reposcope/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ref = hosting.RepositoryRef{Owner: "octo", Name: "demo"}

type reply struct {
	text string
	err  error
	skip bool // not found
}

type fakeSource struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   []string
}

func (s *fakeSource) FileContent(ctx context.Context, _ hosting.RepositoryRef, path string) (string, bool, error) {
	s.mu.Lock()
	s.calls = append(s.calls, path)
	r, ok := s.replies[path]
	s.mu.Unlock()

	if !ok || r.skip {
		return "", false, nil
	}
	if r.err != nil {
		return "", false, r.err
	}
	return r.text, true, nil
}

func paths(r FetchResult) []string {
	out := make([]string, len(r.Files))
	for i, f := range r.Files {
		out[i] = f.Path
	}
	return out
}

func TestBudgetStopsAtFirstOverflow(t *testing.T) {
	src := &fakeSource{replies: map[string]reply{
		"a": {text: strings.Repeat("a", 60)},
		"b": {text: strings.Repeat("b", 60)},
		"c": {text: strings.Repeat("c", 60)},
	}}
	for _, conc := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", conc), func(t *testing.T) {
			f := NewFetcher(src, Options{MaxTotalContent: 100, MaxFileSize: 1000, Concurrency: conc})
			res := f.Fetch(context.Background(), ref, []string{"a", "b", "c"})

			assert.Equal(t, []string{"a"}, paths(res))
			assert.Equal(t, 60, res.TotalChars)
			assert.Equal(t, 1, res.Fetched)
			assert.Equal(t, 2, res.NotFetched)
		})
	}
}

func TestBudgetAllowsExactFit(t *testing.T) {
	src := &fakeSource{replies: map[string]reply{
		"a": {text: strings.Repeat("a", 50)},
		"b": {text: strings.Repeat("b", 50)},
	}}
	res := NewFetcher(src, Options{MaxTotalContent: 100}).Fetch(context.Background(), ref, []string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, paths(res))
	assert.Equal(t, 100, res.TotalChars)
}

func TestSkipsMissingBinaryAndFailed(t *testing.T) {
	src := &fakeSource{replies: map[string]reply{
		"README.md":  {text: "# demo"},
		"gone.go":    {skip: true},
		"logo.png":   {err: fmt.Errorf("logo.png: %w", hosting.ErrBinaryContent)},
		"flaky.go":   {err: apperr.New(apperr.KindTransientNetwork, "hosting.content", "timeout")},
		"go.mod":     {text: "module demo\n"},
		"huge.json":  {err: fmt.Errorf("huge.json: %w", hosting.ErrUndecodable)},
		"Dockerfile": {text: "FROM scratch\n"},
	}}
	in := []string{"README.md", "gone.go", "logo.png", "flaky.go", "go.mod", "huge.json", "Dockerfile"}
	res := NewFetcher(src, Options{Concurrency: 3}).Fetch(context.Background(), ref, in)

	assert.Equal(t, []string{"README.md", "go.mod", "Dockerfile"}, paths(res))
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 1, res.Missing)
	assert.Equal(t, 1, res.Binary)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 0, res.NotFetched)
	assert.False(t, res.RateLimited)
	assert.Equal(t, map[string]string{"README.md": "# demo", "go.mod": "module demo\n", "Dockerfile": "FROM scratch\n"}, res.Map())
}

func TestTruncatesLargeFiles(t *testing.T) {
	src := &fakeSource{replies: map[string]reply{
		"big.txt": {text: strings.Repeat("é", 30)},
	}}
	res := NewFetcher(src, Options{MaxFileSize: 10}).Fetch(context.Background(), ref, []string{"big.txt"})

	require.Len(t, res.Files, 1)
	assert.True(t, res.Files[0].Truncated)
	assert.Equal(t, strings.Repeat("é", 10)+TruncationMarker, res.Files[0].Content)
	assert.Equal(t, 10+len([]rune(TruncationMarker)), res.TotalChars)
	assert.Equal(t, 1, res.Truncated)
}

func TestRateLimitReturnsPartialResult(t *testing.T) {
	src := &fakeSource{replies: map[string]reply{
		"a": {text: "alpha"},
		"b": {err: apperr.RateLimited("hosting.content", time.Time{})},
		"c": {text: "gamma"},
		"d": {text: "delta"},
	}}
	res := NewFetcher(src, Options{Concurrency: 1}).Fetch(context.Background(), ref, []string{"a", "b", "c", "d"})

	assert.True(t, res.RateLimited)
	assert.Equal(t, []string{"a"}, paths(res))
	assert.Equal(t, 3, res.NotFetched)
	assert.Equal(t, []string{"a", "b"}, src.calls)
}

// slowSource answers "a" at once, rate-limits "b" and holds every other
// path until its context ends.
type slowSource struct {
	mu       sync.Mutex
	calls    []string
	canceled int
}

func (s *slowSource) FileContent(ctx context.Context, _ hosting.RepositoryRef, path string) (string, bool, error) {
	s.mu.Lock()
	s.calls = append(s.calls, path)
	s.mu.Unlock()

	switch path {
	case "a":
		return "alpha", true, nil
	case "b":
		return "", false, apperr.RateLimited("hosting.content", time.Time{})
	}
	select {
	case <-ctx.Done():
		s.mu.Lock()
		s.canceled++
		s.mu.Unlock()
		return "", false, apperr.Wrap(ctx.Err(), apperr.KindCanceled, "hosting.content", "request interrupted")
	case <-time.After(10 * time.Second):
		return path, true, nil
	}
}

func TestRateLimitCancelsWindowSiblings(t *testing.T) {
	src := &slowSource{}
	in := []string{"a", "b", "c", "d", "e", "f"}

	start := time.Now()
	res := NewFetcher(src, Options{Concurrency: 4}).Fetch(context.Background(), ref, in)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, res.RateLimited)
	assert.False(t, res.Interrupted)
	assert.Equal(t, []string{"a"}, paths(res))
	assert.Equal(t, len(in)-1, res.NotFetched)
	assert.Equal(t, 2, src.canceled)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, src.calls)
}

func TestOversizedFileIsSkipped(t *testing.T) {
	src := &fakeSource{replies: map[string]reply{
		"big":   {text: strings.Repeat("x", 150)},
		"small": {text: "ok"},
	}}
	for _, conc := range []int{1, 2} {
		t.Run(fmt.Sprintf("concurrency=%d", conc), func(t *testing.T) {
			res := NewFetcher(src, Options{MaxTotalContent: 100, MaxFileSize: 1000, Concurrency: conc}).
				Fetch(context.Background(), ref, []string{"big", "small"})

			assert.Equal(t, []string{"small"}, paths(res))
			assert.Equal(t, 1, res.Oversized)
			assert.Equal(t, 0, res.NotFetched)
			assert.Equal(t, 2, res.TotalChars)
		})
	}
}

func TestCanceledContextStopsFetching(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{replies: map[string]reply{
		"a": {err: apperr.Wrap(context.Canceled, apperr.KindCanceled, "hosting.content", "request interrupted")},
		"b": {text: "beta"},
	}}
	res := NewFetcher(src, Options{Concurrency: 1}).Fetch(ctx, ref, []string{"a", "b"})

	assert.True(t, res.Interrupted)
	assert.Empty(t, res.Files)
	assert.Equal(t, 2, res.NotFetched)
}

func TestTruncate(t *testing.T) {
	s, cut := Truncate("hello", 5)
	assert.Equal(t, "hello", s)
	assert.False(t, cut)

	s, cut = Truncate("hello world", 5)
	assert.Equal(t, "hello"+TruncationMarker, s)
	assert.True(t, cut)

	s, cut = Truncate("anything", 0)
	assert.Equal(t, "anything", s)
	assert.False(t, cut)
}

func TestEmptyInput(t *testing.T) {
	res := NewFetcher(&fakeSource{}, Options{}).Fetch(context.Background(), ref, nil)
	assert.Empty(t, res.Files)
	assert.Equal(t, 0, res.TotalChars)
}
