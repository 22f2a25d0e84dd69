// Package hosting reads repository metadata, trees and file contents from the
// GitHub REST API.
//
// Information Hiding:
// - go-github client construction and base URL handling
// - Status-to-kind classification (rate limit, not found, auth, transient)
// - Retry loop and per-request timeout
package hosting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/go-github/v61/github"
	"github.com/richinex/reposcope/internal/apperr"
	"github.com/richinex/reposcope/internal/retry"
	"github.com/richinex/reposcope/logging"
	"github.com/richinex/reposcope/metrics"
	"github.com/rs/zerolog"
)

// Client defaults.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

var (
	// ErrBinaryContent is returned for files whose decoded content is not UTF-8 text.
	ErrBinaryContent = errors.New("binary content")
	// ErrUndecodable is returned when the API content cannot be decoded.
	ErrUndecodable = errors.New("content could not be decoded")
)

// Config configures Client. Zero values take the defaults.
type Config struct {
	BaseURL     string // API root; empty means https://api.github.com/
	Token       string // bearer token; empty for anonymous access
	UserAgent   string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	HTTPClient  *http.Client
	Logger      zerolog.Logger
	Recorder    metrics.Recorder
	Sleep       retry.Sleeper
}

// Client is the hosting API client.
type Client struct {
	gh       *github.Client
	timeout  time.Duration
	policy   retry.Policy
	logger   zerolog.Logger
	recorder metrics.Recorder
	sleep    retry.Sleeper
}

// NewClient creates a hosting API client.
func NewClient(cfg Config) (*Client, error) {
	gh := github.NewClient(cfg.HTTPClient)
	if cfg.Token != "" {
		gh = gh.WithAuthToken(cfg.Token)
	}
	if cfg.UserAgent != "" {
		gh.UserAgent = cfg.UserAgent
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindConfigurationInvalid, "hosting.new", "invalid API base URL")
		}
		gh.BaseURL = u
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}

	return &Client{
		gh:       gh,
		timeout:  cfg.Timeout,
		policy:   retry.NewPolicy(cfg.MaxAttempts, cfg.BaseDelay, 0),
		logger:   cfg.Logger,
		recorder: metrics.OrNoop(cfg.Recorder),
		sleep:    cfg.Sleep,
	}, nil
}

// Metadata fetches the repository object.
func (c *Client) Metadata(ctx context.Context, ref RepositoryRef) (Metadata, error) {
	var repo *github.Repository
	err := c.do(ctx, "metadata", ref, func(ctx context.Context) (*github.Response, error) {
		r, resp, err := c.gh.Repositories.Get(ctx, ref.Owner, ref.Name)
		repo = r
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(repo)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "hosting.metadata", "encode repository")
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "hosting.metadata", "decode repository")
	}
	c.logger.Info().Str(logging.KeyRepository, ref.String()).Msg("fetched repository metadata")
	return meta, nil
}

// FileTree lists every file (blob) of the default branch head, in API order.
func (c *Client) FileTree(ctx context.Context, ref RepositoryRef) ([]string, error) {
	var tree *github.Tree
	err := c.do(ctx, "tree", ref, func(ctx context.Context) (*github.Response, error) {
		t, resp, err := c.gh.Git.GetTree(ctx, ref.Owner, ref.Name, "HEAD", true)
		tree = t
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range tree.Entries {
		if entry.GetType() == "blob" {
			paths = append(paths, entry.GetPath())
		}
	}
	if tree.GetTruncated() {
		c.logger.Warn().Str(logging.KeyRepository, ref.String()).Msg("file tree truncated by the API")
	}
	c.logger.Info().Str(logging.KeyRepository, ref.String()).Int(logging.KeyCount, len(paths)).Msg("fetched file tree")
	return paths, nil
}

// FileContent returns the decoded text of path. A missing file returns
// ("", false, nil). Non-text files return ErrBinaryContent or ErrUndecodable.
func (c *Client) FileContent(ctx context.Context, ref RepositoryRef, path string) (string, bool, error) {
	var file *github.RepositoryContent
	err := c.do(ctx, "content", ref, func(ctx context.Context) (*github.Response, error) {
		f, _, resp, err := c.gh.Repositories.GetContents(ctx, ref.Owner, ref.Name, path, nil)
		file = f
		return resp, err
	})
	if apperr.Is(err, apperr.KindNotFound) {
		c.logger.Debug().Str(logging.KeyPath, path).Msg("file not found, skipping")
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if file == nil {
		// path names a directory
		return "", false, nil
	}

	content, err := file.GetContent()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w: %v", path, ErrUndecodable, err)
	}
	if !utf8.ValidString(content) {
		return "", false, fmt.Errorf("%s: %w", path, ErrBinaryContent)
	}
	return content, true, nil
}

// do runs call under the retry policy with a fresh per-request timeout.
func (c *Client) do(ctx context.Context, op string, ref RepositoryRef, call func(ctx context.Context) (*github.Response, error)) error {
	opName := "hosting." + op
	_, err := retry.Do(ctx, c.policy, retry.Options{
		Retryable: apperr.IsRetryable,
		OnRetry: func(a retry.Attempt, delay time.Duration) {
			c.recorder.IncRetry("hosting")
			c.logger.Warn().
				Err(a.Err).
				Str(logging.KeyRepository, ref.String()).
				Int(logging.KeyAttempt, a.Number).
				Dur("backoff", delay).
				Msgf("%s request failed, retrying", op)
		},
		Sleep: c.sleep,
	}, func(ctx context.Context, _ int) error {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := call(reqCtx)
		if resp != nil && resp.Rate.Limit > 0 {
			c.logger.Debug().
				Int("rate_remaining", resp.Rate.Remaining).
				Int("rate_limit", resp.Rate.Limit).
				Msg("hosting rate limit status")
		}
		if err == nil {
			c.recorder.IncHostingRequest(op, metrics.ResultSuccess)
			return nil
		}
		classified := classify(ctx, opName, resp, err)
		c.recorder.IncHostingRequest(op, resultLabel(classified))
		if apperr.Is(classified, apperr.KindRateLimited) {
			c.logger.Error().Err(classified).Str(logging.KeyRepository, ref.String()).Msg("hosting API rate limit exceeded")
		}
		return classified
	})
	return err
}

// classify maps a go-github error to a classified error. parent is the
// caller's context, used to tell cancellation apart from request timeouts.
func classify(parent context.Context, op string, resp *github.Response, err error) error {
	if parent.Err() != nil {
		return apperr.Wrap(err, apperr.KindCanceled, op, "request interrupted")
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return apperr.RateLimited(op, rateErr.Rate.Reset.Time)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		reset := time.Time{}
		if abuseErr.RetryAfter != nil {
			reset = time.Now().Add(*abuseErr.RetryAfter)
		}
		return apperr.RateLimited(op, reset)
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		status := errResp.Response.StatusCode
		switch {
		case status == http.StatusNotFound:
			return apperr.Wrap(err, apperr.KindNotFound, op, "not found")
		case (status == http.StatusForbidden || status == http.StatusTooManyRequests) && isRateLimited(errResp):
			return apperr.RateLimited(op, resetFromHeader(errResp.Response.Header))
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return apperr.Wrap(err, apperr.KindAuthenticationFailed, op, "access denied")
		case status >= 500:
			return apperr.Wrap(err, apperr.KindTransientNetwork, op, fmt.Sprintf("server error %d", status))
		default:
			return apperr.Wrap(err, apperr.KindInternal, op, fmt.Sprintf("unexpected status %d", status))
		}
	}

	// Network failures, per-request timeouts and truncated bodies.
	return apperr.Wrap(err, apperr.KindTransientNetwork, op, "request failed")
}

func isRateLimited(e *github.ErrorResponse) bool {
	if e.Response.Header.Get("X-RateLimit-Remaining") == "0" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "rate limit")
}

func resetFromHeader(h http.Header) time.Time {
	v := h.Get("X-RateLimit-Reset")
	if v == "" {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

func resultLabel(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return metrics.ResultNotFound
	case apperr.KindRateLimited:
		return metrics.ResultRateLimited
	default:
		return metrics.ResultError
	}
}
