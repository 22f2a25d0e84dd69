// LLM Client - retrying wrapper around providers.
//
// Information Hiding:
// - Retry and backoff policy hidden
// - Authentication error classification hidden
// - Per-attempt timeout hidden

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/richinex/reposcope/internal/apperr"
	"github.com/richinex/reposcope/internal/retry"
	"github.com/richinex/reposcope/logging"
	"github.com/richinex/reposcope/metrics"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// Client defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultTimeout     = 60 * time.Second
)

// authMarkers identify credential failures in provider error text.
var authMarkers = []string{"authentication", "api_key", "unauthorized", "forbidden"}

// ClientConfig configures Client. Zero values take the defaults above.
type ClientConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
	Logger      zerolog.Logger
	Recorder    metrics.Recorder
	Sleep       retry.Sleeper
}

// Client wraps a Provider with retries and a single-prompt interface.
type Client struct {
	provider Provider
	policy   retry.Policy
	timeout  time.Duration
	logger   zerolog.Logger
	recorder metrics.Recorder
	sleep    retry.Sleeper
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider, cfg ClientConfig) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		provider: provider,
		policy:   retry.NewPolicy(cfg.MaxAttempts, cfg.BaseDelay, 0),
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		recorder: metrics.OrNoop(cfg.Recorder),
		sleep:    cfg.Sleep,
	}
}

// Invoke sends prompt as a single user message and returns the reply text.
//
// Authentication failures are returned after one attempt as
// KindAuthenticationFailed. Other failures, including an empty choice list,
// are retried; exhaustion returns KindModelCallFailed wrapping the last error.
func (c *Client) Invoke(ctx context.Context, prompt string) (string, error) {
	var resp LLMResponse
	start := time.Now()

	attempts, err := retry.Do(ctx, c.policy, retry.Options{
		Retryable: func(err error) bool { return !IsAuthError(err) },
		OnRetry: func(a retry.Attempt, delay time.Duration) {
			c.recorder.IncRetry("ai")
			c.logger.Warn().
				Err(a.Err).
				Int(logging.KeyAttempt, a.Number).
				Str(logging.KeyModel, c.provider.Model()).
				Dur("backoff", delay).
				Msg("model call failed, retrying")
		},
		Sleep: c.sleep,
	}, func(ctx context.Context, attempt int) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		c.logger.Debug().
			Int(logging.KeyAttempt, attempt).
			Str(logging.KeyModel, c.provider.Model()).
			Int("prompt_chars", len(prompt)).
			Msg("calling model")

		r, err := c.provider.Chat(callCtx, []ChatMessage{UserMessage(prompt)})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})

	if err == nil {
		event := c.logger.Info().
			Str(logging.KeyModel, c.provider.Model()).
			Int(logging.KeyAttempt, attempts).
			Int64(logging.KeyDurationMS, time.Since(start).Milliseconds())
		if u := resp.Usage; u != nil {
			event = event.
				Uint32("prompt_tokens", u.PromptTokens).
				Uint32("completion_tokens", u.CompletionTokens).
				Uint32("total_tokens", u.TotalTokens)
		}
		event.Msg("model responded")
		return resp.Content, nil
	}

	if IsAuthError(err) {
		c.logger.Error().Err(err).Msg("authentication error, not retrying")
		return "", apperr.Wrap(err, apperr.KindAuthenticationFailed, "llm.invoke",
			fmt.Sprintf("authentication failed for %s", c.provider.Model()))
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", apperr.Wrap(err, apperr.KindCanceled, "llm.invoke", "model call interrupted")
	}
	c.logger.Error().Err(err).Int(logging.KeyAttempt, attempts).Msg("all model attempts failed")
	return "", apperr.Wrap(err, apperr.KindModelCallFailed, "llm.invoke",
		fmt.Sprintf("model %s failed after %d attempts", c.provider.Model(), attempts))
}

// IsAuthError reports whether err is a credential failure that retrying
// cannot fix.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && isAuthStatus(apiErr.HTTPStatusCode) {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && isAuthStatus(reqErr.HTTPStatusCode) {
		return true
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) && isAuthStatus(anthropicErr.StatusCode) {
		return true
	}

	errLower := strings.ToLower(err.Error())
	for _, marker := range authMarkers {
		if strings.Contains(errLower, marker) {
			return true
		}
	}
	return false
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
