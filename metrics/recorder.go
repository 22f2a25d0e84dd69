// Package metrics records pipeline observations. The default recorder does
// nothing; the Prometheus recorder can be dumped to a textfile after a run.
package metrics

import "time"

// Result labels for hosting requests.
const (
	ResultSuccess     = "success"
	ResultNotFound    = "not_found"
	ResultRateLimited = "rate_limited"
	ResultError       = "error"
)

// Recorder defines observability hooks for one analysis. Implementations must
// be safe for concurrent use.
type Recorder interface {
	IncHostingRequest(op, result string)
	IncRetry(component string)
	IncFallback(stage, reason string)
	ObserveStageDuration(stage string, d time.Duration)
	AddContentChars(n int)
	IncRunOutcome(outcome string)
}

// NoopRecorder is the Recorder used when metrics are not configured.
type NoopRecorder struct{}

func (NoopRecorder) IncHostingRequest(string, string)           {}
func (NoopRecorder) IncRetry(string)                            {}
func (NoopRecorder) IncFallback(string, string)                 {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) AddContentChars(int)                        {}
func (NoopRecorder) IncRunOutcome(string)                       {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
