package metrics

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry        *prom.Registry
	hostingRequests *prom.CounterVec
	retries         *prom.CounterVec
	fallbacks       *prom.CounterVec
	stageDuration   *prom.HistogramVec
	contentChars    prom.Counter
	runOutcomes     *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the metrics on reg. A nil
// registry gets a fresh one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		hostingRequests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "reposcope",
			Name:      "hosting_requests_total",
			Help:      "Hosting API requests by operation and result",
		}, []string{"op", "result"}),
		retries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "reposcope",
			Name:      "retries_total",
			Help:      "Retry attempts by component",
		}, []string{"component"}),
		fallbacks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "reposcope",
			Name:      "fallbacks_total",
			Help:      "Heuristic fallbacks by stage and reason",
		}, []string{"stage", "reason"}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "reposcope",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		contentChars: prom.NewCounter(prom.CounterOpts{
			Namespace: "reposcope",
			Name:      "content_chars_total",
			Help:      "Characters of file content accepted into the prompt",
		}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "reposcope",
			Name:      "runs_total",
			Help:      "Analysis runs by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(pr.hostingRequests, pr.retries, pr.fallbacks, pr.stageDuration, pr.contentChars, pr.runOutcomes)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

func (p *PrometheusRecorder) IncHostingRequest(op, result string) {
	if p == nil {
		return
	}
	p.hostingRequests.WithLabelValues(op, result).Inc()
}

func (p *PrometheusRecorder) IncRetry(component string) {
	if p == nil {
		return
	}
	p.retries.WithLabelValues(component).Inc()
}

func (p *PrometheusRecorder) IncFallback(stage, reason string) {
	if p == nil {
		return
	}
	p.fallbacks.WithLabelValues(stage, reason).Inc()
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) AddContentChars(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.contentChars.Add(float64(n))
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil {
		return
	}
	p.runOutcomes.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

var _ Recorder = (*PrometheusRecorder)(nil)
