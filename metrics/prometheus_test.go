package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncHostingRequest("tree", ResultSuccess)
	pr.IncRetry("hosting")
	pr.IncFallback("selection", "no_valid_paths")
	pr.ObserveStageDuration("fetch_contents", 150*time.Millisecond)
	pr.AddContentChars(1200)
	pr.IncRunOutcome("success")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, mfs, 6)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncHostingRequest("tree", ResultError)
		pr.IncRetry("ai")
		pr.IncFallback("structure", "parse")
		pr.ObserveStageDuration("x", time.Second)
		pr.AddContentChars(5)
		pr.IncRunOutcome("error")
	})
}

func TestWriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncRunOutcome("success")

	path := filepath.Join(t.TempDir(), "reposcope.prom")
	require.NoError(t, pr.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `reposcope_runs_total{outcome="success"} 1`)
}

func TestOrNoop(t *testing.T) {
	assert.IsType(t, NoopRecorder{}, OrNoop(nil))
	pr := NewPrometheusRecorder(nil)
	assert.Equal(t, Recorder(pr), OrNoop(pr))
}
