// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package. A batch run has no scrape endpoint, so metrics
// are kept in a private registry and pushed on Flush.
package prompush

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"productprep/internal/metrics"
)

type Backend struct {
	reg    *prometheus.Registry
	pusher *push.Pusher

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewBackend registers the known metric families and targets gatewayURL
// under the given job name.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: empty gateway url")
	}
	if jobName == "" {
		jobName = "productprep"
	}

	reg := prometheus.NewRegistry()
	b := &Backend{
		reg:        reg,
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}

	counters := []struct {
		name, help string
		labels     []string
	}{
		{metrics.StepTotal, "Pipeline steps completed, by status.", []string{"step", "status"}},
		{metrics.RowsTotal, "Rows processed, by kind.", []string{"kind"}},
		{metrics.HTTPRequestsTotal, "Dataset download attempts.", []string{"status"}},
		{metrics.HTTPErrorsTotal, "Failed dataset download attempts.", []string{"status"}},
	}
	for _, c := range counters {
		v := prometheus.NewCounterVec(prometheus.CounterOpts{Name: c.name, Help: c.help}, c.labels)
		if err := reg.Register(v); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", c.name, err)
		}
		b.counters[c.name] = v
	}

	histograms := []struct {
		name, help string
		labels     []string
		buckets    []float64
	}{
		{metrics.StepDuration, "Pipeline step duration.", []string{"step", "status"}, prometheus.DefBuckets},
		{metrics.HTTPDownloadBytes, "Dataset download size.", []string{"status"}, prometheus.ExponentialBuckets(1024, 4, 10)},
	}
	for _, h := range histograms {
		v := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: h.name, Help: h.help, Buckets: h.buckets}, h.labels)
		if err := reg.Register(v); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", h.name, err)
		}
		b.histograms[h.name] = v
	}

	b.pusher = push.New(gatewayURL, jobName).Gatherer(reg)
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.counters[name]; ok {
		v.With(prometheus.Labels(labels)).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.histograms[name]; ok {
		v.With(prometheus.Labels(labels)).Observe(value)
	}
}

// Flush pushes the registry, replacing the job's previous push.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

// Gatherer exposes the registry, mostly for tests.
func (b *Backend) Gatherer() prometheus.Gatherer { return b.reg }

var _ metrics.Backend = (*Backend)(nil)
