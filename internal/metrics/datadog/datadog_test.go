package datadog

import (
	"context"
	"errors"
	"net/http"
	"os"
	"reflect"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"productprep/internal/metrics"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

// quietOptions returns Options whose ticker never fires during a test.
func quietOptions(fs *fakeSubmitter) Options {
	return Options{
		JobName:    "job1",
		FlushEvery: 24 * time.Hour,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(1000, 0) },
		newTicker:  func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	}
}

func TestResolveEnvTag(t *testing.T) {
	oldENV := os.Getenv("ENV")
	oldDDENV := os.Getenv("DD_ENV")
	t.Cleanup(func() {
		_ = os.Setenv("ENV", oldENV)
		_ = os.Setenv("DD_ENV", oldDDENV)
	})

	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_ = os.Setenv("ENV", tc.env)
			_ = os.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestStepStatusKeyRoundTrip(t *testing.T) {
	step, status := splitStepStatusKey(stepStatusKey("enrich", "ok"))
	if step != "enrich" || status != "ok" {
		t.Fatalf("got (%q,%q), want (enrich,ok)", step, status)
	}
	step, status = splitStepStatusKey("bare")
	if step != "bare" || status != "unknown" {
		t.Fatalf("got (%q,%q), want (bare,unknown)", step, status)
	}
}

func TestPercentileNearestRank(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1}, {0.5, 3}, {0.9, 5}, {1, 5},
	}
	for _, tc := range tests {
		if got := percentileNearestRank(s, tc.p); got != tc.want {
			t.Fatalf("p=%v got %v, want %v", tc.p, got, tc.want)
		}
	}
	if got := percentileNearestRank(nil, 0.5); got != 0 {
		t.Fatalf("empty got %v, want 0", got)
	}
}

func TestNewBackend_Defaults(t *testing.T) {
	b, err := NewBackend(context.Background(), Options{
		Tags:      []string{"team:data"},
		submitter: &fakeSubmitter{},
		newTicker: func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	if !contains(b.baseTags, "job:productprep") {
		t.Fatalf("baseTags missing job:productprep: %v", b.baseTags)
	}
	if !contains(b.baseTags, "team:data") {
		t.Fatalf("baseTags missing team:data: %v", b.baseTags)
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%s, want 60s", b.flushEvery)
	}
}

func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "clean", "status": "ok"})
	b.ObserveHistogram(metrics.StepDuration, 0.5, metrics.Labels{"step": "clean", "status": "ok"})
	b.IncCounter(metrics.RowsTotal, 3, metrics.Labels{"kind": "duplicate"})
	b.IncCounter(metrics.HTTPRequestsTotal, 1, metrics.Labels{"status": "200"})
	b.ObserveHistogram(metrics.HTTPDownloadBytes, 2048, metrics.Labels{"status": "200"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
	if len(b.stepCounts) != 0 || len(b.rowCounts) != 0 || len(b.stepDurations) != 0 {
		t.Fatalf("buffers not reset after Flush")
	}

	payload, ok := fs.last()
	if !ok {
		t.Fatalf("missing payload")
	}
	var names []string
	for _, s := range payload.Series {
		names = append(names, s.Metric)
		if len(s.Points) != 1 || s.Points[0].Timestamp == nil || *s.Points[0].Timestamp != 1000 {
			t.Fatalf("series %s has unexpected points %+v", s.Metric, s.Points)
		}
	}
	sort.Strings(names)

	for _, w := range []string{
		"prep.step.total",
		"prep.step.duration_seconds.p50",
		"prep.step.duration_seconds.samples",
		"prep.rows.total",
		"prep.http.requests.total",
		"prep.http.download_bytes.max",
	} {
		if !contains(names, w) {
			t.Fatalf("payload missing metric %q; got=%v", w, names)
		}
	}
}

func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 0 {
		t.Fatalf("unexpected submission count=%d, want 0", fs.count())
	}
}

func TestFlush_PropagatesSubmitError(t *testing.T) {
	fs := &fakeSubmitter{err: errors.New("intake down")}
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "read"})
	if err := b.Flush(); err == nil {
		t.Fatalf("Flush() err=nil, want submit error")
	}
	if len(b.rowCounts) != 0 {
		t.Fatalf("buffers must be reset even when submit fails")
	}
}

func TestLoopAndClose(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		JobName:    "job1",
		FlushEvery: 5 * time.Millisecond,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(2000, 0) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "read"})

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) && fs.count() < 1 {
		time.Sleep(2 * time.Millisecond)
	}
	if fs.count() < 1 {
		_ = b.Close()
		t.Fatalf("expected at least one background Flush submission; got %d", fs.count())
	}

	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "read"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v, want nil", err)
	}
	if fs.count() < 2 {
		t.Fatalf("expected at least 2 submissions after Close; got %d", fs.count())
	}
}

func TestBackend_ConcurrentAccess(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	workers := runtime.GOMAXPROCS(0) * 4
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "enrich", "status": "ok"})
				b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "enriched"})
				b.ObserveHistogram(metrics.StepDuration, 0.01, metrics.Labels{"step": "enrich", "status": "ok"})
			}
		}()
	}
	wg.Wait()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
}

func TestIncCounterAndObserveHistogram_EdgeCases(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.RowsTotal, 0, metrics.Labels{"kind": "read"})
	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{})
	b.IncCounter("unknown_total", 1, metrics.Labels{"x": "y"})
	b.ObserveHistogram(metrics.StepDuration, -1, metrics.Labels{"step": "clean", "status": "ok"})
	b.IncCounter(metrics.HTTPErrorsTotal, 1, metrics.Labels{})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	payload, ok := fs.last()
	if !ok {
		t.Fatalf("missing payload")
	}
	if len(payload.Series) != 1 {
		t.Fatalf("series=%d, want 1 (only the http error count): %+v", len(payload.Series), payload.Series)
	}
	s := payload.Series[0]
	if s.Metric != "prep.http.errors.total" || !contains(s.Tags, "status:unknown") {
		t.Fatalf("unexpected series %s tags=%v", s.Metric, s.Tags)
	}
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty_returns_nil", in: "", want: nil},
		{name: "trims_and_skips_empty_segments", in: " env:prod , ,team:data,  ", want: []string{"env:prod", "team:data"}},
		{name: "single_tag", in: "team:data", want: []string{"team:data"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseTagsCSV(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
