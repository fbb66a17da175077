package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productprep/internal/metrics"
)

func TestBackend_RecordsKnownFamilies(t *testing.T) {
	b, err := NewBackend("job1", "http://127.0.0.1:1")
	require.NoError(t, err)

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "clean", "status": "ok"})
	b.IncCounter(metrics.RowsTotal, 5, metrics.Labels{"kind": "read"})
	b.IncCounter("unknown_total", 1, metrics.Labels{"x": "y"})
	b.ObserveHistogram(metrics.StepDuration, 0.2, metrics.Labels{"step": "clean", "status": "ok"})

	n, err := testutil.GatherAndCount(b.Gatherer(), metrics.RowsTotal, metrics.StepTotal, metrics.StepDuration)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	expected := `
# HELP prep_rows_total Rows processed, by kind.
# TYPE prep_rows_total counter
prep_rows_total{kind="read"} 5
`
	require.NoError(t, testutil.GatherAndCompare(b.Gatherer(), strings.NewReader(expected), metrics.RowsTotal))
}

func TestFlush_PushesToGateway(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		path, body = r.URL.Path, string(raw)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	b, err := NewBackend("prep_job", srv.URL)
	require.NoError(t, err)
	b.IncCounter(metrics.RowsTotal, 2, metrics.Labels{"kind": "loaded:products"})

	require.NoError(t, b.Flush())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/metrics/job/prep_job", path)
	assert.NotEmpty(t, body)
}

func TestFlush_GatewayErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	b, err := NewBackend("prep_job", srv.URL)
	require.NoError(t, err)
	require.Error(t, b.Flush())
}

func TestNewBackend_RequiresURL(t *testing.T) {
	_, err := NewBackend("job", "")
	require.Error(t, err)
}
