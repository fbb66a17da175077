// Package metrics is the backend-agnostic metrics facade used by the
// pipeline. Stages call the Record* helpers; the CLI picks a Backend
// (Pushgateway, Datadog or none) once at startup with SetBackend.
//
// Metric names are an operational contract shared with the backends:
//
//	prep_step_total{step,status}            counter
//	prep_step_duration_seconds{step,status} histogram
//	prep_rows_total{kind}                   counter
//	prep_http_requests_total{status}        counter
//	prep_http_errors_total{status}          counter
//	prep_http_download_bytes{status}        histogram
package metrics

import (
	"strconv"
	"sync"
	"time"
)

type Labels map[string]string

// Backend receives raw metric events.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

const (
	StepTotal         = "prep_step_total"
	StepDuration      = "prep_step_duration_seconds"
	RowsTotal         = "prep_rows_total"
	HTTPRequestsTotal = "prep_http_requests_total"
	HTTPErrorsTotal   = "prep_http_errors_total"
	HTTPDownloadBytes = "prep_http_download_bytes"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. nil restores the no-op
// backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush forwards to the installed backend.
func Flush() error { return current().Flush() }

// RecordStep records one completed pipeline step and its duration.
func RecordStep(step string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDuration, d.Seconds(), l)
}

// RecordRows adds n rows of the given kind ("read", "duplicate",
// "loaded:products", ...).
func RecordRows(kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(n), Labels{"kind": kind})
}

// RecordHTTP records one download attempt. status 0 means the request never
// produced a response.
func RecordHTTP(status int, err error, size int64) {
	s := "none"
	if status > 0 {
		s = strconv.Itoa(status)
	}
	l := Labels{"status": s}
	b := current()
	b.IncCounter(HTTPRequestsTotal, 1, l)
	if err != nil || status < 200 || status > 299 {
		b.IncCounter(HTTPErrorsTotal, 1, l)
	}
	if size > 0 {
		b.ObserveHistogram(HTTPDownloadBytes, float64(size), l)
	}
}
