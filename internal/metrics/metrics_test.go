package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type event struct {
	kind   string
	name   string
	value  float64
	labels Labels
}

type recordingBackend struct {
	mu     sync.Mutex
	events []event
}

func (r *recordingBackend) IncCounter(name string, delta float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{"counter", name, delta, labels})
}

func (r *recordingBackend) ObserveHistogram(name string, value float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{"histogram", name, value, labels})
}

func (r *recordingBackend) Flush() error { return nil }

func TestRecordStep_StatusFollowsError(t *testing.T) {
	rb := &recordingBackend{}
	SetBackend(rb)
	t.Cleanup(func() { SetBackend(nil) })

	RecordStep("clean", nil, 2*time.Second)
	RecordStep("persist", errors.New("boom"), time.Second)

	if len(rb.events) != 4 {
		t.Fatalf("events=%d, want 4", len(rb.events))
	}
	if got := rb.events[0].labels["status"]; got != "ok" {
		t.Fatalf("status=%q, want ok", got)
	}
	if rb.events[1].name != StepDuration || rb.events[1].value != 2 {
		t.Fatalf("unexpected duration event: %+v", rb.events[1])
	}
	if got := rb.events[2].labels["status"]; got != "error" {
		t.Fatalf("status=%q, want error", got)
	}
}

func TestRecordRows_SkipsNonPositive(t *testing.T) {
	rb := &recordingBackend{}
	SetBackend(rb)
	t.Cleanup(func() { SetBackend(nil) })

	RecordRows("duplicate", 0)
	RecordRows("read", 3)

	if len(rb.events) != 1 || rb.events[0].labels["kind"] != "read" || rb.events[0].value != 3 {
		t.Fatalf("unexpected events: %+v", rb.events)
	}
}

func TestRecordHTTP_ErrorsAndBytes(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		err        error
		size       int64
		wantEvents int
	}{
		{name: "ok_with_body", status: 200, size: 10, wantEvents: 2},
		{name: "not_found", status: 404, wantEvents: 2},
		{name: "transport_error", status: 0, err: errors.New("dial"), wantEvents: 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rb := &recordingBackend{}
			SetBackend(rb)
			t.Cleanup(func() { SetBackend(nil) })

			RecordHTTP(tc.status, tc.err, tc.size)
			if len(rb.events) != tc.wantEvents {
				t.Fatalf("events=%d, want %d: %+v", len(rb.events), tc.wantEvents, rb.events)
			}
		})
	}
}

func TestSetBackend_NilRestoresNop(t *testing.T) {
	SetBackend(nil)
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}
