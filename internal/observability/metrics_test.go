package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/spec-kit/agency-hub/internal/events"
)

func TestRecordRequestCounts(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/timer", "GET", 200, 15*time.Millisecond)
	m.RecordRequest("/api/timer", "GET", 200, 5*time.Millisecond)
	m.RecordError("/api/timer", "POST", "FORBIDDEN")

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "/api/timer", "200")); got != 2 {
		t.Errorf("Expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.errorTotal.WithLabelValues("POST", "/api/timer", "FORBIDDEN")); got != 1 {
		t.Errorf("Expected 1 error, got %v", got)
	}
}

func TestSubscribeTracksRecordedSeconds(t *testing.T) {
	m := NewMetrics()
	d := events.NewInMemoryDispatcher()
	m.Subscribe(d)

	d.Publish(context.Background(), events.Event{
		Type:    events.EventTimeEntryRecorded,
		Payload: events.TimeEntryRecordedPayload{EntryID: "e1", DurationSeconds: 42, Billable: true},
	})
	d.Publish(context.Background(), events.Event{
		Type:    events.EventTimerChanged,
		Payload: events.TimerChangedPayload{Action: "start"},
	})

	if got := testutil.ToFloat64(m.trackedSeconds.WithLabelValues("true")); got != 42 {
		t.Errorf("Expected 42 billable seconds, got %v", got)
	}
	if got := testutil.ToFloat64(m.timerActions.WithLabelValues("start")); got != 1 {
		t.Errorf("Expected 1 start action, got %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	m.Subscribe(events.NewInMemoryDispatcher())
}
