package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spec-kit/agency-hub/internal/clock"
	"github.com/spec-kit/agency-hub/internal/domain"
	"github.com/spec-kit/agency-hub/internal/events"
	"github.com/spec-kit/agency-hub/internal/repository"
	"github.com/spec-kit/agency-hub/internal/state"
	"github.com/spec-kit/agency-hub/internal/timer"
)

type fixedStopper int64

func (f fixedStopper) Stop() int64 { return int64(f) }

type failingStore struct{}

func (failingStore) AddTimeEntry(context.Context, *domain.TimeEntry) error {
	return errors.New("disk full")
}

func sequentialIDs(prefix string) IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func testClock() *clock.Manual {
	return clock.NewManual(time.Date(2026, 6, 15, 14, 0, 0, 0, time.UTC))
}

func TestFinalizeZeroDurationRecordsNothing(t *testing.T) {
	mem := repository.NewMemory()
	r := NewRecorder(RecorderDependencies{Store: mem.TimeEntries(), IDs: sequentialIDs("id"), Clock: testClock()})

	entry, err := r.Finalize(context.Background(), fixedStopper(0), domain.TimeEntryMetadata{UserID: "u1", ProjectID: "p1"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if entry != nil {
		t.Errorf("Expected no entry, got %+v", entry)
	}
	list, _ := mem.TimeEntries().ListByUser(context.Background(), "u1", repository.TimeEntryFilter{})
	if len(list) != 0 {
		t.Errorf("Expected nothing persisted, got %d entries", len(list))
	}
}

func TestFinalizeRecordsOneEntry(t *testing.T) {
	mem := repository.NewMemory()
	c := testClock()
	dispatcher := events.NewInMemoryDispatcher()
	var published []events.Event
	dispatcher.Subscribe(events.EventTimeEntryRecorded, func(_ context.Context, e events.Event) error {
		published = append(published, e)
		return nil
	})
	r := NewRecorder(RecorderDependencies{Store: mem.TimeEntries(), IDs: sequentialIDs("id"), Clock: c, Dispatcher: dispatcher})

	meta := domain.TimeEntryMetadata{UserID: "u1", ProjectID: "p1", Task: "wireframes", Description: "home page", Billable: true}
	entry, err := r.Finalize(context.Background(), fixedStopper(7), meta)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if entry == nil || entry.DurationSeconds != 7 || entry.ID != "id-1" || !entry.Date.Equal(c.Now()) {
		t.Fatalf("Unexpected entry %+v", entry)
	}
	if entry.Task != "wireframes" || !entry.Billable || entry.ProjectID != "p1" {
		t.Errorf("Expected metadata to be copied, got %+v", entry)
	}

	list, _ := mem.TimeEntries().ListByUser(context.Background(), "u1", repository.TimeEntryFilter{})
	if len(list) != 1 || list[0].DurationSeconds != 7 {
		t.Errorf("Expected exactly one persisted entry of 7s, got %+v", list)
	}
	if len(published) != 1 {
		t.Errorf("Expected one recorded event, got %d", len(published))
	}
}

func TestFinalizeStopsRealTimer(t *testing.T) {
	mem := repository.NewMemory()
	c := testClock()
	r := NewRecorder(RecorderDependencies{Store: mem.TimeEntries(), Clock: c})

	engine := timer.New(c)
	engine.Start()
	c.Advance(90 * time.Second)

	entry, err := r.Finalize(context.Background(), engine, domain.TimeEntryMetadata{UserID: "u1"})
	if err != nil || entry == nil {
		t.Fatalf("Expected entry, got %v / %v", entry, err)
	}
	if entry.DurationSeconds != 90 || entry.ID == "" {
		t.Errorf("Unexpected entry %+v", entry)
	}
	if engine.State().IsRunning {
		t.Error("Expected timer to be stopped")
	}
}

func TestFinalizeReportsStoreFailure(t *testing.T) {
	r := NewRecorder(RecorderDependencies{Store: failingStore{}, Clock: testClock()})
	if _, err := r.Finalize(context.Background(), fixedStopper(3), domain.TimeEntryMetadata{UserID: "u1"}); err == nil {
		t.Error("Expected store failure to surface")
	}
}

func newTimerService(t *testing.T, c *clock.Manual, st state.Container) (*TimerService, *repository.Memory) {
	t.Helper()
	mem := repository.NewMemory()
	dispatcher := events.NewInMemoryDispatcher()
	rec := NewRecorder(RecorderDependencies{Store: mem.TimeEntries(), Clock: c, Dispatcher: dispatcher})
	svc := NewTimerService(TimerDependencies{
		State:        st,
		Recorder:     rec,
		Clock:        c,
		Dispatcher:   dispatcher,
		TickInterval: time.Hour,
	})
	t.Cleanup(svc.Close)
	return svc, mem
}

func TestTimerServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	c := testClock()
	svc, mem := newTimerService(t, c, state.NewMemory())

	if _, err := svc.Apply(ctx, "u1", TimerActionStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.Advance(3 * time.Second)
	svc.Apply(ctx, "u1", TimerActionPause)
	c.Advance(time.Minute)
	svc.Apply(ctx, "u1", TimerActionResume)
	c.Advance(2 * time.Second)

	st, _ := svc.State(ctx, "u1")
	if !st.IsRunning || st.ElapsedSeconds != 5 {
		t.Fatalf("Expected running at 5s, got %+v", st)
	}

	entry, err := svc.Stop(ctx, domain.TimeEntryMetadata{UserID: "u1", ProjectID: "p9", Task: "qa"})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if entry == nil || entry.DurationSeconds != 5 {
		t.Fatalf("Expected 5s entry, got %+v", entry)
	}

	list, _ := mem.TimeEntries().ListByUser(ctx, "u1", repository.TimeEntryFilter{})
	if len(list) != 1 {
		t.Errorf("Expected one entry, got %d", len(list))
	}

	st, _ = svc.State(ctx, "u1")
	if st.IsRunning || st.ElapsedSeconds != 0 {
		t.Errorf("Expected zeroed timer after stop, got %+v", st)
	}
}

func TestTimerServiceStopWithoutWork(t *testing.T) {
	c := testClock()
	svc, _ := newTimerService(t, c, state.NewMemory())

	entry, err := svc.Stop(context.Background(), domain.TimeEntryMetadata{UserID: "u1"})
	if err != nil || entry != nil {
		t.Errorf("Expected no entry and no error, got %+v / %v", entry, err)
	}
}

func TestTimerServiceRejectsUnknownAction(t *testing.T) {
	svc, _ := newTimerService(t, testClock(), state.NewMemory())
	if _, err := svc.Apply(context.Background(), "u1", "rewind"); !errors.Is(err, ErrUnknownTimerAction) {
		t.Errorf("Expected ErrUnknownTimerAction, got %v", err)
	}
}

func TestTimerServiceRestoresFromState(t *testing.T) {
	ctx := context.Background()
	c := testClock()
	shared := state.NewMemory()

	first, _ := newTimerService(t, c, shared)
	first.Apply(ctx, "u1", TimerActionStart)
	c.Advance(10 * time.Second)
	first.Apply(ctx, "u1", TimerActionPause)
	first.Close()

	second, _ := newTimerService(t, c, shared)
	st, err := second.State(ctx, "u1")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.IsRunning || st.PausedAccumulatedMs != 10_000 || st.ElapsedSeconds != 10 {
		t.Fatalf("Expected paused snapshot at 10s, got %+v", st)
	}

	second.Apply(ctx, "u1", TimerActionResume)
	c.Advance(5 * time.Second)
	entry, _ := second.Stop(ctx, domain.TimeEntryMetadata{UserID: "u1"})
	if entry == nil || entry.DurationSeconds != 15 {
		t.Errorf("Expected 15s entry, got %+v", entry)
	}
}

func TestTimerServiceIgnoresCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	shared := state.NewMemory()
	shared.Set(ctx, timerKey("u1"), []byte(`{"version":7,"data":{}}`))

	svc, _ := newTimerService(t, testClock(), shared)
	st, err := svc.State(ctx, "u1")
	if err != nil {
		t.Fatalf("Expected corrupt snapshot to be discarded, got %v", err)
	}
	if st.IsRunning || st.ElapsedSeconds != 0 {
		t.Errorf("Expected clean timer, got %+v", st)
	}
}

func TestTimeEntrySummaryIsCachedAndInvalidated(t *testing.T) {
	ctx := context.Background()
	c := testClock()
	mem := repository.NewMemory()
	dispatcher := events.NewInMemoryDispatcher()
	entries := NewTimeEntryService(TimeEntryDependencies{Entries: mem.TimeEntries(), Dispatcher: dispatcher, Clock: c})
	rec := NewRecorder(RecorderDependencies{Store: mem.TimeEntries(), Clock: c, Dispatcher: dispatcher, IDs: sequentialIDs("e")})

	rec.Finalize(ctx, fixedStopper(60), domain.TimeEntryMetadata{UserID: "u1", ProjectID: "p1", Billable: true})
	rec.Finalize(ctx, fixedStopper(30), domain.TimeEntryMetadata{UserID: "u1", ProjectID: "p2"})

	summary, err := entries.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalSeconds != 90 || summary.BillableSeconds != 60 || len(summary.Projects) != 2 {
		t.Fatalf("Unexpected summary %+v", summary)
	}

	// writes that bypass the recorder are not visible until the cache entry goes away
	mem.TimeEntries().AddTimeEntry(ctx, &domain.TimeEntry{ID: "raw", UserID: "u1", ProjectID: "p1", DurationSeconds: 5, Date: c.Now()})
	summary, _ = entries.Summary(ctx, "u1")
	if summary.TotalSeconds != 90 {
		t.Errorf("Expected cached total 90, got %d", summary.TotalSeconds)
	}

	rec.Finalize(ctx, fixedStopper(10), domain.TimeEntryMetadata{UserID: "u1", ProjectID: "p1"})
	summary, _ = entries.Summary(ctx, "u1")
	if summary.TotalSeconds != 105 {
		t.Errorf("Expected recorder event to invalidate cache, got %d", summary.TotalSeconds)
	}

	if err := entries.Delete(ctx, "u1", "raw", false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	summary, _ = entries.Summary(ctx, "u1")
	if summary.TotalSeconds != 100 {
		t.Errorf("Expected delete to invalidate cache, got %d", summary.TotalSeconds)
	}
}

func TestTimeEntryDeleteRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemory()
	entries := NewTimeEntryService(TimeEntryDependencies{Entries: mem.TimeEntries()})
	mem.TimeEntries().AddTimeEntry(ctx, &domain.TimeEntry{ID: "e1", UserID: "owner", DurationSeconds: 5})

	if err := entries.Delete(ctx, "intruder", "e1", false); err == nil {
		t.Error("Expected forbidden error")
	}
	if err := entries.Delete(ctx, "manager", "e1", true); err != nil {
		t.Errorf("Expected privileged delete to succeed, got %v", err)
	}
	if err := entries.Delete(ctx, "manager", "e1", true); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTimerServiceWatchStreamsTransitions(t *testing.T) {
	ctx := context.Background()
	c := testClock()
	svc, _ := newTimerService(t, c, state.NewMemory())

	updates, stop := svc.Watch(ctx, "u1")
	defer stop()

	svc.Apply(ctx, "u1", TimerActionStart)
	select {
	case st := <-updates:
		if !st.IsRunning {
			t.Errorf("Expected running snapshot, got %+v", st)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a snapshot after start")
	}

	svc.Close()
	select {
	case _, ok := <-updates:
		if ok {
			// a buffered snapshot may still drain; the channel must close afterwards
			if _, ok := <-updates; ok {
				t.Error("Expected stream to end after Close")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("Expected stream to end after Close")
	}
}

func TestSummaryCountsEveryEntry(t *testing.T) {
	ctx := context.Background()
	c := testClock()
	mem := repository.NewMemory()
	entries := NewTimeEntryService(TimeEntryDependencies{Entries: mem.TimeEntries(), Clock: c})

	const n = repository.MaxListLimit + 100
	for i := 0; i < n; i++ {
		mem.TimeEntries().AddTimeEntry(ctx, &domain.TimeEntry{
			ID:              fmt.Sprintf("e-%04d", i),
			UserID:          "u1",
			ProjectID:       "p1",
			DurationSeconds: 10,
			Billable:        i%2 == 0,
			Date:            c.Now().Add(time.Duration(i) * time.Second),
		})
	}

	summary, err := entries.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalSeconds != n*10 || summary.BillableSeconds != n*5 {
		t.Errorf("Expected %d total / %d billable seconds, got %d / %d", n*10, n*5, summary.TotalSeconds, summary.BillableSeconds)
	}
	if len(summary.Projects) != 1 || summary.Projects[0].Entries != n {
		t.Errorf("Expected %d entries in one project, got %+v", n, summary.Projects)
	}
}

// gatedState blocks reads of one key until release is closed.
type gatedState struct {
	*state.Memory
	gatedKey string
	entered  chan struct{}
	release  chan struct{}
}

func (g *gatedState) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == g.gatedKey {
		close(g.entered)
		<-g.release
	}
	return g.Memory.Get(ctx, key)
}

func TestSlowSnapshotLoadDoesNotBlockOtherMembers(t *testing.T) {
	ctx := context.Background()
	gated := &gatedState{Memory: state.NewMemory(), gatedKey: timerKey("slow"), entered: make(chan struct{}), release: make(chan struct{})}
	svc, _ := newTimerService(t, testClock(), gated)

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		svc.State(ctx, "slow")
	}()
	<-gated.entered

	fastDone := make(chan error, 1)
	go func() {
		_, err := svc.Apply(ctx, "fast", TimerActionStart)
		fastDone <- err
	}()
	select {
	case err := <-fastDone:
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected another member's timer to work while a snapshot load is pending")
	}

	close(gated.release)
	<-slowDone
}
