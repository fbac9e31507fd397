// Package timer implements the work timer state machine.
//
// The engine has two states, Idle and Running. Elapsed time is never counted
// directly: it is derived from the current run's start instant plus the
// milliseconds accumulated by earlier runs, so missed ticks cannot drift it.
package timer

import (
	"sync"
	"time"

	"github.com/spec-kit/agency-hub/internal/clock"
	"github.com/spec-kit/agency-hub/internal/domain"
)

// Engine tracks elapsed active time with start/pause/resume/stop semantics.
type Engine struct {
	mu    sync.Mutex
	clock clock.Clock

	running       bool
	startedAt     time.Time
	elapsedSecs   int64
	accumulatedMs int64
}

// New returns an idle engine reading time from c.
func New(c clock.Clock) *Engine {
	if c == nil {
		c = clock.System()
	}
	return &Engine{clock: c}
}

// Start begins a fresh run. It is a no-op unless the engine is idle with no elapsed time.
func (e *Engine) Start() domain.TimerState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running || e.elapsedSecs != 0 {
		return e.stateLocked()
	}
	e.startedAt = e.clock.Now()
	e.accumulatedMs = e.elapsedSecs * 1000
	e.running = true
	return e.stateLocked()
}

// Pause freezes elapsed time. No-op unless running.
func (e *Engine) Pause() domain.TimerState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return e.stateLocked()
	}
	e.refreshLocked()
	e.accumulatedMs = e.elapsedSecs * 1000
	e.startedAt = time.Time{}
	e.running = false
	return e.stateLocked()
}

// Resume continues a paused run. No-op while running or when nothing was accumulated.
func (e *Engine) Resume() domain.TimerState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running || e.accumulatedMs == 0 {
		return e.stateLocked()
	}
	e.startedAt = e.clock.Now()
	e.running = true
	return e.stateLocked()
}

// Stop captures the final elapsed seconds and returns the engine to a zeroed idle state.
func (e *Engine) Stop() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		e.refreshLocked()
	}
	final := e.elapsedSecs
	e.resetLocked()
	return final
}

// Reset zeroes the engine without reporting the elapsed time.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

// Tick recomputes the elapsed projection. Idle engines are left untouched.
func (e *Engine) Tick() domain.TimerState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		e.refreshLocked()
	}
	return e.stateLocked()
}

// State returns the last computed state without advancing the projection.
func (e *Engine) State() domain.TimerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// Restore replaces the engine state with a persisted snapshot.
// Snapshots that break the running/start invariant are clamped to idle.
func (e *Engine) Restore(s domain.TimerState) domain.TimerState {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetLocked()
	if s.PausedAccumulatedMs > 0 {
		e.accumulatedMs = s.PausedAccumulatedMs
	}
	if s.ElapsedSeconds > 0 {
		e.elapsedSecs = s.ElapsedSeconds
	}
	if s.IsRunning && s.StartTimestamp != nil {
		e.running = true
		e.startedAt = *s.StartTimestamp
		e.refreshLocked()
	}
	return e.stateLocked()
}

func (e *Engine) refreshLocked() {
	ms := e.clock.Now().Sub(e.startedAt).Milliseconds() + e.accumulatedMs
	secs := ms / 1000
	if secs < e.elapsedSecs {
		// wall clock stepped backwards; elapsed never decreases while running
		return
	}
	e.elapsedSecs = secs
}

func (e *Engine) resetLocked() {
	e.running = false
	e.startedAt = time.Time{}
	e.elapsedSecs = 0
	e.accumulatedMs = 0
}

func (e *Engine) stateLocked() domain.TimerState {
	s := domain.TimerState{
		IsRunning:           e.running,
		ElapsedSeconds:      e.elapsedSecs,
		PausedAccumulatedMs: e.accumulatedMs,
	}
	if e.running {
		started := e.startedAt
		s.StartTimestamp = &started
	}
	return s
}
