package domain

import "time"

// TimerState is the observable state of a work timer.
type TimerState struct {
	IsRunning           bool       `json:"is_running"`
	StartTimestamp      *time.Time `json:"start_timestamp,omitempty"`
	ElapsedSeconds      int64      `json:"elapsed_seconds"`
	PausedAccumulatedMs int64      `json:"paused_accumulated_ms"`
}
