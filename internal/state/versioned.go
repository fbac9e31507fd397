package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spec-kit/agency-hub/internal/domain"
)

// CurrentTimerSchema is the schema version written for timer snapshots.
const CurrentTimerSchema = 2

// Envelope wraps persisted data with the schema version it was written in.
type Envelope struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// timerV1 tracked elapsed seconds only. A running v1 timer stored a start
// instant already rebased to cover earlier runs.
type timerV1 struct {
	IsRunning   bool   `json:"is_running"`
	StartTime   *int64 `json:"start_time,omitempty"`
	ElapsedTime int64  `json:"elapsed_time"`
}

// timerV2 separates the current run start from accumulated paused time.
type timerV2 struct {
	IsRunning           bool   `json:"is_running"`
	StartTimestampMs    *int64 `json:"start_timestamp_ms,omitempty"`
	ElapsedSeconds      int64  `json:"elapsed_seconds"`
	PausedAccumulatedMs int64  `json:"paused_accumulated_ms"`
}

// Migrate upgrades timer data written at oldVersion to CurrentTimerSchema.
func Migrate(oldVersion int, data json.RawMessage) (json.RawMessage, error) {
	switch oldVersion {
	case CurrentTimerSchema:
		return data, nil
	case 0, 1:
		var v1 timerV1
		if err := json.Unmarshal(data, &v1); err != nil {
			return nil, fmt.Errorf("decode timer v1: %w", err)
		}
		v2 := timerV2{ElapsedSeconds: v1.ElapsedTime}
		if v1.IsRunning && v1.StartTime != nil {
			v2.IsRunning = true
			v2.StartTimestampMs = v1.StartTime
		} else {
			v2.PausedAccumulatedMs = v1.ElapsedTime * 1000
		}
		return json.Marshal(v2)
	default:
		return nil, fmt.Errorf("unsupported timer schema version %d", oldVersion)
	}
}

// EncodeTimer serializes s at the current schema version.
func EncodeTimer(s domain.TimerState) ([]byte, error) {
	v2 := timerV2{
		IsRunning:           s.IsRunning,
		ElapsedSeconds:      s.ElapsedSeconds,
		PausedAccumulatedMs: s.PausedAccumulatedMs,
	}
	if s.StartTimestamp != nil {
		ms := s.StartTimestamp.UnixMilli()
		v2.StartTimestampMs = &ms
	}
	raw, err := json.Marshal(v2)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Version: CurrentTimerSchema, Data: raw})
}

// DecodeTimer reads a snapshot written at any supported schema version.
// Payloads without an envelope are treated as version 1.
func DecodeTimer(payload []byte) (domain.TimerState, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil || len(env.Data) == 0 {
		env = Envelope{Version: 1, Data: payload}
	}
	data, err := Migrate(env.Version, env.Data)
	if err != nil {
		return domain.TimerState{}, err
	}

	var v2 timerV2
	if err := json.Unmarshal(data, &v2); err != nil {
		return domain.TimerState{}, fmt.Errorf("decode timer v2: %w", err)
	}
	s := domain.TimerState{
		IsRunning:           v2.IsRunning,
		ElapsedSeconds:      v2.ElapsedSeconds,
		PausedAccumulatedMs: v2.PausedAccumulatedMs,
	}
	if v2.StartTimestampMs != nil {
		started := time.UnixMilli(*v2.StartTimestampMs).UTC()
		s.StartTimestamp = &started
	}
	return s, nil
}
