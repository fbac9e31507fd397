package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/agency-hub/internal/clock"
	"github.com/spec-kit/agency-hub/internal/domain"
	"github.com/spec-kit/agency-hub/internal/events"
	"github.com/spec-kit/agency-hub/internal/state"
	"github.com/spec-kit/agency-hub/internal/timer"
)

// Timer actions accepted by TimerService.Apply.
const (
	TimerActionStart  = "start"
	TimerActionPause  = "pause"
	TimerActionResume = "resume"
	TimerActionReset  = "reset"
)

// ErrUnknownTimerAction is returned by Apply for unrecognized actions.
var ErrUnknownTimerAction = errors.New("unknown timer action")

type timerSession struct {
	mu     sync.Mutex
	engine *timer.Engine
	ticker *timer.Ticker
}

// TimerService owns one timer per member, persists snapshots to the state
// container and runs a tick loop while a timer is running.
type TimerService struct {
	mu       sync.Mutex
	sessions map[string]*timerSession

	store        state.Container
	recorder     *Recorder
	clock        clock.Clock
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	tickInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// TimerDependencies bundles collaborators for the timer service.
type TimerDependencies struct {
	State        state.Container
	Recorder     *Recorder
	Clock        clock.Clock
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	TickInterval time.Duration
}

// NewTimerService constructs the service. Close must be called to stop tick loops.
func NewTimerService(deps TimerDependencies) *TimerService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &TimerService{
		sessions:     make(map[string]*timerSession),
		store:        deps.State,
		recorder:     deps.Recorder,
		clock:        deps.Clock,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		tickInterval: deps.TickInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
	if s.store == nil {
		s.store = state.NewMemory()
	}
	if s.clock == nil {
		s.clock = clock.System()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// State returns the member's current timer state with a fresh elapsed projection.
func (s *TimerService) State(ctx context.Context, memberID string) (domain.TimerState, error) {
	sess, err := s.session(ctx, memberID)
	if err != nil {
		return domain.TimerState{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.engine.Tick(), nil
}

// Apply performs a start, pause, resume or reset transition. Transitions that
// are invalid for the current state leave it unchanged.
func (s *TimerService) Apply(ctx context.Context, memberID, action string) (domain.TimerState, error) {
	sess, err := s.session(ctx, memberID)
	if err != nil {
		return domain.TimerState{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	var next domain.TimerState
	switch action {
	case TimerActionStart:
		next = sess.engine.Start()
	case TimerActionPause:
		next = sess.engine.Pause()
	case TimerActionResume:
		next = sess.engine.Resume()
	case TimerActionReset:
		sess.engine.Reset()
		next = sess.engine.State()
	default:
		return sess.engine.State(), ErrUnknownTimerAction
	}

	s.syncTicker(sess, next)
	if err := s.persist(ctx, memberID, next); err != nil {
		return next, err
	}
	s.publish(ctx, memberID, action, next)
	return next, nil
}

// Stop finalizes the member's timer into a time entry. A nil entry means the
// session had no elapsed time and nothing was recorded.
func (s *TimerService) Stop(ctx context.Context, meta domain.TimeEntryMetadata) (*domain.TimeEntry, error) {
	sess, err := s.session(ctx, meta.UserID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.ticker.Stop()
	entry, err := s.recorder.Finalize(ctx, sess.engine, meta)
	// the engine is zeroed even when persistence fails
	next := sess.engine.State()
	if perr := s.persist(ctx, meta.UserID, next); perr != nil && err == nil {
		err = perr
	}
	s.publish(ctx, meta.UserID, "stop", next)
	return entry, err
}

// Watch streams the member's persisted timer snapshots as they change, including
// changes written by other instances sharing the state container. The returned
// function ends the stream; closing the service ends it too.
func (s *TimerService) Watch(ctx context.Context, memberID string) (<-chan domain.TimerState, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(s.ctx, cancel)

	raw, unsubscribe := s.store.Subscribe(ctx, timerKey(memberID))
	out := make(chan domain.TimerState, 1)
	go func() {
		defer close(out)
		for payload := range raw {
			st, err := state.DecodeTimer(payload)
			if err != nil {
				s.logger.Warn("skipping unreadable timer notification", zap.String("member_id", memberID), zap.Error(err))
				continue
			}
			select {
			case out <- st:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() {
		stopAfter()
		cancel()
		unsubscribe()
	}
}

// Close cancels every tick loop.
func (s *TimerService) Close() {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.ticker.Stop()
	}
}

func (s *TimerService) session(ctx context.Context, memberID string) (*timerSession, error) {
	s.mu.Lock()
	sess, ok := s.sessions[memberID]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	// the snapshot load may be a network round-trip; keep it outside s.mu
	engine := timer.New(s.clock)
	restored := engine.State()
	payload, found, err := s.store.Get(ctx, timerKey(memberID))
	if err != nil {
		return nil, fmt.Errorf("load timer state: %w", err)
	}
	if found {
		snapshot, err := state.DecodeTimer(payload)
		if err != nil {
			// an unreadable snapshot starts the member from a clean timer
			s.logger.Warn("discarding unreadable timer snapshot", zap.String("member_id", memberID), zap.Error(err))
		} else {
			restored = engine.Restore(snapshot)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[memberID]; ok {
		return existing, nil
	}
	sess = &timerSession{engine: engine, ticker: timer.NewTicker(engine, s.tickInterval)}
	s.syncTicker(sess, restored)
	s.sessions[memberID] = sess
	return sess, nil
}

func (s *TimerService) syncTicker(sess *timerSession, st domain.TimerState) {
	if st.IsRunning {
		if !sess.ticker.Active() {
			sess.ticker.Start(s.ctx)
		}
		return
	}
	sess.ticker.Stop()
}

func (s *TimerService) persist(ctx context.Context, memberID string, st domain.TimerState) error {
	payload, err := state.EncodeTimer(st)
	if err != nil {
		return fmt.Errorf("encode timer state: %w", err)
	}
	if err := s.store.Set(ctx, timerKey(memberID), payload); err != nil {
		return fmt.Errorf("save timer state: %w", err)
	}
	return nil
}

func (s *TimerService) publish(ctx context.Context, memberID, action string, st domain.TimerState) {
	if s.dispatcher == nil {
		return
	}
	err := s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTimerChanged,
		ActorID:   memberID,
		Timestamp: s.clock.Now().UTC(),
		Payload:   events.TimerChangedPayload{Action: action, State: st},
	})
	if err != nil {
		s.logger.Warn("timer event handlers failed", zap.String("member_id", memberID), zap.Error(err))
	}
}

func timerKey(memberID string) string {
	return "timer:" + memberID
}
