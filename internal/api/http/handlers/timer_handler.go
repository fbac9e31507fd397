package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/agency-hub/internal/api/dto"
	"github.com/spec-kit/agency-hub/internal/auth"
	"github.com/spec-kit/agency-hub/internal/domain"
	"github.com/spec-kit/agency-hub/internal/service"
	apperrors "github.com/spec-kit/agency-hub/pkg/util/errorutil"
)

// streamHeartbeat is how often an idle timer stream probes the client.
const streamHeartbeat = 15 * time.Second

// TimerHandler drives the caller's work timer.
type TimerHandler struct {
	timers    *service.TimerService
	heartbeat time.Duration
}

// NewTimerHandler constructs handler.
func NewTimerHandler(timers *service.TimerService) *TimerHandler {
	return &TimerHandler{timers: timers, heartbeat: streamHeartbeat}
}

// State GET /api/timer.
func (h *TimerHandler) State(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	st, err := h.timers.State(c.UserContext(), principal.Member.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": st})
}

// Action POST /api/timer/:action for start, pause, resume and reset.
func (h *TimerHandler) Action(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	st, err := h.timers.Apply(c.UserContext(), principal.Member.ID, c.Params("action"))
	if errors.Is(err, service.ErrUnknownTimerAction) {
		return apperrors.NewNotFound("timer action", map[string]any{"action": c.Params("action")})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": st})
}

// Stop POST /api/timer/stop finalizes the session into a time entry.
func (h *TimerHandler) Stop(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.StopTimerRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}

	entry, err := h.timers.Stop(c.UserContext(), domain.TimeEntryMetadata{
		ProjectID:   req.ProjectID,
		UserID:      principal.Member.ID,
		Task:        req.Task,
		Description: req.Description,
		Billable:    req.Billable,
	})
	if err != nil {
		return err
	}
	if entry == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTimeEntryResponse(*entry)})
}

// Stream GET /api/timer/stream pushes timer snapshots as server-sent events,
// starting with the current state.
func (h *TimerHandler) Stream(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	memberID := principal.Member.ID

	// subscribe before reading so no transition falls between the two;
	// the request context ends when this handler returns, before the body is written
	updates, stop := h.timers.Watch(context.Background(), memberID)
	initial, err := h.timers.State(c.UserContext(), memberID)
	if err != nil {
		stop()
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	heartbeat := h.heartbeat
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer stop()
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		streamTimer(w, initial, updates, ticker.C)
	})
	return nil
}

// streamTimer writes initial and then every update until updates closes or a
// write fails. Heartbeat comments make a vanished client surface as a write error.
func streamTimer(w *bufio.Writer, initial domain.TimerState, updates <-chan domain.TimerState, heartbeat <-chan time.Time) {
	if err := writeTimerEvent(w, initial); err != nil {
		return
	}
	for {
		select {
		case st, ok := <-updates:
			if !ok {
				return
			}
			if err := writeTimerEvent(w, st); err != nil {
				return
			}
		case <-heartbeat:
			if _, err := w.WriteString(": ping\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}
}

func writeTimerEvent(w *bufio.Writer, st domain.TimerState) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: timer\ndata: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}
