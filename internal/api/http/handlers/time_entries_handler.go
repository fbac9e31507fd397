package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/agency-hub/internal/api/dto"
	"github.com/spec-kit/agency-hub/internal/auth"
	"github.com/spec-kit/agency-hub/internal/repository"
	"github.com/spec-kit/agency-hub/internal/service"
	apperrors "github.com/spec-kit/agency-hub/pkg/util/errorutil"
)

// TimeEntriesHandler serves recorded time.
type TimeEntriesHandler struct {
	entries *service.TimeEntryService
}

// NewTimeEntriesHandler constructs handler.
func NewTimeEntriesHandler(entries *service.TimeEntryService) *TimeEntriesHandler {
	return &TimeEntriesHandler{entries: entries}
}

// List GET /api/time-entries.
func (h *TimeEntriesHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	filter := repository.TimeEntryFilter{
		ProjectID: c.Query("project_id"),
		Limit:     c.QueryInt("limit", 0),
		Offset:    c.QueryInt("offset", 0),
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return apperrors.NewValidationError("limit and offset must not be negative", nil)
	}

	entries, err := h.entries.List(c.UserContext(), principal.Member.ID, filter)
	if err != nil {
		return err
	}
	out := make([]dto.TimeEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.NewTimeEntryResponse(e))
	}
	return c.JSON(fiber.Map{"data": out})
}

// Summary GET /api/time-entries/summary.
func (h *TimeEntriesHandler) Summary(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	summary, err := h.entries.Summary(c.UserContext(), principal.Member.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTimeSummaryResponse(summary)})
}

// Delete DELETE /api/time-entries/:id. Roles that may manage the team may
// delete anyone's entries.
func (h *TimeEntriesHandler) Delete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	allowOthers := auth.IsAuthorized(auth.RouteTeam, principal.Role)
	if err := h.entries.Delete(c.UserContext(), principal.Member.ID, c.Params("id"), allowOthers); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
