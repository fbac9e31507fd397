package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/agency-hub/internal/api/dto"
	"github.com/spec-kit/agency-hub/internal/auth"
	"github.com/spec-kit/agency-hub/internal/service"
	apperrors "github.com/spec-kit/agency-hub/pkg/util/errorutil"
)

// TeamHandler manages the agency roster.
type TeamHandler struct {
	team *service.TeamService
}

// NewTeamHandler constructs handler.
func NewTeamHandler(team *service.TeamService) *TeamHandler {
	return &TeamHandler{team: team}
}

// List GET /api/team.
func (h *TeamHandler) List(c *fiber.Ctx) error {
	members, err := h.team.ListMembers(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]dto.MemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, dto.NewMemberResponse(m))
	}
	return c.JSON(fiber.Map{"data": out})
}

// Create POST /api/team.
func (h *TeamHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	member, err := h.team.AddMember(c.UserContext(), principal.Member.ID, service.NewMemberInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		HourlyRate: req.HourlyRate,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewMemberResponse(*member)})
}
