package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/agency-hub/internal/api/dto"
	"github.com/spec-kit/agency-hub/internal/auth"
	"github.com/spec-kit/agency-hub/internal/service"
	apperrors "github.com/spec-kit/agency-hub/pkg/util/errorutil"
)

// AuthHandler exposes login and route access checks.
type AuthHandler struct {
	team *service.TeamService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(team *service.TeamService) *AuthHandler {
	return &AuthHandler{team: team}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	res, err := h.team.Login(c.UserContext(), req.Email, req.Password, req.ReturnTo)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"member":   dto.NewMemberResponse(*res.Member),
			"auth":     dto.AuthResponse{Token: res.Token, ExpiresAt: res.ExpiresAt},
			"redirect": res.Redirect,
		},
	})
}

// Check handles GET /access/check?route=.
func (h *AuthHandler) Check(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	route := strings.TrimSpace(c.Query("route"))
	if route == "" {
		return apperrors.NewValidationError("route query parameter required", nil)
	}

	resp := dto.AccessCheckResponse{Route: route, Allowed: auth.IsAuthorized(route, principal.Role)}
	if !resp.Allowed {
		resp.Redirect = auth.DefaultRouteFor(principal.Role)
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Landing handles GET /access/landing.
func (h *AuthHandler) Landing(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"role":  principal.Role,
		"route": auth.DefaultRouteFor(principal.Role),
	}})
}
