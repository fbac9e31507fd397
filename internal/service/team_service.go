package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/agency-hub/internal/auth"
	"github.com/spec-kit/agency-hub/internal/clock"
	"github.com/spec-kit/agency-hub/internal/config"
	"github.com/spec-kit/agency-hub/internal/domain"
	"github.com/spec-kit/agency-hub/internal/events"
	"github.com/spec-kit/agency-hub/internal/repository"
	apperrors "github.com/spec-kit/agency-hub/pkg/util/errorutil"
)

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Member    *domain.TeamMember
	Token     string
	ExpiresAt time.Time
	Redirect  string
}

// NewMemberInput describes a team member to add.
type NewMemberInput struct {
	Name       string
	Email      string
	Password   string
	Role       string
	HourlyRate float64
}

// TeamService coordinates member management and login.
type TeamService struct {
	members    repository.TeamMemberRepository
	tokens     *auth.TokenManager
	ids        IDGenerator
	clock      clock.Clock
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// TeamDependencies bundles collaborators for the team service.
type TeamDependencies struct {
	Members    repository.TeamMemberRepository
	IDs        IDGenerator
	Clock      clock.Clock
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewTeamService builds the service.
func NewTeamService(cfg config.AuthConfig, deps TeamDependencies) *TeamService {
	s := &TeamService{
		members:    deps.Members,
		tokens:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		ids:        deps.IDs,
		clock:      deps.Clock,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		bcryptCost: cfg.BcryptCost,
	}
	if s.ids == nil {
		s.ids = UUIDGenerator()
	}
	if s.clock == nil {
		s.clock = clock.System()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Login authenticates a member and resolves where they should land.
func (s *TeamService) Login(ctx context.Context, email, password, returnTo string) (*LoginResult, error) {
	member, err := s.members.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized(auth.ErrInvalidCredentials.Error())
		}
		return nil, err
	}
	if !member.Active {
		return nil, apperrors.NewUnauthorized("member inactive")
	}
	if err := auth.ComparePassword(member.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized(err.Error())
	}

	token, exp, err := s.tokens.GenerateToken(member.ID, member.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Member:    member,
		Token:     token,
		ExpiresAt: exp,
		Redirect:  auth.ResolveOnLogin(member.Role, returnTo),
	}, nil
}

// AddMember creates a team member. Roles outside the closed set are rejected.
func (s *TeamService) AddMember(ctx context.Context, actorID string, input NewMemberInput) (*domain.TeamMember, error) {
	role := domain.ParseRole(input.Role)
	if role == domain.RoleUnknown {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": input.Role})
	}
	email := normalizeEmail(input.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"email": input.Email})
	}
	if strings.TrimSpace(input.Name) == "" || len(input.Password) < 8 {
		return nil, apperrors.NewValidationError("name required and password must be at least 8 characters", nil)
	}
	if input.HourlyRate < 0 {
		return nil, apperrors.NewValidationError("hourly rate cannot be negative", nil)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	member := &domain.TeamMember{
		ID:           s.ids(),
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		HourlyRate:   input.HourlyRate,
		Active:       true,
	}
	if err := s.members.Create(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, err
	}

	if s.dispatcher != nil {
		err := s.dispatcher.Publish(ctx, events.Event{
			ID:        s.ids(),
			Type:      events.EventTeamMemberAdded,
			ActorID:   actorID,
			Timestamp: s.clock.Now().UTC(),
			Payload:   events.TeamMemberAddedPayload{MemberID: member.ID, Email: member.Email, Role: member.Role},
		})
		if err != nil {
			s.logger.Warn("member event handlers failed", zap.String("member_id", member.ID), zap.Error(err))
		}
	}
	return member, nil
}

// EnsureAdmin creates an admin account with the given credentials unless the
// email is already registered. It reports whether a member was created.
func (s *TeamService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	_, err := s.members.GetByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	member, err := s.AddMember(ctx, "bootstrap", NewMemberInput{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     string(domain.RoleAdmin),
	})
	if err != nil {
		return false, err
	}
	s.logger.Info("bootstrap admin created", zap.String("member_id", member.ID), zap.String("email", member.Email))
	return true, nil
}

// ListMembers returns every team member.
func (s *TeamService) ListMembers(ctx context.Context) ([]domain.TeamMember, error) {
	return s.members.List(ctx)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *TeamService) TokenManager() *auth.TokenManager {
	return s.tokens
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
