package service

import (
	"context"
	"testing"

	"github.com/spec-kit/agency-hub/internal/auth"
	"github.com/spec-kit/agency-hub/internal/config"
	"github.com/spec-kit/agency-hub/internal/domain"
	"github.com/spec-kit/agency-hub/internal/repository"
	apperrors "github.com/spec-kit/agency-hub/pkg/util/errorutil"
)

func newTeamService() *TeamService {
	mem := repository.NewMemory()
	return NewTeamService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: 4},
		TeamDependencies{Members: mem.TeamMembers(), IDs: sequentialIDs("m")})
}

func TestAddMemberAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTeamService()

	member, err := svc.AddMember(ctx, "admin-1", NewMemberInput{
		Name: "Casey", Email: " Casey@Agency.test ", Password: "correct-horse", Role: "client",
	})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if member.Role != domain.RoleClient || member.Email != "casey@agency.test" {
		t.Errorf("Unexpected member %+v", member)
	}

	res, err := svc.Login(ctx, "casey@agency.test", "correct-horse", auth.RouteTeam)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Redirect != auth.RouteClientPortal {
		t.Errorf("Expected unauthorized return path to fall back to portal, got %q", res.Redirect)
	}

	res, _ = svc.Login(ctx, "casey@agency.test", "correct-horse", auth.RouteInvoices)
	if res.Redirect != auth.RouteInvoices {
		t.Errorf("Expected authorized return path to win, got %q", res.Redirect)
	}

	claims, err := svc.TokenManager().ParseToken(res.Token)
	if err != nil || claims.Role != domain.RoleClient {
		t.Errorf("Expected client token, got %+v / %v", claims, err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newTeamService()
	svc.AddMember(ctx, "admin-1", NewMemberInput{Name: "Dee", Email: "dee@agency.test", Password: "password-1", Role: "manager"})

	for _, tc := range []struct{ email, password string }{
		{"dee@agency.test", "wrong-password"},
		{"nobody@agency.test", "password-1"},
	} {
		_, err := svc.Login(ctx, tc.email, tc.password, "")
		if de := apperrors.ToDomainError(err); de == nil || de.Code != "UNAUTHORIZED" {
			t.Errorf("Expected unauthorized for %s, got %v", tc.email, err)
		}
	}
}

func TestAddMemberValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTeamService()

	cases := []NewMemberInput{
		{Name: "A", Email: "a@agency.test", Password: "longenough", Role: "owner"},
		{Name: "A", Email: "not-an-email", Password: "longenough", Role: "admin"},
		{Name: "", Email: "a@agency.test", Password: "longenough", Role: "admin"},
		{Name: "A", Email: "a@agency.test", Password: "short", Role: "admin"},
		{Name: "A", Email: "a@agency.test", Password: "longenough", Role: "admin", HourlyRate: -1},
	}
	for _, in := range cases {
		_, err := svc.AddMember(ctx, "admin-1", in)
		if de := apperrors.ToDomainError(err); de == nil || de.Code != "VALIDATION_FAILED" {
			t.Errorf("Expected validation failure for %+v, got %v", in, err)
		}
	}

	valid := NewMemberInput{Name: "A", Email: "a@agency.test", Password: "longenough", Role: "admin"}
	if _, err := svc.AddMember(ctx, "admin-1", valid); err != nil {
		t.Fatalf("Expected valid member, got %v", err)
	}
	_, err := svc.AddMember(ctx, "admin-1", valid)
	if de := apperrors.ToDomainError(err); de == nil || de.Code != "CONFLICT" {
		t.Errorf("Expected conflict on duplicate email, got %v", err)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTeamService()

	created, err := svc.EnsureAdmin(ctx, "Root", "root@agency.test", "super-secret")
	if err != nil || !created {
		t.Fatalf("Expected admin to be created, got %v / %v", created, err)
	}
	created, err = svc.EnsureAdmin(ctx, "Root", "ROOT@agency.test", "super-secret")
	if err != nil || created {
		t.Errorf("Expected second call to be a no-op, got %v / %v", created, err)
	}

	res, err := svc.Login(ctx, "root@agency.test", "super-secret", "/anything")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Member.Role != domain.RoleAdmin || res.Redirect != "/anything" {
		t.Errorf("Expected admin honoring return path, got %s -> %s", res.Member.Role, res.Redirect)
	}

	if created, _ := svc.EnsureAdmin(ctx, "x", "", ""); created {
		t.Error("Expected empty credentials to be ignored")
	}
}
