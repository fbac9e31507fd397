package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/agency-hub/internal/api/http/handlers"
	"github.com/spec-kit/agency-hub/internal/auth"
	"github.com/spec-kit/agency-hub/internal/clock"
	"github.com/spec-kit/agency-hub/internal/config"
	"github.com/spec-kit/agency-hub/internal/events"
	"github.com/spec-kit/agency-hub/internal/observability"
	"github.com/spec-kit/agency-hub/internal/repository"
	"github.com/spec-kit/agency-hub/internal/service"
	"github.com/spec-kit/agency-hub/internal/state"
)

type testServer struct {
	app   *fiber.App
	clock *clock.Manual
	team  *service.TeamService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	c := clock.NewManual(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	logger := zap.NewNop()
	mem := repository.NewMemory()
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	metrics.Subscribe(dispatcher)

	recorder := service.NewRecorder(service.RecorderDependencies{Store: mem.TimeEntries(), Clock: c, Dispatcher: dispatcher})
	timers := service.NewTimerService(service.TimerDependencies{
		State: state.NewMemory(), Recorder: recorder, Clock: c, Dispatcher: dispatcher, TickInterval: time.Hour,
	})
	t.Cleanup(timers.Close)
	entries := service.NewTimeEntryService(service.TimeEntryDependencies{Entries: mem.TimeEntries(), Dispatcher: dispatcher, Clock: c})
	team := service.NewTeamService(config.AuthConfig{JWTSecret: "router-test", AccessTokenTTLMinutes: 10, BcryptCost: 4},
		service.TeamDependencies{Members: mem.TeamMembers(), Clock: c, Dispatcher: dispatcher})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("agency-hub", "test", nil),
		Auth:           handlers.NewAuthHandler(team),
		Timer:          handlers.NewTimerHandler(timers),
		TimeEntries:    handlers.NewTimeEntriesHandler(entries),
		Team:           handlers.NewTeamHandler(team),
		AuthMiddleware: auth.NewAuthMiddleware(team.TokenManager(), mem.TeamMembers()),
		Metrics:        metrics,
	})
	return &testServer{app: app, clock: c, team: team}
}

func (s *testServer) addMember(t *testing.T, email, role string) {
	t.Helper()
	_, err := s.team.AddMember(context.Background(), "test", service.NewMemberInput{
		Name: email, Email: email, Password: "password-123", Role: role,
	})
	if err != nil {
		t.Fatalf("Failed to add member: %v", err)
	}
}

func (s *testServer) login(t *testing.T, email, returnTo string) (token, redirect string) {
	t.Helper()
	resp := s.do(t, nethttp.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "password-123", "return_to": returnTo,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected login to succeed, got %d", resp.StatusCode)
	}
	var body struct {
		Data struct {
			Auth struct {
				Token string `json:"token"`
			} `json:"auth"`
			Redirect string `json:"redirect"`
		} `json:"data"`
	}
	decode(t, resp, &body)
	return body.Data.Auth.Token, body.Data.Redirect
}

func (s *testServer) do(t *testing.T, method, path, token string, payload any) *nethttp.Response {
	t.Helper()
	var reader io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *nethttp.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	if resp := s.do(t, nethttp.MethodGet, "/health/live", "", nil); resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected live 200, got %d", resp.StatusCode)
	}
	if resp := s.do(t, nethttp.MethodGet, "/health/ready", "", nil); resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected ready 200, got %d", resp.StatusCode)
	}

	resp := s.do(t, nethttp.MethodGet, "/metrics", "", nil)
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || !bytes.Contains(body, []byte("agencyhub_http_requests_total")) {
		t.Errorf("Expected metrics exposition, got %d: %s", resp.StatusCode, body)
	}
}

func TestLoginRedirectHonorsPermissions(t *testing.T) {
	s := newTestServer(t)
	s.addMember(t, "client@agency.test", "client")
	s.addMember(t, "pm@agency.test", "project_manager")

	if _, redirect := s.login(t, "client@agency.test", "/team"); redirect != "/client-portal" {
		t.Errorf("Expected client to land on /client-portal, got %q", redirect)
	}
	if _, redirect := s.login(t, "pm@agency.test", "/team"); redirect != "/team" {
		t.Errorf("Expected project manager to keep /team, got %q", redirect)
	}
	if _, redirect := s.login(t, "pm@agency.test", ""); redirect != "/projects" {
		t.Errorf("Expected project manager default /projects, got %q", redirect)
	}

	resp := s.do(t, nethttp.MethodPost, "/auth/login", "", map[string]string{"email": "client@agency.test", "password": "nope-nope"})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected 401 for bad password, got %d", resp.StatusCode)
	}
}

func TestAccessCheckAndLanding(t *testing.T) {
	s := newTestServer(t)
	s.addMember(t, "freelancer@agency.test", "freelancer")
	token, _ := s.login(t, "freelancer@agency.test", "")

	var check struct {
		Data struct {
			Allowed  bool   `json:"allowed"`
			Redirect string `json:"redirect"`
		} `json:"data"`
	}
	decode(t, s.do(t, nethttp.MethodGet, "/access/check?route=/reports", token, nil), &check)
	if check.Data.Allowed || check.Data.Redirect != "/time-tracking" {
		t.Errorf("Expected /reports denied with redirect, got %+v", check.Data)
	}

	decode(t, s.do(t, nethttp.MethodGet, "/access/check?route=/invoices", token, nil), &check)
	if !check.Data.Allowed {
		t.Error("Expected /invoices allowed for freelancer")
	}

	var landing struct {
		Data struct {
			Route string `json:"route"`
		} `json:"data"`
	}
	decode(t, s.do(t, nethttp.MethodGet, "/access/landing", token, nil), &landing)
	if landing.Data.Route != "/time-tracking" {
		t.Errorf("Expected /time-tracking landing, got %q", landing.Data.Route)
	}

	if resp := s.do(t, nethttp.MethodGet, "/access/landing", "", nil); resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestTimerFlowRecordsEntry(t *testing.T) {
	s := newTestServer(t)
	s.addMember(t, "dev@agency.test", "team_member")
	token, _ := s.login(t, "dev@agency.test", "")

	if resp := s.do(t, nethttp.MethodPost, "/api/timer/stop", token, nil); resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("Expected 204 for empty session, got %d", resp.StatusCode)
	}

	s.do(t, nethttp.MethodPost, "/api/timer/start", token, nil)
	s.clock.Advance(3 * time.Second)
	s.do(t, nethttp.MethodPost, "/api/timer/pause", token, nil)
	s.clock.Advance(time.Minute)
	s.do(t, nethttp.MethodPost, "/api/timer/resume", token, nil)
	s.clock.Advance(4 * time.Second)

	var st struct {
		Data struct {
			IsRunning      bool  `json:"is_running"`
			ElapsedSeconds int64 `json:"elapsed_seconds"`
		} `json:"data"`
	}
	decode(t, s.do(t, nethttp.MethodGet, "/api/timer", token, nil), &st)
	if !st.Data.IsRunning || st.Data.ElapsedSeconds != 7 {
		t.Fatalf("Expected running timer at 7s, got %+v", st.Data)
	}

	resp := s.do(t, nethttp.MethodPost, "/api/timer/stop", token, map[string]any{
		"project_id": "acme-site", "task": "landing page", "billable": true,
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var entry struct {
		Data struct {
			ID              string `json:"id"`
			DurationSeconds int64  `json:"duration_seconds"`
			ProjectID       string `json:"project_id"`
		} `json:"data"`
	}
	decode(t, resp, &entry)
	if entry.Data.DurationSeconds != 7 || entry.Data.ProjectID != "acme-site" {
		t.Errorf("Unexpected entry %+v", entry.Data)
	}

	var summary struct {
		Data struct {
			TotalSeconds    int64 `json:"total_seconds"`
			BillableSeconds int64 `json:"billable_seconds"`
		} `json:"data"`
	}
	decode(t, s.do(t, nethttp.MethodGet, "/api/time-entries/summary", token, nil), &summary)
	if summary.Data.TotalSeconds != 7 || summary.Data.BillableSeconds != 7 {
		t.Errorf("Unexpected summary %+v", summary.Data)
	}

	if resp := s.do(t, nethttp.MethodDelete, "/api/time-entries/"+entry.Data.ID, token, nil); resp.StatusCode != fiber.StatusNoContent {
		t.Errorf("Expected 204 on delete, got %d", resp.StatusCode)
	}
	var list struct {
		Data []any `json:"data"`
	}
	decode(t, s.do(t, nethttp.MethodGet, "/api/time-entries", token, nil), &list)
	if len(list.Data) != 0 {
		t.Errorf("Expected no entries after delete, got %d", len(list.Data))
	}

	if resp := s.do(t, nethttp.MethodPost, "/api/timer/rewind", token, nil); resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected 404 for unknown action, got %d", resp.StatusCode)
	}
}

func TestRouteGuardsUsePermissionTable(t *testing.T) {
	s := newTestServer(t)
	s.addMember(t, "client@agency.test", "client")
	s.addMember(t, "boss@agency.test", "admin")
	clientToken, _ := s.login(t, "client@agency.test", "")
	adminToken, _ := s.login(t, "boss@agency.test", "")

	resp := s.do(t, nethttp.MethodGet, "/api/timer", clientToken, nil)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("Expected client to be forbidden from timer, got %d", resp.StatusCode)
	}
	var denied struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	decode(t, resp, &denied)
	if denied.Error.Code != "FORBIDDEN" || denied.Error.Details["redirect"] != "/client-portal" {
		t.Errorf("Unexpected forbidden body %+v", denied.Error)
	}

	if resp := s.do(t, nethttp.MethodGet, "/api/team", clientToken, nil); resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("Expected client to be forbidden from team, got %d", resp.StatusCode)
	}

	resp = s.do(t, nethttp.MethodPost, "/api/team", adminToken, map[string]any{
		"name": "New Hire", "email": "hire@agency.test", "password": "welcome-aboard", "role": "freelancer", "hourly_rate": 55.5,
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("Expected admin to add member, got %d", resp.StatusCode)
	}

	resp = s.do(t, nethttp.MethodPost, "/api/team", adminToken, map[string]any{
		"name": "Bad", "email": "bad@agency.test", "password": "welcome-aboard", "role": "superuser",
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400 for unknown role, got %d", resp.StatusCode)
	}

	var members struct {
		Data []map[string]any `json:"data"`
	}
	decode(t, s.do(t, nethttp.MethodGet, "/api/team", adminToken, nil), &members)
	if len(members.Data) != 3 {
		t.Errorf("Expected 3 members, got %d", len(members.Data))
	}
	for _, m := range members.Data {
		if _, leaked := m["password_hash"]; leaked {
			t.Error("Expected password hash to stay private")
		}
	}
}

func TestUnknownRouteRendersDomainError(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, nethttp.MethodGet, "/nowhere", "", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("Expected 404, got %d", resp.StatusCode)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decode(t, resp, &body)
	if body.Error.Code != "NOT_FOUND" {
		t.Errorf("Expected NOT_FOUND code, got %q", body.Error.Code)
	}
}
