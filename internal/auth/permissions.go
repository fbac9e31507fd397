package auth

import (
	"fmt"

	"github.com/spec-kit/agency-hub/internal/domain"
)

// WildcardRoute matches every path.
const WildcardRoute = "*"

// LoginRoute is where unknown or unauthenticated roles land.
const LoginRoute = "/login"

// Dashboard routes referenced by the permission table and route guards.
const (
	RouteDashboard     = "/dashboard"
	RouteTimeTracking  = "/time-tracking"
	RouteProjects      = "/projects"
	RouteTasks         = "/tasks"
	RouteTeam          = "/team"
	RouteReports       = "/reports"
	RouteClients       = "/clients"
	RouteClientPortal  = "/client-portal"
	RouteInvoices      = "/invoices"
	RouteFeedback      = "/feedback"
	RouteNotifications = "/notifications"
	RouteSettings      = "/settings"
)

// PermissionEntry lists the routes a role may visit and where it lands by default.
type PermissionEntry struct {
	AllowedRoutes []string
	DefaultRoute  string
}

var permissionTable = map[domain.Role]PermissionEntry{
	domain.RoleTeamMember: {
		AllowedRoutes: []string{RouteDashboard, RouteTimeTracking, RouteTasks, RouteFeedback, RouteNotifications, RouteSettings},
		DefaultRoute:  RouteTimeTracking,
	},
	domain.RoleProjectManager: {
		AllowedRoutes: []string{RouteDashboard, RouteTimeTracking, RouteProjects, RouteTasks, RouteTeam, RouteReports, RouteFeedback, RouteNotifications, RouteSettings},
		DefaultRoute:  RouteProjects,
	},
	domain.RoleManager: {
		AllowedRoutes: []string{RouteDashboard, RouteTimeTracking, RouteProjects, RouteTasks, RouteTeam, RouteReports, RouteClients, RouteInvoices, RouteFeedback, RouteNotifications, RouteSettings},
		DefaultRoute:  RouteDashboard,
	},
	domain.RoleClient: {
		AllowedRoutes: []string{RouteClientPortal, RouteInvoices, RouteFeedback, RouteNotifications},
		DefaultRoute:  RouteClientPortal,
	},
	domain.RoleFreelancer: {
		AllowedRoutes: []string{RouteTimeTracking, RouteTasks, RouteInvoices, RouteNotifications, RouteSettings},
		DefaultRoute:  RouteTimeTracking,
	},
	domain.RoleAdmin: {
		AllowedRoutes: []string{WildcardRoute},
		DefaultRoute:  RouteDashboard,
	},
}

// PermissionFor returns a copy of the entry for role.
func PermissionFor(role domain.Role) (PermissionEntry, bool) {
	entry, ok := permissionTable[role]
	if !ok {
		return PermissionEntry{}, false
	}
	routes := make([]string, len(entry.AllowedRoutes))
	copy(routes, entry.AllowedRoutes)
	return PermissionEntry{AllowedRoutes: routes, DefaultRoute: entry.DefaultRoute}, true
}

// ValidatePermissionTable checks that every known role has an entry whose
// default route it is itself allowed to visit.
func ValidatePermissionTable() error {
	for _, role := range domain.Roles {
		entry, ok := permissionTable[role]
		if !ok {
			return fmt.Errorf("role %q has no permission entry", role)
		}
		if entry.DefaultRoute == "" {
			return fmt.Errorf("role %q has no default route", role)
		}
		if !entry.allows(entry.DefaultRoute) {
			return fmt.Errorf("role %q default route %q is not allowed", role, entry.DefaultRoute)
		}
	}
	if _, ok := permissionTable[domain.RoleUnknown]; ok {
		return fmt.Errorf("unknown role must not have a permission entry")
	}
	return nil
}

func (p PermissionEntry) allows(route string) bool {
	for _, allowed := range p.AllowedRoutes {
		if allowed == WildcardRoute || allowed == route {
			return true
		}
	}
	return false
}
