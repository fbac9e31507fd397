package auth

import "github.com/spec-kit/agency-hub/internal/domain"

// IsAuthorized reports whether role may visit route. Unknown roles are never authorized.
func IsAuthorized(route string, role domain.Role) bool {
	entry, ok := permissionTable[role]
	if !ok {
		return false
	}
	return entry.allows(route)
}

// DefaultRouteFor returns the landing route for role, or LoginRoute for unknown roles.
func DefaultRouteFor(role domain.Role) string {
	entry, ok := permissionTable[role]
	if !ok {
		return LoginRoute
	}
	return entry.DefaultRoute
}

// ResolveOnLogin picks where a freshly authenticated role lands. The requested
// return path wins only when it is present and authorized.
func ResolveOnLogin(role domain.Role, returnPath string) string {
	if returnPath != "" && IsAuthorized(returnPath, role) {
		return returnPath
	}
	return DefaultRouteFor(role)
}
