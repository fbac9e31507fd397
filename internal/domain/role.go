package domain

import "strings"

// Role enumerates the identity classes that govern route access.
type Role string

const (
	RoleTeamMember     Role = "team_member"
	RoleProjectManager Role = "project_manager"
	RoleManager        Role = "manager"
	RoleClient         Role = "client"
	RoleFreelancer     Role = "freelancer"
	RoleAdmin          Role = "admin"

	// RoleUnknown is produced for any value outside the closed set.
	RoleUnknown Role = "unknown"
)

// Roles lists every known role in display order.
var Roles = []Role{
	RoleTeamMember,
	RoleProjectManager,
	RoleManager,
	RoleClient,
	RoleFreelancer,
	RoleAdmin,
}

// ParseRole maps a raw string onto the closed role set.
func ParseRole(raw string) Role {
	candidate := Role(strings.ToLower(strings.TrimSpace(raw)))
	for _, r := range Roles {
		if r == candidate {
			return r
		}
	}
	return RoleUnknown
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return ParseRole(string(r)) == r && r != RoleUnknown
}

func (r Role) String() string {
	return string(r)
}
