package auth

import "strings"

// UserRole is the user's role
type UserRole string

const (
	// RoleStandard is the default role given on signup
	RoleStandard UserRole = "standard"
	// RoleEditor can manage content (i.e. view, edit)
	RoleEditor UserRole = "editor"
	// RoleAdmin is an admin role (i.e. view, edit, create)
	RoleAdmin UserRole = "admin"
	// RoleOwner is an admin role (i.e. view, edit, create, delete)
	RoleOwner UserRole = "owner"
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	return r.level() >= 0
}

func (r UserRole) String() string {
	return string(r)
}

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	current, required := r.level(), minRole.level()
	if current < 0 || required < 0 {
		return false
	}
	return current >= required
}

// level is the index of r in GetAllRoles, -1 when unknown
func (r UserRole) level() int {
	for i, role := range GetAllRoles() {
		if r == role {
			return i
		}
	}
	return -1
}

// In reports whether r is one of roles
func (r UserRole) In(roles ...UserRole) bool {
	for _, allowed := range roles {
		if r == allowed {
			return true
		}
	}
	return false
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleStandard,
		RoleEditor,
		RoleAdmin,
		RoleOwner,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// ParseRoles parses a list of role names, skipping unknown values
func ParseRoles(names []string) []UserRole {
	out := make([]UserRole, 0, len(names))
	for _, name := range names {
		if role, ok := ParseRole(name); ok {
			out = append(out, role)
		}
	}
	return out
}
