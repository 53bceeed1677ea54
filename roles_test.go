package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-authgate"
)

func TestParseRole(t *testing.T) {
	role, ok := auth.ParseRole("  Admin ")
	assert.True(t, ok)
	assert.Equal(t, auth.RoleAdmin, role)

	_, ok = auth.ParseRole("superuser")
	assert.False(t, ok)

	_, ok = auth.ParseRole("")
	assert.False(t, ok)
}

func TestParseRoles(t *testing.T) {
	roles := auth.ParseRoles([]string{"standard", "bogus", "OWNER"})
	assert.Equal(t, []auth.UserRole{auth.RoleStandard, auth.RoleOwner}, roles)
}

func TestUserRole_IsAtLeast(t *testing.T) {
	assert.True(t, auth.RoleOwner.IsAtLeast(auth.RoleAdmin))
	assert.True(t, auth.RoleEditor.IsAtLeast(auth.RoleEditor))
	assert.False(t, auth.RoleStandard.IsAtLeast(auth.RoleEditor))
	assert.False(t, auth.UserRole("ghost").IsAtLeast(auth.RoleStandard))
}

func TestUserRole_In(t *testing.T) {
	assert.True(t, auth.RoleAdmin.In(auth.RoleAdmin, auth.RoleOwner))
	assert.False(t, auth.RoleStandard.In(auth.RoleAdmin, auth.RoleOwner))
	assert.False(t, auth.RoleStandard.In())
}

func TestGetAllRoles(t *testing.T) {
	for _, role := range auth.GetAllRoles() {
		assert.True(t, role.IsValid(), role.String())
	}
}
