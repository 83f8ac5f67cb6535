package access

import (
	"context"

	"github.com/arklim/record-registry/internal/core/domain"
	"github.com/arklim/record-registry/internal/core/port"
	"github.com/arklim/record-registry/internal/infra/config"
)

// RoleChecker is a role-based permission policy. Reads can be open to any
// caller; every mutating action requires one of the configured manager roles.
type RoleChecker struct {
	managerRoles map[string]struct{}
	openRead     bool
}

// NewRoleChecker builds the checker from access settings.
func NewRoleChecker(cfg config.AccessSettings) *RoleChecker {
	roles := make(map[string]struct{}, len(cfg.ManagerRoles))
	for _, role := range cfg.ManagerRoles {
		roles[role] = struct{}{}
	}
	return &RoleChecker{managerRoles: roles, openRead: cfg.OpenRead}
}

// Allows reports whether the identity may perform the action.
func (c *RoleChecker) Allows(_ context.Context, identity domain.Identity, action string, _ map[string]any) bool {
	if action == "read" && c.openRead {
		return true
	}
	for _, role := range identity.Roles {
		if _, ok := c.managerRoles[role]; ok {
			return true
		}
	}
	return false
}

var _ port.PermissionChecker = (*RoleChecker)(nil)
