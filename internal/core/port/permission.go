package port

import (
	"context"

	"github.com/arklim/record-registry/internal/core/domain"
)

// PermissionChecker is the policy collaborator, invoked as a yes/no predicate.
type PermissionChecker interface {
	Allows(ctx context.Context, identity domain.Identity, action string, resource map[string]any) bool
}
