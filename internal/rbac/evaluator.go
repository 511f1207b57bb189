// Package rbac evaluates organization-scoped permissions.
package rbac

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkforge/backend/internal/models"
)

// PermissionStore looks up memberships and roles. Implementations
// return (nil, nil) for absent rows.
type PermissionStore interface {
	GetMembership(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error)
	GetRole(ctx context.Context, roleID uuid.UUID) (*models.Role, error)
}

// Evaluator decides whether a user may perform an action in an
// organization. The world is closed: no membership, no role, or an
// unknown capability all evaluate to a plain false.
type Evaluator struct {
	store  PermissionStore
	logger *zap.Logger
}

// NewEvaluator creates an evaluator over the given store.
func NewEvaluator(store PermissionStore, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{store: store, logger: logger}
}

// CanPerform reports whether the user's role in the organization grants
// the capability.
func (e *Evaluator) CanPerform(ctx context.Context, userID, orgID uuid.UUID, capability models.Capability) (bool, error) {
	membership, err := e.store.GetMembership(ctx, userID, orgID)
	if err != nil {
		return false, err
	}
	if membership == nil || membership.RoleID == nil {
		return false, nil
	}

	role, err := e.store.GetRole(ctx, *membership.RoleID)
	if err != nil {
		return false, err
	}
	if role == nil {
		return false, nil
	}
	return role.Permissions.Allows(capability), nil
}

// IsMember reports whether the user belongs to the organization at all.
// Absence of membership means no access to the organization's resources.
func (e *Evaluator) IsMember(ctx context.Context, userID, orgID uuid.UUID) (bool, error) {
	membership, err := e.store.GetMembership(ctx, userID, orgID)
	if err != nil {
		return false, err
	}
	return membership != nil, nil
}
