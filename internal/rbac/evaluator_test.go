package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkforge/backend/internal/models"
)

type fakeStore struct {
	memberships map[string]*models.Membership
	roles       map[uuid.UUID]*models.Role
	err         error
}

func membershipKey(userID, orgID uuid.UUID) string {
	return userID.String() + "/" + orgID.String()
}

func (s *fakeStore) GetMembership(_ context.Context, userID, orgID uuid.UUID) (*models.Membership, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.memberships[membershipKey(userID, orgID)], nil
}

func (s *fakeStore) GetRole(_ context.Context, roleID uuid.UUID) (*models.Role, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.roles[roleID], nil
}

func TestCanPerformGrantedCapability(t *testing.T) {
	userID, orgID, roleID := uuid.New(), uuid.New(), uuid.New()
	store := &fakeStore{
		memberships: map[string]*models.Membership{
			membershipKey(userID, orgID): {UserID: userID, OrganizationID: orgID, RoleID: &roleID},
		},
		roles: map[uuid.UUID]*models.Role{
			roleID: {ID: roleID, Permissions: models.Permissions{models.CapManageUsers: true}},
		},
	}
	e := NewEvaluator(store, nil)

	allowed, err := e.CanPerform(context.Background(), userID, orgID, models.CapManageUsers)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCanPerformDeniesMissingCapability(t *testing.T) {
	userID, orgID, roleID := uuid.New(), uuid.New(), uuid.New()
	store := &fakeStore{
		memberships: map[string]*models.Membership{
			membershipKey(userID, orgID): {UserID: userID, OrganizationID: orgID, RoleID: &roleID},
		},
		roles: map[uuid.UUID]*models.Role{
			roleID: {ID: roleID, Permissions: models.Permissions{models.CapManageUsers: true}},
		},
	}
	e := NewEvaluator(store, nil)

	allowed, err := e.CanPerform(context.Background(), userID, orgID, models.CapManageRoles)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCanPerformDeniesUnknownCapability(t *testing.T) {
	userID, orgID, roleID := uuid.New(), uuid.New(), uuid.New()
	store := &fakeStore{
		memberships: map[string]*models.Membership{
			membershipKey(userID, orgID): {UserID: userID, OrganizationID: orgID, RoleID: &roleID},
		},
		roles: map[uuid.UUID]*models.Role{
			roleID: {ID: roleID, Permissions: models.OwnerPermissions()},
		},
	}
	e := NewEvaluator(store, nil)

	// Closed world: a capability name the system never defined is denied
	// even for the owner, without error.
	allowed, err := e.CanPerform(context.Background(), userID, orgID, models.Capability("manageEverything"))
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCanPerformDeniesNonMember(t *testing.T) {
	store := &fakeStore{memberships: map[string]*models.Membership{}}
	e := NewEvaluator(store, nil)

	allowed, err := e.CanPerform(context.Background(), uuid.New(), uuid.New(), models.CapManageUsers)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCanPerformDeniesMemberWithoutRole(t *testing.T) {
	userID, orgID := uuid.New(), uuid.New()
	store := &fakeStore{
		memberships: map[string]*models.Membership{
			membershipKey(userID, orgID): {UserID: userID, OrganizationID: orgID, RoleID: nil},
		},
	}
	e := NewEvaluator(store, nil)

	allowed, err := e.CanPerform(context.Background(), userID, orgID, models.CapManageUsers)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCanPerformDeniesDanglingRole(t *testing.T) {
	userID, orgID, roleID := uuid.New(), uuid.New(), uuid.New()
	store := &fakeStore{
		memberships: map[string]*models.Membership{
			membershipKey(userID, orgID): {UserID: userID, OrganizationID: orgID, RoleID: &roleID},
		},
		roles: map[uuid.UUID]*models.Role{},
	}
	e := NewEvaluator(store, nil)

	allowed, err := e.CanPerform(context.Background(), userID, orgID, models.CapManageUsers)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCanPerformPropagatesStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	e := NewEvaluator(store, nil)

	allowed, err := e.CanPerform(context.Background(), uuid.New(), uuid.New(), models.CapManageUsers)
	require.Error(t, err)
	assert.False(t, allowed)
}

func TestIsMember(t *testing.T) {
	userID, orgID := uuid.New(), uuid.New()
	store := &fakeStore{
		memberships: map[string]*models.Membership{
			membershipKey(userID, orgID): {UserID: userID, OrganizationID: orgID},
		},
	}
	e := NewEvaluator(store, nil)

	member, err := e.IsMember(context.Background(), userID, orgID)
	require.NoError(t, err)
	assert.True(t, member)

	member, err = e.IsMember(context.Background(), uuid.New(), orgID)
	require.NoError(t, err)
	assert.False(t, member)
}
