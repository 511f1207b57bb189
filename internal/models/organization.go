package models

import (
	"time"

	"github.com/google/uuid"
)

// Capability is a named permission flag evaluated against a role.
type Capability string

const (
	CapManageOrganization Capability = "manageOrganization"
	CapManageUsers        Capability = "manageUsers"
	CapManageRoles        Capability = "manageRoles"
)

// Permissions maps capabilities to grants. Absent keys deny: an unknown
// capability never grants access.
type Permissions map[Capability]bool

// Allows reports whether the capability is explicitly granted.
func (p Permissions) Allows(capability Capability) bool {
	return p != nil && p[capability]
}

// OwnerPermissions returns the full grant set given to the creator of an
// organization.
func OwnerPermissions() Permissions {
	return Permissions{
		CapManageOrganization: true,
		CapManageUsers:        true,
		CapManageRoles:        true,
	}
}

// Organization represents a tenant.
type Organization struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Description string         `json:"description,omitempty"`
	State       LifecycleState `json:"state"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Role is a named permission set scoped to exactly one organization.
type Role struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	Name           string      `json:"name"`
	Description    string      `json:"description,omitempty"`
	Permissions    Permissions `json:"permissions"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Membership binds a user to an organization with an optional role.
// A user holds at most one role per organization.
type Membership struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	RoleID         *uuid.UUID `json:"role_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
