package models

import (
	"time"

	"github.com/google/uuid"
)

// InvitationStatus is the invitation state machine. Accepted, expired and
// revoked are terminal.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
	InvitationRevoked  InvitationStatus = "revoked"
)

// Invitation invites an email address into an organization with a role.
// Only the hash of the invitation secret is stored; the raw secret is
// handed to the mail queue once and never persisted.
type Invitation struct {
	ID             uuid.UUID        `json:"id"`
	OrganizationID uuid.UUID        `json:"organization_id"`
	RoleID         *uuid.UUID       `json:"role_id,omitempty"`
	Email          string           `json:"email"`
	TokenHash      string           `json:"-"`
	InvitedBy      uuid.UUID        `json:"invited_by"`
	AcceptedBy     *uuid.UUID       `json:"accepted_by,omitempty"`
	Status         InvitationStatus `json:"status"`
	ExpiresAt      time.Time        `json:"expires_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
