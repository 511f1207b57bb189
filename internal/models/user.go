package models

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleState is an explicit entity lifecycle. Retired entities are
// never deleted; all queries filter on state.
type LifecycleState string

const (
	StateActive  LifecycleState = "active"
	StateRetired LifecycleState = "retired"
)

// User represents a platform user (a principal once authenticated).
type User struct {
	ID         uuid.UUID      `json:"id"`
	Email      string         `json:"email"`
	Username   string         `json:"username,omitempty"`
	Password   string         `json:"-"`
	FirstName  string         `json:"first_name,omitempty"`
	LastName   string         `json:"last_name,omitempty"`
	ProfileURL string         `json:"profile_url,omitempty"`
	Verified   bool           `json:"verified"`
	State      LifecycleState `json:"state"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	ProfileURL string    `json:"profile_url,omitempty"`
	Verified   bool      `json:"verified"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		ProfileURL: u.ProfileURL,
		Verified:   u.Verified,
		CreatedAt:  u.CreatedAt,
	}
}
