package models

import (
	"time"

	"github.com/google/uuid"
)

// LinkType distinguishes direct redirects from hosted landing pages.
type LinkType string

const (
	LinkDirect  LinkType = "direct"
	LinkLanding LinkType = "landing"
)

// Link is a short link owned by an organization, optionally grouped
// under a campaign.
type Link struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	CampaignID     *uuid.UUID `json:"campaign_id,omitempty"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty"`
	Slug           string     `json:"slug"`
	Description    string     `json:"description,omitempty"`
	Type           LinkType   `json:"type"`
	TargetURL      string     `json:"target_url,omitempty"`
	Active         bool       `json:"active"`
	Shielded       bool       `json:"shielded"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
