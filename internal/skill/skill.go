package skill

import (
	"errors"
	"time"

	"github.com/nidhogg/skillgate/internal/access"
)

// Visibility controls who can see a user-authored skill.
type Visibility string

const (
	VisibilityPrivate      Visibility = "private"
	VisibilityOrganization Visibility = "organization"
)

// Skill is a named instruction template with declared integration requirements.
// Instructions may contain {{PLACEHOLDER}} tokens filled from a capability profile.
type Skill struct {
	ID                string              `json:"id"`
	Slug              string              `json:"slug"`
	Name              string              `json:"name"`
	Description       string              `json:"description"`
	Category          string              `json:"category"`
	Requirements      access.Requirements `json:"required_integrations"`
	Instructions      string              `json:"instructions,omitempty"`
	Visibility        Visibility          `json:"visibility"`
	PendingVisibility Visibility          `json:"pending_visibility,omitempty"`
	IsGlobal          bool                `json:"is_global"`
	IsEnabled         bool                `json:"is_enabled"`
	OwnerID           string              `json:"owner_id,omitempty"`
	OrganizationID    string              `json:"organization_id,omitempty"`
	Source            string              `json:"source"` // "builtin", "seed", "user"
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// ErrNotFound is returned by skill stores when no skill matches.
var ErrNotFound = errors.New("skill not found")
