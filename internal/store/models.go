package store

import (
	"time"

	"github.com/google/uuid"
)

// Visibility is the three-axis visibility of a skill.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

// SourceType distinguishes skills discovered on a source host from those
// uploaded directly.
type SourceType string

const (
	SourceTypeHosted SourceType = "hosted"
	SourceTypeUpload SourceType = "upload"
)

// Tier is the coarse freshness classification driving refresh cadence.
type Tier string

const (
	TierHot      Tier = "hot"
	TierCold     Tier = "cold"
	TierArchived Tier = "archived"
)

// AuthorType distinguishes a source-host user account from an organization.
type AuthorType string

const (
	AuthorTypeUser AuthorType = "User"
	AuthorTypeOrg  AuthorType = "Organization"
)

// CategoryKind distinguishes the fixed predefined categories from the ones
// the classification worker mints on the fly.
type CategoryKind string

const (
	CategoryKindPredefined CategoryKind = "predefined"
	CategoryKindAISuggested CategoryKind = "ai-suggested"
)

// GranteeType is who a SkillPermission grant names.
type GranteeType string

const (
	GranteeTypeUser GranteeType = "user"
	GranteeTypeOrg  GranteeType = "org"
)

// StarSnapshot is a single {date, stars} observation in a skill's compressed
// history series.
type StarSnapshot struct {
	D     string `json:"d"` // YYYY-MM-DD
	Stars int    `json:"s"`
}

// Skill is the central catalog entity.
type Skill struct {
	ID              uuid.UUID
	Slug            string
	Name            string
	Description     string
	RepoOwner       string
	RepoName        string
	SkillPath       string
	GithubURL       string
	Stars           int
	Forks           int
	TrendingScore   float64
	IndexedAt       time.Time
	UpdatedAt       time.Time
	LastCommitAt    *time.Time
	Readme          string
	FileStructure   string // serialized tree, opaque to the store
	StarSnapshots   []StarSnapshot
	Visibility      Visibility
	SourceType      SourceType
	Tier            Tier
	OwnerID         *uuid.UUID
	OrgID           *uuid.UUID
	ContentHash     string
	License         string
	LastIngestError *string
}

// Author represents a user or organization on the source host.
type Author struct {
	Username     string
	GithubID     int64
	DisplayName  string
	AvatarURL    string
	Bio          string
	Type         AuthorType
	SkillsCount  int
	TotalStars   int
	Blog         string
	Location     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Category is either a fixed predefined entry or an ai-suggested one.
type Category struct {
	Slug        string
	Name        string
	Description string
	Keywords    []string
	Kind        CategoryKind
}

// CategoryWithCount decorates a Category with the number of skills tagged with it.
type CategoryWithCount struct {
	Category
	SkillCount int
}

// Favorite is a (user, skill) pairing.
type Favorite struct {
	UserID    uuid.UUID
	SkillID   uuid.UUID
	CreatedAt time.Time
}

// SkillPermission grants a user or org access to a private or unlisted skill.
type SkillPermission struct {
	ID          uuid.UUID
	SkillID     uuid.UUID
	GranteeType GranteeType
	GranteeID   uuid.UUID
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// Accessor is the authenticated or anonymous principal making a request.
type Accessor struct {
	UserID  *uuid.UUID
	OrgIDs  []uuid.UUID // organizations the user belongs to
	Scopes  []string
}

// IsAnonymous reports whether the accessor carries no identity.
func (a Accessor) IsAnonymous() bool {
	return a.UserID == nil
}

// HasScope reports whether the accessor carries the given scope.
func (a Accessor) HasScope(scope string) bool {
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
