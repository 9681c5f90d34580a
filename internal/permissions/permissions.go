// Package permissions implements C9: pure visibility-resolution functions
// plus the device-auth state-machine transition table. Nothing here talks
// to the database directly — callers pass in data already fetched so the
// decisions stay independent of any particular store shape.
package permissions

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/skillnest/registry/internal/store"
)

// BuildAccessibleIDs resolves the set of non-public skill ids an accessor
// may see, for use as store.SearchParams.AccessibleIDs. An anonymous
// accessor sees none (the caller then filters to visibility=public only).
func BuildAccessibleIDs(ctx context.Context, perms *store.PermissionStore, accessor store.Accessor) ([]uuid.UUID, error) {
	if accessor.IsAnonymous() {
		return nil, nil
	}
	ids, err := perms.AccessibleSkillIDs(ctx, *accessor.UserID, accessor.OrgIDs)
	if err != nil {
		return nil, fmt.Errorf("building accessible skill ids: %w", err)
	}
	return ids, nil
}

// CanView reports whether accessor may view sk, per §4.9's three-axis
// visibility: public is open to anyone, unlisted is open to anyone who
// knows the slug (this function is only consulted once a caller already
// has the skill in hand, so unlisted always passes here), private requires
// ownership, org membership, or an active grant.
func CanView(ctx context.Context, perms *store.PermissionStore, sk store.Skill, accessor store.Accessor) (bool, error) {
	switch sk.Visibility {
	case store.VisibilityPublic, store.VisibilityUnlisted:
		return true, nil
	case store.VisibilityPrivate:
		return canViewPrivate(ctx, perms, sk, accessor)
	default:
		return false, nil
	}
}

func canViewPrivate(ctx context.Context, perms *store.PermissionStore, sk store.Skill, accessor store.Accessor) (bool, error) {
	if accessor.IsAnonymous() {
		return false, nil
	}
	if sk.OwnerID != nil && *sk.OwnerID == *accessor.UserID {
		return true, nil
	}
	if sk.OrgID != nil {
		for _, org := range accessor.OrgIDs {
			if org == *sk.OrgID {
				return true, nil
			}
		}
	}

	if ok, err := perms.HasGrant(ctx, sk.ID, store.GranteeTypeUser, *accessor.UserID); err != nil {
		return false, fmt.Errorf("checking user grant: %w", err)
	} else if ok {
		return true, nil
	}

	for _, org := range accessor.OrgIDs {
		ok, err := perms.HasGrant(ctx, sk.ID, store.GranteeTypeOrg, org)
		if err != nil {
			return false, fmt.Errorf("checking org grant: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// CanEnumerate reports whether sk should appear in search/category listings
// for accessor: public skills always, unlisted only to their owner, private
// never (private skills are enumerated only via BuildAccessibleIDs feeding
// SearchSkills directly, not through this function).
func CanEnumerate(sk store.Skill, accessor store.Accessor) bool {
	switch sk.Visibility {
	case store.VisibilityPublic:
		return true
	case store.VisibilityUnlisted:
		return !accessor.IsAnonymous() && sk.OwnerID != nil && *sk.OwnerID == *accessor.UserID
	default:
		return false
	}
}
