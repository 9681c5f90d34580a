package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PermissionStore provides database operations over skill_permissions,
// organizations, and org_members — the join surface permission checks
// resolve against. There is no back-reference from Skill to OrgMember;
// membership is always looked up by orgId.
type PermissionStore struct {
	db DBTX
}

// NewPermissionStore creates a PermissionStore backed by dbtx.
func NewPermissionStore(dbtx DBTX) *PermissionStore {
	return &PermissionStore{db: dbtx}
}

// Grant creates a SkillPermission row for a user or org grantee.
func (s *PermissionStore) Grant(ctx context.Context, p SkillPermission) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO skill_permissions (id, skill_id, grantee_type, grantee_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		p.ID, p.SkillID, p.GranteeType, p.GranteeID, p.ExpiresAt)
	if err != nil {
		return fmt.Errorf("granting skill permission: %w", err)
	}
	return nil
}

// Revoke deletes a specific grant.
func (s *PermissionStore) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM skill_permissions WHERE id = $1`, id)
	return err
}

// OrgIDsForUser returns the organizations a user belongs to.
func (s *PermissionStore) OrgIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT org_id FROM org_members WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing org memberships: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AccessibleSkillIDs returns the ids of non-public skills the accessor can
// see: skills they own, skills owned by an org they belong to, and skills
// with an active (non-expired) grant naming the user or one of their orgs.
func (s *PermissionStore) AccessibleSkillIDs(ctx context.Context, userID uuid.UUID, orgIDs []uuid.UUID) ([]uuid.UUID, error) {
	now := time.Now()
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT id FROM skills WHERE owner_id = $1
		UNION
		SELECT DISTINCT id FROM skills WHERE org_id = ANY($2)
		UNION
		SELECT DISTINCT skill_id FROM skill_permissions
			WHERE (expires_at IS NULL OR expires_at > $3)
			AND ((grantee_type = 'user' AND grantee_id = $1)
				OR (grantee_type = 'org' AND grantee_id = ANY($2)))`,
		userID, orgIDs, now)
	if err != nil {
		return nil, fmt.Errorf("resolving accessible skill ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// HasGrant reports whether a specific grantee has an active grant on a skill,
// used by the single-skill detail handler's §4.9 check.
func (s *PermissionStore) HasGrant(ctx context.Context, skillID uuid.UUID, granteeType GranteeType, granteeID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM skill_permissions
			WHERE skill_id = $1 AND grantee_type = $2 AND grantee_id = $3
				AND (expires_at IS NULL OR expires_at > now())
		)`, skillID, granteeType, granteeID).Scan(&exists)
	return exists, err
}
