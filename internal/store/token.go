package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ApiToken is a hashed-at-rest bearer credential. The prefix is the only
// visible fragment once issued; Hash is never returned to a client.
type ApiToken struct {
	ID          uuid.UUID
	Hash        string
	Prefix      string
	SubjectType GranteeType
	SubjectID   uuid.UUID
	Scopes      []string
	ExpiresAt   *time.Time
	Revoked     bool
	CreatedAt   time.Time
}

// TokenStore provides database operations over api_tokens.
type TokenStore struct {
	db DBTX
}

// NewTokenStore creates a TokenStore backed by dbtx.
func NewTokenStore(dbtx DBTX) *TokenStore {
	return &TokenStore{db: dbtx}
}

// Create inserts a new token row.
func (s *TokenStore) Create(ctx context.Context, t *ApiToken) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO api_tokens (id, hash, prefix, subject_type, subject_id, scopes, expires_at, revoked, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,false,now())
		RETURNING created_at`,
		t.ID, t.Hash, t.Prefix, t.SubjectType, t.SubjectID, t.Scopes, t.ExpiresAt,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating api token: %w", err)
	}
	return nil
}

// FindByHash looks up a non-revoked, non-expired token by its hash.
func (s *TokenStore) FindByHash(ctx context.Context, hash string) (ApiToken, error) {
	var t ApiToken
	err := s.db.QueryRow(ctx, `
		SELECT id, hash, prefix, subject_type, subject_id, scopes, expires_at, revoked, created_at
		FROM api_tokens
		WHERE hash = $1 AND revoked = false AND (expires_at IS NULL OR expires_at > now())`,
		hash,
	).Scan(&t.ID, &t.Hash, &t.Prefix, &t.SubjectType, &t.SubjectID, &t.Scopes, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if err != nil {
		return ApiToken{}, fmt.Errorf("finding api token: %w", err)
	}
	return t, nil
}

// Revoke marks a token as revoked.
func (s *TokenStore) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE api_tokens SET revoked = true WHERE id = $1`, id)
	return err
}
