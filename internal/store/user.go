package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is a registered account — the subject a device-auth session attaches
// to once approved. Created out of this service's HTTP surface (the
// browser-side approval flow shares this table but lives elsewhere); this
// store only ever reads it.
type User struct {
	ID        uuid.UUID
	Username  string
	AvatarURL string
	CreatedAt time.Time
}

// UserStore provides read access to user_accounts.
type UserStore struct {
	db DBTX
}

// NewUserStore creates a UserStore backed by dbtx.
func NewUserStore(dbtx DBTX) *UserStore {
	return &UserStore{db: dbtx}
}

// FindByID looks up a user by id.
func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := s.db.QueryRow(ctx, `
		SELECT id, username, avatar_url, created_at FROM user_accounts WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("finding user %s: %w", id, err)
	}
	return u, nil
}
