package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// FavoriteStore provides database operations over the favorites table.
type FavoriteStore struct {
	db DBTX
}

// NewFavoriteStore creates a FavoriteStore backed by dbtx.
func NewFavoriteStore(dbtx DBTX) *FavoriteStore {
	return &FavoriteStore{db: dbtx}
}

// Add is an idempotent favorite insert.
func (s *FavoriteStore) Add(ctx context.Context, userID, skillID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO favorites (user_id, skill_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, skill_id) DO NOTHING`, userID, skillID)
	if err != nil {
		return fmt.Errorf("adding favorite: %w", err)
	}
	return nil
}

// Remove is an idempotent favorite delete.
func (s *FavoriteStore) Remove(ctx context.Context, userID, skillID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND skill_id = $2`, userID, skillID)
	if err != nil {
		return fmt.Errorf("removing favorite: %w", err)
	}
	return nil
}

// IsFavorited reports whether userID has favorited skillID.
func (s *FavoriteStore) IsFavorited(ctx context.Context, userID, skillID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = $1 AND skill_id = $2)`, userID, skillID).Scan(&exists)
	return exists, err
}

// DeleteBySkill removes every favorite recorded against a skill.
func (s *FavoriteStore) DeleteBySkill(ctx context.Context, skillID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM favorites WHERE skill_id = $1`, skillID)
	return err
}

// RecordUserAction inserts an audit row for a favorite/download/view event.
func (s *FavoriteStore) RecordUserAction(ctx context.Context, userID *uuid.UUID, skillID uuid.UUID, action string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_actions (user_id, skill_id, action, created_at)
		VALUES ($1, $2, $3, now())`, userID, skillID, action)
	if err != nil {
		return fmt.Errorf("recording user action %q: %w", action, err)
	}
	return nil
}
