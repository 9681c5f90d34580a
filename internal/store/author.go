package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// AuthorStore provides database operations over the authors table.
type AuthorStore struct {
	db DBTX
}

// NewAuthorStore creates an AuthorStore backed by dbtx.
func NewAuthorStore(dbtx DBTX) *AuthorStore {
	return &AuthorStore{db: dbtx}
}

const authorColumns = `username, github_id, display_name, avatar_url, bio, type,
	skills_count, total_stars, blog, location, created_at, updated_at`

// UpsertAuthor inserts an author on first observation, or refreshes its
// profile fields on subsequent sightings. skills_count is only incremented
// by IncrementSkillsCount, never by this call, to preserve the "increment
// only on first insert of a given slug" invariant from the indexing worker.
func (s *AuthorStore) UpsertAuthor(ctx context.Context, a *Author) error {
	query := fmt.Sprintf(`
		INSERT INTO authors (username, github_id, display_name, avatar_url, bio, type,
			skills_count, total_stars, blog, location, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,0,0,$7,$8,now(),now())
		ON CONFLICT (username) DO UPDATE SET
			github_id = EXCLUDED.github_id,
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			bio = EXCLUDED.bio,
			type = EXCLUDED.type,
			blog = EXCLUDED.blog,
			location = EXCLUDED.location,
			updated_at = now()
		RETURNING %s`, authorColumns)

	row := s.db.QueryRow(ctx, query, a.Username, a.GithubID, a.DisplayName, a.AvatarURL, a.Bio, a.Type, a.Blog, a.Location)
	out, err := scanAuthor(row)
	if err != nil {
		return fmt.Errorf("upserting author: %w", err)
	}
	*a = out
	return nil
}

// FindAuthorByUsername looks up an author by its key.
func (s *AuthorStore) FindAuthorByUsername(ctx context.Context, username string) (Author, error) {
	query := fmt.Sprintf(`SELECT %s FROM authors WHERE username = $1`, authorColumns)
	return scanAuthor(s.db.QueryRow(ctx, query, username))
}

// IncrementSkillsCount bumps an author's denormalized skill count. Called by
// the indexing worker exactly once, on first insert of a given slug.
func (s *AuthorStore) IncrementSkillsCount(ctx context.Context, username string) error {
	_, err := s.db.Exec(ctx, `UPDATE authors SET skills_count = skills_count + 1, updated_at = now() WHERE username = $1`, username)
	return err
}

// UpdateTotalStars stores the given aggregate star count for an author.
func (s *AuthorStore) UpdateTotalStars(ctx context.Context, username string, totalStars int) error {
	_, err := s.db.Exec(ctx, `UPDATE authors SET total_stars = $2, updated_at = now() WHERE username = $1`, username, totalStars)
	return err
}

func scanAuthor(row pgx.Row) (Author, error) {
	var a Author
	err := row.Scan(&a.Username, &a.GithubID, &a.DisplayName, &a.AvatarURL, &a.Bio, &a.Type,
		&a.SkillsCount, &a.TotalStars, &a.Blog, &a.Location, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Author{}, err
	}
	return a, nil
}
