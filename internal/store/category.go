package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CategoryStore provides database operations over the categories table.
type CategoryStore struct {
	db DBTX
}

// NewCategoryStore creates a CategoryStore backed by dbtx.
func NewCategoryStore(dbtx DBTX) *CategoryStore {
	return &CategoryStore{db: dbtx}
}

// EnsureAISuggestedCategory inserts an ai-suggested category row if absent.
func (s *CategoryStore) EnsureAISuggestedCategory(ctx context.Context, slug, name string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO categories (slug, name, description, keywords, kind)
		VALUES ($1, $2, '', '{}', 'ai-suggested')
		ON CONFLICT (slug) DO NOTHING`, slug, name)
	if err != nil {
		return fmt.Errorf("ensuring ai-suggested category %q: %w", slug, err)
	}
	return nil
}

// ListPredefined returns the fixed category set known at build time.
func (s *CategoryStore) ListPredefined(ctx context.Context) ([]Category, error) {
	rows, err := s.db.Query(ctx, `SELECT slug, name, description, keywords, kind FROM categories WHERE kind = 'predefined' ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("listing predefined categories: %w", err)
	}
	defer rows.Close()
	return scanCategories(rows)
}

// ListWithCounts returns every category with at least one tagged public
// skill, predefined categories always included even at zero count. Counts
// include only public skills.
func (s *CategoryStore) ListWithCounts(ctx context.Context) ([]CategoryWithCount, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.slug, c.name, c.description, c.keywords, c.kind, COUNT(sk.id) AS skill_count
		FROM categories c
		LEFT JOIN skill_categories sc ON sc.category_slug = c.slug
		LEFT JOIN skills sk ON sk.id = sc.skill_id AND sk.visibility = 'public'
		GROUP BY c.slug, c.name, c.description, c.keywords, c.kind
		HAVING c.kind = 'predefined' OR COUNT(sk.id) > 0
		ORDER BY c.slug`)
	if err != nil {
		return nil, fmt.Errorf("listing categories with counts: %w", err)
	}
	defer rows.Close()

	var out []CategoryWithCount
	for rows.Next() {
		var c CategoryWithCount
		if err := rows.Scan(&c.Slug, &c.Name, &c.Description, &c.Keywords, &c.Kind, &c.SkillCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCategories(rows pgx.Rows) ([]Category, error) {
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.Slug, &c.Name, &c.Description, &c.Keywords, &c.Kind); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
