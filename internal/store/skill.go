package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var goquDialect = goqu.Dialect("postgres")

// SkillStore provides database operations over the skills table and its
// dependent rows (skill_categories, favorites, skill_permissions).
type SkillStore struct {
	db DBTX
}

// NewSkillStore creates a SkillStore backed by dbtx.
func NewSkillStore(dbtx DBTX) *SkillStore {
	return &SkillStore{db: dbtx}
}

const skillColumns = `id, slug, name, description, repo_owner, repo_name, skill_path,
	github_url, stars, forks, trending_score, indexed_at, updated_at, last_commit_at,
	readme, file_structure, star_snapshots, visibility, source_type, tier, owner_id,
	org_id, content_hash, license, last_ingest_error`

// UpsertSkill inserts a skill, or updates it in place when (repo_owner,
// repo_name, skill_path) already identifies a hosted skill. The caller is
// responsible for slug disambiguation before calling this.
func (s *SkillStore) UpsertSkill(ctx context.Context, sk *Skill) error {
	snapshots, err := json.Marshal(sk.StarSnapshots)
	if err != nil {
		return fmt.Errorf("marshaling star snapshots: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO skills (slug, name, description, repo_owner, repo_name, skill_path,
			github_url, stars, forks, trending_score, indexed_at, updated_at, last_commit_at,
			readme, file_structure, star_snapshots, visibility, source_type, tier, owner_id,
			org_id, content_hash, license, last_ingest_error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now(),$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		ON CONFLICT (repo_owner, repo_name, skill_path) WHERE source_type = 'hosted'
		DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			github_url = EXCLUDED.github_url,
			stars = EXCLUDED.stars,
			forks = EXCLUDED.forks,
			last_commit_at = EXCLUDED.last_commit_at,
			readme = EXCLUDED.readme,
			file_structure = EXCLUDED.file_structure,
			content_hash = EXCLUDED.content_hash,
			updated_at = now()
		RETURNING %s`, skillColumns)

	row := s.db.QueryRow(ctx, query,
		sk.Slug, sk.Name, sk.Description, sk.RepoOwner, sk.RepoName, sk.SkillPath,
		sk.GithubURL, sk.Stars, sk.Forks, sk.TrendingScore, sk.LastCommitAt,
		sk.Readme, sk.FileStructure, snapshots, sk.Visibility, sk.SourceType, sk.Tier,
		sk.OwnerID, sk.OrgID, sk.ContentHash, sk.License, sk.LastIngestError,
	)
	out, err := scanSkill(row)
	if err != nil {
		return fmt.Errorf("upserting skill: %w", err)
	}
	*sk = out
	return nil
}

// FindSkillBySlug looks up a skill by its globally unique slug.
func (s *SkillStore) FindSkillBySlug(ctx context.Context, slug string) (Skill, error) {
	query := fmt.Sprintf(`SELECT %s FROM skills WHERE slug = $1`, skillColumns)
	return scanSkill(s.db.QueryRow(ctx, query, slug))
}

// FindSkillByID looks up a skill by primary key.
func (s *SkillStore) FindSkillByID(ctx context.Context, id uuid.UUID) (Skill, error) {
	query := fmt.Sprintf(`SELECT %s FROM skills WHERE id = $1`, skillColumns)
	return scanSkill(s.db.QueryRow(ctx, query, id))
}

// FindSkillByCoordinate looks up a hosted skill by its repo coordinate.
func (s *SkillStore) FindSkillByCoordinate(ctx context.Context, owner, repo, path string) (Skill, error) {
	query := fmt.Sprintf(`SELECT %s FROM skills WHERE repo_owner = $1 AND repo_name = $2 AND skill_path = $3 AND source_type = 'hosted'`, skillColumns)
	return scanSkill(s.db.QueryRow(ctx, query, owner, repo, path))
}

// SlugExists reports whether a slug is already taken by a skill other than excludeID.
func (s *SkillStore) SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM skills WHERE slug = $1 AND id != $2)`, slug, excludeID).Scan(&exists)
	return exists, err
}

// MarkArchivedByCoordinate sets tier=archived for every hosted skill under (owner, repo).
// Used when the source host reports 404 for a repository.
func (s *SkillStore) MarkArchivedByCoordinate(ctx context.Context, owner, repo string) error {
	_, err := s.db.Exec(ctx, `UPDATE skills SET tier = 'archived', updated_at = now() WHERE repo_owner = $1 AND repo_name = $2 AND source_type = 'hosted'`, owner, repo)
	return err
}

// SetLastIngestError records a persistent per-file ingest failure on the skill row.
func (s *SkillStore) SetLastIngestError(ctx context.Context, id uuid.UUID, message string) error {
	_, err := s.db.Exec(ctx, `UPDATE skills SET last_ingest_error = $2, updated_at = now() WHERE id = $1`, id, message)
	return err
}

// SetTier transitions a skill's lifecycle tier.
func (s *SkillStore) SetTier(ctx context.Context, id uuid.UUID, tier Tier) error {
	_, err := s.db.Exec(ctx, `UPDATE skills SET tier = $2, updated_at = now() WHERE id = $1`, id, tier)
	return err
}

// ScoreUpdate is one row of a BulkUpdateScores batch.
type ScoreUpdate struct {
	ID            uuid.UUID
	TrendingScore float64
	Stars         int
	Forks         int
	StarSnapshots []StarSnapshot
	LastCommitAt  *time.Time
}

// BulkUpdateScores writes a batch of ranking engine recomputations in groups
// of roughly 100, as a single round trip per group via an UNNEST join.
func (s *SkillStore) BulkUpdateScores(ctx context.Context, updates []ScoreUpdate) error {
	const groupSize = 100
	for start := 0; start < len(updates); start += groupSize {
		end := start + groupSize
		if end > len(updates) {
			end = len(updates)
		}
		if err := s.bulkUpdateScoreGroup(ctx, updates[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SkillStore) bulkUpdateScoreGroup(ctx context.Context, group []ScoreUpdate) error {
	ids := make([]uuid.UUID, len(group))
	scores := make([]float64, len(group))
	stars := make([]int, len(group))
	forks := make([]int, len(group))
	snaps := make([][]byte, len(group))
	lastCommit := make([]*time.Time, len(group))

	for i, u := range group {
		ids[i] = u.ID
		scores[i] = u.TrendingScore
		stars[i] = u.Stars
		forks[i] = u.Forks
		lastCommit[i] = u.LastCommitAt
		b, err := json.Marshal(u.StarSnapshots)
		if err != nil {
			return fmt.Errorf("marshaling star snapshots: %w", err)
		}
		snaps[i] = b
	}

	_, err := s.db.Exec(ctx, `
		UPDATE skills AS sk SET
			trending_score = u.trending_score,
			stars = u.stars,
			forks = u.forks,
			star_snapshots = u.star_snapshots,
			last_commit_at = u.last_commit_at,
			updated_at = now()
		FROM (
			SELECT * FROM UNNEST($1::uuid[], $2::float8[], $3::int[], $4::int[], $5::jsonb[], $6::timestamptz[])
				AS t(id, trending_score, stars, forks, star_snapshots, last_commit_at)
		) AS u
		WHERE sk.id = u.id`,
		ids, scores, stars, forks, snaps, lastCommit,
	)
	if err != nil {
		return fmt.Errorf("bulk updating scores: %w", err)
	}
	return nil
}

// SearchParams is the filter set for SearchSkills.
type SearchParams struct {
	Query           string
	Category        string
	Limit           int
	Offset          int
	AccessibleIDs   []uuid.UUID // private skill ids this accessor may see
	IncludeUnlisted bool        // true when AccessorUserID should also see their own unlisted skills
	AccessorUserID  *uuid.UUID  // the accessor's own id, used only when IncludeUnlisted is set
}

// SearchSkills returns the matching skills and the total count ignoring
// limit/offset. Visibility filtering is always applied: permissions.BuildAccessibleIDs
// must be called first and its result passed as AccessibleIDs. IncludeUnlisted
// additionally surfaces AccessorUserID's own unlisted skills, matching
// permissions.CanEnumerate's rule that unlisted skills enumerate only to
// their owner.
func (s *SkillStore) SearchSkills(ctx context.Context, p SearchParams) ([]Skill, int, error) {
	ds := goquDialect.From("skills").Select(goqu.L(skillColumns))

	visExpr := goqu.Or(
		goqu.C("visibility").Eq(string(VisibilityPublic)),
	)
	if len(p.AccessibleIDs) > 0 {
		visExpr = goqu.Or(visExpr, goqu.C("id").In(toAnySlice(p.AccessibleIDs)))
	}
	if p.IncludeUnlisted && p.AccessorUserID != nil {
		visExpr = goqu.Or(visExpr, goqu.And(
			goqu.C("visibility").Eq(string(VisibilityUnlisted)),
			goqu.C("owner_id").Eq(*p.AccessorUserID),
		))
	}
	ds = ds.Where(visExpr)

	if p.Query != "" {
		like := "%" + p.Query + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("name").ILike(like),
			goqu.C("description").ILike(like),
			goqu.C("repo_owner").ILike(like),
			goqu.C("repo_name").ILike(like),
		))
	}

	if p.Category != "" {
		ds = ds.Where(goqu.L(`id IN (SELECT skill_id FROM skill_categories WHERE category_slug = ?)`, p.Category))
	}

	countDS := ds.ClearSelect().Select(goqu.COUNT(goqu.Star()))
	countSQL, countArgs, err := countDS.ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("building count query: %w", err)
	}
	var total int
	if err := s.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting skills: %w", err)
	}

	limit := p.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	ds = ds.Order(goqu.C("trending_score").Desc()).Limit(uint(limit)).Offset(uint(p.Offset))

	querySQL, queryArgs, err := ds.ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("building search query: %w", err)
	}
	rows, err := s.db.Query(ctx, querySQL, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("searching skills: %w", err)
	}
	defer rows.Close()

	skills, err := scanSkills(rows)
	if err != nil {
		return nil, 0, err
	}
	return skills, total, nil
}

// ListTrending returns the top N skills by trending score, tier != archived.
func (s *SkillStore) ListTrending(ctx context.Context, limit int) ([]Skill, error) {
	query := fmt.Sprintf(`SELECT %s FROM skills WHERE visibility = 'public' AND tier != 'archived' ORDER BY trending_score DESC LIMIT $1`, skillColumns)
	return s.queryList(ctx, query, limit)
}

// ListTop returns the top N skills by stars.
func (s *SkillStore) ListTop(ctx context.Context, limit int) ([]Skill, error) {
	query := fmt.Sprintf(`SELECT %s FROM skills WHERE visibility = 'public' AND tier != 'archived' ORDER BY stars DESC LIMIT $1`, skillColumns)
	return s.queryList(ctx, query, limit)
}

// ListRecent returns the N most recently indexed skills.
func (s *SkillStore) ListRecent(ctx context.Context, limit int) ([]Skill, error) {
	query := fmt.Sprintf(`SELECT %s FROM skills WHERE visibility = 'public' AND tier != 'archived' ORDER BY indexed_at DESC LIMIT $1`, skillColumns)
	return s.queryList(ctx, query, limit)
}

// ListByIDs returns the skills with the given ids, or nil when ids is empty.
func (s *SkillStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Skill, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM skills WHERE id = ANY($1)`, skillColumns)
	return s.queryList(ctx, query, ids)
}

// ListAllActive returns every skill not archived, for Phase B recomputation.
// It loads the whole set in one query; there is no paged variant.
func (s *SkillStore) ListAllActive(ctx context.Context) ([]Skill, error) {
	query := fmt.Sprintf(`SELECT %s FROM skills WHERE tier != 'archived'`, skillColumns)
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing active skills: %w", err)
	}
	defer rows.Close()
	return scanSkills(rows)
}

func (s *SkillStore) queryList(ctx context.Context, query string, arg any) ([]Skill, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying skills: %w", err)
	}
	defer rows.Close()
	return scanSkills(rows)
}

// ReplaceSkillCategories atomically replaces the category set for a skill.
func (s *SkillStore) ReplaceSkillCategories(ctx context.Context, skillID uuid.UUID, categorySlugs []string) error {
	if len(categorySlugs) == 0 {
		return fmt.Errorf("replacing skill categories: at least one category required")
	}
	_, err := s.db.Exec(ctx, `DELETE FROM skill_categories WHERE skill_id = $1`, skillID)
	if err != nil {
		return fmt.Errorf("clearing skill categories: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO skill_categories (skill_id, category_slug)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING`, skillID, categorySlugs)
	if err != nil {
		return fmt.Errorf("inserting skill categories: %w", err)
	}
	return nil
}

// GetSkillCategories returns the category slugs attached to a skill.
func (s *SkillStore) GetSkillCategories(ctx context.Context, skillID uuid.UUID) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT category_slug FROM skill_categories WHERE skill_id = $1`, skillID)
	if err != nil {
		return nil, fmt.Errorf("fetching skill categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		out = append(out, slug)
	}
	return out, rows.Err()
}

// GetStarSnapshots returns the compressed star history for a skill.
func (s *SkillStore) GetStarSnapshots(ctx context.Context, id uuid.UUID) ([]StarSnapshot, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT star_snapshots FROM skills WHERE id = $1`, id).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("fetching star snapshots: %w", err)
	}
	var snaps []StarSnapshot
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &snaps); err != nil {
			return nil, fmt.Errorf("decoding star snapshots: %w", err)
		}
	}
	return snaps, nil
}

// DeleteSkill removes a skill and its dependent rows: categories, favorites,
// and per-skill permission grants. Object-store cleanup is the caller's
// responsibility (the row delete happens last).
func (s *SkillStore) DeleteSkill(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM skill_categories WHERE skill_id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting skill categories: %w", err)
	}
	_, err = s.db.Exec(ctx, `DELETE FROM favorites WHERE skill_id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting favorites: %w", err)
	}
	_, err = s.db.Exec(ctx, `DELETE FROM skill_permissions WHERE skill_id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting skill permissions: %w", err)
	}
	_, err = s.db.Exec(ctx, `DELETE FROM skills WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting skill: %w", err)
	}
	return nil
}

func scanSkill(row pgx.Row) (Skill, error) {
	var sk Skill
	var snapshots []byte
	err := row.Scan(
		&sk.ID, &sk.Slug, &sk.Name, &sk.Description, &sk.RepoOwner, &sk.RepoName, &sk.SkillPath,
		&sk.GithubURL, &sk.Stars, &sk.Forks, &sk.TrendingScore, &sk.IndexedAt, &sk.UpdatedAt, &sk.LastCommitAt,
		&sk.Readme, &sk.FileStructure, &snapshots, &sk.Visibility, &sk.SourceType, &sk.Tier, &sk.OwnerID,
		&sk.OrgID, &sk.ContentHash, &sk.License, &sk.LastIngestError,
	)
	if err != nil {
		return Skill{}, err
	}
	if len(snapshots) > 0 {
		if err := json.Unmarshal(snapshots, &sk.StarSnapshots); err != nil {
			return Skill{}, fmt.Errorf("decoding star snapshots: %w", err)
		}
	}
	return sk, nil
}

func scanSkills(rows pgx.Rows) ([]Skill, error) {
	var out []Skill
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

func toAnySlice(ids []uuid.UUID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
