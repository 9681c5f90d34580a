// Package lifecycle implements the lifecycle manager (C8): tier sweep
// between hot/cold/archived, and resurrection checks triggered by a
// download request.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/skillnest/registry/internal/sourcehost"
	"github.com/skillnest/registry/internal/store"
)

const (
	// coldAfter is "no activity for a quarter".
	coldAfter = 90 * 24 * time.Hour
	// archivedAfter is "long-dormant" in the absence of a 404 from the host.
	archivedAfter = 365 * 24 * time.Hour

	// resurrectionStarThreshold and resurrectionActivityWindow implement
	// §4.8(b): a download-triggered freshness check resurrects a
	// cold/archived skill when either condition holds.
	resurrectionStarThreshold = 20
	resurrectionActivityWindow = 90 * 24 * time.Hour
)

type repoMeta struct {
	PushedAt time.Time `json:"pushed_at"`
	Stars    int       `json:"stargazers_count"`
}

// Manager is the C8 background worker, also callable inline on download.
type Manager struct {
	client   *sourcehost.Client
	skills   *store.SkillStore
	logger   *slog.Logger
	interval time.Duration
}

// New creates a lifecycle Manager.
func New(client *sourcehost.Client, skills *store.SkillStore, logger *slog.Logger, interval time.Duration) *Manager {
	return &Manager{client: client, skills: skills, logger: logger, interval: interval}
}

// Run ticks Sweep every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("lifecycle manager started", "interval", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("lifecycle manager stopped")
			return nil
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				m.logger.Error("lifecycle sweep", "error", err)
			}
		}
	}
}

// Sweep recomputes tiers for every non-archived skill based on commit
// recency alone. It makes no source-host fetch and does not look at
// archived skills, so it never resurrects an archived skill.
func (m *Manager) Sweep(ctx context.Context) error {
	skills, err := m.skills.ListAllActive(ctx)
	if err != nil {
		return fmt.Errorf("listing active skills for lifecycle sweep: %w", err)
	}

	now := time.Now()
	for _, sk := range skills {
		want := tierForActivity(sk.LastCommitAt, now)
		if want != sk.Tier {
			if err := m.skills.SetTier(ctx, sk.ID, want); err != nil {
				m.logger.Warn("setting tier", "skill_id", sk.ID, "error", err)
			}
		}
	}

	return nil
}

// tierForActivity maps last-commit recency onto hot/cold/archived.
func tierForActivity(lastCommitAt *time.Time, now time.Time) store.Tier {
	if lastCommitAt == nil {
		return store.TierHot
	}
	age := now.Sub(*lastCommitAt)
	switch {
	case age >= archivedAfter:
		return store.TierArchived
	case age >= coldAfter:
		return store.TierCold
	default:
		return store.TierHot
	}
}

// CheckResurrection fetches the repo metadata of a cold/archived skill and,
// when the fetch returns 200, moves the skill back to hot if it has at least
// resurrectionStarThreshold stars or commit activity within
// resurrectionActivityWindow. A 200 alone does not resurrect; any other
// status or fetch error leaves the tier unchanged. Called by the registry's
// download handler in a background goroutine.
func (m *Manager) CheckResurrection(ctx context.Context, id uuid.UUID) error {
	sk, err := m.skills.FindSkillByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading skill %s: %w", id, err)
	}
	if sk.Tier == store.TierHot {
		return nil
	}

	meta, status, err := m.fetchRepoMeta(ctx, sk.RepoOwner, sk.RepoName)
	if err != nil {
		return nil // best-effort: upstream unavailability never blocks a download
	}
	if status == http.StatusNotFound {
		return nil
	}
	if status != http.StatusOK {
		return nil
	}

	resurrect := meta.Stars >= resurrectionStarThreshold || time.Since(meta.PushedAt) <= resurrectionActivityWindow
	if !resurrect {
		return nil
	}

	return m.skills.SetTier(ctx, id, store.TierHot)
}

func (m *Manager) fetchRepoMeta(ctx context.Context, owner, repo string) (repoMeta, int, error) {
	body, status, err := m.client.Do(ctx, sourcehost.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/repos/%s/%s", owner, repo),
	})
	if err != nil {
		return repoMeta{}, status, err
	}
	if status != http.StatusOK {
		return repoMeta{}, status, nil
	}
	var meta repoMeta
	if err := json.Unmarshal(body, &meta); err != nil {
		return repoMeta{}, status, fmt.Errorf("decoding repo metadata: %w", err)
	}
	return meta, status, nil
}
