// Package ranking implements the ranking engine (C7): hourly recomputation
// of trending scores, star-snapshot compression, and cache-list
// regeneration.
package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/skillnest/registry/internal/contentcache"
	"github.com/skillnest/registry/internal/sourcehost"
	"github.com/skillnest/registry/internal/store"
	"github.com/skillnest/registry/internal/telemetry"
)

const (
	needsUpdatePattern = "needs_update:*"
	runLockKey         = "lock:ranking-run"
	runLockTTL         = 10 * time.Minute

	cacheListLimit = 50
)

type repoMeta struct {
	PushedAt time.Time `json:"pushed_at"`
	Stars    int       `json:"stargazers_count"`
	Forks    int       `json:"forks_count"`
}

// Engine is the C7 background worker.
type Engine struct {
	client   *sourcehost.Client
	rdb      *redis.Client
	skills   *store.SkillStore
	authors  *store.AuthorStore
	objects  contentcache.ObjectStore
	logger   *slog.Logger
	interval time.Duration
}

// New creates a ranking Engine.
func New(client *sourcehost.Client, rdb *redis.Client, skills *store.SkillStore, authors *store.AuthorStore, objects contentcache.ObjectStore, logger *slog.Logger, interval time.Duration) *Engine {
	return &Engine{client: client, rdb: rdb, skills: skills, authors: authors, objects: objects, logger: logger, interval: interval}
}

// Run ticks Tick every interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("ranking engine started", "interval", e.interval)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("ranking engine stopped")
			return nil
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil {
				e.logger.Error("ranking engine tick", "error", err)
			}
		}
	}
}

// Tick runs Phase A (marked updates) then Phase B (score recomputation),
// then regenerates the cache-list blobs. A short-TTL KV run lock makes
// concurrent ticks (e.g. during a slow run plus a new ticker fire)
// mutually exclusive.
func (e *Engine) Tick(ctx context.Context) error {
	acquired, err := e.rdb.SetNX(ctx, runLockKey, "1", runLockTTL).Result()
	if err != nil {
		return fmt.Errorf("acquiring ranking run lock: %w", err)
	}
	if !acquired {
		e.logger.Info("ranking engine tick skipped, previous run still holds the lock")
		return nil
	}
	defer e.rdb.Del(ctx, runLockKey)

	now := time.Now()

	if err := e.phaseA(ctx, now); err != nil {
		e.logger.Error("ranking phase A", "error", err)
	}
	if err := e.phaseB(ctx, now); err != nil {
		e.logger.Error("ranking phase B", "error", err)
	}
	if err := e.regenerateCacheLists(ctx, now); err != nil {
		e.logger.Error("ranking cache-list regeneration", "error", err)
	}
	return nil
}

// phaseA refreshes stars/forks/pushedAt from the source host for every
// skill marked needs_update by the indexing worker.
func (e *Engine) phaseA(ctx context.Context, now time.Time) error {
	ids, err := e.scanNeedsUpdate(ctx)
	if err != nil {
		return fmt.Errorf("scanning needs_update markers: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	var updates []store.ScoreUpdate
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			e.rdb.Del(ctx, "needs_update:"+idStr)
			continue
		}

		sk, err := e.skills.FindSkillByID(ctx, id)
		if err != nil {
			e.rdb.Del(ctx, "needs_update:"+idStr)
			continue
		}

		meta, status, err := e.fetchRepoMeta(ctx, sk.RepoOwner, sk.RepoName)
		if err != nil {
			e.logger.Warn("phase A: fetching repo metadata failed", "skill_id", idStr, "error", err)
			continue
		}
		if status != http.StatusOK {
			continue
		}

		snapshots := appendSnapshotIfChanged(sk.StarSnapshots, meta.Stars, now)
		before := len(snapshots)
		snapshots = compressSnapshots(snapshots, now)
		if before > len(snapshots) {
			telemetry.RankingSnapshotsPrunedTotal.Add(float64(before - len(snapshots)))
		}

		var lastCommit *time.Time
		if !meta.PushedAt.IsZero() {
			t := meta.PushedAt
			lastCommit = &t
		}

		score := computeScore(meta.Stars, snapshots, sk.IndexedAt, lastCommit, now)

		updates = append(updates, store.ScoreUpdate{
			ID:            id,
			TrendingScore: score,
			Stars:         meta.Stars,
			Forks:         meta.Forks,
			StarSnapshots: snapshots,
			LastCommitAt:  lastCommit,
		})

		e.rdb.Del(ctx, "needs_update:"+idStr)
	}

	if len(updates) == 0 {
		return nil
	}
	if err := e.skills.BulkUpdateScores(ctx, updates); err != nil {
		return fmt.Errorf("writing phase A updates: %w", err)
	}
	telemetry.RankingScoreUpdatesTotal.Add(float64(len(updates)))
	return nil
}

// phaseB recomputes trendingScore for every active skill from cached data,
// writing back only rows whose score moved by more than 0.01.
func (e *Engine) phaseB(ctx context.Context, now time.Time) error {
	skills, err := e.skills.ListAllActive(ctx)
	if err != nil {
		return fmt.Errorf("listing active skills: %w", err)
	}

	var updates []store.ScoreUpdate
	for _, sk := range skills {
		score := computeScore(sk.Stars, sk.StarSnapshots, sk.IndexedAt, sk.LastCommitAt, now)
		if abs(score-sk.TrendingScore) <= 0.01 {
			continue
		}
		updates = append(updates, store.ScoreUpdate{
			ID:            sk.ID,
			TrendingScore: score,
			Stars:         sk.Stars,
			Forks:         sk.Forks,
			StarSnapshots: sk.StarSnapshots,
			LastCommitAt:  sk.LastCommitAt,
		})
	}

	if len(updates) == 0 {
		return nil
	}
	if err := e.skills.BulkUpdateScores(ctx, updates); err != nil {
		return fmt.Errorf("writing phase B updates: %w", err)
	}
	telemetry.RankingScoreUpdatesTotal.Add(float64(len(updates)))
	return nil
}

func (e *Engine) scanNeedsUpdate(ctx context.Context) ([]string, error) {
	var ids []string
	iter := e.rdb.Scan(ctx, 0, needsUpdatePattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ids = append(ids, key[len("needs_update:"):])
	}
	return ids, iter.Err()
}

func (e *Engine) fetchRepoMeta(ctx context.Context, owner, repo string) (repoMeta, int, error) {
	body, status, err := e.client.Do(ctx, sourcehost.Request{
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

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
