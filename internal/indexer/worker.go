// Package indexer implements the indexing worker (C5): consumes candidate
// (owner, repo) pairs from the event poller's stream, discovers SKILL.md
// files, parses and validates frontmatter, and persists skill/author rows.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/skillnest/registry/internal/apierr"
	"github.com/skillnest/registry/internal/contentcache"
	"github.com/skillnest/registry/internal/poller"
	"github.com/skillnest/registry/internal/sourcehost"
	"github.com/skillnest/registry/internal/store"
	"github.com/skillnest/registry/internal/telemetry"
	"github.com/skillnest/registry/pkg/skillid"
)

const (
	// ClassificationStream is the Redis Stream C6 consumes from.
	ClassificationStream = "registry:classification"

	consumerGroup  = "indexing-workers"
	lockTTL        = 2 * time.Minute
	needsUpdateTTL = 24 * time.Hour
)

// ClassificationMessage is enqueued for every successfully ingested skill.
// JobID is a ULID, giving the classification stream the same sortable
// message identity as the indexing stream.
type ClassificationMessage struct {
	JobID       string `json:"jobId"`
	SkillID     string `json:"skillId"`
	Content     string `json:"content"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Worker consumes indexing messages and persists skill/author rows.
type Worker struct {
	client     *sourcehost.Client
	rdb        *redis.Client
	skills     *store.SkillStore
	authors    *store.AuthorStore
	cache      *contentcache.LRU
	logger     *slog.Logger
	consumerID string
}

// New creates an indexing Worker.
func New(client *sourcehost.Client, rdb *redis.Client, skills *store.SkillStore, authors *store.AuthorStore, cache *contentcache.LRU, logger *slog.Logger, consumerID string) *Worker {
	return &Worker{
		client:     client,
		rdb:        rdb,
		skills:     skills,
		authors:    authors,
		cache:      cache,
		logger:     logger,
		consumerID: consumerID,
	}
}

// Run consumes poller.IndexingStream under a shared consumer group until ctx
// is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.rdb.XGroupCreateMkStream(ctx, poller.IndexingStream, consumerGroup, "$").Err(); err != nil &&
		!isBusyGroupErr(err) {
		return fmt.Errorf("creating indexing consumer group: %w", err)
	}

	w.logger.Info("indexing worker started", "consumer", w.consumerID)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("indexing worker stopped")
			return nil
		default:
		}

		// Re-claim messages a failed attempt left unacked once they have sat
		// idle for lockTTL, so they are processed again.
		claimed, _, err := w.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   poller.IndexingStream,
			Group:    consumerGroup,
			Consumer: w.consumerID,
			MinIdle:  lockTTL,
			Start:    "0-0",
			Count:    10,
		}).Result()
		if err == nil {
			for _, msg := range claimed {
				w.handleMessage(ctx, msg)
			}
		}

		streams, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: w.consumerID,
			Streams:  []string{poller.IndexingStream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			w.logger.Error("reading indexing stream", "error", err)
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				w.handleMessage(ctx, msg)
			}
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg redis.XMessage) {
	raw, _ := msg.Values["payload"].(string)
	var im poller.IndexMessage
	if err := json.Unmarshal([]byte(raw), &im); err != nil {
		w.logger.Error("decoding indexing message", "id", msg.ID, "error", err)
		w.ack(ctx, msg.ID)
		return
	}

	start := time.Now()
	err := w.ProcessRepo(ctx, im.Owner, im.Repo)
	telemetry.IndexDuration.WithLabelValues("repo").Observe(time.Since(start).Seconds())

	if err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) && !apiErr.Kind.IsRetryable() {
			w.logger.Warn("indexing message failed permanently", "owner", im.Owner, "repo", im.Repo, "error", err)
			telemetry.SkillsIndexedTotal.WithLabelValues("failed").Inc()
			w.ack(ctx, msg.ID)
			return
		}
		w.logger.Warn("indexing message failed, will retry", "owner", im.Owner, "repo", im.Repo, "error", err)
		return // leave unacked for redelivery
	}

	w.ack(ctx, msg.ID)
}

func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.rdb.XAck(ctx, poller.IndexingStream, consumerGroup, id).Err(); err != nil {
		w.logger.Warn("acking indexing message", "id", id, "error", err)
	}
}

// ProcessRepo ingests every SKILL.md candidate found in (owner, repo). It
// serializes per-coordinate writes via a short-TTL KV lock so two
// concurrent ingests of the same repository can never race the
// author-skills-count invariant.
func (w *Worker) ProcessRepo(ctx context.Context, owner, repo string) error {
	lockKey := fmt.Sprintf("lock:skill:%s/%s", owner, repo)
	acquired, err := w.rdb.SetNX(ctx, lockKey, w.consumerID, lockTTL).Result()
	if err != nil {
		return apierr.Wrap(apierr.KindTransient, "acquiring per-repo lock", err)
	}
	if !acquired {
		w.logger.Debug("repo already being indexed, skipping", "owner", owner, "repo", repo)
		return nil
	}
	defer w.rdb.Del(ctx, lockKey)

	meta, status, err := w.fetchRepoMeta(ctx, owner, repo)
	if err != nil {
		return apierr.Wrap(apierr.KindUpstreamUnavailable, "fetching repo metadata", err)
	}
	if status == http.StatusNotFound {
		if err := w.skills.MarkArchivedByCoordinate(ctx, owner, repo); err != nil {
			return apierr.Wrap(apierr.KindInternal, "marking repo archived", err)
		}
		return nil
	}
	if status != http.StatusOK {
		return apierr.New(apierr.KindUpstreamUnavailable, fmt.Sprintf("repo metadata fetch returned %d", status))
	}

	candidates, err := w.discoverSkillFiles(ctx, owner, repo)
	if err != nil {
		return apierr.Wrap(apierr.KindUpstreamUnavailable, "discovering SKILL.md candidates", err)
	}

	author, err := w.fetchAuthorProfile(ctx, owner)
	if err != nil {
		w.logger.Warn("fetching author profile failed, continuing with minimal profile", "owner", owner, "error", err)
		author = authorProfile{Login: owner, Type: "User"}
	}

	for _, candidatePath := range candidates {
		if err := w.ingestCandidate(ctx, owner, repo, candidatePath, meta, author); err != nil {
			w.logger.Warn("ingesting candidate failed", "owner", owner, "repo", repo, "path", candidatePath, "error", err)
		}
	}

	return nil
}

func (w *Worker) ingestCandidate(ctx context.Context, owner, repo, candidatePath string, meta repoMeta, author authorProfile) error {
	content, status, err := w.getFileContent(ctx, owner, repo, candidatePath)
	if err != nil {
		return fmt.Errorf("fetching %q: %w", candidatePath, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("fetching %q: unexpected status %d", candidatePath, status)
	}

	fm, ok := parseFrontmatter(content)
	if !ok || !fm.isValid() {
		w.logger.Warn("skipping invalid SKILL.md candidate", "owner", owner, "repo", repo, "path", candidatePath)
		return nil
	}

	skillPath := skillDirOf(candidatePath)
	slug := w.resolveSlug(ctx, owner, repo, skillPath)

	objectKey := contentcache.HostedSkillKey(owner, repo, skillPath)
	contentHash, err := w.cache.Put(ctx, objectKey, content)
	if err != nil {
		return fmt.Errorf("storing canonical content for %q: %w", candidatePath, err)
	}

	existing, findErr := w.skills.FindSkillByCoordinate(ctx, owner, repo, skillPath)
	isNewSkill := findErr != nil

	sk := store.Skill{
		Slug:          slug,
		Name:          fm.Name,
		Description:   fm.Description,
		RepoOwner:     owner,
		RepoName:      repo,
		SkillPath:     skillPath,
		GithubURL:     fmt.Sprintf("https://github.com/%s/%s", owner, repo),
		Stars:         meta.Stars,
		Forks:         meta.Forks,
		LastCommitAt:  timePtr(meta.PushedAt),
		Visibility:    store.VisibilityPublic,
		SourceType:    store.SourceTypeHosted,
		Tier:          store.TierHot,
		ContentHash:   contentHash,
	}
	if !isNewSkill {
		sk.ID = existing.ID
		sk.Visibility = existing.Visibility
		sk.OwnerID = existing.OwnerID
		sk.OrgID = existing.OrgID
		sk.License = existing.License
	}

	if err := w.skills.UpsertSkill(ctx, &sk); err != nil {
		return fmt.Errorf("upserting skill: %w", err)
	}

	if _, err := w.authors.FindAuthorByUsername(ctx, owner); err != nil {
		a := store.Author{
			Username:    author.Login,
			GithubID:    author.ID,
			DisplayName: author.Name,
			AvatarURL:   author.AvatarURL,
			Bio:         author.Bio,
			Type:        store.AuthorType(author.Type),
			Blog:        author.Blog,
			Location:    author.Location,
		}
		if err := w.authors.UpsertAuthor(ctx, &a); err != nil {
			return fmt.Errorf("upserting author: %w", err)
		}
	}
	if isNewSkill {
		if err := w.authors.IncrementSkillsCount(ctx, owner); err != nil {
			w.logger.Warn("incrementing author skills count", "owner", owner, "error", err)
		}
	}

	if err := w.rdb.Set(ctx, "needs_update:"+sk.ID.String(), "1", needsUpdateTTL).Err(); err != nil {
		w.logger.Warn("marking skill needs-update", "skill_id", sk.ID, "error", err)
	}

	if err := w.enqueueClassification(ctx, sk.ID.String(), string(content), fm.Name, fm.Description); err != nil {
		w.logger.Warn("enqueuing classification message", "skill_id", sk.ID, "error", err)
	}

	telemetry.SkillsIndexedTotal.WithLabelValues("success").Inc()
	return nil
}

// resolveSlug computes the canonical slug, disambiguating against an
// existing skill of a different identity at the same slug.
func (w *Worker) resolveSlug(ctx context.Context, owner, repo, skillPath string) string {
	base := skillid.FormatSkillSlug(owner, repo, skillPath)
	return skillid.Disambiguate(base, func(candidate string) bool {
		existing, err := w.skills.FindSkillBySlug(ctx, candidate)
		if err != nil {
			return false
		}
		return existing.RepoOwner != owner || existing.RepoName != repo || existing.SkillPath != skillPath
	})
}

func (w *Worker) enqueueClassification(ctx context.Context, skillID, content, name, description string) error {
	msg := ClassificationMessage{
		JobID:       ulid.Make().String(),
		SkillID:     skillID,
		Content:     content,
		Name:        name,
		Description: description,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling classification message: %w", err)
	}
	return w.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: ClassificationStream,
		Values: map[string]any{"payload": payload},
	}).Err()
}

func isBusyGroupErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
