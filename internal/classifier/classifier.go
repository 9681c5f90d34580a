// Package classifier implements the classification worker (C6): it scores
// a skill's predefined-category keyword matches, optionally asks a text
// model provider for suggestions, and atomically replaces the skill's
// category set.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/skillnest/registry/internal/indexer"
	"github.com/skillnest/registry/internal/store"
	"github.com/skillnest/registry/internal/telemetry"
)

const (
	consumerGroup = "classification-workers"

	// maxContentExcerpt bounds how much of a skill's content feeds the
	// keyword pass and the suggestion prompt.
	maxContentExcerpt = 4096

	// keywordScoreThreshold is the minimum hit count for a predefined
	// category to pass the keyword stage.
	keywordScoreThreshold = 1

	maxCategories = 5
)

// Classifier consumes classification messages and assigns categories.
type Classifier struct {
	rdb        *redis.Client
	skills     *store.SkillStore
	categories *store.CategoryStore
	provider   *SuggestionProvider
	logger     *slog.Logger
	consumerID string
}

// New creates a Classifier. provider may be nil, in which case only the
// keyword pass runs.
func New(rdb *redis.Client, skills *store.SkillStore, categories *store.CategoryStore, provider *SuggestionProvider, logger *slog.Logger, consumerID string) *Classifier {
	return &Classifier{
		rdb:        rdb,
		skills:     skills,
		categories: categories,
		provider:   provider,
		logger:     logger,
		consumerID: consumerID,
	}
}

// Run consumes indexer.ClassificationStream under a shared consumer group
// until ctx is cancelled.
func (c *Classifier) Run(ctx context.Context) error {
	if err := c.rdb.XGroupCreateMkStream(ctx, indexer.ClassificationStream, consumerGroup, "$").Err(); err != nil &&
		!isBusyGroupErr(err) {
		return fmt.Errorf("creating classification consumer group: %w", err)
	}

	c.logger.Info("classification worker started", "consumer", c.consumerID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("classification worker stopped")
			return nil
		default:
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: c.consumerID,
			Streams:  []string{indexer.ClassificationStream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			c.logger.Error("reading classification stream", "error", err)
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				c.handleMessage(ctx, msg)
			}
		}
	}
}

func (c *Classifier) handleMessage(ctx context.Context, msg redis.XMessage) {
	raw, _ := msg.Values["payload"].(string)
	var cm indexer.ClassificationMessage
	if err := json.Unmarshal([]byte(raw), &cm); err != nil {
		c.logger.Error("decoding classification message", "id", msg.ID, "error", err)
		c.ack(ctx, msg.ID)
		return
	}

	start := time.Now()
	err := c.ClassifySkill(ctx, cm)
	telemetry.ClassificationDuration.WithLabelValues("classify_skill").Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Warn("classifying skill failed", "skill_id", cm.SkillID, "error", err)
	}
	c.ack(ctx, msg.ID)
}

func (c *Classifier) ack(ctx context.Context, id string) {
	if err := c.rdb.XAck(ctx, indexer.ClassificationStream, consumerGroup, id).Err(); err != nil {
		c.logger.Warn("acking classification message", "id", id, "error", err)
	}
}

// scored is a category slug with its combined keyword+suggestion score.
type scored struct {
	slug  string
	name  string
	score float64
}

// ClassifySkill runs the 3-step classification algorithm for one skill and
// atomically replaces its category set.
func (c *Classifier) ClassifySkill(ctx context.Context, msg indexer.ClassificationMessage) error {
	skillID, err := uuid.Parse(msg.SkillID)
	if err != nil {
		return fmt.Errorf("parsing skill id %q: %w", msg.SkillID, err)
	}

	excerpt := msg.Content
	if len(excerpt) > maxContentExcerpt {
		excerpt = excerpt[:maxContentExcerpt]
	}
	haystack := strings.ToLower(msg.Name + " " + msg.Description + " " + excerpt)

	byslug := map[string]*scored{}
	for _, kc := range predefinedKeywords {
		hits := countKeywordHits(haystack, kc.Keywords)
		if hits >= keywordScoreThreshold {
			byslug[kc.Slug] = &scored{slug: kc.Slug, name: kc.Slug, score: float64(hits)}
		}
	}

	if c.provider != nil {
		suggestions, err := c.provider.Suggest(ctx, msg.Name, msg.Description, excerpt)
		if err != nil {
			c.logger.Warn("suggestion pass failed, falling back to keyword pass", "skill_id", msg.SkillID, "error", err)
		} else {
			for _, sug := range suggestions {
				if sug.Slug == "" {
					continue
				}
				if !isPredefinedSlug(sug.Slug) {
					if err := c.categories.EnsureAISuggestedCategory(ctx, sug.Slug, sug.Name); err != nil {
						c.logger.Warn("ensuring ai-suggested category", "slug", sug.Slug, "error", err)
						telemetry.ClassificationSuggestionsTotal.WithLabelValues("false").Inc()
						continue
					}
				}
				telemetry.ClassificationSuggestionsTotal.WithLabelValues("true").Inc()
				if existing, ok := byslug[sug.Slug]; ok {
					existing.score += sug.Score * 10 // suggestion scores (0..1) weighted to compete with integer keyword hit counts
				} else {
					byslug[sug.Slug] = &scored{slug: sug.Slug, name: sug.Name, score: sug.Score * 10}
				}
			}
		}
	}

	slugs := rankAndTruncate(byslug, maxCategories)
	if len(slugs) == 0 {
		slugs = []string{OtherCategory}
	}

	if err := c.skills.ReplaceSkillCategories(ctx, skillID, slugs); err != nil {
		return fmt.Errorf("replacing categories for skill %s: %w", msg.SkillID, err)
	}
	return nil
}

func countKeywordHits(haystack string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		hits += strings.Count(haystack, strings.ToLower(kw))
	}
	return hits
}

func isPredefinedSlug(slug string) bool {
	for _, kc := range predefinedKeywords {
		if kc.Slug == slug {
			return true
		}
	}
	return false
}

func rankAndTruncate(byslug map[string]*scored, limit int) []string {
	list := make([]scored, 0, len(byslug))
	for _, s := range byslug {
		list = append(list, *s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].slug < list[j].slug
	})
	if len(list) > limit {
		list = list[:limit]
	}
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.slug
	}
	return out
}

func isBusyGroupErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}
