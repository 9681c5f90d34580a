package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skillnest/registry/internal/contentcache"
	"github.com/skillnest/registry/internal/store"
)

// cacheListEntry is one row of a regenerated cache-list blob.
type cacheListEntry struct {
	ID            string  `json:"id"`
	Slug          string  `json:"slug"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	RepoOwner     string  `json:"repoOwner"`
	RepoName      string  `json:"repoName"`
	Stars         int     `json:"stars"`
	TrendingScore float64 `json:"trendingScore"`
	AuthorAvatar  string  `json:"authorAvatar,omitempty"`
}

// cacheList is the envelope written to each cache/*.json object.
type cacheList struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Items       []cacheListEntry `json:"items"`
}

// regenerateCacheLists recomputes the trending, top, and recent lists and
// writes each as a cache/*.json blob to the object store.
func (e *Engine) regenerateCacheLists(ctx context.Context, now time.Time) error {
	trending, err := e.skills.ListTrending(ctx, cacheListLimit)
	if err != nil {
		return fmt.Errorf("listing trending skills: %w", err)
	}
	if err := e.writeCacheList(ctx, "trending", trending, now); err != nil {
		return err
	}

	top, err := e.skills.ListTop(ctx, cacheListLimit)
	if err != nil {
		return fmt.Errorf("listing top skills: %w", err)
	}
	if err := e.writeCacheList(ctx, "top", top, now); err != nil {
		return err
	}

	recent, err := e.skills.ListRecent(ctx, cacheListLimit)
	if err != nil {
		return fmt.Errorf("listing recent skills: %w", err)
	}
	return e.writeCacheList(ctx, "recent", recent, now)
}

func (e *Engine) writeCacheList(ctx context.Context, name string, skills []store.Skill, now time.Time) error {
	items := make([]cacheListEntry, len(skills))
	avatars := map[string]string{}
	for i, sk := range skills {
		avatar, ok := avatars[sk.RepoOwner]
		if !ok {
			if author, err := e.authors.FindAuthorByUsername(ctx, sk.RepoOwner); err == nil {
				avatar = author.AvatarURL
			}
			avatars[sk.RepoOwner] = avatar
		}
		items[i] = cacheListEntry{
			ID:            sk.ID.String(),
			Slug:          sk.Slug,
			Name:          sk.Name,
			Description:   sk.Description,
			RepoOwner:     sk.RepoOwner,
			RepoName:      sk.RepoName,
			Stars:         sk.Stars,
			TrendingScore: sk.TrendingScore,
			AuthorAvatar:  avatar,
		}
	}

	payload, err := json.Marshal(cacheList{GeneratedAt: now, Items: items})
	if err != nil {
		return fmt.Errorf("marshaling %s cache list: %w", name, err)
	}

	if _, err := e.objects.Put(ctx, contentcache.CacheListKey(name), payload); err != nil {
		return fmt.Errorf("writing %s cache list: %w", name, err)
	}
	return nil
}
