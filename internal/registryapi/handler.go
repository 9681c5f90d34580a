// Package registryapi implements the Registry Read API (C10): search,
// skill detail, download, and category listing, plus the favorites toggle.
package registryapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/skillnest/registry/internal/contentcache"
	"github.com/skillnest/registry/internal/httpserver"
	"github.com/skillnest/registry/internal/lifecycle"
	"github.com/skillnest/registry/internal/permissions"
	"github.com/skillnest/registry/internal/store"
	"github.com/skillnest/registry/internal/telemetry"
	"github.com/skillnest/registry/pkg/skillid"
)

const (
	searchCacheTTL = 60 * time.Second
)

// Handler serves the registry's public read surface.
type Handler struct {
	skills     *store.SkillStore
	categories *store.CategoryStore
	favorites  *store.FavoriteStore
	perms      *store.PermissionStore
	cache      contentcache.ObjectStore
	lifecycle  *lifecycle.Manager
	searchRdb  *redis.Client
	logger     *slog.Logger
}

// NewHandler creates a registryapi Handler. searchRdb backs the anonymous
// search result cache (handleSearch); it may be nil, in which case every
// anonymous search recomputes rather than being served from cache.
func NewHandler(skills *store.SkillStore, categories *store.CategoryStore, favorites *store.FavoriteStore, perms *store.PermissionStore, cache contentcache.ObjectStore, lc *lifecycle.Manager, searchRdb *redis.Client, logger *slog.Logger) *Handler {
	return &Handler{skills: skills, categories: categories, favorites: favorites, perms: perms, cache: cache, lifecycle: lc, searchRdb: searchRdb, logger: logger}
}

// Routes returns a chi.Router with every read-API endpoint mounted. rl may
// be nil in tests, in which case no rate limiting is applied.
func (h *Handler) Routes(rl *RateLimiter) chi.Router {
	r := chi.NewRouter()

	search := chi.NewRouter()
	search.Get("/", h.handleSearch)
	if rl != nil {
		r.With(rl.Limit).Mount("/registry/search", search)
	} else {
		r.Mount("/registry/search", search)
	}

	r.Get("/registry/skill/{owner}/{name}", h.handleSkillDetailByCoordinate)
	r.Get("/registry/skill/{identifier}", h.handleSkillDetailLegacy)
	r.Get("/skills/{slug}/download", h.handleDownload)
	r.Get("/categories", h.handleCategories)
	r.Post("/favorites", h.handleAddFavorite)
	r.Delete("/favorites", h.handleRemoveFavorite)

	return r
}

type skillSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Owner       string   `json:"owner"`
	Repo        string   `json:"repo"`
	Stars       int      `json:"stars"`
	UpdatedAt   string   `json:"updatedAt"`
	Categories  []string `json:"categories"`
	Visibility  string   `json:"visibility"`
	Slug        string   `json:"slug"`
}

type searchResponse struct {
	Skills []skillSummary `json:"skills"`
	Total  int            `json:"total"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		telemetry.SearchRequestDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())
	}()

	q := r.URL.Query()
	limit, offset, err := parseLimitOffset(q)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	accessor := AccessorFromContext(r.Context())
	includePrivate := q.Get("include_private") == "true" && !accessor.IsAnonymous()

	// Anonymous requests (the only ones where the result doesn't depend on
	// who's asking) are served from a shared Redis cache keyed on the
	// search parameters, so identical queries within the TTL window skip
	// the database entirely.
	cacheKey := ""
	if accessor.IsAnonymous() && h.searchRdb != nil {
		cacheKey = searchCacheKey(q.Get("q"), q.Get("category"), limit, offset)
		if cached, err := h.searchRdb.Get(r.Context(), cacheKey).Bytes(); err == nil {
			w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, stale-while-revalidate=30", int(searchCacheTTL.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.Write(cached)
			return
		} else if err != redis.Nil {
			h.logger.Warn("reading search cache", "error", err)
		}
	}

	var accessibleIDs []uuid.UUID
	if includePrivate {
		accessibleIDs, err = permissions.BuildAccessibleIDs(r.Context(), h.perms, accessor)
		if err != nil {
			h.logger.Error("building accessible skill ids", "error", err)
			httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to resolve access")
			return
		}
	}

	params := store.SearchParams{
		Query:           q.Get("q"),
		Category:        q.Get("category"),
		Limit:           limit,
		Offset:          offset,
		AccessibleIDs:   accessibleIDs,
		IncludeUnlisted: includePrivate,
		AccessorUserID:  accessor.UserID,
	}

	skills, total, err := h.skills.SearchSkills(r.Context(), params)
	if err != nil {
		h.logger.Error("searching skills", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "search failed")
		return
	}

	resp := searchResponse{Skills: make([]skillSummary, 0, len(skills)), Total: total}
	for _, sk := range skills {
		if !permissions.CanEnumerate(sk, accessor) {
			continue
		}
		categories, err := h.skills.GetSkillCategories(r.Context(), sk.ID)
		if err != nil {
			h.logger.Error("loading skill categories", "error", err, "skill_id", sk.ID)
			continue
		}
		resp.Skills = append(resp.Skills, toSkillSummary(sk, categories))
	}

	if accessor.IsAnonymous() {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, stale-while-revalidate=30", int(searchCacheTTL.Seconds())))
		if cacheKey != "" {
			if body, err := json.Marshal(resp); err != nil {
				h.logger.Error("marshaling search response for cache", "error", err)
			} else if err := h.searchRdb.Set(r.Context(), cacheKey, body, searchCacheTTL).Err(); err != nil {
				h.logger.Warn("writing search cache", "error", err)
			}
		}
	} else {
		w.Header().Set("Cache-Control", "private, no-cache")
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

// searchCacheKey identifies one anonymous search's cache entry by its
// exact (q, category, limit, offset) parameters.
func searchCacheKey(q, category string, limit, offset int) string {
	return fmt.Sprintf("searchcache:v1:%s:%s:%d:%d", q, category, limit, offset)
}

type skillDetail struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Owner       string   `json:"owner"`
	Repo        string   `json:"repo"`
	Stars       int      `json:"stars"`
	UpdatedAt   string   `json:"updatedAt"`
	Categories  []string `json:"categories"`
	Content     string   `json:"content"`
	GithubURL   string   `json:"githubUrl"`
	Visibility  string   `json:"visibility"`
}

func (h *Handler) handleSkillDetailByCoordinate(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")

	sk, err := h.skills.FindSkillBySlug(r.Context(), skillid.FormatSlug(owner, name))
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "skill not found")
		return
	}
	h.respondSkillDetail(w, r, sk)
}

func (h *Handler) handleSkillDetailLegacy(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	identifier = strings.TrimPrefix(identifier, "@")

	var sk store.Skill
	var err error
	if owner, name, ok := strings.Cut(identifier, "/"); ok {
		sk, err = h.skills.FindSkillByCoordinate(r.Context(), owner, name, "")
	} else {
		sk, err = h.skills.FindSkillBySlug(r.Context(), identifier)
	}
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "skill not found")
		return
	}
	h.respondSkillDetail(w, r, sk)
}

func (h *Handler) respondSkillDetail(w http.ResponseWriter, r *http.Request, sk store.Skill) {
	accessor := AccessorFromContext(r.Context())

	allowed, err := permissions.CanView(r.Context(), h.perms, sk, accessor)
	if err != nil {
		h.logger.Error("checking skill visibility", "error", err, "skill_id", sk.ID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to check access")
		return
	}
	if !allowed {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "skill not found")
		return
	}

	categories, err := h.skills.GetSkillCategories(r.Context(), sk.ID)
	if err != nil {
		h.logger.Error("loading skill categories", "error", err, "skill_id", sk.ID)
	}

	content, _, err := h.cache.Get(r.Context(), contentcache.HostedSkillKey(sk.RepoOwner, sk.RepoName, sk.SkillPath))
	if err != nil {
		h.logger.Error("loading skill content", "error", err, "skill_id", sk.ID)
	}

	if sk.Visibility == store.VisibilityPublic {
		w.Header().Set("Cache-Control", "public, max-age=300, stale-while-revalidate=60")
	} else {
		w.Header().Set("Cache-Control", "private, no-cache")
	}

	httpserver.Respond(w, http.StatusOK, skillDetail{
		Name:        sk.Name,
		Description: sk.Description,
		Owner:       sk.RepoOwner,
		Repo:        sk.RepoName,
		Stars:       sk.Stars,
		UpdatedAt:   sk.UpdatedAt.Format(time.RFC3339),
		Categories:  categories,
		Content:     string(content),
		GithubURL:   sk.GithubURL,
		Visibility:  string(sk.Visibility),
	})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	sk, err := h.skills.FindSkillBySlug(r.Context(), slug)
	if err != nil {
		telemetry.SkillDownloadsTotal.WithLabelValues("not_found").Inc()
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "skill not found")
		return
	}

	accessor := AccessorFromContext(r.Context())
	if sk.Visibility != store.VisibilityPublic {
		if accessor.IsAnonymous() || !accessor.HasScope("read") {
			telemetry.SkillDownloadsTotal.WithLabelValues("forbidden").Inc()
			httpserver.RespondError(w, http.StatusForbidden, "forbidden", "read scope required")
			return
		}
		allowed, err := permissions.CanView(r.Context(), h.perms, sk, accessor)
		if err != nil {
			h.logger.Error("checking download visibility", "error", err, "skill_id", sk.ID)
			httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to check access")
			return
		}
		if !allowed {
			telemetry.SkillDownloadsTotal.WithLabelValues("forbidden").Inc()
			httpserver.RespondError(w, http.StatusForbidden, "forbidden", "no access to this skill")
			return
		}
	}

	content, _, err := h.cache.Get(r.Context(), contentcache.HostedSkillKey(sk.RepoOwner, sk.RepoName, sk.SkillPath))
	if err != nil {
		h.logger.Error("loading skill content for download", "error", err, "skill_id", sk.ID)
		telemetry.SkillDownloadsTotal.WithLabelValues("error").Inc()
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to load skill content")
		return
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zf, err := zw.CreateHeader(&zip.FileHeader{Name: "SKILL.md", Method: zip.Store})
	if err != nil {
		telemetry.SkillDownloadsTotal.WithLabelValues("error").Inc()
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to build archive")
		return
	}
	if _, err := zf.Write(content); err != nil {
		telemetry.SkillDownloadsTotal.WithLabelValues("error").Inc()
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to build archive")
		return
	}
	if err := zw.Close(); err != nil {
		telemetry.SkillDownloadsTotal.WithLabelValues("error").Inc()
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to build archive")
		return
	}

	if err := h.favorites.RecordUserAction(r.Context(), accessor.UserID, sk.ID, "download"); err != nil {
		h.logger.Warn("recording download action", "error", err, "skill_id", sk.ID)
	}

	if h.lifecycle != nil {
		go h.checkResurrectionAsync(sk.ID)
	}

	if sk.Visibility == store.VisibilityPublic {
		w.Header().Set("Cache-Control", "public, max-age=300, stale-while-revalidate=60")
	} else {
		w.Header().Set("Cache-Control", "private, no-cache")
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, sk.Slug))
	telemetry.SkillDownloadsTotal.WithLabelValues("success").Inc()
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// checkResurrectionAsync runs the download-triggered freshness check without
// blocking the response — a slow upstream lookup should never delay a
// download the caller already has the bytes for.
func (h *Handler) checkResurrectionAsync(skillID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.lifecycle.CheckResurrection(ctx, skillID); err != nil {
		h.logger.Warn("download-triggered resurrection check failed", "error", err, "skill_id", skillID)
	}
}

type categoryResponse struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	SkillCount  int    `json:"skillCount"`
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.categories.ListWithCounts(r.Context())
	if err != nil {
		h.logger.Error("listing categories", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list categories")
		return
	}

	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryResponse{
			Slug:        c.Slug,
			Name:        c.Name,
			Description: c.Description,
			Kind:        string(c.Kind),
			SkillCount:  c.SkillCount,
		})
	}

	w.Header().Set("Cache-Control", "public, max-age=300, stale-while-revalidate=60")
	httpserver.Respond(w, http.StatusOK, out)
}

type favoriteRequest struct {
	SkillID string `json:"skill_id" validate:"required,uuid"`
}

func (h *Handler) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	h.toggleFavorite(w, r, h.favorites.Add)
}

func (h *Handler) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	h.toggleFavorite(w, r, h.favorites.Remove)
}

func (h *Handler) toggleFavorite(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID, uuid.UUID) error) {
	accessor := AccessorFromContext(r.Context())
	if accessor.IsAnonymous() || !accessor.HasScope("read") {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req favoriteRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	skillID, err := uuid.Parse(req.SkillID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid skill_id")
		return
	}

	if err := op(r.Context(), *accessor.UserID, skillID); err != nil {
		h.logger.Error("toggling favorite", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to update favorite")
		return
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}

func toSkillSummary(sk store.Skill, categories []string) skillSummary {
	return skillSummary{
		Name:        sk.Name,
		Description: sk.Description,
		Owner:       sk.RepoOwner,
		Repo:        sk.RepoName,
		Stars:       sk.Stars,
		UpdatedAt:   sk.UpdatedAt.Format(time.RFC3339),
		Categories:  categories,
		Visibility:  string(sk.Visibility),
		Slug:        sk.Slug,
	}
}

func parseLimitOffset(q map[string][]string) (int, int, error) {
	limit := httpserver.DefaultPageSize
	if v := first(q, "limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		if n > httpserver.MaxPageSize {
			n = httpserver.MaxPageSize
		}
		limit = n
	}

	offset := 0
	if v := first(q, "offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
		offset = n
	}

	return limit, offset, nil
}

func first(q map[string][]string, key string) string {
	if vs, ok := q[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}
