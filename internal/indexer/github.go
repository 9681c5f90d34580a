package indexer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/skillnest/registry/internal/sourcehost"
)

// repoMeta is the subset of repository metadata the indexing worker needs.
type repoMeta struct {
	DefaultBranch string    `json:"default_branch"`
	PushedAt      time.Time `json:"pushed_at"`
	Stars         int       `json:"stargazers_count"`
	Forks         int       `json:"forks_count"`
}

// authorProfile is the subset of a source-host account the indexing worker
// denormalizes onto the Author row.
type authorProfile struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Bio       string `json:"bio"`
	Type      string `json:"type"`
	Blog      string `json:"blog"`
	Location  string `json:"location"`
}

// contentEntry is one directory listing entry from the contents API.
type contentEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // "file" | "dir"
}

// fileContent is a single-file contents API response.
type fileContent struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (w *Worker) fetchRepoMeta(ctx context.Context, owner, repo string) (repoMeta, int, error) {
	body, status, err := w.client.Do(ctx, sourcehost.Request{
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

func (w *Worker) fetchAuthorProfile(ctx context.Context, username string) (authorProfile, error) {
	body, status, err := w.client.Do(ctx, sourcehost.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/users/%s", username),
	})
	if err != nil {
		return authorProfile{}, err
	}
	if status != http.StatusOK {
		return authorProfile{Login: username, Type: "User"}, nil
	}
	var a authorProfile
	if err := json.Unmarshal(body, &a); err != nil {
		return authorProfile{}, fmt.Errorf("decoding author profile: %w", err)
	}
	return a, nil
}

// listContents lists a repository directory. A 404 means the path doesn't
// exist and is reported as an empty, error-free listing.
func (w *Worker) listContents(ctx context.Context, owner, repo, path string) ([]contentEntry, error) {
	body, status, err := w.client.Do(ctx, sourcehost.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, path),
	})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("listing contents of %q: unexpected status %d", path, status)
	}

	var entries []contentEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		// A single-file path returns an object, not an array; that's never a
		// directory, so treat it as an empty listing rather than an error.
		return nil, nil
	}
	return entries, nil
}

// getFileContent fetches and base64-decodes a single file's content.
func (w *Worker) getFileContent(ctx context.Context, owner, repo, path string) ([]byte, int, error) {
	body, status, err := w.client.Do(ctx, sourcehost.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, path),
	})
	if err != nil {
		return nil, status, err
	}
	if status != http.StatusOK {
		return nil, status, nil
	}

	var fc fileContent
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, status, fmt.Errorf("decoding file content envelope for %q: %w", path, err)
	}
	if fc.Encoding != "base64" {
		return nil, status, fmt.Errorf("unsupported content encoding %q for %q", fc.Encoding, path)
	}
	decoded, err := base64.StdEncoding.DecodeString(stripNewlines(fc.Content))
	if err != nil {
		return nil, status, fmt.Errorf("decoding base64 content for %q: %w", path, err)
	}
	return decoded, status, nil
}

func stripNewlines(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
