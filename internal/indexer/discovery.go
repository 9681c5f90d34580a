package indexer

import (
	"context"
	"path"
	"strings"
)

// discoveryRoots are the curated starting points the indexing worker walks.
// Dot-prefixed roots here are the well-known agent-tool skill folders
// themselves, not subject to the dot-folder exclusion rule applied during
// the walk below.
var discoveryRoots = []string{
	"",
	"skills",
	"skills/.curated",
	"skills/.experimental",
	"skills/.system",
	".claude/skills",
	".cursor/skills",
	".windsurf/skills",
	".codeium/skills",
}

const maxDiscoveryDepth = 3

// discoverSkillFiles walks the curated discovery roots up to
// maxDiscoveryDepth, returning the repo-relative paths of every SKILL.md
// candidate found. The walk is recursive and depth-first, so candidates come
// back in depth-first order, not level by level. Dot-folders encountered while walking (other than the
// curated roots themselves) are excluded — they hold agent-local config,
// not standalone skills.
func (w *Worker) discoverSkillFiles(ctx context.Context, owner, repo string) ([]string, error) {
	seen := make(map[string]bool)
	var candidates []string

	for _, root := range discoveryRoots {
		if err := w.walkDir(ctx, owner, repo, root, 0, seen, &candidates); err != nil {
			return nil, err
		}
	}
	return candidates, nil
}

func (w *Worker) walkDir(ctx context.Context, owner, repo, dir string, depth int, seen map[string]bool, candidates *[]string) error {
	entries, err := w.listContents(ctx, owner, repo, dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		switch e.Type {
		case "file":
			if strings.EqualFold(e.Name, "SKILL.md") && !seen[e.Path] {
				seen[e.Path] = true
				*candidates = append(*candidates, e.Path)
			}
		case "dir":
			if strings.HasPrefix(path.Base(e.Name), ".") {
				continue
			}
			if depth+1 > maxDiscoveryDepth {
				continue
			}
			if err := w.walkDir(ctx, owner, repo, e.Path, depth+1, seen, candidates); err != nil {
				return err
			}
		}
	}
	return nil
}

// skillDirOf returns the directory portion of a SKILL.md candidate path,
// or "" when the candidate is at the repository root.
func skillDirOf(candidatePath string) string {
	dir := path.Dir(candidatePath)
	if dir == "." {
		return ""
	}
	return dir
}
