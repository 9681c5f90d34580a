package skillid

import (
	"fmt"
	"regexp"
	"strings"
)

// Source is a parsed repository coordinate: which source host, and the
// owner/repo pair on it.
type Source struct {
	Host  string // e.g. "github.com"
	Owner string
	Repo  string
}

var (
	httpsURLPattern = regexp.MustCompile(`^https?://([^/]+)/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	sshURLPattern   = regexp.MustCompile(`^git@([^:]+):([^/]+)/([^/]+?)(?:\.git)?$`)
	shorthandPattern = regexp.MustCompile(`^([^/\s]+)/([^/\s]+)$`)
)

const defaultHost = "github.com"

// ParseSource accepts any of the shorthand ("owner/repo"), HTTPS URL, or SSH
// URL forms and returns the underlying coordinate.
func ParseSource(s string) (Source, error) {
	s = strings.TrimSpace(s)

	if m := httpsURLPattern.FindStringSubmatch(s); m != nil {
		return Source{Host: m[1], Owner: m[2], Repo: m[3]}, nil
	}
	if m := sshURLPattern.FindStringSubmatch(s); m != nil {
		return Source{Host: m[1], Owner: m[2], Repo: m[3]}, nil
	}
	if m := shorthandPattern.FindStringSubmatch(s); m != nil {
		return Source{Host: defaultHost, Owner: m[1], Repo: m[2]}, nil
	}

	return Source{}, fmt.Errorf("unrecognized source coordinate %q", s)
}

// FormatSource renders the canonical text form of a Source: the owner/repo
// shorthand for the default host, an HTTPS URL otherwise. Round-tripping
// this through ParseSource always yields the same Source value, for any of
// the forms ParseSource accepts as input to begin with.
func FormatSource(src Source) string {
	if src.Host != "" && src.Host != defaultHost {
		return fmt.Sprintf("https://%s/%s/%s", src.Host, src.Owner, src.Repo)
	}
	return fmt.Sprintf("%s/%s", src.Owner, src.Repo)
}
