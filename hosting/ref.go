package hosting

import (
	"fmt"
	"regexp"
	"strings"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// RepositoryRef identifies a hosted repository.
type RepositoryRef struct {
	Owner string
	Name  string
}

// String returns owner/name.
func (r RepositoryRef) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepositoryRef accepts owner/repo, https://github.com/owner/repo(.git),
// http URLs and git@github.com:owner/repo.git.
func ParseRepositoryRef(input string) (RepositoryRef, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return RepositoryRef{}, fmt.Errorf("empty repository reference")
	}

	switch {
	case strings.HasPrefix(s, "git@"):
		idx := strings.Index(s, ":")
		if idx == -1 {
			return RepositoryRef{}, fmt.Errorf("invalid SSH repository reference: %q", input)
		}
		s = s[idx+1:]
	case strings.HasPrefix(s, "https://"), strings.HasPrefix(s, "http://"):
		s = s[strings.Index(s, "://")+3:]
		slash := strings.Index(s, "/")
		if slash == -1 {
			return RepositoryRef{}, fmt.Errorf("repository URL has no path: %q", input)
		}
		s = s[slash+1:]
	}

	s = strings.TrimSuffix(strings.TrimSuffix(s, "/"), ".git")
	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return RepositoryRef{}, fmt.Errorf("expected owner/repo, got %q", input)
	}
	// URLs may continue with /tree/<branch> and similar; only the first two segments matter.
	ref := RepositoryRef{Owner: parts[0], Name: strings.TrimSuffix(parts[1], ".git")}
	if !namePattern.MatchString(ref.Owner) || !namePattern.MatchString(ref.Name) {
		return RepositoryRef{}, fmt.Errorf("invalid repository owner or name in %q", input)
	}
	return ref, nil
}
