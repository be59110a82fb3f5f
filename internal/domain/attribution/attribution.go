// Package attribution decides which users a build's points are credited to.
package attribution

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/okian/cigame/internal/domain/model"
)

// Policy controls how author ids are compared.
type Policy int

const (
	// CaseSensitive treats ids differing only in case as different users.
	CaseSensitive Policy = iota
	// CaseInsensitive folds ids before comparing them.
	CaseInsensitive
)

func (p Policy) String() string {
	if p == CaseInsensitive {
		return "case-insensitive"
	}
	return "case-sensitive"
}

// PolicyFor maps the configured flag to a policy.
func PolicyFor(caseSensitive bool) Policy {
	if caseSensitive {
		return CaseSensitive
	}
	return CaseInsensitive
}

// Key returns the comparison key for id under p.
func Key(id string, p Policy) string {
	if p == CaseInsensitive {
		// a Caser carries state, so one is made per call
		return cases.Fold().String(id)
	}
	return id
}

// Contributors returns the distinct authors of b's changes in order of first
// appearance. Under CaseInsensitive the first seen spelling is kept. Blank
// authors are ignored. Participation is not considered here.
func Contributors(b *model.Build, p Policy) []string {
	if b == nil || len(b.Changes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(b.Changes))
	out := make([]string, 0, len(b.Changes))
	for _, c := range b.Changes {
		id := strings.TrimSpace(c.Author)
		if id == "" {
			continue
		}
		k := Key(id, p)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, id)
	}
	return out
}
