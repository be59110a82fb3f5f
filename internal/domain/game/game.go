// Package game defines scoring scopes: the implicit default game that spans
// every project and custom games scoped to an explicit set of projects.
package game

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// DefaultID identifies the default game. The id equals the display name so
// score records written by older releases keep resolving.
const DefaultID = "Default game"

// idSpace namespaces the ids derived from custom game names.
var idSpace = uuid.MustParse("5b0c6f0e-8f1d-4c55-9a43-2f6d0c7e91a4")

// Kind tags a game as the default game or a custom one.
type Kind int

const (
	KindDefault Kind = iota
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindDefault:
		return "default"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Definition is the persisted form of a custom game.
// Jobs is a comma separated list of project names.
type Definition struct {
	ID   string `koanf:"id" json:"id" yaml:"id"`
	Name string `koanf:"name" json:"name" yaml:"name"`
	Jobs string `koanf:"jobs" json:"jobs" yaml:"jobs"`
}

// Game is a named scoring scope.
type Game struct {
	Kind     Kind     `json:"-"`
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Projects []string `json:"projects,omitempty"`

	jobs     string
	scopeErr error
}

// Default returns the default game.
func Default() Game {
	return Game{Kind: KindDefault, ID: DefaultID, Name: DefaultID}
}

// NewCustom builds a custom game from its definition. A missing id is
// derived from the name, so the same definition resolves to the same game on
// every start. A scope that fails to parse leaves the game matching no
// project; the parse error is available through ScopeError.
func NewCustom(def Definition) Game {
	id := strings.TrimSpace(def.ID)
	if id == "" {
		id = DeriveID(def.Name)
	}
	projects, err := ParseScope(def.Jobs)
	if err != nil {
		projects = nil
	}
	return Game{
		Kind:     KindCustom,
		ID:       id,
		Name:     def.Name,
		Projects: projects,
		jobs:     def.Jobs,
		scopeErr: err,
	}
}

// DeriveID returns the id given to a custom game configured without one.
func DeriveID(name string) string {
	return uuid.NewSHA1(idSpace, []byte(strings.TrimSpace(name))).String()
}

// IsDefault reports whether g is the default game.
func (g Game) IsDefault() bool { return g.Kind == KindDefault }

// ScopeError returns the error raised while parsing the game's scope, if any.
func (g Game) ScopeError() error { return g.scopeErr }

// Covers reports whether builds of project count toward g.
func (g Game) Covers(project string) bool {
	switch g.Kind {
	case KindDefault:
		return true
	case KindCustom:
		if g.scopeErr != nil {
			return false
		}
		for _, p := range g.Projects {
			if p == project {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Definition returns the persisted form of a custom game. The scope is
// returned as configured, so a malformed list survives a save unchanged.
func (g Game) Definition() Definition {
	return Definition{ID: g.ID, Name: g.Name, Jobs: g.jobs}
}

// ParseScope splits a comma separated list of project names. Blank entries
// are skipped; the result keeps the given order.
func ParseScope(jobs string) ([]string, error) {
	var out []string
	for _, raw := range strings.Split(jobs, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if strings.ContainsAny(name, "\"'`") || strings.IndexFunc(name, unicode.IsControl) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedScope, name)
		}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, ErrEmptyScope
	}
	return out, nil
}
