package game

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the catalogue of games known to an installation: the default
// game plus the configured custom games.
type Registry struct {
	mu     sync.RWMutex
	custom []Game
}

// NewRegistry creates a registry holding the given custom games. Definitions
// rejected by Replace leave the registry empty.
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{}
	_, _ = r.Replace(defs)
	return r
}

// Replace swaps the custom game set. The first return lists games whose scope
// could not be parsed; those games stay registered but match no project.
// A set that reuses an id or claims DefaultID is rejected with ErrReservedID
// or ErrDuplicateID and the registry keeps its previous games.
func (r *Registry) Replace(defs []Definition) ([]error, error) {
	games := make([]Game, 0, len(defs))
	seen := make(map[string]struct{}, len(defs))
	var errs []error
	for _, def := range defs {
		g := NewCustom(def)
		if g.ID == DefaultID {
			return nil, fmt.Errorf("game %q: %w: %s", g.Name, ErrReservedID, g.ID)
		}
		if _, dup := seen[g.ID]; dup {
			return nil, fmt.Errorf("game %q: %w: %s", g.Name, ErrDuplicateID, g.ID)
		}
		seen[g.ID] = struct{}{}
		if err := g.ScopeError(); err != nil {
			errs = append(errs, fmt.Errorf("game %q (%s): %w", g.Name, g.ID, err))
		}
		games = append(games, g)
	}

	r.mu.Lock()
	r.custom = games
	r.mu.Unlock()
	return errs, nil
}

// All returns the default game followed by the custom games sorted by name.
func (r *Registry) All() []Game {
	r.mu.RLock()
	custom := make([]Game, len(r.custom))
	copy(custom, r.custom)
	r.mu.RUnlock()

	sort.SliceStable(custom, func(i, j int) bool {
		return custom[i].Name < custom[j].Name
	})
	return append([]Game{Default()}, custom...)
}

// Applicable returns the games a build of project counts toward.
func (r *Registry) Applicable(project string) []Game {
	var out []Game
	for _, g := range r.All() {
		if g.Covers(project) {
			out = append(out, g)
		}
	}
	return out
}

// Lookup finds a game by id.
func (r *Registry) Lookup(id string) (Game, bool) {
	if id == DefaultID {
		return Default(), true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.custom {
		if g.ID == id {
			return g, true
		}
	}
	return Game{}, false
}

// CustomIDs returns the set of currently valid custom game ids.
func (r *Registry) CustomIDs() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make(map[string]struct{}, len(r.custom))
	for _, g := range r.custom {
		ids[g.ID] = struct{}{}
	}
	return ids
}

// Definitions returns the custom games in configuration order, with their
// ids resolved.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, len(r.custom))
	for i, g := range r.custom {
		defs[i] = g.Definition()
	}
	return defs
}
