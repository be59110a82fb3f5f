// Package directory keeps the process-wide user records and serializes every
// read-modify-write of a single user.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/cigame/internal/domain/model"
)

// ErrPersist is returned when a changed user record could not be saved.
var ErrPersist = errors.New("persist user")

// Persister saves one user record.
type Persister interface {
	SaveUser(ctx context.Context, u model.User) error
}

// MutateFunc changes u in place and reports whether anything changed.
type MutateFunc func(u *model.User) bool

type record struct {
	mu   sync.Mutex
	user model.User
}

// Directory holds user records in memory and persists them on change.
// Records of different users are updated in parallel; updates of one user
// are serialized across the whole mutate and persist sequence.
type Directory struct {
	mu    sync.RWMutex
	users map[string]*record
	store Persister
}

// New creates a directory seeded with users. A nil store keeps records in
// memory only.
func New(store Persister, users ...model.User) *Directory {
	d := &Directory{users: make(map[string]*record, len(users)), store: store}
	for _, u := range users {
		d.users[u.ID] = &record{user: u.Clone()}
	}
	return d
}

// Update runs fn on the record of id, creating the record when the user is
// unknown, and saves it once when fn reports a change. When the save fails
// the in-memory change is kept and an ErrPersist error returned.
func (d *Directory) Update(ctx context.Context, id string, fn MutateFunc) (bool, error) {
	r := d.getOrCreate(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	return d.mutate(ctx, r, fn)
}

// ForEachExisting runs fn on every known user in id order. Each record is
// locked only while fn and its save run. Save failures do not stop the walk;
// they are joined into the returned error. It returns the number of users
// fn changed.
func (d *Directory) ForEachExisting(ctx context.Context, fn MutateFunc) (int, error) {
	var (
		changed int
		errs    []error
	)
	for _, id := range d.ids() {
		d.mu.RLock()
		r, ok := d.users[id]
		d.mu.RUnlock()
		if !ok {
			continue
		}

		r.mu.Lock()
		c, err := d.mutate(ctx, r, fn)
		r.mu.Unlock()
		if c {
			changed++
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return changed, errors.Join(errs...)
}

// Get returns a copy of the record of id.
func (d *Directory) Get(id string) (model.User, bool) {
	d.mu.RLock()
	r, ok := d.users[id]
	d.mu.RUnlock()
	if !ok {
		return model.User{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.user.Clone(), true
}

// Snapshot returns copies of every record sorted by id. Each record is
// consistent on its own; no cross-user consistency is implied.
func (d *Directory) Snapshot() []model.User {
	ids := d.ids()
	out := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := d.Get(id); ok {
			out = append(out, u)
		}
	}
	return out
}

// Len returns the number of known users.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

func (d *Directory) mutate(ctx context.Context, r *record, fn MutateFunc) (bool, error) {
	if !fn(&r.user) {
		return false, nil
	}
	if d.store == nil {
		return true, nil
	}
	if err := d.store.SaveUser(ctx, r.user.Clone()); err != nil {
		return true, fmt.Errorf("%w %s: %w", ErrPersist, r.user.ID, err)
	}
	return true, nil
}

func (d *Directory) getOrCreate(id string) *record {
	d.mu.RLock()
	r, ok := d.users[id]
	d.mu.RUnlock()
	if ok {
		return r
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok = d.users[id]; ok {
		return r
	}
	r = &record{user: model.User{ID: id}}
	d.users[id] = r
	return r
}

func (d *Directory) ids() []string {
	d.mu.RLock()
	ids := make([]string, 0, len(d.users))
	for id := range d.users {
		ids = append(ids, id)
	}
	d.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
