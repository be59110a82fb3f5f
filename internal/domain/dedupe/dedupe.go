// Package dedupe remembers the builds already accepted so a build delivered
// twice is scored once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 100_000

// Deduper records seen build keys.
type Deduper interface {
	// SeenAndRecord reports whether key was already recorded and records it
	// if not. The check and the record happen atomically.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so a build rejected after the check can be
	// delivered again.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// window keeps the most recent keys. When full, the key recorded first is
// forgotten. A non-positive maxSize keeps every key.
type window struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // oldest key at the front
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	w := &window{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(w)
	}
	w.seen = make(map[string]*list.Element)
	w.order = list.New()
	return w
}

func (w *window) SeenAndRecord(_ context.Context, key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[key]; ok {
		return true
	}
	if w.maxSize > 0 {
		for w.order.Len() >= w.maxSize {
			w.forget(w.order.Front())
		}
	}
	w.seen[key] = w.order.PushBack(key)
	w.size.Store(int64(w.order.Len()))
	return false
}

func (w *window) Unrecord(_ context.Context, key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if el, ok := w.seen[key]; ok {
		w.forget(el)
		w.size.Store(int64(w.order.Len()))
	}
}

// forget must be called with w.mu held.
func (w *window) forget(el *list.Element) {
	w.order.Remove(el)
	delete(w.seen, el.Value.(string))
}

func (w *window) Size() int64 {
	return w.size.Load()
}
