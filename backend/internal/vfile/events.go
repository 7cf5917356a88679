package vfile

import (
	"sync"

	"github.com/vgitarchive/vgitarchive/backend/pkg/historystore"
	"github.com/vgitarchive/vgitarchive/backend/pkg/ulid"
)

// `VersionEvent` is delivered to listeners around a checkout, per
// spec.md §4.6.
type VersionEvent struct {
	Session *Session
	Commit  historystore.Commit
	Version int
}

// `VersionEventListener` receives `PreCheckout` before any destructive
// action on the working area and `PostCheckout` after successful
// materialisation.  Listener errors are the caller's own responsibility
// to handle; they never alter session state.
type VersionEventListener interface {
	PreCheckout(VersionEvent)
	PostCheckout(VersionEvent)
}

// Listeners are registered and removed by a `ulid.I` handle rather than
// by value, since closures and function-typed listeners cannot be
// compared for equality the way a plain slice-removal-by-value scheme
// would require.
type listenerEntry struct {
	id ulid.I
	l  VersionEventListener
}

type listenerRegistry struct {
	mu        sync.Mutex
	listeners []listenerEntry
}

func (r *listenerRegistry) add(l VersionEventListener) (ulid.I, error) {
	id, err := ulid.New()
	if err != nil {
		return ulid.Nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, listenerEntry{id: id, l: l})
	return id, nil
}

func (r *listenerRegistry) remove(id ulid.I) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.listeners {
		if e.id == id {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

func (r *listenerRegistry) firePreCheckout(e VersionEvent) {
	r.mu.Lock()
	ls := append([]listenerEntry(nil), r.listeners...)
	r.mu.Unlock()
	for _, entry := range ls {
		entry.l.PreCheckout(e)
	}
}

func (r *listenerRegistry) firePostCheckout(e VersionEvent) {
	r.mu.Lock()
	ls := append([]listenerEntry(nil), r.listeners...)
	r.mu.Unlock()
	for _, entry := range ls {
		entry.l.PostCheckout(e)
	}
}
