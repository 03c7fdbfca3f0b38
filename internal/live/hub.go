// Package live fans the full order collection out to admin subscribers every
// time anything in it changes.
package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/imrishuroy/go-pizza-storefront/internal/orders"
)

// Lister reads the whole order collection.
type Lister interface {
	List(ctx context.Context) ([]orders.Order, error)
}

// Source calls notify whenever the underlying collection may have changed.
// Run blocks until ctx is done or the source fails for good.
type Source interface {
	Run(ctx context.Context, notify func()) error
}

// Snapshot maps order id to order. Each subscriber receives its own copy.
type Snapshot map[string]orders.Order

func newSnapshot(list []orders.Order) Snapshot {
	snap := make(Snapshot, len(list))
	for _, o := range list {
		snap[o.ID] = o
	}
	return snap
}

func (s Snapshot) clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Hub holds live subscriptions. Callbacks run on the refreshing goroutine and
// must not block.
type Hub struct {
	lister Lister

	// refreshMu serializes list reads with deliveries so a subscriber never
	// sees an older snapshot after a newer one.
	refreshMu sync.Mutex

	mu     sync.Mutex
	subs   map[uint64]func(Snapshot)
	nextID uint64
	closed bool
}

func NewHub(lister Lister) *Hub {
	return &Hub{lister: lister, subs: map[uint64]func(Snapshot){}}
}

// OnOrdersChanged registers cb, delivers the current snapshot, and returns
// the function that releases the subscription. The returned function may be
// called any number of times, including after Close.
func (h *Hub) OnOrdersChanged(ctx context.Context, cb func(Snapshot)) (unsubscribe func()) {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = cb
	h.mu.Unlock()

	var once sync.Once
	unsubscribe = func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}

	list, err := h.lister.List(ctx)
	if err != nil {
		slog.WarnContext(ctx, "initial order snapshot failed", "error", err)
		return unsubscribe
	}
	cb(newSnapshot(list))
	return unsubscribe
}

// Refresh reads the collection and delivers it to every subscriber. A failed
// read is logged and delivers nothing.
func (h *Hub) Refresh(ctx context.Context) error {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	if h.Subscribers() == 0 {
		return nil
	}

	list, err := h.lister.List(ctx)
	if err != nil {
		slog.WarnContext(ctx, "order snapshot refresh failed", "error", err)
		return err
	}
	snap := newSnapshot(list)

	h.mu.Lock()
	cbs := make([]func(Snapshot), 0, len(h.subs))
	for _, cb := range h.subs {
		cbs = append(cbs, cb)
	}
	h.mu.Unlock()

	for _, cb := range cbs {
		cb(snap.clone())
	}
	return nil
}

// Run refreshes on every notification from src until ctx is done.
func (h *Hub) Run(ctx context.Context, src Source) error {
	return src.Run(ctx, func() {
		_ = h.Refresh(ctx)
	})
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops every subscription. Later subscriptions are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.subs = map[uint64]func(Snapshot){}
}
