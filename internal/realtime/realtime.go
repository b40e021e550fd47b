// Package realtime delivers table change notifications from the database to subscribers.
package realtime

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Change operations carried by an Event.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// Event says that a row changed. It carries no row data; subscribers refetch.
type Event struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	ID    string `json:"id"`
}

// Filter selects events by table, optionally by operation and row id.
type Filter struct {
	Table string
	Op    string
	ID    string
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e Event) bool {
	if f.Table != e.Table {
		return false
	}
	if f.Op != "" && !strings.EqualFold(f.Op, e.Op) {
		return false
	}
	return f.ID == "" || f.ID == e.ID
}

// Handler receives matching events. It runs on the feed's goroutine and must not block.
type Handler func(Event)

// Feed is a source of change events.
type Feed interface {
	Subscribe(handler Handler, filters ...Filter) (cancel func())
}

// Publisher lets writers announce changes on feeds that do not observe the database directly.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type subscription struct {
	id      uint64
	filters []Filter
	handler Handler
}

// Hub fans events out to subscribers in process.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscription
	logger *zap.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[uint64]subscription), logger: logger}
}

// Subscribe registers handler for events matching any filter. No filters means every event.
func (h *Hub) Subscribe(handler Handler, filters ...Filter) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = subscription{id: id, filters: append([]Filter(nil), filters...), handler: handler}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Dispatch delivers e to every matching subscriber.
func (h *Hub) Dispatch(e Event) {
	h.mu.RLock()
	targets := make([]Handler, 0, len(h.subs))
	for _, sub := range h.subs {
		if matchesAny(sub.filters, e) {
			targets = append(targets, sub.handler)
		}
	}
	h.mu.RUnlock()

	for _, handler := range targets {
		h.safeCall(handler, e)
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) safeCall(handler Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("change handler panicked", zap.String("table", e.Table), zap.Any("panic", r))
		}
	}()
	handler(e)
}

func matchesAny(filters []Filter, e Event) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Matches(e) {
			return true
		}
	}
	return false
}
