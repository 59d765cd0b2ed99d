// Package realtime fans out entity change events to per-user subscribers,
// in process and over WebSocket. Stores publish after successful writes.
package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// EventType names the entity family a change event belongs to.
type EventType string

const (
	EventProfile      EventType = "profile"
	EventConversation EventType = "conversation"
)

// Event is one change notification. Entity carries the decoded entity after
// the write, or nil when the target was deleted.
type Event struct {
	Type   EventType `json:"type"`
	UserID string    `json:"user_id"`
	Entity any       `json:"entity"`
}

// Callback receives change events. It must not block for long; delivery is
// sequential per publish.
type Callback func(Event)

type subKey struct {
	typ    EventType
	userID string
}

// Hub routes events to subscribers keyed by (event type, user id).
// Subscriptions move Idle -> Active on Subscribe and Active -> Closed when
// the returned unsubscribe func runs; a closed subscription never fires again.
type Hub struct {
	mu      sync.Mutex
	subs    map[subKey]map[int]Callback
	nextID  int
	enabled bool
	log     *zap.Logger
}

// NewHub creates a hub. A disabled hub accepts all calls as no-ops so
// callers never need to branch on availability.
func NewHub(log *zap.Logger, enabled bool) *Hub {
	return &Hub{
		subs:    make(map[subKey]map[int]Callback),
		enabled: enabled,
		log:     log,
	}
}

// Subscribe registers cb for events of the given type and user. The returned
// func closes the subscription; calling it more than once is safe.
func (h *Hub) Subscribe(typ EventType, userID string, cb Callback) func() {
	if !h.enabled {
		h.log.Warn("realtime hub disabled, subscription is a no-op",
			zap.String("type", string(typ)),
			zap.String("user_id", userID))
		return func() {}
	}

	key := subKey{typ: typ, userID: userID}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]Callback)
	}
	h.subs[key][id] = cb
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if m, ok := h.subs[key]; ok {
				delete(m, id)
				if len(m) == 0 {
					delete(h.subs, key)
				}
			}
			h.mu.Unlock()
		})
	}
}

// SubscribeProfile registers cb for profile changes of one user.
func (h *Hub) SubscribeProfile(userID string, cb Callback) func() {
	return h.Subscribe(EventProfile, userID, cb)
}

// SubscribeConversations registers cb for conversation changes of one user.
func (h *Hub) SubscribeConversations(userID string, cb Callback) func() {
	return h.Subscribe(EventConversation, userID, cb)
}

// Publish delivers e to every matching subscriber. A panicking callback is
// logged and does not affect the others or the publisher.
func (h *Hub) Publish(e Event) {
	if !h.enabled {
		return
	}

	h.mu.Lock()
	targets := h.subs[subKey{typ: e.Type, userID: e.UserID}]
	cbs := make([]Callback, 0, len(targets))
	for _, cb := range targets {
		cbs = append(cbs, cb)
	}
	h.mu.Unlock()

	for _, cb := range cbs {
		h.deliver(cb, e)
	}
}

func (h *Hub) deliver(cb Callback, e Event) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("subscriber panicked",
				zap.String("type", string(e.Type)),
				zap.String("user_id", e.UserID),
				zap.Any("panic", r))
		}
	}()
	cb(e)
}

// SubscriberCount reports how many subscriptions exist for the given key.
func (h *Hub) SubscriberCount(typ EventType, userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[subKey{typ: typ, userID: userID}])
}
