package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Hub fans changes out to in-process subscribers, per table.
//
// Publish never blocks. A subscriber whose buffer is full is evicted: its
// channel is closed, and it is expected to resubscribe and reload.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	log    *zap.Logger

	// OnSubscribersChanged, when set, is called with the new total after
	// every subscribe, unsubscribe or eviction.
	OnSubscribersChanged func(total int)
}

// Subscription receives the changes of one table on C.
type Subscription struct {
	Table string
	C     <-chan Change

	ch   chan Change
	hub  *Hub
	once sync.Once
}

var _ Publisher = (*Hub)(nil)

// NewHub returns a hub whose subscribers buffer up to buffer changes.
func NewHub(buffer int, log *zap.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers for changes to table.
func (h *Hub) Subscribe(table string) *Subscription {
	ch := make(chan Change, h.buffer)
	sub := &Subscription{Table: table, C: ch, ch: ch, hub: h}

	h.mu.Lock()
	if h.subs[table] == nil {
		h.subs[table] = make(map[*Subscription]struct{})
	}
	h.subs[table][sub] = struct{}{}
	total := h.countLocked()
	h.mu.Unlock()

	h.log.Debug("realtime subscriber added", zap.String("table", table), zap.Int("subscribers", total))
	h.notify(total)
	return sub
}

// Publish delivers change to every subscriber of change.Table.
func (h *Hub) Publish(_ context.Context, change Change) error {
	h.mu.Lock()
	evicted := 0
	for sub := range h.subs[change.Table] {
		select {
		case sub.ch <- change:
		default:
			h.removeLocked(sub)
			evicted++
		}
	}
	total := h.countLocked()
	h.mu.Unlock()

	if evicted > 0 {
		h.log.Warn("evicted slow realtime subscribers",
			zap.String("table", change.Table), zap.Int("evicted", evicted))
		h.notify(total)
	}
	return nil
}

// Subscribers reports how many subscriptions are open.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.countLocked()
}

// Close stops delivery and closes C. Safe to call more than once and after
// eviction.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	removed := s.hub.removeLocked(s)
	total := s.hub.countLocked()
	s.hub.mu.Unlock()

	if removed {
		s.hub.notify(total)
	}
}

// removeLocked detaches sub and closes its channel. h.mu must be held.
func (h *Hub) removeLocked(sub *Subscription) bool {
	set := h.subs[sub.Table]
	if _, ok := set[sub]; !ok {
		return false
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.Table)
	}
	sub.once.Do(func() { close(sub.ch) })
	return true
}

func (h *Hub) countLocked() int {
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

func (h *Hub) notify(total int) {
	if h.OnSubscribersChanged != nil {
		h.OnSubscribersChanged(total)
	}
}
