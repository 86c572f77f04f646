package live

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shinyyama/rental-backend/internal/logging"
	"github.com/shinyyama/rental-backend/internal/metrics"
	"github.com/shinyyama/rental-backend/internal/model"
	"go.uber.org/zap"
)

const defaultBuffer = 64

// Hub is an in-process Bus. Each item id is a room; Publish writes to every
// feed in the room without blocking and drops the event for feeds whose
// buffer is full.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uint64]map[string]*hubFeed
	buffer int
	logger *zap.Logger
	m      *metrics.Metrics
}

var _ Bus = (*Hub)(nil)

func NewHub(buffer int, logger *zap.Logger, m *metrics.Metrics) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		rooms:  make(map[uint64]map[string]*hubFeed),
		buffer: buffer,
		logger: logging.OrNop(logger),
		m:      m,
	}
}

func (h *Hub) Subscribe(_ context.Context, itemID uint64) (Feed, error) {
	f := &hubFeed{
		id:     uuid.NewString(),
		itemID: itemID,
		hub:    h,
		msgs:   make(chan model.Message, h.buffer),
		ready:  make(chan error, 1),
	}
	h.mu.Lock()
	room := h.rooms[itemID]
	if room == nil {
		room = make(map[string]*hubFeed)
		h.rooms[itemID] = room
	}
	room[f.id] = f
	h.mu.Unlock()

	f.ready <- nil
	return f, nil
}

// Publish delivers m to the current subscribers of m.ItemID.
func (h *Hub) Publish(_ context.Context, m model.Message) error {
	h.Deliver(m)
	return nil
}

// Deliver is Publish reporting how many feeds received m.
func (h *Hub) Deliver(m model.Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, f := range h.rooms[m.ItemID] {
		select {
		case f.msgs <- m:
			delivered++
		default:
			h.logger.Warn("live feed buffer full; dropping event",
				zap.String("feed", f.id), zap.Uint64("item_id", m.ItemID), zap.Uint64("message_id", m.ID))
			if h.m != nil {
				h.m.LiveEventsDropped.Inc()
			}
		}
	}
	return delivered
}

// Subscribers reports how many feeds are registered for itemID.
func (h *Hub) Subscribers(itemID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[itemID])
}

func (h *Hub) remove(f *hubFeed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[f.itemID]
	if room == nil {
		return
	}
	if _, ok := room[f.id]; !ok {
		return
	}
	delete(room, f.id)
	if len(room) == 0 {
		delete(h.rooms, f.itemID)
	}
	// Publish holds the read lock while sending, so closing under the write
	// lock cannot race a send.
	close(f.msgs)
}

type hubFeed struct {
	id     string
	itemID uint64
	hub    *Hub
	msgs   chan model.Message
	ready  chan error
	once   sync.Once
}

func (f *hubFeed) Messages() <-chan model.Message { return f.msgs }

func (f *hubFeed) Ready() <-chan error { return f.ready }

func (f *hubFeed) Close() error {
	f.once.Do(func() { f.hub.remove(f) })
	return nil
}
