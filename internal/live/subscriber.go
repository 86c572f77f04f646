package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shinyyama/rental-backend/internal/logging"
	"github.com/shinyyama/rental-backend/internal/metrics"
	"github.com/shinyyama/rental-backend/internal/model"
	"go.uber.org/zap"
)

type State int

const (
	StateClosed State = iota
	StateSubscribing
	StateActive
)

func (s State) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	default:
		return "closed"
	}
}

var errFeedEnded = errors.New("feed ended")

// SubscriptionError reports that a live feed could not be established or
// was lost. Callers keep working from fetched data.
type SubscriptionError struct {
	ItemID uint64
	Err    error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("live subscription for item %d: %v", e.ItemID, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// Subscriber owns at most one live feed at a time and moves through
// Closed -> Subscribing -> Active -> Closed. Opening again after Close starts
// a new cycle.
//
// Callbacks run on the subscriber's delivery goroutine and must not call
// Close or Open.
type Subscriber struct {
	bus    Bus
	logger *zap.Logger
	m      *metrics.Metrics

	// OnStatus, when set, is told when the feed becomes active or fails.
	OnStatus func(State, error)

	mu      sync.Mutex
	state   State
	gen     uint64
	itemID  uint64
	feed    Feed
	deliver sync.Mutex
}

func NewSubscriber(bus Bus, logger *zap.Logger, m *metrics.Metrics) *Subscriber {
	return &Subscriber{bus: bus, logger: logging.OrNop(logger), m: m}
}

func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open releases any current feed and subscribes to itemID. onInsert is
// invoked for every delivered message until Close, including messages that
// arrive before the backend acknowledged the subscription.
func (s *Subscriber) Open(ctx context.Context, itemID uint64, onInsert func(model.Message)) error {
	s.Close()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state = StateSubscribing
	s.itemID = itemID
	s.mu.Unlock()

	feed, err := s.bus.Subscribe(ctx, itemID)
	if err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.state = StateClosed
		}
		s.mu.Unlock()
		return &SubscriptionError{ItemID: itemID, Err: err}
	}

	s.mu.Lock()
	if s.gen != gen {
		// Closed while the bus was registering.
		s.mu.Unlock()
		_ = feed.Close()
		return nil
	}
	s.feed = feed
	s.mu.Unlock()
	if s.m != nil {
		s.m.LiveSubscriptions.Inc()
	}

	go s.pump(gen, feed, onInsert)
	return nil
}

// Close releases the feed. It is safe to call in any state and more than
// once. When Close returns no callback is running and none will run for the
// released feed.
func (s *Subscriber) Close() {
	s.mu.Lock()
	feed := s.feed
	s.feed = nil
	s.state = StateClosed
	s.gen++
	s.mu.Unlock()

	s.release(feed)

	s.deliver.Lock()
	s.deliver.Unlock()
}

func (s *Subscriber) release(feed Feed) {
	if feed == nil {
		return
	}
	if err := feed.Close(); err != nil {
		s.logger.Debug("closing live feed", zap.Error(err))
	}
	if s.m != nil {
		s.m.LiveSubscriptions.Dec()
	}
}

func (s *Subscriber) pump(gen uint64, feed Feed, onInsert func(model.Message)) {
	ready := feed.Ready()
	msgs := feed.Messages()
	for {
		select {
		case err, ok := <-ready:
			ready = nil
			if !ok {
				continue
			}
			if err != nil {
				s.fail(gen, err)
				return
			}
			s.activate(gen)
		case m, ok := <-msgs:
			if !ok {
				s.fail(gen, endCause(ready))
				return
			}
			s.dispatch(gen, func() {
				if onInsert != nil {
					onInsert(m)
				}
				if s.m != nil {
					s.m.LiveEventsDelivered.Inc()
				}
			})
		}
	}
}

// endCause explains a closed message channel. A feed that failed to
// subscribe reports the error on ready before closing its messages, and that
// error wins over errFeedEnded.
func endCause(ready <-chan error) error {
	if ready == nil {
		return errFeedEnded
	}
	select {
	case err := <-ready:
		if err != nil {
			return err
		}
	default:
	}
	return errFeedEnded
}

func (s *Subscriber) activate(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.state != StateSubscribing {
		s.mu.Unlock()
		return
	}
	s.state = StateActive
	s.mu.Unlock()
	s.dispatch(gen, func() { s.status(StateActive, nil) })
}

// fail handles a feed that could not be established or ended on its own.
// A feed ended by Close is not a failure: the generation has moved on.
func (s *Subscriber) fail(gen uint64, cause error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	feed := s.feed
	itemID := s.itemID
	s.feed = nil
	s.state = StateClosed
	s.mu.Unlock()

	s.release(feed)
	err := &SubscriptionError{ItemID: itemID, Err: cause}
	s.logger.Warn("live subscription lost", zap.Uint64("item_id", itemID), zap.Error(cause))
	s.dispatch(gen, func() { s.status(StateClosed, err) })
}

// dispatch runs fn unless the subscriber was closed or reopened since gen.
func (s *Subscriber) dispatch(gen uint64, fn func()) {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	s.mu.Lock()
	current := s.gen == gen
	s.mu.Unlock()
	if !current {
		return
	}
	fn()
}

func (s *Subscriber) status(st State, err error) {
	if s.OnStatus != nil {
		s.OnStatus(st, err)
	}
}
