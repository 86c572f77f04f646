package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/rental-backend/internal/inbox"
	"github.com/shinyyama/rental-backend/internal/live"
	"github.com/shinyyama/rental-backend/internal/logging"
	"github.com/shinyyama/rental-backend/internal/metrics"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/realtime"
	"github.com/shinyyama/rental-backend/internal/service"
	"github.com/shinyyama/rental-backend/internal/session"
	"go.uber.org/zap"
)

const (
	liveStateActive  = "active"
	liveStatePolling = "polling"
	liveStateError   = "error"

	defaultPollInterval = 15 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Native mobile clients send no Origin; auth is enforced by the token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// frameSink receives the frames of one live thread. *realtime.Conn is the
// production sink.
type frameSink interface {
	Send(v any) error
}

type LiveHandler struct {
	messages     service.MessageService
	bus          live.Bus
	m            *metrics.Metrics
	logger       *zap.Logger
	pollInterval time.Duration
	buffer       int
}

func NewLiveHandler(messages service.MessageService, bus live.Bus, m *metrics.Metrics, logger *zap.Logger, pollInterval time.Duration, buffer int) *LiveHandler {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &LiveHandler{
		messages:     messages,
		bus:          bus,
		m:            m,
		logger:       logging.OrNop(logger),
		pollInterval: pollInterval,
		buffer:       buffer,
	}
}

// Watch upgrades to a websocket and streams the item's thread: the stored
// messages first, then every new insert, each exactly once.
func (h *LiveHandler) Watch(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return writeError(c, err, "")
	}
	itemID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid item id"))
	}

	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the response.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}
	conn := realtime.NewConn(sess.UserID, ws)
	conn.Start()
	defer conn.Close(websocket.CloseNormalClosure, "")

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	go func() {
		_ = conn.ReadLoop()
		cancel()
	}()

	h.logger.Debug("live thread opened", zap.String("conn", conn.ID), zap.Uint64("item_id", itemID))
	h.stream(ctx, conn, itemID)
	h.logger.Debug("live thread closed", zap.String("conn", conn.ID), zap.Uint64("item_id", itemID))
	return nil
}

type liveStatus struct {
	state live.State
	err   error
}

// stream runs until ctx ends or the sink fails. The initial fetch and the
// subscription start together; one loop owns the ThreadView, so frames are
// written in the order the view changed.
func (h *LiveHandler) stream(ctx context.Context, sink frameSink, itemID uint64) {
	ctx, cancel := context.WithCancel(ctx)
	sub := live.NewSubscriber(h.bus, h.logger, h.m)
	defer func() {
		cancel()
		sub.Close()
	}()

	events := make(chan inbox.Event, h.buffer)
	statuses := make(chan liveStatus, 1)

	push := func(ev inbox.Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	fetching := true
	fetch := func() {
		msgs, err := h.messages.FetchThread(ctx, itemID)
		if err != nil {
			push(inbox.Failed(err))
			return
		}
		push(inbox.Loaded(msgs))
	}
	go fetch()

	sub.OnStatus = func(st live.State, err error) {
		select {
		case statuses <- liveStatus{state: st, err: err}:
		case <-ctx.Done():
		}
	}
	if err := sub.Open(ctx, itemID, func(m model.Message) { push(inbox.Inserted(m)) }); err != nil {
		h.logger.Warn("live subscribe failed; polling", zap.Uint64("item_id", itemID), zap.Error(err))
		statuses <- liveStatus{state: live.StateClosed, err: err}
	}

	var (
		view   = inbox.NewThreadView(itemID)
		ticker *time.Ticker
		poll   <-chan time.Time
	)
	startPolling := func() {
		if ticker == nil {
			ticker = time.NewTicker(h.pollInterval)
			poll = ticker.C
		}
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Kind != inbox.EventInserted {
				fetching = false
			}
			var added []model.Message
			view, added = view.Apply(ev)
			if ev.Kind == inbox.EventFailed {
				startPolling()
				if err := sink.Send(realtime.StatusFrame(liveStateError, ev.Err)); err != nil {
					return
				}
			}
			for _, m := range added {
				if err := sink.Send(realtime.MessageFrame(m)); err != nil {
					return
				}
			}
		case st := <-statuses:
			state := liveStateActive
			if st.state != live.StateActive {
				state = liveStatePolling
				startPolling()
			}
			if err := sink.Send(realtime.StatusFrame(state, st.err)); err != nil {
				return
			}
		case <-poll:
			if !fetching {
				fetching = true
				go fetch()
			}
		}
	}
}
