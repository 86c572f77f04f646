package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/rental-backend/internal/inbox"
	"github.com/shinyyama/rental-backend/internal/live"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/realtime"
	"github.com/shinyyama/rental-backend/internal/service"
	"github.com/shinyyama/rental-backend/internal/session"
)

type fakeMessages struct {
	mu      sync.Mutex
	thread  []model.Message
	err     error
	sendErr error
	fetches int
}

func (f *fakeMessages) FetchInbox(context.Context, session.Session) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeMessages) FetchThread(context.Context, uint64) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Message(nil), f.thread...), nil
}

func (f *fakeMessages) SendMessage(_ context.Context, sess session.Session, receiverID string, itemID uint64, body string) (*model.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &model.Message{ID: 1, SenderUID: sess.UserID, ReceiverUID: receiverID, ItemID: itemID, Body: body}, nil
}

func (f *fakeMessages) MarkThreadRead(context.Context, session.Session, uint64) (int64, error) {
	return 0, nil
}

func (f *fakeMessages) setThread(msgs []model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thread = msgs
	f.err = nil
}

type fakeInbox struct {
	res service.InboxResult
}

func (f fakeInbox) Load(context.Context, session.Session) service.InboxResult { return f.res }

func newContext(method, target, body string, sess *session.Session) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if sess != nil {
		session.Set(c, *sess)
	}
	return c, rec
}

func TestInboxStates(t *testing.T) {
	me := &session.Session{UserID: "me"}
	tests := []struct {
		name       string
		res        service.InboxResult
		wantStatus int
		wantState  string
	}{
		{"empty", service.InboxResult{State: inbox.StateReady, Conversations: []inbox.Conversation{}}, http.StatusOK, "ok"},
		{"failed", service.InboxResult{
			State:         inbox.StateFailed,
			Conversations: []inbox.Conversation{},
			Err:           &service.AccessError{Op: "fetch inbox", Err: context.DeadlineExceeded},
		}, http.StatusServiceUnavailable, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMessageHandler(&fakeMessages{}, fakeInbox{res: tt.res})
			c, rec := newContext(http.MethodGet, "/api/inbox", "", me)
			if err := h.Inbox(c); err != nil {
				t.Fatalf("handler err: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d", rec.Code, tt.wantStatus)
			}
			var resp InboxResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.State != tt.wantState || resp.Conversations == nil {
				t.Fatalf("resp=%+v", resp)
			}
		})
	}
}

func TestSendMapsErrors(t *testing.T) {
	me := &session.Session{UserID: "me"}
	tests := []struct {
		name    string
		sess    *session.Session
		sendErr error
		want    int
	}{
		{"created", me, nil, http.StatusCreated},
		{"no session", nil, nil, http.StatusUnauthorized},
		{"empty body", me, service.ErrEmptyBody, http.StatusBadRequest},
		{"unknown item", me, service.ErrNotFound, http.StatusNotFound},
		{"backend", me, &service.SendError{Err: errors.New("boom")}, http.StatusInternalServerError},
		{"timeout", me, &service.SendError{Err: context.DeadlineExceeded}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMessageHandler(&fakeMessages{sendErr: tt.sendErr}, nil)
			c, rec := newContext(http.MethodPost, "/api/items/7/messages", `{"receiverUid":"owner","body":"hi"}`, tt.sess)
			c.SetParamNames("id")
			c.SetParamValues("7")
			if err := h.Send(c); err != nil {
				t.Fatalf("handler err: %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestThreadIsSortedAndDeduplicated(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	msgs := &fakeMessages{thread: []model.Message{
		{ID: 2, ItemID: 7, CreatedAt: t0.Add(time.Minute)},
		{ID: 1, ItemID: 7, CreatedAt: t0},
		{ID: 2, ItemID: 7, CreatedAt: t0.Add(time.Minute)},
	}}
	h := NewMessageHandler(msgs, nil)
	c, rec := newContext(http.MethodGet, "/api/items/7/messages", "", nil)
	c.SetParamNames("id")
	c.SetParamValues("7")
	if err := h.Thread(c); err != nil {
		t.Fatalf("handler err: %v", err)
	}
	var resp ThreadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 2 || resp.Messages[0].ID != 1 || resp.Messages[1].ID != 2 {
		t.Fatalf("messages=%+v", resp.Messages)
	}
}

type captureSink struct {
	frames chan realtime.Frame
}

func (s *captureSink) Send(v any) error {
	s.frames <- v.(realtime.Frame)
	return nil
}

func collect(t *testing.T, sink *captureSink, done func(msgIDs map[uint64]int, states []string) bool) (map[uint64]int, []string) {
	t.Helper()
	ids := map[uint64]int{}
	var states []string
	deadline := time.After(3 * time.Second)
	for !done(ids, states) {
		select {
		case f := <-sink.frames:
			switch f.Type {
			case realtime.FrameMessage:
				ids[f.Message.ID]++
			case realtime.FrameStatus:
				states = append(states, f.State)
			}
		case <-deadline:
			t.Fatalf("timed out: ids=%v states=%v", ids, states)
		}
	}
	return ids, states
}

func TestStreamMergesFetchAndLiveOnce(t *testing.T) {
	hub := live.NewHub(8, nil, nil)
	msgs := &fakeMessages{thread: []model.Message{{ID: 1, ItemID: 7}, {ID: 2, ItemID: 7}}}
	h := NewLiveHandler(msgs, hub, nil, nil, time.Hour, 8)
	sink := &captureSink{frames: make(chan realtime.Frame, 16)}

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		h.stream(ctx, sink, 7)
		close(finished)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(7) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	_ = hub.Publish(ctx, model.Message{ID: 2, ItemID: 7})
	_ = hub.Publish(ctx, model.Message{ID: 3, ItemID: 7})

	ids, states := collect(t, sink, func(ids map[uint64]int, states []string) bool {
		return len(ids) == 3 && len(states) == 1
	})
	for id, n := range ids {
		if n != 1 {
			t.Fatalf("message %d sent %d times", id, n)
		}
	}
	if states[0] != liveStateActive {
		t.Fatalf("states=%v", states)
	}

	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
	if n := hub.Subscribers(7); n != 0 {
		t.Fatalf("subscription leaked: %d", n)
	}
}

type failingBus struct{}

func (failingBus) Publish(context.Context, model.Message) error { return nil }

func (failingBus) Subscribe(context.Context, uint64) (live.Feed, error) {
	return nil, errors.New("redis unavailable")
}

func TestStreamFallsBackToPolling(t *testing.T) {
	msgs := &fakeMessages{thread: []model.Message{{ID: 1, ItemID: 7}}}
	h := NewLiveHandler(msgs, failingBus{}, nil, nil, 10*time.Millisecond, 8)
	sink := &captureSink{frames: make(chan realtime.Frame, 16)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.stream(ctx, sink, 7)

	_, states := collect(t, sink, func(ids map[uint64]int, states []string) bool {
		return len(ids) == 1 && len(states) == 1
	})
	if states[0] != liveStatePolling {
		t.Fatalf("states=%v want polling", states)
	}

	msgs.setThread([]model.Message{{ID: 1, ItemID: 7}, {ID: 2, ItemID: 7}})
	collect(t, sink, func(ids map[uint64]int, _ []string) bool {
		return ids[2] == 1
	})
}

func TestWatchDeliversThreadLongerThanWriteBuffer(t *testing.T) {
	const stored = 1000
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	thread := make([]model.Message, stored)
	for i := range thread {
		thread[i] = model.Message{ID: uint64(i + 1), ItemID: 7, Body: "hello", CreatedAt: t0.Add(time.Duration(i) * time.Second)}
	}
	hub := live.NewHub(8, nil, nil)
	h := NewLiveHandler(&fakeMessages{thread: thread}, hub, nil, nil, time.Hour, 8)

	e := echo.New()
	withSession := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session.Set(c, session.Session{UserID: "renter"})
			return next(c)
		}
	}
	e.GET("/api/items/:id/live", h.Watch, withSession)
	srv := httptest.NewServer(e)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/items/7/live", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(10 * time.Second))

	next := uint64(1)
	for next <= stored {
		var f realtime.Frame
		if err := ws.ReadJSON(&f); err != nil {
			t.Fatalf("read ended after %d of %d stored messages: %v", next-1, stored, err)
		}
		if f.Type != realtime.FrameMessage {
			continue
		}
		if f.Message == nil || f.Message.ID != next {
			t.Fatalf("frame %+v want message %d", f, next)
		}
		next++
	}

	for hub.Subscribers(7) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	_ = hub.Publish(context.Background(), model.Message{ID: stored + 1, ItemID: 7})
	for {
		var f realtime.Frame
		if err := ws.ReadJSON(&f); err != nil {
			t.Fatalf("live insert not delivered: %v", err)
		}
		if f.Type == realtime.FrameMessage {
			if f.Message.ID != stored+1 {
				t.Fatalf("live frame %+v want message %d", f, stored+1)
			}
			break
		}
	}
}
