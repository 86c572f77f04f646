package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxInbound = 4096
	sendBuffer = 128
)

var (
	ErrClosed     = errors.New("connection closed")
	ErrSlowClient = errors.New("connection send buffer exceeded")
)

// Conn is one client websocket. Writes go through a single goroutine; Send
// is safe for concurrent use.
type Conn struct {
	ID     string
	UserID string

	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	// sendWait bounds how long Send waits for room in the write buffer.
	sendWait time.Duration
}

func NewConn(userID string, ws *websocket.Conn) *Conn {
	return &Conn{
		ID:       uuid.NewString(),
		UserID:   userID,
		ws:       ws,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		sendWait: writeWait,
	}
}

// Start runs the write loop. Call it once.
func (c *Conn) Start() {
	go c.writeLoop()
}

// Done is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send queues v as a JSON text frame, waiting while the write buffer is
// full. A client that drains nothing for sendWait is disconnected.
func (c *Conn) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
	}

	timer := time.NewTimer(c.sendWait)
	defer timer.Stop()
	select {
	case <-c.done:
		return ErrClosed
	case c.send <- payload:
		return nil
	case <-timer.C:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return ErrSlowClient
	}
}

// ReadLoop consumes inbound frames until the peer goes away. Clients only
// listen on this endpoint, so payloads are discarded; reading keeps control
// frames (pong, close) flowing.
func (c *Conn) ReadLoop() error {
	c.ws.SetReadLimit(maxInbound)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.Close(websocket.CloseNormalClosure, "")
			return err
		}
	}
}

// Close sends a close frame and tears the socket down. Safe to call more
// than once.
func (c *Conn) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		deadline := time.Now().Add(writeWait)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
	})
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Conn) write(kind int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(kind, payload)
}
