package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 64 * 1024
	sendBuffer = 256
)

// Client is one websocket connection to a canvas. The read pump feeds the
// session inbox; the write pump drains send, which the session loop owns and
// closes when the client leaves or the canvas shuts down.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	registered chan struct{}
	log        *slog.Logger

	// outbound sequence number, owned by the session loop
	seq int64

	UserID      string
	DisplayName string
	CanvasID    string
	ClientID    string
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, displayName, canvasID, clientID string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		registered:  make(chan struct{}),
		log:         slog.Default().With("canvas", canvasID, "client", clientID, "user", userID),
		UserID:      userID,
		DisplayName: displayName,
		CanvasID:    canvasID,
		ClientID:    clientID,
	}
}

// ReadPump forwards inbound messages to the session until the connection
// drops or the session is gone. The identity fields of every message are
// overwritten with the connection's own.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMsgSize)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if !errors.Is(err, context.Canceled) {
					c.log.Debug("read", "error", err)
				}
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.log.Warn("dropping malformed message", "error", err, "bytes", len(data))
			continue
		}
		msg.UserID = c.UserID
		msg.ClientID = c.ClientID
		msg.CanvasID = c.CanvasID

		if !c.hub.Deliver(c, &msg) {
			c.log.Debug("canvas gone, closing")
			return
		}
	}
}

// WritePump writes queued messages and keeps the connection alive with
// pings. A closed send channel means the session let the client go.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusGoingAway, "canvas closed")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				c.log.Debug("write", "error", err)
				c.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.log.Debug("ping", "error", err)
				c.conn.Close(websocket.StatusPolicyViolation, "ping timeout")
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// Send stamps msg with the client's next sequence number and queues it. It
// reports false when the buffer is full and the message was dropped. A
// dropped message still consumes its sequence number. Only the session loop
// calls it.
func (c *Client) Send(msg *Message) bool {
	c.seq++
	out := *msg
	out.Seq = c.seq
	data, err := json.Marshal(&out)
	if err != nil {
		c.log.Error("marshal message", "type", msg.Type, "error", err)
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		c.log.Warn("send buffer full, dropping message", "type", msg.Type, "seq", out.Seq)
		return false
	}
}
