package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "github.com/homectlx/panel/internal/errors"
	"github.com/homectlx/panel/internal/protocol"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long the server may stay silent before the
	// connection is considered dead.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = 30 * time.Second

	// maxMessageSize bounds inbound frames; fragment sets can be large.
	maxMessageSize = 8 << 20

	sendBuffer = 16
)

// conn is one live WebSocket session with its read and write pumps.
type conn struct {
	ws   *websocket.Conn
	log  *zap.Logger
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, log *zap.Logger) *conn {
	return &conn{
		ws:   ws,
		log:  log,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// close signals both pumps to stop exactly once.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// enqueue hands a frame to the write pump without blocking.
func (c *conn) enqueue(data []byte) error {
	select {
	case <-c.done:
		return apperrors.New(apperrors.CodeConnectionSendFailed, "connection closing")
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return apperrors.New(apperrors.CodeConnectionSendFailed, "connection closing")
	default:
		return apperrors.New(apperrors.CodeConnectionSendFailed, "send buffer full")
	}
}

// writePump sends queued frames and periodic pings until the connection closes.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warn("write failed", zap.Error(err))
				c.close()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// readPump decodes frames and hands them to deliver until the connection
// fails. It returns the error that ended the session.
func (c *conn) readPump(deliver func(protocol.Message)) error {
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("read failed", zap.Error(err))
			}
			return apperrors.Wrap(apperrors.CodeConnectionLost, "connection lost", err)
		}

		// Any inbound traffic proves the peer is alive.
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		msg, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn("dropping frame", zap.Error(err))
			continue
		}
		deliver(msg)
	}
}
