package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Close codes sent to clients. 4000-4999 are reserved for applications.
const (
	CloseForceLogout  = 4000
	CloseMissingToken = 4001
	CloseInvalidToken = 4003

	CloseGoingAway     = websocket.CloseGoingAway
	CloseNormal        = websocket.CloseNormalClosure
	ClosePolicy        = websocket.ClosePolicyViolation
	CloseInternalError = websocket.CloseInternalServerErr
)

// Close reasons paired with the codes above.
const (
	ReasonMissingToken     = "missing-token"
	ReasonInvalidToken     = "invalid-or-expired-token"
	ReasonForceLogout      = "force-logout"
	ReasonServerShutdown   = "server-shutdown"
	ReasonSlowConsumer     = "slow-consumer"
	ReasonStoreUnavailable = "session-store-unavailable"
)

// Conn is a live bidirectional message channel to one client. Implementations
// must allow one concurrent reader alongside writers.
type Conn interface {
	// ReadMessage blocks until the next data message arrives.
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	// Ping sends a transport keepalive.
	Ping() error
	// Close sends a close frame with code and reason, then drops the connection.
	Close(code int, reason string) error
}

// wsConn adapts a gorilla websocket connection to Conn.
type wsConn struct {
	conn      *websocket.Conn
	writeWait time.Duration
	pongWait  time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, cfg Config) *wsConn {
	c := &wsConn{
		conn:      conn,
		writeWait: cfg.WriteWait,
		pongWait:  cfg.PongWait,
	}
	conn.SetReadLimit(cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	return c
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

func (c *wsConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(c.writeWait),
		)
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}
