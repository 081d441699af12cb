// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents one WebSocket connection. It carries the session id
// minted at upgrade time and implements Outbox so the coordinator can hand
// it frames without knowing about websockets.
type Client struct {
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	id             string
	addr           string
	mu             sync.Mutex
	closed         bool
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

// NewClient creates a new Client for the provided WebSocket connection,
// hub, session id, and remote address. The send channel is buffered to
// absorb bursts issued within one coordinator handler.
func NewClient(conn *websocket.Conn, hub *Hub, id, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	limiter := newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval)

	return &Client{
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		id:             id,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    limiter,
		rateLimit:      cfg.RateLimit,
	}
}

// GetSendChan returns the client's send channel for reading outgoing messages.
// This channel is read-only from the caller's perspective.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// Deliver implements Outbox. It never blocks: a full buffer means the client
// cannot keep up, so the connection is dropped and the frame reported lost.
func (c *Client) Deliver(payload []byte) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	select {
	case c.send <- payload:
		c.mu.Unlock()
		return true
	default:
		c.mu.Unlock()
		logger.Warn().
			Str("session_id", c.id).
			Str("remote_addr", c.addr).
			Msg("send buffer full, dropping connection")
		if c.conn != nil {
			_ = c.conn.Close()
		}
		return false
	}
}

// markClosed flags the client so no further Deliver can touch the send
// channel. The hub calls it right before closing the channel.
func (c *Client) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		logger.Warn().Str("remote_addr", c.addr).Err(err).Msg("error setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			logger.Warn().Str("remote_addr", c.addr).Err(err).Msg("error setting read deadline in pong handler")
		}
		return nil
	})
}

// handleReadError logs appropriate messages based on the error type and
// returns true if the read loop should break.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		logger.Warn().
			Str("remote_addr", c.addr).
			Int64("max_bytes", c.maxMessageSize).
			Msg("inbound frame exceeded maximum size")
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		logger.Debug().Str("remote_addr", c.addr).Err(err).Msg("client disconnected")
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		logger.Debug().Str("remote_addr", c.addr).Err(err).Msg("client connection closed")
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		logger.Warn().Str("remote_addr", c.addr).Err(err).Msg("unexpected websocket error")
		return true
	}

	logger.Warn().Str("remote_addr", c.addr).Err(err).Msg("websocket read error")
	return true
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		logger.Warn().
			Str("session_id", c.id).
			Int("burst", c.rateLimit.Burst).
			Dur("interval", c.rateLimit.RefillInterval).
			Msg("rate limit exceeded, discarding frame")
		return false
	}
	return true
}

// processInbound decodes a raw frame into an envelope and queues it for the
// hub's dispatch loop. Returns true if the frame was accepted.
func (c *Client) processInbound(raw []byte) bool {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Debug().Str("session_id", c.id).Err(err).Msg("malformed inbound frame")
		return false
	}
	if env.Event == "" {
		logger.Debug().Str("session_id", c.id).Msg("inbound frame without event name")
		return false
	}

	select {
	case c.hub.inbound <- inboundEvent{client: c, envelope: env}:
		return true
	case <-c.hub.ctx.Done():
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				logger.Warn().Str("remote_addr", c.addr).Err(err).Msg("error closing connection in readPump")
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processInbound(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleOutbound(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			logger.Warn().Str("remote_addr", c.addr).Err(err).Msg("error closing connection in writePump")
		}
	}
}

// handleOutbound writes one queued frame and returns false if the connection
// should be closed.
func (c *Client) handleOutbound(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		logger.Warn().Str("remote_addr", c.addr).Err(err).Msg("error setting write deadline")
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close message to the client.
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			logger.Warn().Str("remote_addr", c.addr).Err(err).Msg("error writing close message")
		}
	}
	return false
}

// writeTextMessage writes a single frame. Frames are never coalesced: each
// envelope must arrive as its own websocket message so clients can decode
// and de-duplicate them independently.
func (c *Client) writeTextMessage(message []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		logger.Warn().Str("remote_addr", c.addr).Err(err).Msg("error writing frame")
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive.
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		logger.Warn().Str("remote_addr", c.addr).Err(err).Msg("error setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		logger.Warn().Str("remote_addr", c.addr).Err(err).Msg("error writing ping message")
		return false
	}
	return true
}
