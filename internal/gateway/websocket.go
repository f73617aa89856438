// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/orbistech/allianced/internal/logging"
)

const (
	handshakeTimeout = 10 * time.Second
	loginTimeout     = 30 * time.Second
	readTimeout      = 90 * time.Second
	pingInterval     = 30 * time.Second
	writeWait        = 10 * time.Second
)

// frame is the wire envelope. Op identifies control frames; dispatch
// frames carry the event type in T and the payload in D.
type frame struct {
	Op string          `json:"op"`
	T  string          `json:"t,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

const (
	opIdentify         = "identify"
	opReady            = "ready"
	opDispatch         = "dispatch"
	opRegisterCommands = "register_commands"
	opReply            = "reply"
	opHeartbeat        = "heartbeat"
	opError            = "error"
)

const (
	eventInteraction = "INTERACTION_CREATE"
	eventGuildJoin   = "GUILD_CREATE"
	eventGuildLeave  = "GUILD_DELETE"
	eventWarn        = "WARN"
)

// WebsocketConn implements Conn over a websocket gateway. Reconnection
// is not attempted here; the supervisor restarts the whole session when
// Disconnect fires.
type WebsocketConn struct {
	url string

	connMu sync.RWMutex
	conn   *websocket.Conn

	writeMu sync.Mutex

	handlers Handlers

	stopChan    chan struct{}
	destroyOnce sync.Once
	wg          sync.WaitGroup
}

// NewWebsocketConn builds an unconnected client for the gateway at url.
func NewWebsocketConn(url string) *WebsocketConn {
	return &WebsocketConn{
		url:      url,
		stopChan: make(chan struct{}),
	}
}

// NewDialer returns a Dialer producing websocket connections to url.
func NewDialer(url string) Dialer {
	return func() Conn {
		return NewWebsocketConn(url)
	}
}

// Bind installs the event handlers. Must precede Login.
func (c *WebsocketConn) Bind(h Handlers) {
	c.handlers = h
}

// Login dials the gateway, identifies with the token, and waits for the
// ready frame before starting the read and ping loops.
func (c *WebsocketConn) Login(ctx context.Context, token string) error {
	dialer := websocket.Dialer{
		HandshakeTimeout:  handshakeTimeout,
		EnableCompression: true,
	}

	dialCtx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("gateway dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("gateway dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	identify, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("marshal identify: %w", err)
	}
	if err := conn.WriteJSON(frame{Op: opIdentify, D: identify}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("send identify: %w", err)
	}

	// Wait for ready. Anything else before it is a login failure.
	deadline := time.Now().Add(loginTimeout)
	if d, ok := dialCtx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	var ready frame
	if err := conn.ReadJSON(&ready); err != nil {
		_ = conn.Close()
		return fmt.Errorf("await ready: %w", err)
	}
	if ready.Op != opReady {
		_ = conn.Close()
		if ready.Op == opError {
			return fmt.Errorf("%w: %s", ErrLoginFailed, string(ready.D))
		}
		return fmt.Errorf("%w: unexpected op %q", ErrLoginFailed, ready.Op)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	if c.handlers.Ready != nil {
		c.handlers.Ready()
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return nil
}

// RegisterCommands publishes the command set for the guild scope.
func (c *WebsocketConn) RegisterCommands(ctx context.Context, guildID string, commands []CommandDescriptor) error {
	payload, err := json.Marshal(struct {
		GuildID  string              `json:"guild_id,omitempty"`
		Commands []CommandDescriptor `json:"commands"`
	}{GuildID: guildID, Commands: commands})
	if err != nil {
		return fmt.Errorf("marshal commands: %w", err)
	}
	return c.writeFrame(frame{Op: opRegisterCommands, D: payload})
}

// Destroy closes the connection and stops the loops. Idempotent.
func (c *WebsocketConn) Destroy() error {
	c.destroyOnce.Do(func() {
		close(c.stopChan)
		c.closeConnection()
		c.wg.Wait()
	})
	return nil
}

// readLoop delivers frames one at a time, so handlers for the same
// connection never run concurrently with each other.
func (c *WebsocketConn) readLoop() {
	defer c.wg.Done()

	for {
		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()
		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stopChan:
				// Deliberate teardown.
			default:
				c.closeConnection()
				if c.handlers.Disconnect != nil {
					c.handlers.Disconnect(err)
				}
			}
			return
		}
		c.handleFrame(message)
	}
}

func (c *WebsocketConn) handleFrame(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		logging.Warn().Err(err).Msg("Failed to parse gateway frame")
		return
	}

	switch f.Op {
	case opDispatch:
		c.handleDispatch(f)
	case opHeartbeat:
		// Acknowledgment of our ping. Ignore.
	case opError:
		if c.handlers.Error != nil {
			c.handlers.Error(fmt.Errorf("gateway error: %s", string(f.D)))
		}
	default:
		logging.Debug().Str("op", f.Op).Msg("Unknown gateway op")
	}
}

func (c *WebsocketConn) handleDispatch(f frame) {
	switch f.T {
	case eventInteraction:
		var interaction Interaction
		if err := json.Unmarshal(f.D, &interaction); err != nil {
			logging.Warn().Err(err).Msg("Failed to parse interaction")
			return
		}
		interaction.respond = func(reply Reply) error {
			return c.sendReply(interaction.ID, reply)
		}
		if c.handlers.Interaction != nil {
			c.handlers.Interaction(&interaction)
		}

	case eventGuildJoin, eventGuildLeave:
		var guild Guild
		if err := json.Unmarshal(f.D, &guild); err != nil {
			logging.Warn().Err(err).Msg("Failed to parse guild event")
			return
		}
		if f.T == eventGuildJoin {
			if c.handlers.GuildJoin != nil {
				c.handlers.GuildJoin(guild)
			}
		} else if c.handlers.GuildLeave != nil {
			c.handlers.GuildLeave(guild)
		}

	case eventWarn:
		if c.handlers.Warn != nil {
			c.handlers.Warn(string(f.D))
		}

	default:
		logging.Debug().Str("event", f.T).Msg("Unknown gateway event")
	}
}

func (c *WebsocketConn) sendReply(interactionID string, reply Reply) error {
	payload, err := json.Marshal(struct {
		InteractionID string `json:"interaction_id"`
		Reply         Reply  `json:"reply"`
	}{InteractionID: interactionID, Reply: reply})
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	return c.writeFrame(frame{Op: opReply, D: payload})
}

func (c *WebsocketConn) writeFrame(f frame) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}

func (c *WebsocketConn) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			if err := c.writeFrame(frame{Op: opHeartbeat}); err != nil {
				logging.Debug().Err(err).Msg("Heartbeat failed")
				return
			}
		}
	}
}

func (c *WebsocketConn) closeConnection() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return
	}
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = c.conn.Close()
	c.conn = nil
}
