// Package kiteticker is a websocket client for the Kite Connect ticker.
package kiteticker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"live-tick-excel/internal/stream"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

// Config holds connection settings. ReadTimeout bounds the silence allowed
// between frames; the server sends a heartbeat every second.
type Config struct {
	URL         string
	APIKey      string
	AccessToken string
	ReadTimeout time.Duration
	Backoff     stream.Backoff
}

type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *zap.Logger
}

var _ stream.Transport = (*Client)(nil)

func New(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse ticker url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.cfg.APIKey)
	q.Set("access_token", c.cfg.AccessToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Serve connects and reads ticks until ctx is cancelled or the reconnect
// budget is spent, in which case it returns stream.ErrReconnectExhausted.
func (c *Client) Serve(ctx context.Context, h stream.Handler) error {
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}

	attempt := 0
	for {
		established, err := c.session(ctx, endpoint, h)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			h.OnError(err)
		}
		if established {
			attempt = 0
		}

		attempt++
		if c.cfg.Backoff.Exhausted(attempt) {
			h.OnNoReconnect()
			return stream.ErrReconnectExhausted
		}
		h.OnReconnect(attempt)
		if err := c.cfg.Backoff.Wait(ctx, attempt); err != nil {
			return nil
		}
	}
}

// session runs one connection. established reports whether the handshake
// and subscription succeeded.
func (c *Client) session(ctx context.Context, endpoint string, h stream.Handler) (established bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("dial ticker: %w", err)
	}
	defer conn.Close()

	wc := &wsConn{conn: conn}
	stop := context.AfterFunc(ctx, func() {
		_ = wc.writeControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	})
	defer stop()

	if err := h.OnConnect(ctx, wc); err != nil {
		return false, err
	}

	for {
		if c.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		}
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				h.OnClose(ce.Code, ce.Text)
				return true, nil
			}
			return true, fmt.Errorf("read ticker: %w", err)
		}

		switch mt {
		case websocket.BinaryMessage:
			ticks, err := ParseMessage(data)
			if err != nil {
				c.logger.Warn("skipped malformed ticker packets",
					zap.Int("bytes", len(data)), zap.Int("decoded", len(ticks)), zap.Error(err))
			}
			if len(ticks) > 0 {
				h.OnTicks(ticks)
			}
		case websocket.TextMessage:
			c.handleText(data)
		}
	}
}

type textMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) handleText(data []byte) {
	var msg textMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("unreadable ticker text message", zap.ByteString("raw", data))
		return
	}
	switch msg.Type {
	case "error":
		c.logger.Error("ticker reported error", zap.ByteString("data", msg.Data))
	case "message":
		c.logger.Info("ticker message", zap.ByteString("data", msg.Data))
	default:
		c.logger.Debug("ignored ticker message", zap.String("type", msg.Type))
	}
}

type request struct {
	A string `json:"a"`
	V any    `json:"v"`
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) send(r request) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteJSON(r); err != nil {
		return fmt.Errorf("send %s: %w", r.A, err)
	}
	return nil
}

func (w *wsConn) writeControl(messageType int, data []byte) error {
	return w.conn.WriteControl(messageType, data, time.Now().Add(writeWait))
}

func (w *wsConn) Subscribe(tokens []uint32) error {
	return w.send(request{A: "subscribe", V: tokens})
}

func (w *wsConn) SetMode(mode stream.Mode, tokens []uint32) error {
	return w.send(request{A: "mode", V: []any{string(mode), tokens}})
}
