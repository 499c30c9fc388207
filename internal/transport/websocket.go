// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Thermoquad/optostat/pkg/optoforce"
	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConfig describes a serial bridge reachable over WebSocket
type WebSocketConfig struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

// messageConn is the subset of *websocket.Conn used by WebSocketPort
type messageConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// WebSocketPort adapts a WebSocket serial bridge to optoforce.Port.
//
// Binary messages are received by a background goroutine so that Buffered
// can report what has arrived without blocking.
type WebSocketPort struct {
	conn     messageConn
	messages chan []byte
	done     chan struct{}

	mu        sync.Mutex
	readErr   error
	pending   []byte
	closeOnce sync.Once
}

// OpenWebSocket dials a ws:// or wss:// URL with optional HTTP Basic auth
func OpenWebSocket(cfg WebSocketConfig) (*WebSocketPort, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: cfg.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if cfg.Username != "" && cfg.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return newWebSocketPort(conn), nil
}

func newWebSocketPort(conn messageConn) *WebSocketPort {
	w := &WebSocketPort{
		conn:     conn,
		messages: make(chan []byte, 256),
		done:     make(chan struct{}),
	}
	go w.receive()
	return w
}

// receive forwards binary messages until the connection fails
func (w *WebSocketPort) receive() {
	defer close(w.messages)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.readErr = err
			w.mu.Unlock()
			return
		}

		// Only binary messages carry sensor bytes
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}

		select {
		case w.messages <- data:
		case <-w.done:
			return
		}
	}
}

func (w *WebSocketPort) Read(p []byte) (int, error) {
	if len(w.pending) == 0 {
		data, ok := <-w.messages
		if !ok {
			return 0, w.closedErr()
		}
		w.pending = data
	}
	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

// Buffered moves every message that has already arrived into the pending
// buffer and reports its size.
func (w *WebSocketPort) Buffered() (int, error) {
	for {
		select {
		case data, ok := <-w.messages:
			if !ok {
				if len(w.pending) > 0 {
					return len(w.pending), nil
				}
				return 0, w.closedErr()
			}
			w.pending = append(w.pending, data...)
		default:
			return len(w.pending), nil
		}
	}
}

// ResetInputBuffer discards pending bytes and messages already received
func (w *WebSocketPort) ResetInputBuffer() error {
	w.pending = nil
	for {
		select {
		case _, ok := <-w.messages:
			if !ok {
				return nil
			}
		default:
			return nil
		}
	}
}

func (w *WebSocketPort) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketPort) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.conn.Close()
	})
	return err
}

func (w *WebSocketPort) closedErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.readErr != nil {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, w.readErr)
	}
	return ErrConnectionClosed
}

var _ optoforce.Port = (*WebSocketPort)(nil)
