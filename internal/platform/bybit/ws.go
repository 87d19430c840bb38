package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// readWait is the time allowed between inbound frames. The venue answers
	// JSON pings with JSON pongs on the data channel, so any frame proves
	// liveness and resets the deadline.
	readWait = 60 * time.Second

	// pingPeriod sends JSON pings at the venue's recommended interval.
	// Must be less than readWait.
	pingPeriod = 20 * time.Second

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// wsConn is the connection core shared by the public and private streams:
// dial, JSON keep-alive, subscription replay and reconnection with
// exponential backoff. Message interpretation stays with the owning stream
// through onMessage.
type wsConn struct {
	wsURL  string
	conn   *websocket.Conn
	logger *slog.Logger

	mu      sync.RWMutex
	writeMu sync.Mutex
	closed  bool

	// Topic args to restore on reconnect.
	subscriptions []string

	// onMessage receives every raw frame. onConnected runs after each dial
	// with the connection lock held, before subscription replay; the private
	// stream authenticates there.
	onMessage   func([]byte)
	onConnected func() error

	handlerMu         sync.RWMutex
	reconnectHandlers []func()

	reconnects atomic.Uint64

	// done is closed when the stream is shut down.
	done chan struct{}
}

func newWSConn(wsURL string, logger *slog.Logger, onMessage func([]byte), onConnected func() error) *wsConn {
	return &wsConn{
		wsURL:       wsURL,
		logger:      logger,
		onMessage:   onMessage,
		onConnected: onConnected,
		done:        make(chan struct{}),
	}
}

// Connect establishes the websocket connection, starts the read and ping
// loops and replays any recorded subscriptions.
func (w *wsConn) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connectLocked(ctx)
}

func (w *wsConn) connectLocked(ctx context.Context) error {
	if w.closed {
		return fmt.Errorf("bybit/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("bybit/ws: connect: %w", err)
	}

	w.conn = conn
	conn.SetReadDeadline(time.Now().Add(readWait))

	go w.readLoop(conn)
	go w.pingLoop(conn)

	if w.onConnected != nil {
		if err := w.onConnected(); err != nil {
			return fmt.Errorf("bybit/ws: on connect: %w", err)
		}
	}

	// Restore any previous subscriptions after reconnect.
	if len(w.subscriptions) > 0 {
		cmd := WSCommand{Op: "subscribe", Args: topicArgs(w.subscriptions)}
		if err := w.writeJSON(conn, cmd); err != nil {
			return fmt.Errorf("bybit/ws: restore subscriptions: %w", err)
		}
	}

	return nil
}

// Subscribe sends a subscribe op for the topics and records them for replay
// after reconnect.
func (w *wsConn) Subscribe(topics ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("bybit/ws: not connected")
	}
	cmd := WSCommand{Op: "subscribe", Args: topicArgs(topics)}
	if err := w.writeJSON(w.conn, cmd); err != nil {
		return fmt.Errorf("bybit/ws: subscribe: %w", err)
	}
	w.subscriptions = append(w.subscriptions, topics...)
	return nil
}

// Unsubscribe sends an unsubscribe op and drops the topics from the replay
// list.
func (w *wsConn) Unsubscribe(topics ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("bybit/ws: not connected")
	}
	cmd := WSCommand{Op: "unsubscribe", Args: topicArgs(topics)}
	if err := w.writeJSON(w.conn, cmd); err != nil {
		return fmt.Errorf("bybit/ws: unsubscribe: %w", err)
	}

	drop := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		drop[t] = struct{}{}
	}
	kept := w.subscriptions[:0]
	for _, s := range w.subscriptions {
		if _, found := drop[s]; !found {
			kept = append(kept, s)
		}
	}
	w.subscriptions = kept
	return nil
}

// OnReconnect registers a handler invoked after every successful reconnect.
// Feeds use it to resynchronize state the outage may have invalidated.
func (w *wsConn) OnReconnect(handler func()) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.reconnectHandlers = append(w.reconnectHandlers, handler)
}

// Reconnects returns how many times the stream has re-established itself.
func (w *wsConn) Reconnects() uint64 {
	return w.reconnects.Load()
}

// IsConnected reports whether the stream currently holds a live connection.
// False while a reconnect is in progress.
func (w *wsConn) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.conn != nil && !w.closed
}

// Close shuts down the connection and stops the read and ping loops.
func (w *wsConn) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// writeJSON marshals and writes one frame. The dedicated write mutex keeps
// the ping loop and command senders from interleaving writes on the socket.
func (w *wsConn) writeJSON(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads frames from its connection and hands them to onMessage.
// On read failure it triggers reconnection and exits; a fresh loop starts
// with the new connection.
func (w *wsConn) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}
			w.logger.Warn("websocket read failed, reconnecting",
				slog.String("error", err.Error()),
			)
			w.reconnect(conn)
			return
		}

		conn.SetReadDeadline(time.Now().Add(readWait))
		w.onMessage(message)
	}
}

// pingLoop sends periodic JSON pings to keep the connection alive.
func (w *wsConn) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if err := w.writeJSON(conn, WSCommand{Op: "ping"}); err != nil {
				return
			}
		}
	}
}

// reconnect re-establishes the connection with exponential backoff. It blocks
// until successful or the stream is closed. The failed conn identity guards
// against a stale loop reconnecting over a live connection.
func (w *wsConn) reconnect(failed *websocket.Conn) {
	w.mu.Lock()
	if w.closed || w.conn != failed {
		w.mu.Unlock()
		return
	}
	w.conn = nil
	w.mu.Unlock()

	delay := reconnectDelay
	for {
		select {
		case <-w.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			w.reconnects.Add(1)
			w.logger.Info("websocket reconnected",
				slog.Uint64("reconnects", w.reconnects.Load()),
			)
			w.notifyReconnect()
			return
		}
		w.logger.Warn("reconnect attempt failed",
			slog.String("error", err.Error()),
			slog.Duration("next_delay", delay),
		)

		// Exponential backoff.
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (w *wsConn) notifyReconnect() {
	w.handlerMu.RLock()
	handlers := w.reconnectHandlers
	w.handlerMu.RUnlock()
	for _, h := range handlers {
		h()
	}
}

// handleAck processes op responses (subscribe, auth, pong). Only failures are
// worth noise; pongs already proved liveness through the read deadline.
func (w *wsConn) handleAck(env *WSEnvelope) {
	if env.Op == "ping" || env.Op == "pong" {
		return
	}
	if env.Success != nil && !*env.Success {
		w.logger.Error("websocket command rejected",
			slog.String("op", env.Op),
			slog.String("ret_msg", env.RetMsg),
		)
	}
}

func topicArgs(topics []string) []any {
	args := make([]any, len(topics))
	for i, t := range topics {
		args[i] = t
	}
	return args
}
