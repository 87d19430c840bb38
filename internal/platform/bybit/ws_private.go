package bybit

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/crypto"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// Private stream endpoints.
const (
	MainnetPrivateWSURL = "wss://stream.bybit.com/v5/private"
	TestnetPrivateWSURL = "wss://stream-testnet.bybit.com/v5/private"

	// wsAuthTTL is how far in the future the auth signature expires. It only
	// needs to outlive the handshake round trip.
	wsAuthTTL = 10 * time.Second
)

// OrderHandler is called for every order lifecycle push.
type OrderHandler func(domain.OrderRecord)

// ExecutionHandler is called for every fill push.
type ExecutionHandler func(domain.Execution)

// PositionHandler is called for every position push.
type PositionHandler func(domain.PositionUpdate)

// WalletHandler is called for every wallet push.
type WalletHandler func(domain.WalletUpdate)

// PrivateStream is the authenticated account websocket: order, execution,
// position and wallet events.
type PrivateStream struct {
	*wsConn
	auth *crypto.HMACAuth

	handlerMu         sync.RWMutex
	orderHandlers     []OrderHandler
	executionHandlers []ExecutionHandler
	positionHandlers  []PositionHandler
	walletHandlers    []WalletHandler
}

// NewPrivateStream creates an account stream client. An empty wsURL selects
// the mainnet endpoint.
func NewPrivateStream(wsURL string, auth *crypto.HMACAuth, logger *slog.Logger) *PrivateStream {
	if wsURL == "" {
		wsURL = MainnetPrivateWSURL
	}
	s := &PrivateStream{auth: auth}
	s.wsConn = newWSConn(
		wsURL,
		logger.With(slog.String("component", "bybit_ws_private")),
		s.handleMessage,
		s.authenticate,
	)
	return s
}

// SubscribeAccount subscribes to all four account topics.
func (s *PrivateStream) SubscribeAccount() error {
	return s.Subscribe("order", "execution", "position", "wallet")
}

// OnOrder registers a handler for order lifecycle pushes.
func (s *PrivateStream) OnOrder(handler OrderHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.orderHandlers = append(s.orderHandlers, handler)
}

// OnExecution registers a handler for fill pushes.
func (s *PrivateStream) OnExecution(handler ExecutionHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.executionHandlers = append(s.executionHandlers, handler)
}

// OnPosition registers a handler for position pushes.
func (s *PrivateStream) OnPosition(handler PositionHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.positionHandlers = append(s.positionHandlers, handler)
}

// OnWallet registers a handler for wallet pushes.
func (s *PrivateStream) OnWallet(handler WalletHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.walletHandlers = append(s.walletHandlers, handler)
}

// authenticate sends the auth frame. It runs with the connection lock held,
// immediately after each dial and before subscription replay; a failed auth
// surfaces as a rejected ack and the subscriptions never take effect.
func (s *PrivateStream) authenticate() error {
	return s.writeJSON(s.conn, WSCommand{Op: "auth", Args: s.auth.WSAuthArgs(wsAuthTTL)})
}

// handleMessage parses a raw frame and routes it by topic.
func (s *PrivateStream) handleMessage(raw []byte) {
	var env WSEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return // Silently drop unparseable frames.
	}
	if env.Op != "" {
		s.handleAck(&env)
		return
	}

	switch env.Topic {
	case "order":
		var rows []APIOrder
		if err := json.Unmarshal(env.Data, &rows); err != nil {
			s.logger.Warn("malformed order push", slog.String("error", err.Error()))
			return
		}
		s.handlerMu.RLock()
		handlers := s.orderHandlers
		s.handlerMu.RUnlock()
		for i := range rows {
			rec := rows[i].ToDomainOrder()
			for _, h := range handlers {
				h(rec)
			}
		}

	case "execution":
		var rows []WSExecution
		if err := json.Unmarshal(env.Data, &rows); err != nil {
			s.logger.Warn("malformed execution push", slog.String("error", err.Error()))
			return
		}
		s.handlerMu.RLock()
		handlers := s.executionHandlers
		s.handlerMu.RUnlock()
		for i := range rows {
			exec := rows[i].ToDomainExecution()
			for _, h := range handlers {
				h(exec)
			}
		}

	case "position":
		var rows []APIPosition
		if err := json.Unmarshal(env.Data, &rows); err != nil {
			s.logger.Warn("malformed position push", slog.String("error", err.Error()))
			return
		}
		s.handlerMu.RLock()
		handlers := s.positionHandlers
		s.handlerMu.RUnlock()
		for i := range rows {
			pos := rows[i].ToDomainPosition()
			for _, h := range handlers {
				h(pos)
			}
		}

	case "wallet":
		var rows []APIWalletAccount
		if err := json.Unmarshal(env.Data, &rows); err != nil {
			s.logger.Warn("malformed wallet push", slog.String("error", err.Error()))
			return
		}
		s.handlerMu.RLock()
		handlers := s.walletHandlers
		s.handlerMu.RUnlock()
		for i := range rows {
			upd := rows[i].ToDomainWallet()
			if env.CreationTime > 0 {
				upd.At = time.UnixMilli(env.CreationTime)
			}
			for _, h := range handlers {
				h(upd)
			}
		}
	}
}
