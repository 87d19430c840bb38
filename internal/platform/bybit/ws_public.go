package bybit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// Public stream endpoints for linear perpetuals.
const (
	MainnetPublicWSURL = "wss://stream.bybit.com/v5/public/linear"
	TestnetPublicWSURL = "wss://stream-testnet.bybit.com/v5/public/linear"
)

// BookUpdateHandler is called for every orderbook snapshot or delta push.
type BookUpdateHandler func(domain.BookUpdate)

// CandleHandler is called for every bar pushed on a kline topic. confirmed is
// true exactly once per bar, when it closes.
type CandleHandler func(c domain.Candle, confirmed bool)

// PublicStream is the market-data websocket: orderbook depth and klines.
type PublicStream struct {
	*wsConn

	handlerMu      sync.RWMutex
	bookHandlers   []BookUpdateHandler
	candleHandlers []CandleHandler
}

// NewPublicStream creates a market-data stream client. An empty wsURL selects
// the mainnet linear endpoint.
func NewPublicStream(wsURL string, logger *slog.Logger) *PublicStream {
	if wsURL == "" {
		wsURL = MainnetPublicWSURL
	}
	s := &PublicStream{}
	s.wsConn = newWSConn(
		wsURL,
		logger.With(slog.String("component", "bybit_ws_public")),
		s.handleMessage,
		nil,
	)
	return s
}

// OrderbookTopic builds the orderbook subscription arg for a depth and symbol.
func OrderbookTopic(depth int, symbol string) string {
	return fmt.Sprintf("orderbook.%d.%s", depth, symbol)
}

// KlineTopic builds the kline subscription arg for an interval and symbol.
func KlineTopic(interval, symbol string) string {
	return fmt.Sprintf("kline.%s.%s", interval, symbol)
}

// SubscribeOrderbook subscribes to depth updates for the symbol. The venue
// answers with a full snapshot followed by deltas.
func (s *PublicStream) SubscribeOrderbook(depth int, symbol string) error {
	return s.Subscribe(OrderbookTopic(depth, symbol))
}

// SubscribeKline subscribes to bar pushes for the symbol at the interval.
func (s *PublicStream) SubscribeKline(interval, symbol string) error {
	return s.Subscribe(KlineTopic(interval, symbol))
}

// ResubscribeOrderbook forces a fresh snapshot by unsubscribing and
// resubscribing the depth topic. Feeds call it after a sequence gap.
func (s *PublicStream) ResubscribeOrderbook(depth int, symbol string) error {
	topic := OrderbookTopic(depth, symbol)
	if err := s.Unsubscribe(topic); err != nil {
		return err
	}
	return s.Subscribe(topic)
}

// OnBookUpdate registers a handler for every orderbook snapshot and delta.
func (s *PublicStream) OnBookUpdate(handler BookUpdateHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.bookHandlers = append(s.bookHandlers, handler)
}

// OnCandle registers a handler for every kline push.
func (s *PublicStream) OnCandle(handler CandleHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.candleHandlers = append(s.candleHandlers, handler)
}

// handleMessage parses a raw frame and routes it by topic.
func (s *PublicStream) handleMessage(raw []byte) {
	var env WSEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return // Silently drop unparseable frames.
	}
	if env.Op != "" {
		s.handleAck(&env)
		return
	}

	switch {
	case strings.HasPrefix(env.Topic, "orderbook."):
		var book WSOrderbook
		if err := json.Unmarshal(env.Data, &book); err != nil {
			s.logger.Warn("malformed orderbook push",
				slog.String("topic", env.Topic),
				slog.String("error", err.Error()),
			)
			return
		}
		kind := domain.BookDelta
		if env.Type == "snapshot" {
			kind = domain.BookSnapshot
		}
		upd := book.ToDomainUpdate(kind, env.TS)

		s.handlerMu.RLock()
		handlers := s.bookHandlers
		s.handlerMu.RUnlock()
		for _, h := range handlers {
			h(upd)
		}

	case strings.HasPrefix(env.Topic, "kline."):
		var bars []WSKline
		if err := json.Unmarshal(env.Data, &bars); err != nil {
			s.logger.Warn("malformed kline push",
				slog.String("topic", env.Topic),
				slog.String("error", err.Error()),
			)
			return
		}

		s.handlerMu.RLock()
		handlers := s.candleHandlers
		s.handlerMu.RUnlock()
		for i := range bars {
			c := bars[i].ToDomainCandle()
			for _, h := range handlers {
				h(c, bars[i].Confirm)
			}
		}
	}
}
