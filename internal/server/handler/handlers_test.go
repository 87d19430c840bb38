package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/indicator"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body: %v\nbody: %s", err, rec.Body.String())
	}
}

// ---------------------------------------------------------------------------
// book
// ---------------------------------------------------------------------------

type fakeBook struct {
	ticker     domain.BookTicker
	bids, asks []domain.PriceLevel
	depthAsked int
	seq        uint64
}

func (f *fakeBook) BestBidAsk() domain.BookTicker { return f.ticker }
func (f *fakeBook) Depth(n int) (bids, asks []domain.PriceLevel) {
	f.depthAsked = n
	return f.bids, f.asks
}
func (f *fakeBook) LastSequence() uint64 { return f.seq }

func TestGetBookEmptySides(t *testing.T) {
	fb := &fakeBook{ticker: domain.BookTicker{Symbol: "BTCUSDT"}, seq: 42}
	h := NewBookHandler(fb, discardLogger())

	rec := httptest.NewRecorder()
	h.GetBook(rec, httptest.NewRequest(http.MethodGet, "/api/v1/book", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Symbol   string           `json:"symbol"`
		Sequence uint64           `json:"sequence"`
		BestBid  *float64         `json:"best_bid"`
		BestAsk  *float64         `json:"best_ask"`
		Bids     []map[string]any `json:"bids"`
		Asks     []map[string]any `json:"asks"`
	}
	decodeBody(t, rec, &resp)

	if resp.Symbol != "BTCUSDT" || resp.Sequence != 42 {
		t.Errorf("symbol/sequence = %s/%d", resp.Symbol, resp.Sequence)
	}
	if resp.BestBid != nil || resp.BestAsk != nil {
		t.Errorf("empty sides must render null best prices")
	}
	if resp.Bids == nil || resp.Asks == nil {
		t.Errorf("level arrays must be [] not null")
	}
	if fb.depthAsked != 25 {
		t.Errorf("default depth = %d, want 25", fb.depthAsked)
	}
}

func TestGetBookDepthParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"?depth=5", 5},
		{"?depth=100000", maxDepth},
		{"?depth=junk", 25},
		{"?depth=-3", 25},
	}
	for _, tt := range tests {
		fb := &fakeBook{}
		h := NewBookHandler(fb, discardLogger())
		rec := httptest.NewRecorder()
		h.GetBook(rec, httptest.NewRequest(http.MethodGet, "/api/v1/book"+tt.query, nil))
		if fb.depthAsked != tt.want {
			t.Errorf("query %q: depth = %d, want %d", tt.query, fb.depthAsked, tt.want)
		}
	}
}

func TestGetBookLevels(t *testing.T) {
	now := time.Now().UTC()
	bid := domain.TicksFromFloat(50000.5)
	ask := domain.TicksFromFloat(50001.0)
	fb := &fakeBook{
		ticker: domain.BookTicker{
			Symbol:  "BTCUSDT",
			BestBid: bid, BidQty: 2, HasBid: true,
			BestAsk: ask, AskQty: 1, HasAsk: true,
		},
		bids: []domain.PriceLevel{{Price: bid, Qty: 2, UpdatedAt: now}},
		asks: []domain.PriceLevel{{Price: ask, Qty: 1, UpdatedAt: now}},
	}
	h := NewBookHandler(fb, discardLogger())

	rec := httptest.NewRecorder()
	h.GetBook(rec, httptest.NewRequest(http.MethodGet, "/api/v1/book?depth=1", nil))

	var resp bookResponse
	decodeBody(t, rec, &resp)
	if resp.BestBid == nil || *resp.BestBid != 50000.5 {
		t.Errorf("best_bid = %v", resp.BestBid)
	}
	if resp.BestAsk == nil || *resp.BestAsk != 50001.0 {
		t.Errorf("best_ask = %v", resp.BestAsk)
	}
	if len(resp.Bids) != 1 || resp.Bids[0].Price != 50000.5 || resp.Bids[0].Qty != 2 {
		t.Errorf("bids = %+v", resp.Bids)
	}
}

// ---------------------------------------------------------------------------
// indicator
// ---------------------------------------------------------------------------

type fakeIndicator struct {
	st   indicator.State
	bars int
}

func (f *fakeIndicator) State() indicator.State { return f.st }
func (f *fakeIndicator) WindowLen() int         { return f.bars }

func TestGetIndicator(t *testing.T) {
	fi := &fakeIndicator{
		st: indicator.State{
			ATR:       120.5,
			Line:      49500.0,
			Direction: indicator.TrendUp,
			Ready:     true,
			LastClose: 50000,
		},
		bars: 200,
	}
	h := NewIndicatorHandler(fi, discardLogger())

	rec := httptest.NewRecorder()
	h.GetIndicator(rec, httptest.NewRequest(http.MethodGet, "/api/v1/indicator", nil))

	var resp indicatorResponse
	decodeBody(t, rec, &resp)
	if !resp.Ready || resp.ATR != 120.5 || resp.Direction != "Up" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.WindowBars != 200 {
		t.Errorf("window_bars = %d", resp.WindowBars)
	}
}

// ---------------------------------------------------------------------------
// orders
// ---------------------------------------------------------------------------

type fakeOrderSource struct {
	orders []domain.OrderRecord
}

func (f *fakeOrderSource) Orders() []domain.OrderRecord { return f.orders }

type fakeJournal struct {
	recent  []domain.OrderRecord
	listErr error
	limit   int
}

func (f *fakeJournal) Create(context.Context, domain.OrderRecord, string) error { return nil }
func (f *fakeJournal) UpdateStatus(context.Context, string, domain.OrderStatus) error {
	return nil
}
func (f *fakeJournal) MarkOpenCancelled(context.Context, string) (int64, error) { return 0, nil }
func (f *fakeJournal) ListRecent(_ context.Context, _ string, limit int) ([]domain.OrderRecord, error) {
	f.limit = limit
	return f.recent, f.listErr
}

func TestListOrdersLive(t *testing.T) {
	src := &fakeOrderSource{orders: []domain.OrderRecord{{
		OrderID:    "ord-1",
		Symbol:     "BTCUSDT",
		Side:       domain.OrderSideBuy,
		PriceTicks: domain.TicksFromFloat(50000),
		Qty:        0.001,
		Status:     domain.OrderStatusNew,
	}}}
	h := NewOrderHandler(src, nil, "BTCUSDT", discardLogger())

	rec := httptest.NewRecorder()
	h.ListOrders(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

	var resp listOrdersResponse
	decodeBody(t, rec, &resp)
	if len(resp.Orders) != 1 || resp.Orders[0].OrderID != "ord-1" || resp.Orders[0].Price != 50000 {
		t.Errorf("orders = %+v", resp.Orders)
	}
}

func TestListOrdersHistoryWithoutJournal(t *testing.T) {
	h := NewOrderHandler(&fakeOrderSource{}, nil, "BTCUSDT", discardLogger())

	rec := httptest.NewRecorder()
	h.ListOrders(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders?history=1", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListOrdersHistory(t *testing.T) {
	j := &fakeJournal{recent: []domain.OrderRecord{{OrderID: "ord-9"}}}
	h := NewOrderHandler(&fakeOrderSource{}, j, "BTCUSDT", discardLogger())

	rec := httptest.NewRecorder()
	h.ListOrders(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders?history=1&limit=7", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if j.limit != 7 {
		t.Errorf("journal limit = %d, want 7", j.limit)
	}
	var resp listOrdersResponse
	decodeBody(t, rec, &resp)
	if len(resp.Orders) != 1 || resp.Orders[0].OrderID != "ord-9" {
		t.Errorf("orders = %+v", resp.Orders)
	}
}

func TestListOrdersHistoryError(t *testing.T) {
	j := &fakeJournal{listErr: errors.New("db down")}
	h := NewOrderHandler(&fakeOrderSource{}, j, "BTCUSDT", discardLogger())

	rec := httptest.NewRecorder()
	h.ListOrders(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders?history=1", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// trading controls
// ---------------------------------------------------------------------------

type fakeController struct {
	paused     bool
	flattened  int
	signals    []domain.SignalEvent
	lastLimit  int
	flattenRet int
}

func (f *fakeController) Pause()       { f.paused = true }
func (f *fakeController) Resume()      { f.paused = false }
func (f *fakeController) Paused() bool { return f.paused }
func (f *fakeController) Flatten() int {
	f.flattened++
	return f.flattenRet
}
func (f *fakeController) RecentSignals(limit int) []domain.SignalEvent {
	f.lastLimit = limit
	return f.signals
}

func TestTradingPauseResume(t *testing.T) {
	ctrl := &fakeController{}
	h := NewTradingHandler(ctrl, discardLogger())

	rec := httptest.NewRecorder()
	h.Pause(rec, httptest.NewRequest(http.MethodPost, "/api/v1/trading/pause", nil))
	if rec.Code != http.StatusOK || !ctrl.paused {
		t.Fatalf("pause: status=%d paused=%v", rec.Code, ctrl.paused)
	}

	rec = httptest.NewRecorder()
	h.Resume(rec, httptest.NewRequest(http.MethodPost, "/api/v1/trading/resume", nil))
	if rec.Code != http.StatusOK || ctrl.paused {
		t.Fatalf("resume: status=%d paused=%v", rec.Code, ctrl.paused)
	}
}

func TestTradingFlattenPausesFirst(t *testing.T) {
	ctrl := &fakeController{flattenRet: 2}
	h := NewTradingHandler(ctrl, discardLogger())

	rec := httptest.NewRecorder()
	h.Flatten(rec, httptest.NewRequest(http.MethodPost, "/api/v1/trading/flatten", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if !ctrl.paused {
		t.Error("flatten must pause the decision loop")
	}
	if ctrl.flattened != 1 {
		t.Errorf("flatten calls = %d", ctrl.flattened)
	}
	var resp struct {
		Intents int  `json:"intents"`
		Paused  bool `json:"paused"`
	}
	decodeBody(t, rec, &resp)
	if resp.Intents != 2 || !resp.Paused {
		t.Errorf("resp = %+v", resp)
	}
}

func TestListSignalsEmptyIsArray(t *testing.T) {
	h := NewTradingHandler(&fakeController{}, discardLogger())

	rec := httptest.NewRecorder()
	h.ListSignals(rec, httptest.NewRequest(http.MethodGet, "/api/v1/signals", nil))

	var resp struct {
		Signals []domain.SignalEvent `json:"signals"`
	}
	decodeBody(t, rec, &resp)
	if resp.Signals == nil {
		t.Error("signals must be [] not null")
	}
}

func TestListSignalsLimitClamped(t *testing.T) {
	ctrl := &fakeController{}
	h := NewTradingHandler(ctrl, discardLogger())

	rec := httptest.NewRecorder()
	h.ListSignals(rec, httptest.NewRequest(http.MethodGet, "/api/v1/signals?limit=9999", nil))
	if ctrl.lastLimit != 100 {
		t.Errorf("limit = %d, want clamp to 100", ctrl.lastLimit)
	}
}

// ---------------------------------------------------------------------------
// status / position / health
// ---------------------------------------------------------------------------

func TestGetStatus(t *testing.T) {
	h := NewStatusHandler(func() domain.BotStatus {
		return domain.BotStatus{Mode: "full", Symbol: "BTCUSDT", Signal: domain.SignalLong}
	})

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	var resp domain.BotStatus
	decodeBody(t, rec, &resp)
	if resp.Mode != "full" || resp.Signal != domain.SignalLong {
		t.Errorf("resp = %+v", resp)
	}
}

type fakeAccount struct {
	snap domain.AccountSnapshot
}

func (f *fakeAccount) Snapshot() domain.AccountSnapshot { return f.snap }

func TestGetPosition(t *testing.T) {
	h := NewPositionHandler(&fakeAccount{snap: domain.AccountSnapshot{
		PositionSize:  0.002,
		PositionSide:  domain.PositionSideLong,
		AvgEntryPrice: 49000,
		WalletBalance: 1000,
		ActiveOrders:  map[string]domain.OrderRecord{"a": {}},
	}})

	rec := httptest.NewRecorder()
	h.GetPosition(rec, httptest.NewRequest(http.MethodGet, "/api/v1/position", nil))

	var resp positionResponse
	decodeBody(t, rec, &resp)
	if resp.PositionSize != 0.002 || resp.PositionSide != "Long" || resp.ActiveOrders != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(discardLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	decodeBody(t, rec, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status field = %v", resp["status"])
	}
}
