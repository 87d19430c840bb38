package bybit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// --------------------------------------------------------------------------
// REST envelope
// --------------------------------------------------------------------------

// APIResponse is the outer envelope of every V5 REST response. The venue
// reports logical failures with HTTP 200 and a non-zero retCode, so callers
// must check the code before touching Result.
type APIResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

// APIError is a non-zero retCode carried out of the envelope as a Go error.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit: retCode %d: %s", e.Code, e.Msg)
}

// Retryable reports whether the failure is transient venue-side: timestamp
// drift, rate limiting, or an internal server error. Order rejections
// (parameter errors, insufficient balance) are not retryable.
func (e *APIError) Retryable() bool {
	switch e.Code {
	case 10002, 10006, 10016:
		return true
	}
	return false
}

// --------------------------------------------------------------------------
// REST DTOs
// --------------------------------------------------------------------------

// APIOrderAck is the result body of order create/cancel calls.
type APIOrderAck struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// APIOrder is one order row as returned by GET /v5/order/realtime and
// delivered on the private "order" stream. Both surfaces use the same shape.
type APIOrder struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`      // "Buy" or "Sell"
	OrderType   string `json:"orderType"` // "Limit" or "Market"
	Price       string `json:"price"`
	Qty         string `json:"qty"`
	CumExecQty  string `json:"cumExecQty"`
	OrderStatus string `json:"orderStatus"`
	TimeInForce string `json:"timeInForce"`
	ReduceOnly  bool   `json:"reduceOnly"`
	CreatedTime string `json:"createdTime"` // unix millis
	UpdatedTime string `json:"updatedTime"`
}

// ToDomainOrder converts an APIOrder to a domain.OrderRecord. Side, type and
// status strings pass through unchanged: the domain constants are the venue's
// own names.
func (o *APIOrder) ToDomainOrder() domain.OrderRecord {
	rec := domain.OrderRecord{
		OrderID:       o.OrderID,
		ClientOrderID: o.OrderLinkID,
		Symbol:        o.Symbol,
		Side:          domain.OrderSide(o.Side),
		Type:          domain.OrderType(o.OrderType),
		Status:        domain.OrderStatus(o.OrderStatus),
		ReduceOnly:    o.ReduceOnly,
		CreatedAt:     msTime(o.CreatedTime),
		UpdatedAt:     msTime(o.UpdatedTime),
	}
	if p, err := domain.ParsePrice(o.Price); err == nil {
		rec.PriceTicks = p
	}
	if q, err := domain.ParseQty(o.Qty); err == nil {
		rec.Qty = q
	}
	if q, err := domain.ParseQty(o.CumExecQty); err == nil {
		rec.FilledQty = q
	}
	return rec
}

// APIPosition is one position row from GET /v5/position/list or the private
// "position" stream. REST reports the entry price as avgPrice, the stream as
// entryPrice; the converter accepts either.
type APIPosition struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"` // "Buy", "Sell" or "None"
	Size          string `json:"size"`
	AvgPrice      string `json:"avgPrice"`
	EntryPrice    string `json:"entryPrice"`
	PositionValue string `json:"positionValue"`
	UnrealisedPnl string `json:"unrealisedPnl"`
	UpdatedTime   string `json:"updatedTime"`
}

// ToDomainPosition converts an APIPosition to a domain.PositionUpdate.
func (p *APIPosition) ToDomainPosition() domain.PositionUpdate {
	pos := domain.PositionUpdate{
		Symbol: p.Symbol,
		At:     msTime(p.UpdatedTime),
	}
	if q, err := domain.ParseQty(p.Size); err == nil {
		pos.Size = q
	}
	switch {
	case pos.Size == 0:
		pos.Side = domain.PositionSideFlat
	case p.Side == "Buy":
		pos.Side = domain.PositionSideLong
	case p.Side == "Sell":
		pos.Side = domain.PositionSideShort
	default:
		pos.Side = domain.PositionSideFlat
	}
	entry := p.AvgPrice
	if entry == "" {
		entry = p.EntryPrice
	}
	if v, err := strconv.ParseFloat(entry, 64); err == nil {
		pos.EntryPrice = v
	}
	return pos
}

// APIWalletAccount is one account row from GET /v5/account/wallet-balance or
// the private "wallet" stream.
type APIWalletAccount struct {
	AccountType        string          `json:"accountType"`
	TotalEquity        string          `json:"totalEquity"`
	TotalWalletBalance string          `json:"totalWalletBalance"`
	Coin               []APIWalletCoin `json:"coin"`
}

// APIWalletCoin is one per-coin balance inside an APIWalletAccount.
type APIWalletCoin struct {
	Coin          string `json:"coin"`
	WalletBalance string `json:"walletBalance"`
	Equity        string `json:"equity"`
	UnrealisedPnl string `json:"unrealisedPnl"`
}

// ToDomainWallet converts an APIWalletAccount to a domain.WalletUpdate.
func (w *APIWalletAccount) ToDomainWallet() domain.WalletUpdate {
	upd := domain.WalletUpdate{
		AccountType: w.AccountType,
		At:          time.Now().UTC(),
	}
	if v, err := strconv.ParseFloat(w.TotalEquity, 64); err == nil {
		upd.TotalEquity = v
	}
	if v, err := strconv.ParseFloat(w.TotalWalletBalance, 64); err == nil {
		upd.WalletBalance = v
	}
	return upd
}

// APIInstrument is one instrument row from GET /v5/market/instruments-info.
type APIInstrument struct {
	Symbol      string `json:"symbol"`
	BaseCoin    string `json:"baseCoin"`
	QuoteCoin   string `json:"quoteCoin"`
	Status      string `json:"status"`
	PriceFilter struct {
		TickSize string `json:"tickSize"`
	} `json:"priceFilter"`
	LotSizeFilter struct {
		QtyStep     string `json:"qtyStep"`
		MinOrderQty string `json:"minOrderQty"`
		MaxOrderQty string `json:"maxOrderQty"`
	} `json:"lotSizeFilter"`
	LeverageFilter struct {
		MinLeverage string `json:"minLeverage"`
		MaxLeverage string `json:"maxLeverage"`
	} `json:"leverageFilter"`
}

// ToDomainInstrument converts an APIInstrument to a domain.Instrument.
func (i *APIInstrument) ToDomainInstrument(category string) domain.Instrument {
	inst := domain.Instrument{
		Symbol:    i.Symbol,
		Category:  category,
		BaseCoin:  i.BaseCoin,
		QuoteCoin: i.QuoteCoin,
	}
	if t, err := domain.ParsePrice(i.PriceFilter.TickSize); err == nil {
		inst.TickSize = t
	}
	if q, err := domain.ParseQty(i.LotSizeFilter.QtyStep); err == nil {
		inst.QtyStep = q
	}
	if q, err := domain.ParseQty(i.LotSizeFilter.MinOrderQty); err == nil {
		inst.MinOrderQty = q
	}
	if v, err := strconv.ParseFloat(i.LeverageFilter.MaxLeverage, 64); err == nil {
		inst.MaxLeverage = v
	}
	return inst
}

// klineRowToCandle converts one GET /v5/market/kline row to a domain.Candle.
// Rows are positional string arrays: [startTime, open, high, low, close,
// volume, turnover]. A malformed row returns an error so it cannot enter an
// indicator window as zeros.
func klineRowToCandle(row []string) (domain.Candle, error) {
	if len(row) < 7 {
		return domain.Candle{}, fmt.Errorf("kline row has %d fields, want 7", len(row))
	}
	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("kline start time %q: %w", row[0], err)
	}
	c := domain.Candle{OpenTime: time.UnixMilli(ms)}
	fields := []struct {
		name string
		dst  *float64
		raw  string
	}{
		{"open", &c.Open, row[1]},
		{"high", &c.High, row[2]},
		{"low", &c.Low, row[3]},
		{"close", &c.Close, row[4]},
		{"volume", &c.Volume, row[5]},
		{"turnover", &c.Turnover, row[6]},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("kline %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = v
	}
	return c, nil
}

// Result list wrappers. The venue nests every list under result.list.

type ordersResult struct {
	List []APIOrder `json:"list"`
}

type positionsResult struct {
	Category string        `json:"category"`
	List     []APIPosition `json:"list"`
}

type walletResult struct {
	List []APIWalletAccount `json:"list"`
}

type instrumentsResult struct {
	Category string          `json:"category"`
	List     []APIInstrument `json:"list"`
}

type klineResult struct {
	Category string     `json:"category"`
	Symbol   string     `json:"symbol"`
	List     [][]string `json:"list"` // newest first
}

type cancelAllResult struct {
	List []APIOrderAck `json:"list"`
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSEnvelope is the outer frame of every websocket message. Data pushes carry
// Topic/Type/Data; command acknowledgements carry Op/Success/RetMsg instead.
type WSEnvelope struct {
	Topic string          `json:"topic,omitempty"`
	Type  string          `json:"type,omitempty"` // "snapshot" or "delta" on orderbook topics
	TS    int64           `json:"ts,omitempty"`   // unix millis
	Data  json.RawMessage `json:"data,omitempty"`

	Op      string `json:"op,omitempty"`
	Success *bool  `json:"success,omitempty"`
	RetMsg  string `json:"ret_msg,omitempty"`
	ConnID  string `json:"conn_id,omitempty"`

	CreationTime int64 `json:"creationTime,omitempty"` // private pushes
}

// WSCommand is the JSON payload sent to the websocket: subscribe, unsubscribe,
// auth or ping. Args holds topic strings for subscriptions and the
// [key, expires, signature] triple for auth.
type WSCommand struct {
	ReqID string `json:"req_id,omitempty"`
	Op    string `json:"op"`
	Args  []any  `json:"args,omitempty"`
}

// WSOrderbook is the data body of an orderbook.{depth}.{symbol} push. Bids
// and asks are [price, qty] string pairs; a qty of "0" deletes the level.
type WSOrderbook struct {
	Symbol   string     `json:"s"`
	Bids     [][]string `json:"b"`
	Asks     [][]string `json:"a"`
	UpdateID uint64     `json:"u"`
	Seq      uint64     `json:"seq"`
}

// ToDomainUpdate converts a WSOrderbook push to a domain.BookUpdate. Entries
// stay as raw string pairs; the book engine parses and validates per entry.
func (b *WSOrderbook) ToDomainUpdate(kind domain.BookUpdateType, ts int64) domain.BookUpdate {
	return domain.BookUpdate{
		Symbol:   b.Symbol,
		Type:     kind,
		Bids:     b.Bids,
		Asks:     b.Asks,
		Sequence: b.UpdateID,
		At:       time.UnixMilli(ts),
	}
}

// WSKline is one bar inside a kline.{interval}.{symbol} push. Confirm is true
// exactly once, when the bar closes.
type WSKline struct {
	Start     int64  `json:"start"`
	End       int64  `json:"end"`
	Interval  string `json:"interval"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
	Turnover  string `json:"turnover"`
	Confirm   bool   `json:"confirm"`
	Timestamp int64  `json:"timestamp"`
}

// ToDomainCandle converts a WSKline to a domain.Candle.
func (k *WSKline) ToDomainCandle() domain.Candle {
	c := domain.Candle{OpenTime: time.UnixMilli(k.Start)}
	if v, err := strconv.ParseFloat(k.Open, 64); err == nil {
		c.Open = v
	}
	if v, err := strconv.ParseFloat(k.High, 64); err == nil {
		c.High = v
	}
	if v, err := strconv.ParseFloat(k.Low, 64); err == nil {
		c.Low = v
	}
	if v, err := strconv.ParseFloat(k.Close, 64); err == nil {
		c.Close = v
	}
	if v, err := strconv.ParseFloat(k.Volume, 64); err == nil {
		c.Volume = v
	}
	if v, err := strconv.ParseFloat(k.Turnover, 64); err == nil {
		c.Turnover = v
	}
	return c
}

// WSExecution is one fill row on the private "execution" stream.
type WSExecution struct {
	ExecID      string `json:"execId"`
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	ExecQty     string `json:"execQty"`
	ExecPrice   string `json:"execPrice"`
	ExecFee     string `json:"execFee"`
	IsMaker     bool   `json:"isMaker"`
	ExecTime    string `json:"execTime"` // unix millis
}

// ToDomainExecution converts a WSExecution to a domain.Execution.
func (e *WSExecution) ToDomainExecution() domain.Execution {
	exec := domain.Execution{
		ExecID:  e.ExecID,
		OrderID: e.OrderID,
		Symbol:  e.Symbol,
		Side:    domain.OrderSide(e.Side),
		IsMaker: e.IsMaker,
		At:      msTime(e.ExecTime),
	}
	if q, err := domain.ParseQty(e.ExecQty); err == nil {
		exec.Qty = q
	}
	if v, err := strconv.ParseFloat(e.ExecPrice, 64); err == nil {
		exec.Price = v
	}
	if v, err := strconv.ParseFloat(e.ExecFee, 64); err == nil {
		exec.Fee = v
	}
	return exec
}

// msTime converts a unix-millisecond string to a time.Time, zero on failure.
func msTime(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
