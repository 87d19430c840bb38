package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/crypto"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// Default REST endpoints.
const (
	MainnetRESTURL = "https://api.bybit.com"
	TestnetRESTURL = "https://api-testnet.bybit.com"
)

// Well-known venue retCodes the client special-cases.
const (
	retCodeOrderNotExists    = 110001
	retCodeLeverageUnchanged = 110043
)

// Client is the signed V5 REST client. It covers order management for the
// executor plus the account, instrument and kline queries the feeds need at
// startup and reconciliation.
type Client struct {
	baseURL    string
	category   string
	httpClient *http.Client
	auth       *crypto.HMACAuth
	recvWindow int64
}

// NewClient creates a V5 REST client. An empty baseURL selects mainnet and an
// empty category defaults to linear perpetuals.
func NewClient(baseURL, category string, auth *crypto.HMACAuth) *Client {
	if baseURL == "" {
		baseURL = MainnetRESTURL
	}
	if category == "" {
		category = "linear"
	}
	return &Client{
		baseURL:  baseURL,
		category: category,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		auth:       auth,
		recvWindow: crypto.DefaultRecvWindow,
	}
}

// SetRecvWindow overrides the signature validity window in milliseconds.
func (c *Client) SetRecvWindow(ms int64) {
	if ms > 0 {
		c.recvWindow = ms
	}
}

// Category returns the product category the client was built for.
func (c *Client) Category() string {
	return c.category
}

// PlaceOrder submits one order. Placement rejections come back as an
// unsuccessful OrderResult with the venue's message, not as an error; errors
// are reserved for transport and auth failures so the executor can tell a
// firm rejection from a retryable fault.
func (c *Client) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (domain.OrderResult, error) {
	body := map[string]any{
		"category":    c.category,
		"symbol":      intent.Symbol,
		"side":        string(intent.Side),
		"orderType":   string(intent.Type),
		"qty":         formatQty(intent.Qty),
		"orderLinkId": intent.ID,
	}
	if intent.Type == domain.OrderTypeLimit {
		body["price"] = intent.PriceTicks.String()
		body["timeInForce"] = "GTC"
	}
	if intent.ReduceOnly {
		body["reduceOnly"] = true
	}

	raw, err := c.doPost(ctx, "/v5/order/create", body)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return domain.OrderResult{
				Message:     apiErr.Msg,
				ShouldRetry: apiErr.Retryable(),
			}, nil
		}
		return domain.OrderResult{}, fmt.Errorf("bybit: place order: %w", err)
	}

	var ack APIOrderAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		return domain.OrderResult{}, fmt.Errorf("bybit: decode order ack: %w", err)
	}
	return domain.OrderResult{Success: true, OrderID: ack.OrderID}, nil
}

// CancelOrder cancels a single order by its venue order id. An order that is
// already gone maps to domain.ErrNotFound.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	body := map[string]any{
		"category": c.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}
	if _, err := c.doPost(ctx, "/v5/order/cancel", body); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == retCodeOrderNotExists {
			return fmt.Errorf("bybit: cancel order %s: %w", orderID, domain.ErrNotFound)
		}
		return fmt.Errorf("bybit: cancel order %s: %w", orderID, err)
	}
	return nil
}

// CancelAllOrders cancels every open order on the symbol and returns how many
// the venue reported cancelled.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) (int, error) {
	body := map[string]any{
		"category": c.category,
		"symbol":   symbol,
	}
	raw, err := c.doPost(ctx, "/v5/order/cancel-all", body)
	if err != nil {
		return 0, fmt.Errorf("bybit: cancel all: %w", err)
	}

	var res cancelAllResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return 0, fmt.Errorf("bybit: decode cancel-all response: %w", err)
	}
	return len(res.List), nil
}

// OpenOrders returns the orders currently resting on the symbol.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]domain.OrderRecord, error) {
	q := url.Values{}
	q.Set("category", c.category)
	q.Set("symbol", symbol)
	q.Set("openOnly", "0")

	raw, err := c.doGet(ctx, "/v5/order/realtime", q)
	if err != nil {
		return nil, fmt.Errorf("bybit: open orders: %w", err)
	}

	var res ordersResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("bybit: decode orders: %w", err)
	}
	orders := make([]domain.OrderRecord, 0, len(res.List))
	for i := range res.List {
		orders = append(orders, res.List[i].ToDomainOrder())
	}
	return orders, nil
}

// Position returns the current position on the symbol, flat if none exists.
func (c *Client) Position(ctx context.Context, symbol string) (domain.PositionUpdate, error) {
	q := url.Values{}
	q.Set("category", c.category)
	q.Set("symbol", symbol)

	raw, err := c.doGet(ctx, "/v5/position/list", q)
	if err != nil {
		return domain.PositionUpdate{}, fmt.Errorf("bybit: position: %w", err)
	}

	var res positionsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return domain.PositionUpdate{}, fmt.Errorf("bybit: decode positions: %w", err)
	}
	if len(res.List) == 0 {
		return domain.PositionUpdate{
			Symbol: symbol,
			Side:   domain.PositionSideFlat,
			At:     time.Now().UTC(),
		}, nil
	}
	return res.List[0].ToDomainPosition(), nil
}

// WalletBalance returns the unified account equity and wallet balance.
func (c *Client) WalletBalance(ctx context.Context) (domain.WalletUpdate, error) {
	q := url.Values{}
	q.Set("accountType", "UNIFIED")

	raw, err := c.doGet(ctx, "/v5/account/wallet-balance", q)
	if err != nil {
		return domain.WalletUpdate{}, fmt.Errorf("bybit: wallet balance: %w", err)
	}

	var res walletResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return domain.WalletUpdate{}, fmt.Errorf("bybit: decode wallet: %w", err)
	}
	if len(res.List) == 0 {
		return domain.WalletUpdate{}, fmt.Errorf("bybit: wallet balance: empty result")
	}
	return res.List[0].ToDomainWallet(), nil
}

// InstrumentInfo returns the venue metadata for one symbol.
func (c *Client) InstrumentInfo(ctx context.Context, symbol string) (domain.Instrument, error) {
	q := url.Values{}
	q.Set("category", c.category)
	q.Set("symbol", symbol)

	raw, err := c.doGet(ctx, "/v5/market/instruments-info", q)
	if err != nil {
		return domain.Instrument{}, fmt.Errorf("bybit: instrument info: %w", err)
	}

	var res instrumentsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return domain.Instrument{}, fmt.Errorf("bybit: decode instruments: %w", err)
	}
	if len(res.List) == 0 {
		return domain.Instrument{}, fmt.Errorf("bybit: instrument %s: %w", symbol, domain.ErrNotFound)
	}
	return res.List[0].ToDomainInstrument(c.category), nil
}

// Kline returns up to limit bars for the symbol and interval, oldest first.
// The venue delivers rows newest first; the result is reversed so it can seed
// an indicator window directly.
func (c *Client) Kline(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	q := url.Values{}
	q.Set("category", c.category)
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	raw, err := c.doGet(ctx, "/v5/market/kline", q)
	if err != nil {
		return nil, fmt.Errorf("bybit: kline: %w", err)
	}

	var res klineResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("bybit: decode kline: %w", err)
	}
	candles := make([]domain.Candle, 0, len(res.List))
	for i := len(res.List) - 1; i >= 0; i-- {
		candle, err := klineRowToCandle(res.List[i])
		if err != nil {
			return nil, fmt.Errorf("bybit: kline: %w", err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// SetLeverage sets both-side leverage on the symbol. The venue rejects a
// no-op change with a dedicated retCode; that case is treated as success.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage float64) error {
	lev := strconv.FormatFloat(leverage, 'f', -1, 64)
	body := map[string]any{
		"category":     c.category,
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}
	if _, err := c.doPost(ctx, "/v5/position/set-leverage", body); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == retCodeLeverageUnchanged {
			return nil
		}
		return fmt.Errorf("bybit: set leverage: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends a signed GET request. The encoded query string doubles as the
// signature payload.
func (c *Client) doGet(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	encoded := query.Encode()
	u := c.baseURL + path
	if encoded != "" {
		u += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.send(req, encoded)
}

// doPost sends a signed POST request. The raw JSON body doubles as the
// signature payload.
func (c *Client) doPost(ctx context.Context, path string, body map[string]any) (json.RawMessage, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, string(jsonBody))
}

// send applies the auth headers, performs the request and unwraps the V5
// envelope, returning the raw result body.
func (c *Client) send(req *http.Request, payload string) (json.RawMessage, error) {
	for k, v := range c.auth.RestHeaders(payload, c.recvWindow) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	var env APIResponse
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.RetCode != 0 {
		return nil, retCodeError(env.RetCode, env.RetMsg)
	}
	return env.Result, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// retCodeError maps well-known envelope retCodes onto domain sentinels and
// wraps everything else as *APIError.
func retCodeError(code int, msg string) error {
	apiErr := &APIError{Code: code, Msg: msg}
	switch code {
	case 10003, 10004, 10005:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, apiErr)
	case 10006:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, apiErr)
	}
	return apiErr
}

// formatQty renders a quantity in the venue's plain decimal wire form.
func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
