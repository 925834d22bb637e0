package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Drix10/hypothesis-arena-sub001/internal/model"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/apperrors"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/metrics"
)

// Endpoint weights against the generic buckets.
const (
	weightRead   = 1
	weightTicker = 1
	weightDepth  = 2
	weightOrder  = 2
	weightBatch  = 5
)

// The exchange accepts exactly two depth values; everything else is rounded
// up to the nearest accepted one.
var acceptedDepths = [2]int{5, 15}

// Client is the signed protocol client. It is an explicitly constructed,
// injectable instance: tests build a fresh one per case, nothing reaches it
// through global state. It owns its credentials, clock sync and buckets.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	clock   *ClockSync
	limiter *MultiLimiter

	complianceWordCap int
}

type Options struct {
	BaseURL           string
	Credentials       Credentials
	Timeout           time.Duration
	Conn              BucketConfig
	Account           BucketConfig
	Order             BucketConfig
	ComplianceWordCap int
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.ComplianceWordCap <= 0 {
		opts.ComplianceWordCap = 500
	}
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		creds:   opts.Credentials,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: opts.Timeout,
		},
		limiter:           NewMultiLimiter(opts.Conn, opts.Account, opts.Order),
		complianceWordCap: opts.ComplianceWordCap,
	}
	c.clock = NewClockSync(c.fetchServerTime)
	return c
}

// --- public endpoints (unsigned) ---

// ServerTime returns the exchange clock in unix milliseconds.
func (c *Client) ServerTime(ctx context.Context) (int64, error) {
	var out struct {
		ServerTime int64 `json:"server_time"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/time", "", nil, &out, reqOpts{weight: weightRead})
	return out.ServerTime, err
}

// fetchServerTime backs the clock synchronizer. It bypasses signing (the
// endpoint is public) so clock sync can never recurse into itself.
func (c *Client) fetchServerTime(ctx context.Context) (int64, error) {
	return c.ServerTime(ctx)
}

func (c *Client) Ticker(ctx context.Context, symbol string) (*Ticker, error) {
	var out Ticker
	q := "symbol=" + url.QueryEscape(symbol)
	if err := c.do(ctx, http.MethodGet, "/api/v1/market/ticker", q, nil, &out, reqOpts{weight: weightTicker}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Depth(ctx context.Context, symbol string, limit int) (*OrderBook, error) {
	var out OrderBook
	q := fmt.Sprintf("symbol=%s&limit=%d", url.QueryEscape(symbol), normalizeDepthLimit(limit))
	if err := c.do(ctx, http.MethodGet, "/api/v1/market/depth", q, nil, &out, reqOpts{weight: weightDepth}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Trades(ctx context.Context, symbol string) ([]Trade, error) {
	var out []Trade
	q := "symbol=" + url.QueryEscape(symbol)
	err := c.do(ctx, http.MethodGet, "/api/v1/market/trades", q, nil, &out, reqOpts{weight: weightRead})
	return out, err
}

func (c *Client) Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	var out []Candle
	q := fmt.Sprintf("symbol=%s&interval=%s&limit=%d", url.QueryEscape(symbol), url.QueryEscape(interval), limit)
	err := c.do(ctx, http.MethodGet, "/api/v1/market/candles", q, nil, &out, reqOpts{weight: weightRead})
	return out, err
}

func (c *Client) Instruments(ctx context.Context) ([]Instrument, error) {
	var out []Instrument
	err := c.do(ctx, http.MethodGet, "/api/v1/market/instruments", "", nil, &out, reqOpts{weight: weightRead})
	return out, err
}

// --- private endpoints (signed) ---

func (c *Client) Assets(ctx context.Context) ([]Asset, error) {
	var out []Asset
	err := c.do(ctx, http.MethodGet, "/api/v1/account/assets", "", nil, &out, reqOpts{weight: weightRead, signed: true})
	return out, err
}

func (c *Client) Positions(ctx context.Context, symbol string) ([]model.Position, error) {
	var out []WirePosition
	q := ""
	if symbol != "" {
		q = "symbol=" + url.QueryEscape(symbol)
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/account/positions", q, nil, &out, reqOpts{weight: weightRead, signed: true}); err != nil {
		return nil, err
	}
	positions := make([]model.Position, 0, len(out))
	for _, p := range out {
		positions = append(positions, model.Position{
			Symbol:     p.Symbol,
			Direction:  strings.ToLower(p.Side),
			Size:       p.Size,
			EntryPrice: p.EntryPrice,
			Leverage:   p.Leverage,
			MarginMode: model.MarginMode(strings.ToLower(p.MarginMode)),
		})
	}
	return positions, nil
}

// PlaceOrder submits one order. It is never retried here: the caller's
// client order id is the only idempotency mechanism.
func (c *Client) PlaceOrder(ctx context.Context, order *model.TradeOrder) (*OrderAck, error) {
	if order == nil {
		return nil, apperrors.NewValidation("nil order")
	}
	if len(order.ClientOrderID) == 0 || len(order.ClientOrderID) > 40 {
		return nil, apperrors.NewValidation("client order id must be 1-40 chars")
	}
	var out OrderAck
	err := c.do(ctx, http.MethodPost, "/api/v1/trade/order", "", order, &out,
		reqOpts{weight: weightOrder, signed: true, order: true})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelOrder(ctx context.Context, symbol, clientOrderID string) (*OrderAck, error) {
	body := map[string]string{"symbol": symbol, "client_oid": clientOrderID}
	var out OrderAck
	err := c.do(ctx, http.MethodPost, "/api/v1/trade/cancel", "", body, &out,
		reqOpts{weight: weightOrder, signed: true, order: true})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PlaceBatch(ctx context.Context, orders []*model.TradeOrder) ([]OrderAck, error) {
	for _, o := range orders {
		if len(o.ClientOrderID) == 0 || len(o.ClientOrderID) > 40 {
			return nil, apperrors.NewValidation("client order id must be 1-40 chars")
		}
	}
	var out []OrderAck
	err := c.do(ctx, http.MethodPost, "/api/v1/trade/batch", "", orders, &out,
		reqOpts{weight: weightBatch, signed: true, order: true})
	return out, err
}

// UploadComplianceLog ships the post-trade explanation. The explanation
// field is capped at the configured word count before sending.
func (c *Client) UploadComplianceLog(ctx context.Context, entry ComplianceEntry) error {
	entry.Explanation = truncateWords(entry.Explanation, c.complianceWordCap)
	return c.do(ctx, http.MethodPost, "/api/v1/compliance/log", "", entry, nil,
		reqOpts{weight: weightRead, signed: true})
}

// --- transport core ---

type reqOpts struct {
	weight int
	signed bool
	order  bool
}

func (c *Client) do(ctx context.Context, method, path, query string, body, out any, opts reqOpts) error {
	if err := c.limiter.Acquire(ctx, opts.weight, opts.order); err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return apperrors.NewValidation("failed to encode request body: " + err.Error())
		}
	}

	u := c.baseURL + path
	if query != "" {
		u += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(payload))
	if err != nil {
		return apperrors.NewTransport("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if opts.signed {
		if c.creds.Empty() {
			return apperrors.NewValidation("exchange credentials not configured")
		}
		ts := c.clock.Timestamp(ctx)
		sig := Sign(c.creds.Secret, ts, method, path, query, string(payload))
		req.Header.Set(headerKey, c.creds.Key)
		req.Header.Set(headerTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(headerPassphrase, c.creds.Passphrase)
		req.Header.Set(headerSignature, sig)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ExchangeRequests.WithLabelValues(path, "transport_error").Inc()
		return apperrors.NewTransport("exchange request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ExchangeRequests.WithLabelValues(path, "transport_error").Inc()
		return apperrors.NewTransport("failed to read response", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.ExchangeRequests.WithLabelValues(path, "rate_limited").Inc()
		return apperrors.NewRateLimited("exchange returned 429")
	}

	metrics.ExchangeRequests.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		if code, msg, ok := decodeAPIError(raw); ok {
			return apperrors.NewExchangeAPI(code, msg)
		}
		return apperrors.NewExchangeAPI(strconv.Itoa(resp.StatusCode), strings.TrimSpace(string(raw)))
	}

	return normalizeEnvelope(raw, out)
}

// normalizeEnvelope handles the exchange's heterogeneous success shapes at
// the protocol boundary: some endpoints wrap payloads in {code,msg,data},
// others return the payload directly. Downstream code only ever sees the
// typed payload.
func normalizeEnvelope(raw []byte, out any) error {
	if out == nil || len(raw) == 0 {
		return nil
	}

	var env struct {
		Code *string         `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	payload := raw
	if err := json.Unmarshal(raw, &env); err == nil && env.Code != nil {
		if *env.Code != "0" && *env.Code != "00000" {
			return apperrors.NewExchangeAPI(*env.Code, env.Msg)
		}
		payload = env.Data
	}
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return apperrors.NewTransport("failed to decode response payload", err)
	}
	return nil
}

func decodeAPIError(raw []byte) (code, msg string, ok bool) {
	var env struct {
		Code *string `json:"code"`
		Msg  string  `json:"msg"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Code == nil {
		return "", "", false
	}
	return *env.Code, env.Msg, true
}

func normalizeDepthLimit(limit int) int {
	for _, accepted := range acceptedDepths {
		if limit <= accepted {
			return accepted
		}
	}
	return acceptedDepths[len(acceptedDepths)-1]
}

func truncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ")
}
