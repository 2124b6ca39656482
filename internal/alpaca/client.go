// Package alpaca provides REST clients for the Alpaca crypto data and
// trading APIs: minute-bar history for the estimator and market-order
// submission for the auto-trader.
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	dataBaseURL       = "https://data.alpaca.markets"
	paperTradeBaseURL = "https://paper-api.alpaca.markets"
	liveTradeBaseURL  = "https://api.alpaca.markets"

	// MinHistoryBars is the minimum usable history; fewer closes than this
	// is a fetch-level failure rather than something the estimator should
	// silently absorb.
	MinHistoryBars = 30
)

// ErrInsufficientHistory is returned when the data API yields fewer than
// MinHistoryBars closes.
var ErrInsufficientHistory = errors.New("alpaca: insufficient bar history")

// ErrNoPosition is returned when no open position exists for a symbol.
var ErrNoPosition = errors.New("alpaca: no open position")

// Credentials holds Alpaca API access configuration.
type Credentials struct {
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
	Paper     bool   `yaml:"paper"`
}

// Client talks to the Alpaca data and trading APIs.
type Client struct {
	httpClient *http.Client
	dataURL    string
	tradeURL   string
	creds      Credentials
}

// NewClient creates a client. Paper credentials route orders to the paper
// trading endpoint; market data uses the same endpoint either way.
func NewClient(httpClient *http.Client, creds Credentials) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	tradeURL := liveTradeBaseURL
	if creds.Paper {
		tradeURL = paperTradeBaseURL
	}
	return &Client{
		httpClient: httpClient,
		dataURL:    dataBaseURL,
		tradeURL:   tradeURL,
		creds:      creds,
	}
}

// WithBaseURLs overrides both endpoints (tests).
func (c *Client) WithBaseURLs(dataURL, tradeURL string) *Client {
	c.dataURL = dataURL
	c.tradeURL = tradeURL
	return c
}

// NormalizeTradingSymbol maps a data symbol like "BTC/USD" to the trading
// API form "BTCUSD".
func NormalizeTradingSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

type barsResponse struct {
	Bars map[string][]struct {
		Close float64 `json:"c"`
	} `json:"bars"`
}

// GetCloses fetches up to limit 1-minute closes for a crypto symbol,
// chronological order. Returns ErrInsufficientHistory when the API yields
// fewer than MinHistoryBars usable closes.
func (c *Client) GetCloses(ctx context.Context, symbol string, limit int) ([]float64, error) {
	v := url.Values{}
	v.Set("symbols", symbol)
	v.Set("timeframe", "1Min")
	v.Set("limit", fmt.Sprintf("%d", limit))
	v.Set("sort", "asc")

	u := fmt.Sprintf("%s/v1beta3/crypto/us/bars?%s", c.dataURL, v.Encode())

	var out barsResponse
	if err := c.do(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}

	bars := out.Bars[symbol]
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		closes = append(closes, b.Close)
	}

	if len(closes) < MinHistoryBars {
		return nil, fmt.Errorf("%w: got %d bars, need %d", ErrInsufficientHistory, len(closes), MinHistoryBars)
	}
	return closes, nil
}

// OrderSide is the direction of a market order.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// OrderRequest describes a market order. Exactly one of Notional or Qty
// should be set.
type OrderRequest struct {
	Symbol   string
	Side     OrderSide
	Notional decimal.Decimal
	Qty      decimal.Decimal
}

type orderPayload struct {
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
	Notional    string `json:"notional,omitempty"`
	Qty         string `json:"qty,omitempty"`
}

type orderResponse struct {
	ID string `json:"id"`
}

// SubmitMarketOrder submits a GTC market order and returns the order id.
func (c *Client) SubmitMarketOrder(ctx context.Context, req OrderRequest) (string, error) {
	payload := orderPayload{
		Symbol:      req.Symbol,
		Side:        string(req.Side),
		Type:        "market",
		TimeInForce: "gtc",
	}
	if req.Notional.IsPositive() {
		payload.Notional = req.Notional.String()
	}
	if req.Qty.IsPositive() {
		payload.Qty = req.Qty.String()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding order: %w", err)
	}

	var out orderResponse
	if err := c.do(ctx, http.MethodPost, c.tradeURL+"/v2/orders", body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("order accepted without id")
	}
	return out.ID, nil
}

type position struct {
	Symbol string `json:"symbol"`
	Qty    string `json:"qty"`
}

// GetPositionQty returns the open quantity for a trading symbol, or
// ErrNoPosition when the account holds none.
func (c *Client) GetPositionQty(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var positions []position
	if err := c.do(ctx, http.MethodGet, c.tradeURL+"/v2/positions", nil, &positions); err != nil {
		return decimal.Zero, err
	}

	target := strings.ToUpper(symbol)
	for _, p := range positions {
		if strings.ToUpper(p.Symbol) != target {
			continue
		}
		qty, err := decimal.NewFromString(p.Qty)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parsing position qty %q: %w", p.Qty, err)
		}
		return qty, nil
	}
	return decimal.Zero, ErrNoPosition
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.creds.APIKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.creds.SecretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
