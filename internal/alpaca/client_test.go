package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), Credentials{APIKey: "key", SecretKey: "secret", Paper: true}).
		WithBaseURLs(srv.URL, srv.URL)
}

func barsBody(symbol string, closes []float64) string {
	type bar struct {
		Close float64 `json:"c"`
	}
	bars := make([]bar, len(closes))
	for i, c := range closes {
		bars[i] = bar{Close: c}
	}
	b, _ := json.Marshal(map[string]any{"bars": map[string][]bar{symbol: bars}})
	return string(b)
}

func TestGetCloses(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 65000 + float64(i)
	}

	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("APCA-API-KEY-ID")
		if got := r.URL.Query().Get("timeframe"); got != "1Min" {
			t.Errorf("timeframe = %q", got)
		}
		fmt.Fprint(w, barsBody("BTC/USD", closes))
	}))

	got, err := client.GetCloses(context.Background(), "BTC/USD", 60)
	if err != nil {
		t.Fatalf("GetCloses: %v", err)
	}
	if len(got) != 60 || got[0] != 65000 || got[59] != 65059 {
		t.Errorf("closes = len %d, first %v, last %v", len(got), got[0], got[len(got)-1])
	}
	if gotAuth != "key" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestGetClosesInsufficientHistory(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, barsBody("BTC/USD", []float64{1, 2, 3}))
	}))

	_, err := client.GetCloses(context.Background(), "BTC/USD", 300)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("err = %v, want ErrInsufficientHistory", err)
	}
}

func TestGetClosesServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"forbidden"}`, http.StatusForbidden)
	}))

	_, err := client.GetCloses(context.Background(), "BTC/USD", 300)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestSubmitMarketOrder(t *testing.T) {
	var gotPayload map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotPayload)
		fmt.Fprint(w, `{"id": "order-123"}`)
	}))

	id, err := client.SubmitMarketOrder(context.Background(), OrderRequest{
		Symbol:   "BTCUSD",
		Side:     Buy,
		Notional: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("SubmitMarketOrder: %v", err)
	}
	if id != "order-123" {
		t.Errorf("order id = %q", id)
	}
	if gotPayload["notional"] != "100" || gotPayload["side"] != "buy" {
		t.Errorf("payload = %v", gotPayload)
	}
	if gotPayload["type"] != "market" || gotPayload["time_in_force"] != "gtc" {
		t.Errorf("payload = %v", gotPayload)
	}
	if _, ok := gotPayload["qty"]; ok {
		t.Error("qty should be omitted for notional orders")
	}
}

func TestSubmitMarketOrderRejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"insufficient balance"}`, http.StatusForbidden)
	}))

	_, err := client.SubmitMarketOrder(context.Background(), OrderRequest{
		Symbol:   "BTCUSD",
		Side:     Buy,
		Notional: decimal.NewFromInt(100),
	})
	if err == nil {
		t.Fatal("expected rejection error")
	}
}

func TestGetPositionQty(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"symbol": "ETHUSD", "qty": "2"}, {"symbol": "BTCUSD", "qty": "0.0153"}]`)
	}))

	qty, err := client.GetPositionQty(context.Background(), "BTCUSD")
	if err != nil {
		t.Fatalf("GetPositionQty: %v", err)
	}
	if !qty.Equal(decimal.RequireFromString("0.0153")) {
		t.Errorf("qty = %v", qty)
	}

	_, err = client.GetPositionQty(context.Background(), "SOLUSD")
	if !errors.Is(err, ErrNoPosition) {
		t.Errorf("err = %v, want ErrNoPosition", err)
	}
}

func TestNormalizeTradingSymbol(t *testing.T) {
	if got := NormalizeTradingSymbol("BTC/USD"); got != "BTCUSD" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeTradingSymbol("ethusd"); got != "ETHUSD" {
		t.Errorf("got %q", got)
	}
}
