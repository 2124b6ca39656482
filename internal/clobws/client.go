// Package clobws streams live top-of-book quotes for Polymarket outcome
// tokens over the CLOB market websocket. The monitor itself polls the gamma
// REST API; this client backs the quoteprobe tool for watching how fast the
// 5-minute market reprices between polls.
package clobws

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DefaultURL is the public CLOB market-channel endpoint.
const DefaultURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

// BookTop is the best bid/ask for one outcome token.
type BookTop struct {
	TokenID   string
	BestBid   decimal.Decimal
	BestAsk   decimal.Decimal
	UpdatedAt time.Time
}

// bookSnapshot is the initial order book sent after subscribing. The
// server delivers it as a JSON array, one element per token.
type bookSnapshot struct {
	AssetID string `json:"asset_id"`
	Bids    []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"asks"`
}

// priceChange is an incremental top-of-book update.
type priceChange struct {
	EventType    string `json:"event_type"`
	PriceChanges []struct {
		AssetID string `json:"asset_id"`
		BestBid string `json:"best_bid"`
		BestAsk string `json:"best_ask"`
	} `json:"price_changes"`
}

// Client maintains one websocket connection and a quote table.
type Client struct {
	url  string
	conn *websocket.Conn

	mu        sync.RWMutex
	connected bool
	assets    []string

	topsMu sync.RWMutex
	tops   map[string]*BookTop

	onUpdate func(top BookTop)
	stopCh   chan struct{}
}

// New returns a disconnected client for the given endpoint. An empty url
// selects DefaultURL.
func New(url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url:    url,
		tops:   make(map[string]*BookTop),
		stopCh: make(chan struct{}),
	}
}

// OnUpdate registers a callback invoked for every book change. Set it
// before Connect.
func (c *Client) OnUpdate(fn func(top BookTop)) {
	c.onUpdate = fn
}

// Connect dials the endpoint and starts the read loop.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	c.conn = conn
	c.connected = true
	go c.readLoop()

	log.Info().Str("url", c.url).Msg("📡 CLOB websocket connected")
	return nil
}

// Subscribe asks the market channel for the given outcome token IDs.
func (c *Client) Subscribe(tokenIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	msg := map[string]any{
		"type":       "market",
		"assets_ids": tokenIDs,
	}
	data, _ := json.Marshal(msg)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	c.assets = append(c.assets, tokenIDs...)
	return nil
}

// Top returns the latest top-of-book for a token.
func (c *Client) Top(tokenID string) (BookTop, bool) {
	c.topsMu.RLock()
	defer c.topsMu.RUnlock()

	if t, ok := c.tops[tokenID]; ok {
		return *t, true
	}
	return BookTop{}, false
}

// IsConnected reports connection status.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Close tears the connection down.
func (c *Client) Close() {
	close(c.stopCh)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connected = false
}

func (c *Client) readLoop() {
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stopCh:
				return
			default:
			}
			log.Error().Err(err).Msg("websocket read error")
			c.reconnect()
			return
		}

		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(data []byte) {
	var pc priceChange
	if err := json.Unmarshal(data, &pc); err == nil && pc.EventType == "price_change" {
		for _, ch := range pc.PriceChanges {
			bid, _ := decimal.NewFromString(ch.BestBid)
			ask, _ := decimal.NewFromString(ch.BestAsk)
			c.store(ch.AssetID, bid, ask)
		}
		return
	}

	var snaps []bookSnapshot
	if err := json.Unmarshal(data, &snaps); err == nil {
		for _, snap := range snaps {
			var bid, ask decimal.Decimal
			if len(snap.Bids) > 0 {
				bid, _ = decimal.NewFromString(snap.Bids[0].Price)
			}
			if len(snap.Asks) > 0 {
				ask, _ = decimal.NewFromString(snap.Asks[0].Price)
			}
			c.store(snap.AssetID, bid, ask)
		}
	}
}

func (c *Client) store(tokenID string, bid, ask decimal.Decimal) {
	if tokenID == "" {
		return
	}

	c.topsMu.Lock()
	top, ok := c.tops[tokenID]
	if !ok {
		top = &BookTop{TokenID: tokenID}
		c.tops[tokenID] = top
	}
	top.BestBid = bid
	top.BestAsk = ask
	top.UpdatedAt = time.Now()
	snapshot := *top
	c.topsMu.Unlock()

	if c.onUpdate != nil {
		c.onUpdate(snapshot)
	}
}

func (c *Client) reconnect() {
	c.mu.Lock()
	c.connected = false
	assets := append([]string(nil), c.assets...)
	c.assets = nil
	c.mu.Unlock()

	log.Warn().Msg("websocket disconnected, reconnecting in 5s...")
	time.Sleep(5 * time.Second)

	if err := c.Connect(); err != nil {
		log.Error().Err(err).Msg("reconnect failed")
		return
	}
	if len(assets) > 0 {
		if err := c.Subscribe(assets...); err != nil {
			log.Error().Err(err).Msg("resubscribe failed")
		}
	}
}
