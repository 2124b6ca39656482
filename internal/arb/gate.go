// Package arb converts model and market probability estimates into trade
// signals and builds the per-round opportunity record.
package arb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantrelay/arbmon/internal/estimator"
)

// Side is the direction of the better edge.
type Side string

const (
	SideUp   Side = "UP"
	SideDown Side = "DOWN"
)

// Signal classifies a round.
type Signal string

const (
	SignalArbitrage Signal = "ARBITRAGE"
	SignalNoEdge    Signal = "NO_EDGE"
	SignalError     Signal = "ERROR"
)

// Edge is the result of comparing model vs market probabilities.
type Edge struct {
	Side   Side
	Value  float64
	Signal Signal
}

// Evaluate nets the model estimate against the market-implied probabilities.
// Ties between sides resolve to UP. The signal requires the edge to clear
// the fee rate strictly: an edge exactly equal to the fee is NO_EDGE.
func Evaluate(modelUp, pmUp, pmDown, feeRate float64) Edge {
	edgeUp := modelUp - pmUp
	edgeDown := (1.0 - modelUp) - pmDown

	e := Edge{Side: SideUp, Value: edgeUp}
	if edgeUp < edgeDown {
		e = Edge{Side: SideDown, Value: edgeDown}
	}

	e.Signal = SignalNoEdge
	if e.Value > feeRate {
		e.Signal = SignalArbitrage
	}
	return e
}

// TradeOutcome records one auto-trade attempt. Every attempt produces one,
// whether it submitted, skipped, or failed.
type TradeOutcome struct {
	Enabled      bool    `json:"enabled"`
	Executed     bool    `json:"executed"`
	Reason       string  `json:"reason"`
	OrderID      string  `json:"order_id,omitempty"`
	Side         string  `json:"side,omitempty"`
	NotionalUSD  float64 `json:"notional_usd"`
	SellQty      float64 `json:"sell_qty,omitempty"`
	CooldownLeft float64 `json:"cooldown_left_seconds,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// Opportunity is the per-round record appended to the durable log. Created
// once per round and never mutated afterwards.
type Opportunity struct {
	TimestampUTC  string         `json:"timestamp_utc"`
	Signal        Signal         `json:"signal"`
	BestSide      Side           `json:"best_side,omitempty"`
	BestEdge      float64        `json:"best_edge"`
	FeeRate       float64        `json:"fee_rate"`
	Question      string         `json:"pm_market_question,omitempty"`
	MarketSlug    string         `json:"pm_market_slug,omitempty"`
	EventSlug     string         `json:"pm_event_slug,omitempty"`
	PMUpProb      float64        `json:"pm_up_prob"`
	PMDownProb    float64        `json:"pm_down_prob"`
	ModelUpProb   float64        `json:"model_up_prob"`
	ModelDownProb float64        `json:"model_down_prob"`
	Symbol        string         `json:"alpaca_symbol"`
	SpotPrice     float64        `json:"alpaca_spot_price"`
	ModelMeta     estimator.Meta `json:"model_meta"`
	Paper         bool           `json:"paper"`
	AutoTrade     *TradeOutcome  `json:"auto_trade,omitempty"`
	Err           string         `json:"error,omitempty"`
}

// MarketInfo identifies the prediction market a quote came from.
type MarketInfo struct {
	Question  string
	Slug      string
	EventSlug string
}

// BuildOpportunity assembles the round record from quote, model estimate and
// gate result.
func BuildOpportunity(now time.Time, m MarketInfo, pmUp, pmDown, modelUp float64,
	spot float64, feeRate float64, meta estimator.Meta, symbol string, paper bool) Opportunity {

	e := Evaluate(modelUp, pmUp, pmDown, feeRate)
	return Opportunity{
		TimestampUTC: now.UTC().Format(time.RFC3339),
		Signal:       e.Signal,
		BestSide:     e.Side,
		BestEdge:     e.Value,
		FeeRate:      feeRate,
		Question:     m.Question,
		MarketSlug:   m.Slug,
		EventSlug:    m.EventSlug,
		PMUpProb:     pmUp,
		PMDownProb:   pmDown,
		ModelUpProb:  modelUp,
		ModelDownProb: 1.0 - modelUp,
		Symbol:       symbol,
		SpotPrice:    spot,
		ModelMeta:    meta,
		Paper:        paper,
	}
}

// JSONLine renders the record as a single JSON line for structured output.
func (o Opportunity) JSONLine() string {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Sprintf(`{"signal":"ERROR","error":%q}`, err.Error())
	}
	return string(data)
}

// ErrorOpportunity builds the error-tagged record for a failed round.
func ErrorOpportunity(now time.Time, err error) Opportunity {
	return Opportunity{
		TimestampUTC: now.UTC().Format(time.RFC3339),
		Signal:       SignalError,
		Err:          err.Error(),
	}
}
