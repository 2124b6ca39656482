// Package executor submits the optional follow-on market order when a round
// produces an ARBITRAGE signal. It enforces the trade cooldown and records a
// structured outcome for every attempt.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/quantrelay/arbmon/internal/alpaca"
	"github.com/quantrelay/arbmon/internal/arb"
)

// Outcome reason codes.
const (
	ReasonNotArbitrage    = "signal_not_arbitrage"
	ReasonCooldown        = "cooldown"
	ReasonInvalidSide     = "invalid_best_side"
	ReasonInvalidSpot     = "invalid_spot_price"
	ReasonNoPosition      = "no_position_for_down_signal"
	ReasonQtyTooSmall     = "qty_too_small"
	ReasonSubmitted       = "submitted"
	ReasonSubmitFailed    = "submit_failed"
)

// OrderClient is the broker collaborator: order submission plus position
// lookups for DOWN-side sells.
type OrderClient interface {
	SubmitMarketOrder(ctx context.Context, req alpaca.OrderRequest) (string, error)
	GetPositionQty(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Executor gates and submits auto-trades. The cooldown timestamp lives in
// process memory only; a restart forgets it.
type Executor struct {
	client   OrderClient
	symbol   string // trading-API form, e.g. BTCUSD
	notional decimal.Decimal
	cooldown time.Duration

	lastTrade time.Time
	now       func() time.Time
}

// New creates an executor trading symbol with a fixed notional per order.
func New(client OrderClient, symbol string, notionalUSD float64, cooldown time.Duration) *Executor {
	return &Executor{
		client:   client,
		symbol:   symbol,
		notional: decimal.NewFromFloat(notionalUSD),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// MaybeTrade decides whether the opportunity is tradable and, if so,
// submits the order. Every call returns an outcome record; only a
// successful submission advances the cooldown.
func (e *Executor) MaybeTrade(ctx context.Context, opp arb.Opportunity) arb.TradeOutcome {
	now := e.now()
	notional, _ := e.notional.Float64()
	out := arb.TradeOutcome{
		Enabled:     true,
		NotionalUSD: notional,
	}

	if opp.Signal != arb.SignalArbitrage {
		out.Reason = ReasonNotArbitrage
		return out
	}

	if !e.lastTrade.IsZero() {
		if elapsed := now.Sub(e.lastTrade); elapsed < e.cooldown {
			out.Reason = ReasonCooldown
			out.CooldownLeft = (e.cooldown - elapsed).Seconds()
			return out
		}
	}

	switch opp.BestSide {
	case arb.SideUp:
		e.buy(ctx, &out)
	case arb.SideDown:
		e.sell(ctx, opp.SpotPrice, &out)
	default:
		out.Reason = ReasonInvalidSide
		return out
	}

	if out.Executed {
		e.lastTrade = now
	}
	return out
}

func (e *Executor) buy(ctx context.Context, out *arb.TradeOutcome) {
	orderID, err := e.client.SubmitMarketOrder(ctx, alpaca.OrderRequest{
		Symbol:   e.symbol,
		Side:     alpaca.Buy,
		Notional: e.notional,
	})
	if err != nil {
		out.Reason = ReasonSubmitFailed
		out.Error = err.Error()
		log.Warn().Err(err).Str("symbol", e.symbol).Msg("buy order rejected")
		return
	}

	out.Executed = true
	out.Side = "buy"
	out.OrderID = orderID
	out.Reason = ReasonSubmitted
	log.Info().Str("order_id", orderID).Str("symbol", e.symbol).Msg("buy order submitted")
}

// sell reduces an existing long: the lesser of the held quantity and
// notional/spot. A flat position is a skip, not an error.
func (e *Executor) sell(ctx context.Context, spot float64, out *arb.TradeOutcome) {
	if spot <= 0 {
		out.Reason = ReasonInvalidSpot
		return
	}

	held, err := e.client.GetPositionQty(ctx, e.symbol)
	if err != nil {
		if errors.Is(err, alpaca.ErrNoPosition) {
			out.Reason = ReasonNoPosition
			return
		}
		out.Reason = ReasonSubmitFailed
		out.Error = err.Error()
		return
	}
	if !held.IsPositive() {
		out.Reason = ReasonNoPosition
		return
	}

	qty := e.notional.Div(decimal.NewFromFloat(spot))
	if held.LessThan(qty) {
		qty = held
	}
	qty = qty.Round(6)
	if !qty.IsPositive() {
		out.Reason = ReasonQtyTooSmall
		return
	}

	orderID, err := e.client.SubmitMarketOrder(ctx, alpaca.OrderRequest{
		Symbol: e.symbol,
		Side:   alpaca.Sell,
		Qty:    qty,
	})
	if err != nil {
		out.Reason = ReasonSubmitFailed
		out.Error = err.Error()
		log.Warn().Err(err).Str("symbol", e.symbol).Msg("sell order rejected")
		return
	}

	out.Executed = true
	out.Side = "sell"
	out.OrderID = orderID
	out.Reason = ReasonSubmitted
	out.SellQty, _ = qty.Float64()
	log.Info().Str("order_id", orderID).Str("qty", qty.String()).Msg("sell order submitted")
}
