// Package monitor runs the polling loop: each round takes a prediction
// market quote and recent spot history, estimates the directional edge,
// optionally trades it, and appends the result to the round journal.
package monitor

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantrelay/arbmon/internal/arb"
	"github.com/quantrelay/arbmon/internal/config"
	"github.com/quantrelay/arbmon/internal/estimator"
	"github.com/quantrelay/arbmon/internal/gamma"
	"github.com/quantrelay/arbmon/internal/lockfile"
)

// State of the loop. Transitions are STOPPED -> RUNNING -> STOPPED.
type State int32

const (
	StateStopped State = iota
	StateRunning
)

// MarketSource supplies the current prediction-market snapshot.
type MarketSource interface {
	FetchTargetMarket(ctx context.Context, tagSlug, phrase string) (*gamma.Market, error)
}

// PriceSource supplies rolling close history for the spot asset.
type PriceSource interface {
	GetCloses(ctx context.Context, symbol string, limit int) ([]float64, error)
}

// Trader attempts the follow-on trade for a round.
type Trader interface {
	MaybeTrade(ctx context.Context, opp arb.Opportunity) arb.TradeOutcome
}

// Recorder appends a round record to the durable log.
type Recorder interface {
	Append(v any) error
}

// Mirror persists rounds into the optional record store.
type Mirror interface {
	SaveOpportunity(opp arb.Opportunity) error
}

// Alerter is notified of tradable rounds.
type Alerter interface {
	Alert(opp arb.Opportunity)
}

// Monitor owns one polling loop.
type Monitor struct {
	cfg     *config.Config
	markets MarketSource
	prices  PriceSource
	journal Recorder
	lock    *lockfile.Lock

	// Optional collaborators.
	trader  Trader
	mirror  Mirror
	alerter Alerter

	paper bool
	out   io.Writer
	state State
	now   func() time.Time
	pid   func() int
}

// New assembles a monitor. journal and lock are required; trader, mirror and
// alerter may be nil.
func New(cfg *config.Config, markets MarketSource, prices PriceSource,
	journal Recorder, lock *lockfile.Lock) *Monitor {
	return &Monitor{
		cfg:     cfg,
		markets: markets,
		prices:  prices,
		journal: journal,
		lock:    lock,
		out:     os.Stdout,
		now:     time.Now,
		pid:     os.Getpid,
	}
}

// SetTrader enables auto-trading.
func (m *Monitor) SetTrader(t Trader) { m.trader = t }

// SetMirror enables the record store.
func (m *Monitor) SetMirror(s Mirror) { m.mirror = s }

// SetAlerter enables alerts on ARBITRAGE rounds.
func (m *Monitor) SetAlerter(a Alerter) { m.alerter = a }

// SetOutput redirects round summaries (tests).
func (m *Monitor) SetOutput(w io.Writer) { m.out = w }

// SetPaper marks round records as paper-account rounds.
func (m *Monitor) SetPaper(paper bool) { m.paper = paper }

// State reports the loop state.
func (m *Monitor) State() State { return m.state }

// Run acquires the single-instance lock and polls until the context is
// cancelled or the configured round count completes. A failed round is
// recorded and does not stop the loop. The lock file is removed on every
// exit path.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.lock.Acquire(m.pid()); err != nil {
		return err
	}
	defer m.lock.Release()

	m.state = StateRunning
	defer func() { m.state = StateStopped }()

	log.Info().
		Str("symbol", m.cfg.Symbol).
		Dur("interval", m.cfg.Interval).
		Int("polls", m.cfg.Polls).
		Bool("auto_trade", m.trader != nil).
		Msg("monitor started")

	rounds := 0
	for {
		rounds++
		opp := m.runRound(ctx)
		m.emit(opp)
		m.persist(opp)

		if m.cfg.Polls > 0 && rounds >= m.cfg.Polls {
			log.Info().Int("rounds", rounds).Msg("bounded run complete")
			return nil
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("monitor stopped")
			return nil
		case <-time.After(m.cfg.Interval):
		}
	}
}

// runRound performs one snapshot -> estimate -> gate -> trade cycle. Any
// failure produces an error-tagged record instead of propagating.
func (m *Monitor) runRound(ctx context.Context) arb.Opportunity {
	market, err := m.markets.FetchTargetMarket(ctx, m.cfg.TagSlug, m.cfg.TargetPhrase)
	if err != nil {
		return arb.ErrorOpportunity(m.now(), fmt.Errorf("fetching market: %w", err))
	}

	quote, err := gamma.ExtractQuote(market)
	if err != nil {
		return arb.ErrorOpportunity(m.now(), fmt.Errorf("extracting quote: %w", err))
	}

	closes, err := m.prices.GetCloses(ctx, m.cfg.Symbol, m.cfg.HistoryBars)
	if err != nil {
		return arb.ErrorOpportunity(m.now(), fmt.Errorf("fetching price history: %w", err))
	}
	spot := closes[len(closes)-1]

	modelUp, meta := estimator.Estimate(closes, m.cfg.Neighbors)

	question := market.Question
	if question == "" {
		question = market.Title
	}
	opp := arb.BuildOpportunity(m.now(), arb.MarketInfo{
		Question:  question,
		Slug:      market.Slug,
		EventSlug: market.EventSlug,
	}, quote.UpProb, quote.DownProb, modelUp, spot, m.cfg.FeeRate, meta, m.cfg.Symbol, m.paper)

	if m.trader != nil {
		out := m.trader.MaybeTrade(ctx, opp)
		opp.AutoTrade = &out
	}

	if opp.Signal == arb.SignalArbitrage && m.alerter != nil {
		m.alerter.Alert(opp)
	}

	return opp
}

// emit prints the one-line round summary, either human-readable or as a
// single JSON object.
func (m *Monitor) emit(opp arb.Opportunity) {
	if m.cfg.JSONOutput {
		fmt.Fprintln(m.out, opp.JSONLine())
		return
	}

	if opp.Signal == arb.SignalError {
		fmt.Fprintf(m.out, "⚠️ %s | ERROR | %s\n", opp.TimestampUTC, opp.Err)
		return
	}

	mark := "·"
	if opp.Signal == arb.SignalArbitrage {
		mark = "🚨"
	}
	fmt.Fprintf(m.out, "%s %s | %s | best=%s edge=%.3f%% (fee=%.3f%%) | PM Up=%.2f%% Down=%.2f%% | Model Up=%.2f%% | Spot=%.2f\n",
		mark, opp.TimestampUTC, opp.Signal,
		opp.BestSide, opp.BestEdge*100, opp.FeeRate*100,
		opp.PMUpProb*100, opp.PMDownProb*100,
		opp.ModelUpProb*100, opp.SpotPrice)

	if at := opp.AutoTrade; at != nil && at.Enabled {
		fmt.Fprintf(m.out, "    auto_trade: executed=%t side=%s order_id=%s reason=%s\n",
			at.Executed, at.Side, at.OrderID, at.Reason)
	}
}

// persist appends to the journal and, when configured, the record store.
// Journal failures are logged loudly; mirror failures quietly. Neither
// terminates the loop.
func (m *Monitor) persist(opp arb.Opportunity) {
	if err := m.journal.Append(opp); err != nil {
		log.Error().Err(err).Msg("journal append failed")
	}
	if m.mirror != nil {
		if err := m.mirror.SaveOpportunity(opp); err != nil {
			log.Warn().Err(err).Msg("record store write failed")
		}
	}
}
