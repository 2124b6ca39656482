package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantrelay/arbmon/internal/alpaca"
	"github.com/quantrelay/arbmon/internal/arb"
)

type fakeBroker struct {
	orders      []alpaca.OrderRequest
	nextOrderID string
	submitErr   error
	positionQty decimal.Decimal
	positionErr error
}

func (f *fakeBroker) SubmitMarketOrder(_ context.Context, req alpaca.OrderRequest) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.orders = append(f.orders, req)
	return f.nextOrderID, nil
}

func (f *fakeBroker) GetPositionQty(_ context.Context, _ string) (decimal.Decimal, error) {
	if f.positionErr != nil {
		return decimal.Zero, f.positionErr
	}
	return f.positionQty, nil
}

func arbOpp(side arb.Side, spot float64) arb.Opportunity {
	return arb.Opportunity{Signal: arb.SignalArbitrage, BestSide: side, SpotPrice: spot}
}

func newTestExecutor(broker *fakeBroker, cooldown time.Duration) (*Executor, *time.Time) {
	e := New(broker, "BTCUSD", 100, cooldown)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return clock }
	return e, &clock
}

func TestMaybeTradeBuysUpSide(t *testing.T) {
	broker := &fakeBroker{nextOrderID: "ord-1"}
	e, _ := newTestExecutor(broker, 5*time.Minute)

	out := e.MaybeTrade(context.Background(), arbOpp(arb.SideUp, 65000))
	if !out.Executed || out.Reason != ReasonSubmitted {
		t.Fatalf("outcome = %+v", out)
	}
	if out.OrderID != "ord-1" || out.Side != "buy" {
		t.Errorf("outcome = %+v", out)
	}
	if len(broker.orders) != 1 || !broker.orders[0].Notional.Equal(decimal.NewFromInt(100)) {
		t.Errorf("orders = %+v", broker.orders)
	}
	if broker.orders[0].Qty.IsPositive() {
		t.Error("buy must be notional-sized, not qty-sized")
	}
}

func TestMaybeTradeCooldown(t *testing.T) {
	broker := &fakeBroker{nextOrderID: "ord-1"}
	e, clock := newTestExecutor(broker, 5*time.Minute)

	// First arbitrage signal trades.
	if out := e.MaybeTrade(context.Background(), arbOpp(arb.SideUp, 65000)); !out.Executed {
		t.Fatalf("first trade blocked: %+v", out)
	}

	// Second within the window is skipped with remaining time reported.
	*clock = clock.Add(2 * time.Minute)
	out := e.MaybeTrade(context.Background(), arbOpp(arb.SideUp, 65000))
	if out.Executed || out.Reason != ReasonCooldown {
		t.Fatalf("outcome = %+v, want cooldown skip", out)
	}
	if out.CooldownLeft < 179 || out.CooldownLeft > 181 {
		t.Errorf("CooldownLeft = %v, want ~180s", out.CooldownLeft)
	}

	// Third after the window trades again.
	*clock = clock.Add(4 * time.Minute)
	if out := e.MaybeTrade(context.Background(), arbOpp(arb.SideUp, 65000)); !out.Executed {
		t.Fatalf("post-cooldown trade blocked: %+v", out)
	}
	if len(broker.orders) != 2 {
		t.Errorf("submitted %d orders, want exactly 2", len(broker.orders))
	}
}

func TestMaybeTradeFailureKeepsCooldownOpen(t *testing.T) {
	broker := &fakeBroker{submitErr: errors.New("rejected")}
	e, _ := newTestExecutor(broker, 5*time.Minute)

	out := e.MaybeTrade(context.Background(), arbOpp(arb.SideUp, 65000))
	if out.Executed || out.Reason != ReasonSubmitFailed || out.Error == "" {
		t.Fatalf("outcome = %+v", out)
	}

	// The failed attempt must not start the cooldown.
	broker.submitErr = nil
	broker.nextOrderID = "ord-2"
	if out := e.MaybeTrade(context.Background(), arbOpp(arb.SideUp, 65000)); !out.Executed {
		t.Fatalf("retry blocked by cooldown after failure: %+v", out)
	}
}

func TestMaybeTradeSkipsNonArbitrage(t *testing.T) {
	broker := &fakeBroker{nextOrderID: "x"}
	e, _ := newTestExecutor(broker, time.Minute)

	out := e.MaybeTrade(context.Background(), arb.Opportunity{Signal: arb.SignalNoEdge, BestSide: arb.SideUp})
	if out.Executed || out.Reason != ReasonNotArbitrage {
		t.Fatalf("outcome = %+v", out)
	}
	if len(broker.orders) != 0 {
		t.Error("order submitted for NO_EDGE signal")
	}
}

func TestMaybeTradeDownSide(t *testing.T) {
	tests := []struct {
		name       string
		spot       float64
		held       decimal.Decimal
		positionErr error
		wantReason string
		wantQty    string
	}{
		{
			name: "sells capped by notional",
			spot: 50000, held: decimal.NewFromInt(1),
			wantReason: ReasonSubmitted, wantQty: "0.002",
		},
		{
			name: "sells capped by position",
			spot: 50000, held: decimal.RequireFromString("0.0005"),
			wantReason: ReasonSubmitted, wantQty: "0.0005",
		},
		{
			name: "no position is a skip",
			spot: 50000, positionErr: alpaca.ErrNoPosition,
			wantReason: ReasonNoPosition,
		},
		{
			name: "zero position is a skip",
			spot: 50000, held: decimal.Zero,
			wantReason: ReasonNoPosition,
		},
		{
			name: "invalid spot",
			spot: 0, held: decimal.NewFromInt(1),
			wantReason: ReasonInvalidSpot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broker := &fakeBroker{nextOrderID: "ord-1", positionQty: tt.held, positionErr: tt.positionErr}
			e, _ := newTestExecutor(broker, time.Minute)

			out := e.MaybeTrade(context.Background(), arbOpp(arb.SideDown, tt.spot))
			if out.Reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q (outcome %+v)", out.Reason, tt.wantReason, out)
			}
			if tt.wantQty == "" {
				if out.Executed || len(broker.orders) != 0 {
					t.Errorf("unexpected order: %+v", broker.orders)
				}
				return
			}
			if !out.Executed || out.Side != "sell" {
				t.Fatalf("outcome = %+v", out)
			}
			if len(broker.orders) != 1 || !broker.orders[0].Qty.Equal(decimal.RequireFromString(tt.wantQty)) {
				t.Errorf("sell qty = %v, want %s", broker.orders[0].Qty, tt.wantQty)
			}
		})
	}
}
