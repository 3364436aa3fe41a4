package strategy

import (
	"testing"

	"sniper/internal/market"
	"sniper/internal/position"
	"sniper/internal/quote"
)

// testParams mirrors the literal scenario parameters from the specification:
// buy_min=0.93, buy_max=0.95, take_profit=0.97, stop_loss=0.90, order_size=100,
// max_position=500, tick=0.01.
func testParams() Params {
	return Params{
		BuyMin:     quote.MustPrice("0.93"),
		BuyMax:     quote.MustPrice("0.95"),
		TakeProfit: quote.MustPrice("0.97"),
		StopLoss:   quote.MustPrice("0.90"),
		OrderSize:  quote.MustSize("100"),
		Tick:       quote.MustTick("0.01"),
	}
}

func posWith(shares string) position.Snapshot {
	return position.Snapshot{
		Shares: quote.MustSize(shares),
		Cap:    quote.MustSize("500"),
	}
}

func TestStopLossFullFill(t *testing.T) {
	t.Parallel()
	snap := market.BookView{Bid: quote.MustPrice("0.89"), HaveBid: true}
	a := Evaluate(snap, posWith("100"), nil, false, testParams())

	if a.Kind != ActionSellSL {
		t.Fatalf("Kind = %v, want ActionSellSL", a.Kind)
	}
	if !a.Price.Equal(quote.MustPrice("0.89")) || !a.Size.Equal(quote.MustSize("100")) {
		t.Errorf("action = %+v", a)
	}
}

func TestStopLossBoundaryEquality(t *testing.T) {
	t.Parallel()
	snap := market.BookView{Bid: quote.MustPrice("0.90"), HaveBid: true}
	a := Evaluate(snap, posWith("100"), nil, false, testParams())

	if a.Kind != ActionSellSL {
		t.Fatalf("best_bid == stop_loss must trigger SL, got %v", a.Kind)
	}
}

func TestTakeProfitBoundaryEquality(t *testing.T) {
	t.Parallel()
	snap := market.BookView{Bid: quote.MustPrice("0.97"), HaveBid: true}
	a := Evaluate(snap, posWith("50"), nil, false, testParams())

	if a.Kind != ActionSellTP {
		t.Fatalf("best_bid == take_profit must trigger TP, got %v", a.Kind)
	}
	if !a.Size.Equal(quote.MustSize("50")) {
		t.Errorf("Size = %v, want 50", a.Size)
	}
}

func TestStopLossBeatsTakeProfitPriority(t *testing.T) {
	t.Parallel()
	// A book that (pathologically) satisfies both guards must resolve to SL.
	p := testParams()
	p.StopLoss = quote.MustPrice("0.97")
	snap := market.BookView{Bid: quote.MustPrice("0.97"), HaveBid: true}
	a := Evaluate(snap, posWith("50"), nil, false, p)

	if a.Kind != ActionSellSL {
		t.Fatalf("SL must take priority over TP, got %v", a.Kind)
	}
}

func TestBuyPlaceWhenNoRestingBuy(t *testing.T) {
	t.Parallel()
	snap := market.BookView{
		Bid: quote.MustPrice("0.94"), HaveBid: true,
		Ask: quote.MustPrice("0.95"), HaveAsk: true,
	}
	a := Evaluate(snap, posWith("0"), nil, false, testParams())

	if a.Kind != ActionPlaceBuy {
		t.Fatalf("Kind = %v, want ActionPlaceBuy", a.Kind)
	}
	if !a.Price.Equal(quote.MustPrice("0.95")) || !a.Size.Equal(quote.MustSize("100")) {
		t.Errorf("action = %+v", a)
	}
}

func TestBuyBandBoundariesBothAdmit(t *testing.T) {
	t.Parallel()
	p := testParams()
	for _, ask := range []string{"0.93", "0.95"} {
		snap := market.BookView{
			Bid: quote.MustPrice("0.92"), HaveBid: true,
			Ask: quote.MustPrice(ask), HaveAsk: true,
		}
		a := Evaluate(snap, posWith("0"), nil, false, p)
		if a.Kind != ActionPlaceBuy {
			t.Errorf("ask=%s: Kind = %v, want ActionPlaceBuy", ask, a.Kind)
		}
	}
}

func TestBuyReplaceOnPriceDrift(t *testing.T) {
	t.Parallel()
	resting := &RestingBuy{OrderID: "old-1", Price: quote.MustPrice("0.95")}
	snap := market.BookView{
		Bid: quote.MustPrice("0.92"), HaveBid: true,
		Ask: quote.MustPrice("0.93"), HaveAsk: true,
	}
	a := Evaluate(snap, posWith("0"), resting, false, testParams())

	if a.Kind != ActionReplaceBuy {
		t.Fatalf("Kind = %v, want ActionReplaceBuy", a.Kind)
	}
	if a.OrderID != "old-1" || !a.Price.Equal(quote.MustPrice("0.93")) {
		t.Errorf("action = %+v", a)
	}
}

func TestBuyCancelWhenOutOfBand(t *testing.T) {
	t.Parallel()
	resting := &RestingBuy{OrderID: "old-2", Price: quote.MustPrice("0.94")}
	snap := market.BookView{
		Bid: quote.MustPrice("0.89"), HaveBid: true,
		Ask: quote.MustPrice("0.90"), HaveAsk: true,
	}
	a := Evaluate(snap, posWith("0"), resting, false, testParams())

	if a.Kind != ActionCancelBuy {
		t.Fatalf("Kind = %v, want ActionCancelBuy", a.Kind)
	}
	if a.OrderID != "old-2" {
		t.Errorf("OrderID = %v, want old-2", a.OrderID)
	}
}

func TestBuySuppressedOnStaleBook(t *testing.T) {
	t.Parallel()
	snap := market.BookView{
		Bid: quote.MustPrice("0.92"), HaveBid: true,
		Ask: quote.MustPrice("0.94"), HaveAsk: true,
	}
	a := Evaluate(snap, posWith("0"), nil, true, testParams())

	if a.Kind != ActionNone {
		t.Fatalf("Kind = %v, want ActionNone when book is stale", a.Kind)
	}
}

func TestBuySuppressedAtCap(t *testing.T) {
	t.Parallel()
	snap := market.BookView{
		Bid: quote.MustPrice("0.92"), HaveBid: true,
		Ask: quote.MustPrice("0.94"), HaveAsk: true,
	}
	a := Evaluate(snap, posWith("500"), nil, false, testParams())

	if a.Kind != ActionNone {
		t.Fatalf("Kind = %v, want ActionNone at headroom=0", a.Kind)
	}
}

func TestNoActionWhenNothingTriggers(t *testing.T) {
	t.Parallel()
	snap := market.BookView{
		Bid: quote.MustPrice("0.92"), HaveBid: true,
		Ask: quote.MustPrice("0.99"), HaveAsk: true, // outside band, no resting buy
	}
	a := Evaluate(snap, posWith("0"), nil, false, testParams())

	if a.Kind != ActionNone {
		t.Fatalf("Kind = %v, want ActionNone", a.Kind)
	}
}

func TestSellSizeClampedToOrderSize(t *testing.T) {
	t.Parallel()
	snap := market.BookView{Bid: quote.MustPrice("0.89"), HaveBid: true}
	a := Evaluate(snap, posWith("250"), nil, false, testParams())

	if !a.Size.Equal(quote.MustSize("100")) {
		t.Errorf("Size = %v, want order_size-clamped 100", a.Size)
	}
}
