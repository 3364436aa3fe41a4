// Package strategy implements the pure, side-effect-free decision function
// that maps a book snapshot, the current position, and any resting buy into
// at most one Action per tick, under strict stop-loss > take-profit > buy
// priority.
package strategy

import (
	"time"

	"sniper/internal/market"
	"sniper/internal/position"
	"sniper/internal/quote"
)

// ActionKind enumerates the possible decisions Evaluate can return.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionPlaceBuy
	ActionReplaceBuy
	ActionCancelBuy
	ActionSellTP
	ActionSellSL
)

func (k ActionKind) String() string {
	switch k {
	case ActionPlaceBuy:
		return "place_buy"
	case ActionReplaceBuy:
		return "replace_buy"
	case ActionCancelBuy:
		return "cancel_buy"
	case ActionSellTP:
		return "sell_take_profit"
	case ActionSellSL:
		return "sell_stop_loss"
	default:
		return "none"
	}
}

// Action is the single decision Evaluate returns for a tick. Fields not
// relevant to Kind are left zero.
type Action struct {
	Kind    ActionKind
	Price   quote.Price // limit price for PlaceBuy/ReplaceBuy/SellTP/SellSL
	Size    quote.Size  // share or notional size, depending on Kind
	OrderID string      // populated for ReplaceBuy/CancelBuy — identifies the RestingBuy being touched
}

// RestingBuy mirrors the order currently resting on the book, if any.
type RestingBuy struct {
	OrderID   string
	Price     quote.Price
	Size      quote.Size
	PlacedAt  time.Time
}

// Params bundles the configured thresholds Evaluate is parameterized by.
// All are validated at startup by internal/config; Evaluate assumes they
// are already well-formed (buy_min < buy_max, all within [0,1]).
type Params struct {
	BuyMin     quote.Price
	BuyMax     quote.Price
	TakeProfit quote.Price
	StopLoss   quote.Price
	OrderSize  quote.Size
	Tick       quote.TickSize
}

// Evaluate is the pure decision function. On a stale book the caller
// (internal/sniper) replaces snap with a REST top-of-book fetch before
// calling Evaluate and passes bookStale=true; Evaluate then still considers
// SL/TP but returns ActionNone instead of any buy action.
func Evaluate(snap market.BookView, pos position.Snapshot, resting *RestingBuy, bookStale bool, p Params) Action {
	// 1. Stop-loss — highest priority, evaluated even on a stale book because
	// the caller is responsible for refreshing best_bid via REST first.
	if !pos.Shares.IsZero() && snap.HaveBid && snap.Bid.LessOrEqual(p.StopLoss) {
		size := pos.Shares.Min(p.OrderSize)
		return Action{Kind: ActionSellSL, Price: snap.Bid, Size: size}
	}

	// 2. Take-profit.
	if !pos.Shares.IsZero() && snap.HaveBid && snap.Bid.GreaterOrEqual(p.TakeProfit) {
		size := pos.Shares.Min(p.OrderSize)
		return Action{Kind: ActionSellTP, Price: snap.Bid, Size: size}
	}

	// 3. Buy management — only ever considered on a fresh book.
	if bookStale {
		return Action{Kind: ActionNone}
	}
	headroom := pos.HeadroomToBuy()
	if headroom.IsZero() {
		return Action{Kind: ActionNone}
	}
	if !snap.HaveAsk {
		return Action{Kind: ActionNone}
	}

	target, inBand := clampToBand(snap.Ask, p.BuyMin, p.BuyMax)
	size := headroom.Min(p.OrderSize)

	switch {
	case resting == nil && inBand:
		return Action{Kind: ActionPlaceBuy, Price: target, Size: size}
	case resting == nil:
		return Action{Kind: ActionNone}
	case !inBand:
		return Action{Kind: ActionCancelBuy, OrderID: resting.OrderID}
	case priceDrifted(resting.Price, target, p.Tick):
		return Action{Kind: ActionReplaceBuy, OrderID: resting.OrderID, Price: target, Size: size}
	default:
		return Action{Kind: ActionNone}
	}
}

// clampToBand returns best_ask unchanged as the target price and whether it
// lies within [buy_min, buy_max]. An ask outside the band yields
// inBand=false; the caller decides whether that means "no buy" or "cancel
// the existing resting buy."
func clampToBand(ask, buyMin, buyMax quote.Price) (target quote.Price, inBand bool) {
	if ask.LessThan(buyMin) || ask.GreaterThan(buyMax) {
		return ask, false
	}
	return ask, true
}

// priceDrifted reports whether the resting buy's price differs from the
// target by more than one tick.
func priceDrifted(resting, target quote.Price, tick quote.TickSize) bool {
	diff := resting.Decimal().Sub(target.Decimal()).Abs()
	return diff.GreaterThan(tick.Decimal())
}
