// Package position tracks the local share ledger for the single asset the
// bot currently holds: how many shares it owns, the running average entry
// price, realized PnL, and the position cap that bounds every buy.
package position

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"sniper/internal/quote"
)

// ErrUnderflow is returned when a sell fill's size exceeds the shares
// currently held. The caller must treat this as a signal that the local
// ledger has drifted from the exchange's view of truth and must be rebuilt
// via ResetFromExchange; the tick that produced it is aborted.
var ErrUnderflow = errors.New("position: sell fill exceeds held shares")

// Snapshot is a value copy of the position state, safe to read without
// holding the Tracker's lock.
type Snapshot struct {
	Shares      quote.Size
	AvgEntry    quote.Price
	RealizedPnL decimal.Decimal // signed, unbounded — not a probability
	Cap         quote.Size
	LastUpdated time.Time
}

// HeadroomToBuy returns how many more shares can be bought before Cap is
// reached. Zero means the position is at or over cap.
func (s Snapshot) HeadroomToBuy() quote.Size {
	if s.Shares.GreaterThan(s.Cap) || s.Shares.Equal(s.Cap) {
		return quote.ZeroSize
	}
	return s.Cap.Sub(s.Shares)
}

// Tracker is the concurrency-safe, single-asset position ledger.
type Tracker struct {
	mu  sync.RWMutex
	pos Snapshot
}

// New creates a position tracker with the given cap and zero shares.
func New(cap quote.Size) *Tracker {
	return &Tracker{pos: Snapshot{Cap: cap}}
}

// Snapshot returns a copy of the current position.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pos
}

// ResetFromExchange replaces local state with the given shares held and
// average entry price. The driver calls it with zero shares after
// ErrUnderflow and at each window rotation; nothing in this module queries
// the exchange for held shares, and it is not called at startup (a new
// Tracker starts flat). Realized PnL is not reset — it is a session-local
// counter, not something the exchange reports.
func (t *Tracker) ResetFromExchange(shares quote.Size, avgEntry quote.Price) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pos.Shares = shares
	t.pos.AvgEntry = avgEntry
	t.pos.LastUpdated = time.Now()
}

// OnBuyFill records a buy fill, extending the position and updating the
// volume-weighted average entry price.
func (t *Tracker) OnBuyFill(price quote.Price, size quote.Size) {
	t.mu.Lock()
	defer t.mu.Unlock()

	existingCost := t.pos.AvgEntry.Decimal().Mul(t.pos.Shares.Decimal())
	fillCost := price.Decimal().Mul(size.Decimal())
	newShares := t.pos.Shares.Add(size)

	if !newShares.IsZero() {
		avg := existingCost.Add(fillCost).Div(newShares.Decimal())
		if p, err := quote.NewPrice(avg.Truncate(8).String()); err == nil {
			t.pos.AvgEntry = p
		}
	}
	t.pos.Shares = newShares
	t.pos.LastUpdated = time.Now()
}

// OnSellFill records a sell fill, reducing the position and realizing PnL
// on the portion sold. Returns ErrUnderflow if size exceeds shares held —
// the caller must abort the tick and reset from the exchange rather than
// silently flooring the position at zero.
func (t *Tracker) OnSellFill(price quote.Price, size quote.Size) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if size.GreaterThan(t.pos.Shares) {
		return ErrUnderflow
	}

	pnlDelta := price.Decimal().Sub(t.pos.AvgEntry.Decimal()).Mul(size.Decimal())
	t.pos.RealizedPnL = t.pos.RealizedPnL.Add(pnlDelta)

	t.pos.Shares = t.pos.Shares.Sub(size)
	if t.pos.Shares.IsZero() {
		t.pos.AvgEntry = quote.Price{}
	}
	t.pos.LastUpdated = time.Now()
	return nil
}
