// Package market maintains a local mirror of the top of book for the single
// asset currently being traded, and resolves trading windows to asset ids.
//
// Book is updated from two sources:
//   - REST snapshots via ApplyBookResponse (the driver's stale-book fallback)
//   - WebSocket events via ApplyBookEvent (full snapshots) and ApplyPriceChange
//     (incremental updates)
//
// It is concurrency-safe (RWMutex protected) even though the tick driver is
// single-threaded, because the status endpoint reads it from the HTTP
// server's goroutines while the driver goroutine applies updates.
package market

import (
	"sync"
	"time"

	"sniper/internal/quote"
	"sniper/pkg/types"
)

// Book tracks the top of book for one asset, plus a monotonically
// increasing sequence number used to discard out-of-order updates.
type Book struct {
	mu      sync.RWMutex
	asset   quote.AssetID
	bid     quote.Price
	ask     quote.Price
	haveBid bool
	haveAsk bool
	seq     uint64
	updated time.Time
}

// NewBook creates an empty local book for the given asset.
func NewBook(asset quote.AssetID) *Book {
	return &Book{asset: asset}
}

// Asset returns the asset this book mirrors.
func (b *Book) Asset() quote.AssetID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.asset
}

// Reset rebinds the book to a new asset and clears all state. Called at
// window-rotation boundaries before the new asset's feed is subscribed.
func (b *Book) Reset(asset quote.AssetID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.asset = asset
	b.bid = quote.Price{}
	b.ask = quote.Price{}
	b.haveBid = false
	b.haveAsk = false
	b.seq = 0
	b.updated = time.Time{}
}

// ApplyBookEvent replaces the top of book with a full WS snapshot.
func (b *Book) ApplyBookEvent(event types.WSBookEvent, seq uint64) {
	b.applySnapshot(event.AssetID, event.Buys, event.Sells, seq)
}

// ApplyBookResponse applies a REST GET /book response as a full snapshot
// (used for the stale-book fallback fetch).
func (b *Book) ApplyBookResponse(resp *types.BookResponse, seq uint64) {
	b.applySnapshot(resp.AssetID, resp.Bids, resp.Asks, seq)
}

func (b *Book) applySnapshot(assetID string, bids, asks []types.PriceLevel, seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if assetID != b.asset.String() {
		return
	}
	if seq != 0 && seq < b.seq {
		// Stale relative to what we already hold; discard per staleness rule.
		return
	}

	if len(bids) > 0 {
		b.bid = mustParse(bids[0].Price)
		b.haveBid = true
	} else {
		b.haveBid = false
	}
	if len(asks) > 0 {
		b.ask = mustParse(asks[0].Price)
		b.haveAsk = true
	} else {
		b.haveAsk = false
	}

	b.seq = seq
	b.updated = time.Now()
}

// ApplyPriceChange applies an incremental price_change event, updating the
// best-bid/best-ask fields the feed reports alongside the delta.
func (b *Book) ApplyPriceChange(event types.WSPriceChangeEvent, seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if seq != 0 && seq < b.seq {
		return
	}
	for _, pc := range event.PriceChanges {
		if pc.AssetID != b.asset.String() {
			continue
		}
		if pc.BestBid != "" {
			b.bid = mustParse(pc.BestBid)
			b.haveBid = true
		}
		if pc.BestAsk != "" {
			b.ask = mustParse(pc.BestAsk)
			b.haveAsk = true
		}
	}
	b.seq = seq
	b.updated = time.Now()
}

// BookView is the read-only top-of-book snapshot the strategy evaluator
// consumes. Each side is independently optional: a one-sided book (e.g.
// bid known, ask unknown) is valid input for the sell branches even though
// the buy branch requires both sides.
type BookView struct {
	Bid     quote.Price
	Ask     quote.Price
	HaveBid bool
	HaveAsk bool
}

// View returns the current top-of-book snapshot.
func (b *Book) View() BookView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BookView{Bid: b.bid, Ask: b.ask, HaveBid: b.haveBid, HaveAsk: b.haveAsk}
}

// Snapshot returns the current top of book. ok is false until both sides
// have been observed at least once. Retained as a convenience for callers
// that only care about the fully-formed two-sided case (tests);
// internal/strategy and the driver's REST fallback use View instead.
func (b *Book) Snapshot() (bid, ask quote.Price, ok bool) {
	v := b.View()
	if !v.HaveBid || !v.HaveAsk {
		return quote.Price{}, quote.Price{}, false
	}
	return v.Bid, v.Ask, true
}

// IsStale reports whether the book has not been refreshed within maxAge.
func (b *Book) IsStale(maxAge time.Duration) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.updated.IsZero() {
		return true
	}
	return time.Since(b.updated) > maxAge
}

// LastUpdated returns the timestamp of the last applied update.
func (b *Book) LastUpdated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}

func mustParse(s string) quote.Price {
	// Book input always comes from the exchange, which only ever emits
	// valid decimal strings in [0,1]; a parse failure here means the feed
	// itself is corrupt, not a caller bug, so we fall back to zero rather
	// than panicking the tick loop.
	p, err := quote.NewPrice(s)
	if err != nil {
		return quote.Price{}
	}
	return p
}
