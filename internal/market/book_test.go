package market

import (
	"testing"
	"time"

	"sniper/internal/quote"
	"sniper/pkg/types"
)

var testAsset = quote.MustAssetID("123456789")

func newTestBook() *Book {
	return NewBook(testAsset)
}

func TestApplyBookResponse(t *testing.T) {
	t.Parallel()
	b := newTestBook()

	b.ApplyBookResponse(&types.BookResponse{
		AssetID: testAsset.String(),
		Bids:    []types.PriceLevel{{Price: "0.55", Size: "100"}, {Price: "0.54", Size: "200"}},
		Asks:    []types.PriceLevel{{Price: "0.57", Size: "150"}},
	}, 1)

	bid, ask, ok := b.Snapshot()
	if !ok {
		t.Fatal("Snapshot returned ok=false after applying snapshot")
	}
	if !bid.Equal(quote.MustPrice("0.55")) {
		t.Errorf("bid = %v, want 0.55", bid)
	}
	if !ask.Equal(quote.MustPrice("0.57")) {
		t.Errorf("ask = %v, want 0.57", ask)
	}
}

func TestApplyBookEvent(t *testing.T) {
	t.Parallel()
	b := newTestBook()

	b.ApplyBookEvent(types.WSBookEvent{
		AssetID: testAsset.String(),
		Buys:    []types.PriceLevel{{Price: "0.60", Size: "50"}},
		Sells:   []types.PriceLevel{{Price: "0.62", Size: "75"}},
	}, 1)

	bid, ask, ok := b.Snapshot()
	if !ok {
		t.Fatal("Snapshot returned ok=false")
	}
	if !bid.Equal(quote.MustPrice("0.60")) {
		t.Errorf("bid = %v, want 0.60", bid)
	}
	if !ask.Equal(quote.MustPrice("0.62")) {
		t.Errorf("ask = %v, want 0.62", ask)
	}
}

func TestSnapshotEmpty(t *testing.T) {
	t.Parallel()
	b := newTestBook()

	_, _, ok := b.Snapshot()
	if ok {
		t.Error("Snapshot should return ok=false for empty book")
	}
}

func TestSnapshotOneSided(t *testing.T) {
	t.Parallel()
	b := newTestBook()

	b.ApplyBookResponse(&types.BookResponse{
		AssetID: testAsset.String(),
		Bids:    []types.PriceLevel{{Price: "0.50", Size: "100"}},
		Asks:    nil,
	}, 1)

	_, _, ok := b.Snapshot()
	if ok {
		t.Error("Snapshot should return ok=false with only bids")
	}
}

func TestOutOfOrderSequenceDiscarded(t *testing.T) {
	t.Parallel()
	b := newTestBook()

	b.ApplyBookResponse(&types.BookResponse{
		AssetID: testAsset.String(),
		Bids:    []types.PriceLevel{{Price: "0.50", Size: "100"}},
		Asks:    []types.PriceLevel{{Price: "0.60", Size: "100"}},
	}, 5)

	// Stale update arriving after a newer one must be discarded.
	b.ApplyBookResponse(&types.BookResponse{
		AssetID: testAsset.String(),
		Bids:    []types.PriceLevel{{Price: "0.40", Size: "100"}},
		Asks:    []types.PriceLevel{{Price: "0.70", Size: "100"}},
	}, 3)

	bid, ask, ok := b.Snapshot()
	if !ok {
		t.Fatal("Snapshot returned ok=false")
	}
	if !bid.Equal(quote.MustPrice("0.50")) || !ask.Equal(quote.MustPrice("0.60")) {
		t.Errorf("out-of-order update was applied: bid=%v ask=%v", bid, ask)
	}
}

func TestIsStale(t *testing.T) {
	t.Parallel()
	b := newTestBook()

	if !b.IsStale(time.Second) {
		t.Error("new book should be stale")
	}

	b.ApplyBookResponse(&types.BookResponse{
		AssetID: testAsset.String(),
		Bids:    []types.PriceLevel{{Price: "0.50", Size: "100"}},
		Asks:    []types.PriceLevel{{Price: "0.60", Size: "100"}},
	}, 1)

	if b.IsStale(time.Second) {
		t.Error("just-updated book should not be stale")
	}

	time.Sleep(50 * time.Millisecond)
	if !b.IsStale(10 * time.Millisecond) {
		t.Error("book should be stale after maxAge")
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	b := newTestBook()
	b.ApplyBookResponse(&types.BookResponse{
		AssetID: testAsset.String(),
		Bids:    []types.PriceLevel{{Price: "0.50", Size: "100"}},
		Asks:    []types.PriceLevel{{Price: "0.60", Size: "100"}},
	}, 1)

	next := quote.MustAssetID("987654321")
	b.Reset(next)

	if !b.Asset().Equal(next) {
		t.Errorf("Asset() = %v, want %v", b.Asset(), next)
	}
	if _, _, ok := b.Snapshot(); ok {
		t.Error("Snapshot should be empty after Reset")
	}
	if !b.IsStale(time.Hour) {
		t.Error("book should be stale immediately after Reset")
	}
}
