package market

import (
	"strconv"
	"testing"
)

func sampleMarket(slug string, spread, volume, liquidity float64) gammaMarket {
	return gammaMarket{
		ID:              slug + "-id",
		Slug:            slug,
		Question:        "Will " + slug + " happen?",
		Active:          true,
		AcceptingOrders: true,
		EnableOrderBook: true,
		ClobTokenIds:    `["111","222"]`,
		Spread:          spread,
		Volume24hr:      volume,
		Liquidity:       strconv.FormatFloat(liquidity, 'f', -1, 64),
	}
}

func TestFilterByIdentifierMatchesSlug(t *testing.T) {
	t.Parallel()
	markets := []gammaMarket{sampleMarket("btc-up-5m-2026-07-31-1200", 0.02, 1000, 5000)}
	got := filterByIdentifier(markets, "btc-up-5m-2026-07-31-1200")
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
}

func TestFilterByIdentifierMatchesSlugFragment(t *testing.T) {
	t.Parallel()
	markets := []gammaMarket{sampleMarket("btc-up-5m-2026-07-31-1200", 0.02, 1000, 5000)}
	got := filterByIdentifier(markets, "btc-up-5m")
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
}

func TestFilterByIdentifierExcludesInactive(t *testing.T) {
	t.Parallel()
	m := sampleMarket("btc-up-5m", 0.02, 1000, 5000)
	m.Active = false
	got := filterByIdentifier([]gammaMarket{m}, "btc-up-5m")
	if len(got) != 0 {
		t.Fatalf("len(got) = %d, want 0", len(got))
	}
}

func TestFilterByIdentifierExcludesMissingTokenIDs(t *testing.T) {
	t.Parallel()
	m := sampleMarket("btc-up-5m", 0.02, 1000, 5000)
	m.ClobTokenIds = ""
	got := filterByIdentifier([]gammaMarket{m}, "btc-up-5m")
	if len(got) != 0 {
		t.Fatalf("len(got) = %d, want 0", len(got))
	}
}

func TestPickBestSingleCandidate(t *testing.T) {
	t.Parallel()
	m := sampleMarket("btc-up-5m", 0.02, 1000, 5000)
	got := pickBest([]gammaMarket{m})
	if got.ID != m.ID {
		t.Errorf("ID = %v, want %v", got.ID, m.ID)
	}
}

func TestPickBestHighestScoreWins(t *testing.T) {
	t.Parallel()
	low := sampleMarket("dup-low", 0.01, 100, 1000)
	high := sampleMarket("dup-high", 0.05, 10000, 20000)
	got := pickBest([]gammaMarket{low, high})
	if got.ID != high.ID {
		t.Errorf("pickBest returned %v, want %v (higher score)", got.ID, high.ID)
	}
}

func TestTokenForOutcomeYes(t *testing.T) {
	t.Parallel()
	m := sampleMarket("btc-up-5m", 0.02, 1000, 5000)
	got, err := tokenForOutcome(m, "Yes")
	if err != nil {
		t.Fatalf("tokenForOutcome: %v", err)
	}
	if got != "111" {
		t.Errorf("token = %v, want 111", got)
	}
}

func TestTokenForOutcomeNo(t *testing.T) {
	t.Parallel()
	m := sampleMarket("btc-up-5m", 0.02, 1000, 5000)
	got, err := tokenForOutcome(m, "no")
	if err != nil {
		t.Fatalf("tokenForOutcome: %v", err)
	}
	if got != "222" {
		t.Errorf("token = %v, want 222", got)
	}
}

func TestTokenForOutcomeUnknown(t *testing.T) {
	t.Parallel()
	m := sampleMarket("btc-up-5m", 0.02, 1000, 5000)
	if _, err := tokenForOutcome(m, "maybe"); err == nil {
		t.Fatal("expected error for unknown outcome")
	}
}
