package position

import (
	"testing"

	"sniper/internal/quote"
)

func TestOnBuyFillSingle(t *testing.T) {
	t.Parallel()
	tr := New(quote.MustSize("500"))

	tr.OnBuyFill(quote.MustPrice("0.50"), quote.MustSize("100"))

	snap := tr.Snapshot()
	if !snap.Shares.Equal(quote.MustSize("100")) {
		t.Errorf("Shares = %v, want 100", snap.Shares)
	}
	if !snap.AvgEntry.Equal(quote.MustPrice("0.50")) {
		t.Errorf("AvgEntry = %v, want 0.50", snap.AvgEntry)
	}
}

func TestOnBuyFillAveragesAcrossFills(t *testing.T) {
	t.Parallel()
	tr := New(quote.MustSize("500"))

	tr.OnBuyFill(quote.MustPrice("0.50"), quote.MustSize("100"))
	tr.OnBuyFill(quote.MustPrice("0.60"), quote.MustSize("100"))

	snap := tr.Snapshot()
	if !snap.Shares.Equal(quote.MustSize("200")) {
		t.Errorf("Shares = %v, want 200", snap.Shares)
	}
	if !snap.AvgEntry.Equal(quote.MustPrice("0.55")) {
		t.Errorf("AvgEntry = %v, want 0.55", snap.AvgEntry)
	}
}

func TestOnSellFillRealizesPnL(t *testing.T) {
	t.Parallel()
	tr := New(quote.MustSize("500"))
	tr.OnBuyFill(quote.MustPrice("0.50"), quote.MustSize("100"))

	if err := tr.OnSellFill(quote.MustPrice("0.60"), quote.MustSize("100")); err != nil {
		t.Fatalf("OnSellFill returned error: %v", err)
	}

	snap := tr.Snapshot()
	if !snap.Shares.IsZero() {
		t.Errorf("Shares = %v, want 0", snap.Shares)
	}
	want := "10" // (0.60 - 0.50) * 100
	if snap.RealizedPnL.String() != want {
		t.Errorf("RealizedPnL = %v, want %v", snap.RealizedPnL, want)
	}
}

func TestOnSellFillUnderflow(t *testing.T) {
	t.Parallel()
	tr := New(quote.MustSize("500"))
	tr.OnBuyFill(quote.MustPrice("0.50"), quote.MustSize("50"))

	err := tr.OnSellFill(quote.MustPrice("0.60"), quote.MustSize("100"))
	if err != ErrUnderflow {
		t.Fatalf("err = %v, want ErrUnderflow", err)
	}

	// A rejected sell must not mutate the ledger.
	snap := tr.Snapshot()
	if !snap.Shares.Equal(quote.MustSize("50")) {
		t.Errorf("Shares mutated on underflow: %v", snap.Shares)
	}
}

func TestHeadroomToBuy(t *testing.T) {
	t.Parallel()
	tr := New(quote.MustSize("500"))
	tr.OnBuyFill(quote.MustPrice("0.50"), quote.MustSize("400"))

	snap := tr.Snapshot()
	if !snap.HeadroomToBuy().Equal(quote.MustSize("100")) {
		t.Errorf("HeadroomToBuy() = %v, want 100", snap.HeadroomToBuy())
	}
}

func TestHeadroomToBuyAtCap(t *testing.T) {
	t.Parallel()
	tr := New(quote.MustSize("500"))
	tr.OnBuyFill(quote.MustPrice("0.50"), quote.MustSize("500"))

	snap := tr.Snapshot()
	if !snap.HeadroomToBuy().IsZero() {
		t.Errorf("HeadroomToBuy() = %v, want 0 at cap", snap.HeadroomToBuy())
	}
}

func TestResetFromExchange(t *testing.T) {
	t.Parallel()
	tr := New(quote.MustSize("500"))
	tr.OnBuyFill(quote.MustPrice("0.50"), quote.MustSize("100"))

	tr.ResetFromExchange(quote.MustSize("250"), quote.MustPrice("0.72"))

	snap := tr.Snapshot()
	if !snap.Shares.Equal(quote.MustSize("250")) {
		t.Errorf("Shares = %v, want 250 after reset", snap.Shares)
	}
	if !snap.AvgEntry.Equal(quote.MustPrice("0.72")) {
		t.Errorf("AvgEntry = %v, want 0.72 after reset", snap.AvgEntry)
	}
}
