package dedup

import (
	"testing"
	"time"

	"sniper/internal/quote"
)

func TestAdmitFirstTimeSucceeds(t *testing.T) {
	t.Parallel()
	w := New(50 * time.Millisecond)

	if !w.Admit(KindBuy, quote.MustSize("100")) {
		t.Fatal("first Admit should succeed")
	}
}

func TestAdmitRepeatWithinTTLRejected(t *testing.T) {
	t.Parallel()
	w := New(50 * time.Millisecond)

	w.Admit(KindSellStopLoss, quote.MustSize("100"))
	if w.Admit(KindSellStopLoss, quote.MustSize("100")) {
		t.Fatal("repeat intent within TTL should be rejected")
	}
}

func TestAdmitDifferentSizeNotDeduped(t *testing.T) {
	t.Parallel()
	w := New(50 * time.Millisecond)

	w.Admit(KindBuy, quote.MustSize("100"))
	if !w.Admit(KindBuy, quote.MustSize("150")) {
		t.Fatal("different size should not be deduped against a different key")
	}
}

func TestAdmitDifferentKindNotDeduped(t *testing.T) {
	t.Parallel()
	w := New(50 * time.Millisecond)

	w.Admit(KindSellStopLoss, quote.MustSize("100"))
	if !w.Admit(KindSellTakeProfit, quote.MustSize("100")) {
		t.Fatal("different kind with same size should not be deduped")
	}
}

func TestAdmitAfterTTLExpirySucceeds(t *testing.T) {
	t.Parallel()
	w := New(10 * time.Millisecond)

	w.Admit(KindBuy, quote.MustSize("100"))
	time.Sleep(20 * time.Millisecond)

	if !w.Admit(KindBuy, quote.MustSize("100")) {
		t.Fatal("intent should be admitted again after TTL expiry")
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	w := New(time.Minute)

	w.Admit(KindBuy, quote.MustSize("100"))
	w.Reset()

	if !w.Admit(KindBuy, quote.MustSize("100")) {
		t.Fatal("Admit should succeed immediately after Reset")
	}
}

func TestLenReflectsLiveEntriesOnly(t *testing.T) {
	t.Parallel()
	w := New(10 * time.Millisecond)

	w.Admit(KindBuy, quote.MustSize("100"))
	if w.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", w.Len())
	}

	time.Sleep(20 * time.Millisecond)
	if w.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after expiry", w.Len())
	}
}
