// Package dedup guards against re-emitting the same trading intent on
// consecutive ticks while an order is still in flight. It admits an intent
// once per (kind, size) pair and rejects repeats until the entry's TTL
// expires, mirroring the rolling-window eviction used elsewhere in this
// codebase for time-bounded state.
package dedup

import (
	"sync"
	"time"

	"sniper/internal/quote"
)

// Kind identifies the category of trading intent being deduplicated.
type Kind int

const (
	KindBuy Kind = iota
	KindReplaceBuy
	KindSellTakeProfit
	KindSellStopLoss
	KindCancel
)

func (k Kind) String() string {
	switch k {
	case KindBuy:
		return "buy"
	case KindReplaceBuy:
		return "replace_buy"
	case KindSellTakeProfit:
		return "sell_take_profit"
	case KindSellStopLoss:
		return "sell_stop_loss"
	case KindCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

type key struct {
	kind Kind
	size string // quote.Size compared at tick precision via its canonical string
}

type entry struct {
	admittedAt time.Time
}

// Window is a TTL-based admission gate keyed on (kind, size). Admit returns
// true the first time a given (kind, size) pair is seen within the TTL
// window, and false for any repeat until the entry expires.
type Window struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[key]entry
}

// New creates a dedup window with the given TTL. ttl is expected to be in
// the 20ms–80ms range; config.Validate checks the configured value, and New
// itself does not.
func New(ttl time.Duration) *Window {
	return &Window{
		ttl: ttl,
		m:   make(map[key]entry),
	}
}

// Admit reports whether an intent of the given kind and size may proceed.
// A true result records the admission so subsequent identical intents are
// rejected until the TTL elapses.
func (w *Window) Admit(kind Kind, size quote.Size) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.evictLocked(now)

	k := key{kind: kind, size: size.String()}
	if _, exists := w.m[k]; exists {
		return false
	}
	w.m[k] = entry{admittedAt: now}
	return true
}

// evictLocked drops entries whose TTL has elapsed. Must be called with the
// lock held.
func (w *Window) evictLocked(now time.Time) {
	for k, e := range w.m {
		if now.Sub(e.admittedAt) >= w.ttl {
			delete(w.m, k)
		}
	}
}

// Reset clears all admitted entries, used at window-rotation boundaries so
// a stale dedup entry for the previous asset can never suppress an intent
// for the newly tracked one.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.m = make(map[key]entry)
}

// Len reports the number of currently admitted (not yet expired) entries.
// Exposed for tests and metrics, not used in admission decisions.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evictLocked(time.Now())
	return len(w.m)
}
