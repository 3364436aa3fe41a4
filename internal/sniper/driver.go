// Package sniper implements the tick driver: the single cooperative task
// that owns Book, Position, Dedup, and Execution for the one asset currently
// being traded, and drives the SL > TP > Buy evaluator on every book update.
//
// There is exactly one goroutine running Evaluate/Execute. The only channel
// in the whole core is the inbound streaming-feed channel; every downstream
// effect (Execution calls, Position mutation, Dedup admission) is a direct,
// synchronous Go function call — matching spec.md §5's "no channels between
// core components and no background workers inside the core."
package sniper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sniper/internal/config"
	"sniper/internal/dedup"
	"sniper/internal/execution"
	"sniper/internal/market"
	"sniper/internal/obs"
	"sniper/internal/position"
	"sniper/internal/quote"
	"sniper/internal/store"
	"sniper/internal/strategy"
	"sniper/pkg/types"
)

// maxStopLossRetries bounds the in-tick FAK remainder loop spec.md §4.5
// requires for a partially-filled stop-loss sell.
const maxStopLossRetries = 3

// Driver is the single cooperative tick task.
type Driver struct {
	cfg      config.Config
	params   strategy.Params
	asset    quote.AssetID
	outcome  string

	book     *market.Book
	pos      *position.Tracker
	dedup    *dedup.Window
	executor *execution.Executor
	feed     *execution.Feed
	resolver *market.Resolver
	store    *store.Store
	metrics  *obs.Metrics

	resting *strategy.RestingBuy
	logger  *slog.Logger
}

// New builds a driver bound to an already-resolved starting asset.
func New(
	cfg config.Config,
	params strategy.Params,
	asset quote.AssetID,
	book *market.Book,
	pos *position.Tracker,
	dd *dedup.Window,
	executor *execution.Executor,
	feed *execution.Feed,
	resolver *market.Resolver,
	st *store.Store,
	metrics *obs.Metrics,
	logger *slog.Logger,
) *Driver {
	return &Driver{
		cfg:      cfg,
		params:   params,
		asset:    asset,
		outcome:  cfg.Window.Outcome,
		book:     book,
		pos:      pos,
		dedup:    dd,
		executor: executor,
		feed:     feed,
		resolver: resolver,
		store:    st,
		metrics:  metrics,
		logger:   logger.With("component", "sniper"),
	}
}

// Run is the single event loop. It blocks until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	var rotateCh <-chan time.Time
	if d.cfg.Window.AutoRotateSeconds > 0 {
		ticker := time.NewTicker(time.Duration(d.cfg.Window.AutoRotateSeconds) * time.Second)
		defer ticker.Stop()
		rotateCh = ticker.C
	}

	bookEvents := d.feed.BookEvents()
	priceChanges := d.feed.PriceChangeEvents()
	trades := d.feed.TradeEvents()

	var seq uint64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt := <-bookEvents:
			seq++
			d.book.ApplyBookEvent(evt, seq)
			d.tick(ctx)

		case evt := <-priceChanges:
			seq++
			d.book.ApplyPriceChange(evt, seq)
			d.tick(ctx)

		case trade := <-trades:
			// Secondary fill-awareness signal only; the synchronous order
			// response from Execution remains authoritative for the in-tick
			// retry decision.
			d.logger.Debug("observed trade event", "id", trade.ID, "side", trade.Side, "size", trade.Size)

		case <-rotateCh:
			if err := d.rotate(ctx); err != nil {
				d.logger.Error("auto-rotation failed", "error", err)
			}
		}
	}
}

// tick runs one evaluate/execute cycle. It is called once per book update —
// there is no independent polling loop.
func (d *Driver) tick(ctx context.Context) {
	d.metrics.TicksProcessed.Inc()

	snap := d.book.View()
	stale := d.book.IsStale(d.cfg.StaleThreshold())

	if stale {
		// REST fallback per spec.md §4.5: a stale book can still trigger an
		// SL/TP exit, but only after refreshing best_bid synchronously.
		tob, err := d.executor.FetchTopOfBook(ctx, d.asset)
		if err != nil {
			d.logger.Warn("stale book REST fallback failed", "error", err)
		} else {
			snap.Bid, snap.HaveBid = tob.Bid, tob.HaveBid
			snap.Ask, snap.HaveAsk = tob.Ask, tob.HaveAsk
			resp := &types.BookResponse{AssetID: d.asset.String()}
			if tob.HaveBid {
				resp.Bids = []types.PriceLevel{{Price: tob.Bid.String()}}
			}
			if tob.HaveAsk {
				resp.Asks = []types.PriceLevel{{Price: tob.Ask.String()}}
			}
			d.book.ApplyBookResponse(resp, 0)
		}
	}

	pos := d.pos.Snapshot()
	action := strategy.Evaluate(snap, pos, d.resting, stale, d.params)
	d.metrics.ActionsEmitted.WithLabelValues(action.Kind.String()).Inc()

	switch action.Kind {
	case strategy.ActionNone:
		return
	case strategy.ActionSellSL:
		d.executeSell(ctx, dedup.KindSellStopLoss, action, true)
	case strategy.ActionSellTP:
		d.executeSell(ctx, dedup.KindSellTakeProfit, action, false)
	case strategy.ActionPlaceBuy:
		d.executePlaceBuy(ctx, action)
	case strategy.ActionReplaceBuy:
		d.executeReplaceBuy(ctx, action)
	case strategy.ActionCancelBuy:
		d.executeCancelBuy(ctx, action)
	}
}

func (d *Driver) admit(kind dedup.Kind, size quote.Size) bool {
	if d.dedup.Admit(kind, size) {
		d.metrics.DedupAdmitted.Inc()
		return true
	}
	d.metrics.DedupRejected.Inc()
	return false
}

// executeSell runs the stop-loss (FAK, retried up to K times on partial
// fill) or take-profit (FOK, never retried) exit path.
func (d *Driver) executeSell(ctx context.Context, kind dedup.Kind, action strategy.Action, fak bool) {
	remaining := action.Size
	retries := 0

	for !remaining.IsZero() {
		if !d.admit(kind, remaining) {
			return
		}

		var outcome execution.Outcome
		var err error
		if fak {
			outcome, err = d.executor.PostSellFAK(ctx, d.asset, action.Price, remaining)
		} else {
			outcome, err = d.executor.PostSellFOK(ctx, d.asset, action.Price, remaining)
		}
		if err != nil {
			d.logger.Error("sell order failed", "kind", kind, "error", err)
			return
		}

		if outcome.Status == execution.StatusRejected {
			d.logger.Warn("sell order rejected", "kind", kind, "reason", outcome.Reason)
			return
		}

		if !outcome.FilledSize.IsZero() {
			if err := d.pos.OnSellFill(action.Price, outcome.FilledSize); err != nil {
				d.logger.Error("position underflow on sell fill, resetting position to flat", "error", err)
				d.pos.ResetFromExchange(quote.ZeroSize, quote.Price{})
				return
			}
		}

		if !fak || outcome.Status == execution.StatusFilled {
			break
		}

		remaining = remaining.Sub(outcome.FilledSize)
		if retries >= maxStopLossRetries {
			d.logger.Warn("stop-loss remainder retry limit reached", "remaining", remaining.String())
			break
		}
		retries++
	}

	if fak {
		d.metrics.StopLossRetries.Observe(float64(retries))
	}
	d.persistSnapshot()
}

func (d *Driver) executePlaceBuy(ctx context.Context, action strategy.Action) {
	if !d.admit(dedup.KindBuy, action.Size) {
		return
	}
	outcome, err := d.executor.PostBuyGTC(ctx, d.asset, action.Price, action.Size)
	if err != nil {
		d.logger.Error("buy order failed", "error", err)
		return
	}
	d.applyBuyOutcome(outcome, action)
}

func (d *Driver) executeReplaceBuy(ctx context.Context, action strategy.Action) {
	if !d.admit(dedup.KindReplaceBuy, action.Size) {
		return
	}
	if _, err := d.executor.Cancel(ctx, action.OrderID); err != nil {
		d.logger.Error("cancel before replace failed", "order_id", action.OrderID, "error", err)
		return
	}
	outcome, err := d.executor.PostBuyGTC(ctx, d.asset, action.Price, action.Size)
	if err != nil {
		d.logger.Error("replacement buy order failed", "error", err)
		d.resting = nil
		return
	}
	d.applyBuyOutcome(outcome, action)
}

func (d *Driver) executeCancelBuy(ctx context.Context, action strategy.Action) {
	if !d.admit(dedup.KindCancel, quote.ZeroSize) {
		return
	}
	if _, err := d.executor.Cancel(ctx, action.OrderID); err != nil {
		d.logger.Error("cancel buy failed", "order_id", action.OrderID, "error", err)
		return
	}
	d.resting = nil
}

func (d *Driver) applyBuyOutcome(outcome execution.Outcome, action strategy.Action) {
	if outcome.Status == execution.StatusRejected {
		d.logger.Warn("buy order rejected", "reason", outcome.Reason)
		d.resting = nil
		return
	}

	if !outcome.FilledSize.IsZero() {
		d.pos.OnBuyFill(action.Price, outcome.FilledSize)
	}

	if outcome.Status == execution.StatusFilled {
		d.resting = nil
	} else {
		d.resting = &strategy.RestingBuy{
			OrderID:  outcome.OrderID,
			Price:    action.Price,
			Size:     action.Size,
			PlacedAt: time.Now(),
		}
	}
	d.persistSnapshot()
}

// rotate cancels any resting buy, resolves the next window's asset, resets
// Book and Dedup, retargets the streaming feed, and starts the new window
// flat — a fresh window has no carried-over position.
func (d *Driver) rotate(ctx context.Context) error {
	if d.resting != nil {
		if _, err := d.executor.Cancel(ctx, d.resting.OrderID); err != nil {
			d.logger.Warn("cancel resting buy during rotation failed", "error", err)
		}
		d.resting = nil
	}

	next, err := d.resolver.Resolve(ctx, d.cfg.Window.Identifier, d.outcome)
	if err != nil {
		return fmt.Errorf("resolve next window: %w", err)
	}

	d.asset = next
	d.book.Reset(next)
	d.dedup.Reset()
	d.pos.ResetFromExchange(quote.ZeroSize, quote.Price{})

	if err := d.feed.Retarget(next.String()); err != nil {
		return fmt.Errorf("retarget feed: %w", err)
	}

	d.metrics.Rotations.Inc()
	d.logger.Info("rotated to new window", "asset", next.String())
	d.persistSnapshot()
	return nil
}

func (d *Driver) persistSnapshot() {
	if d.store == nil {
		return
	}
	pos := d.pos.Snapshot()
	restingID := ""
	if d.resting != nil {
		restingID = d.resting.OrderID
	}
	snap := store.Snapshot{
		Asset:       d.asset.String(),
		Shares:      pos.Shares.String(),
		AvgEntry:    pos.AvgEntry.String(),
		RealizedPnL: pos.RealizedPnL.String(),
		RestingBuy:  restingID,
		UpdatedAt:   time.Now(),
	}
	if err := d.store.Save(snap); err != nil {
		d.logger.Warn("persist snapshot failed", "error", err)
	}
}

// Status is the read-only view the status HTTP surface reads.
type Status struct {
	Asset      string
	Book       market.BookView
	Position   position.Snapshot
	RestingBuy *strategy.RestingBuy
}

// Snapshot returns the driver's current state for the status endpoint. Not
// safe to call concurrently with itself from multiple goroutines mutating
// resting — callers should treat the returned value as a point-in-time,
// best-effort read (Book and Position are themselves concurrency-safe;
// RestingBuy is read without synchronization since only the driver
// goroutine ever assigns it).
func (d *Driver) Snapshot() Status {
	var resting *strategy.RestingBuy
	if d.resting != nil {
		r := *d.resting
		resting = &r
	}
	return Status{
		Asset:      d.asset.String(),
		Book:       d.book.View(),
		Position:   d.pos.Snapshot(),
		RestingBuy: resting,
	}
}
