// Package execution is the effectful adapter between the tick driver and
// the exchange: it issues orders, interprets fills, and performs the REST
// fallback fetch when the streaming book has gone stale. It wraps a resty
// HTTP client with rate limiting, retry, and L1/L2 signing — the signing
// and wire-serialization details spec.md treats as external collaborators
// live entirely inside this package so the driver and strategy layers never
// see them.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"sniper/internal/config"
	"sniper/internal/obs"
	"sniper/internal/quote"
	"sniper/pkg/types"
)

// Outcome mirrors spec.md's OrderOutcome: the result of a single order
// operation, synchronous and authoritative for in-tick retry decisions.
type Outcome struct {
	OrderID    string
	FilledSize quote.Size
	Status     Status
	Reason     string // populated when Status == Rejected
}

// Status discriminates the terminal states a synchronous order response
// can report.
type Status int

const (
	StatusFilled Status = iota
	StatusPartiallyFilled
	StatusUnfilled
	StatusRejected
)

// CancelOutcome reports whether a cancel request succeeded.
type CancelOutcome struct {
	Cancelled bool
}

// TopOfBook is the result of a synchronous top-of-book fetch.
type TopOfBook struct {
	Bid     quote.Price
	Ask     quote.Price
	HaveBid bool
	HaveAsk bool
}

const (
	orderPlacementTimeout = 1 * time.Second
	topOfBookTimeout      = 500 * time.Millisecond
)

// Executor implements the five operations the core requires: post_buy_gtc,
// post_sell_fak, post_sell_fok, cancel, and fetch_top_of_book.
type Executor struct {
	http    *resty.Client
	signer  *Signer
	rl      *RateLimiter
	dryRun  bool
	tick    quote.TickSize
	metrics *obs.Metrics
	logger  *slog.Logger
}

// NewExecutor creates an Executor bound to the exchange's CLOB REST base URL.
// metrics may be nil, in which case no exchange-call metrics are recorded.
func NewExecutor(cfg config.Config, signer *Signer, tick quote.TickSize, metrics *obs.Metrics, logger *slog.Logger) *Executor {
	httpClient := resty.New().
		SetBaseURL(cfg.API.CLOBBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Executor{
		http:    httpClient,
		signer:  signer,
		rl:      NewRateLimiter(),
		dryRun:  cfg.DryRun,
		tick:    tick,
		metrics: metrics,
		logger:  logger.With("component", "execution"),
	}
}

// observe records call latency/timeout metrics for a single exchange
// operation, if a metrics sink was configured.
func (e *Executor) observe(operation string, start time.Time, timedOut bool) {
	if e.metrics == nil {
		return
	}
	e.metrics.ExchangeLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if timedOut {
		e.metrics.ExchangeTimeouts.WithLabelValues(operation).Inc()
	}
}

// PostBuyGTC places a good-till-cancelled limit buy.
func (e *Executor) PostBuyGTC(ctx context.Context, asset quote.AssetID, price quote.Price, size quote.Size) (Outcome, error) {
	return e.postOrder(ctx, asset, types.BUY, types.OrderTypeGTC, price, size)
}

// PostSellFAK places a fill-and-kill sell: fill what's available immediately,
// cancel the remainder server-side. Used exclusively for stop-loss exits so
// partial fills can be detected and retried within the same tick.
func (e *Executor) PostSellFAK(ctx context.Context, asset quote.AssetID, price quote.Price, size quote.Size) (Outcome, error) {
	return e.postOrder(ctx, asset, types.SELL, types.OrderTypeFAK, price, size)
}

// PostSellFOK places a fill-or-kill sell: fill entirely now or cancel
// entirely. Used exclusively for take-profit exits.
func (e *Executor) PostSellFOK(ctx context.Context, asset quote.AssetID, price quote.Price, size quote.Size) (Outcome, error) {
	return e.postOrder(ctx, asset, types.SELL, types.OrderTypeFOK, price, size)
}

func (e *Executor) postOrder(ctx context.Context, asset quote.AssetID, side types.Side, ot types.OrderType, price quote.Price, size quote.Size) (Outcome, error) {
	idempotencyID := uuid.NewString()
	logger := e.logger.With("idempotency_id", idempotencyID, "side", side, "order_type", ot, "asset", asset.String())

	if e.dryRun {
		logger.Info("dry-run: fabricating filled outcome", "price", price, "size", size)
		return Outcome{OrderID: "dry-run-" + idempotencyID, FilledSize: size, Status: StatusFilled}, nil
	}

	start := time.Now()
	timedOut := false
	defer func() { e.observe("post_order", start, timedOut) }()

	ctx, cancel := context.WithTimeout(ctx, orderPlacementTimeout)
	defer cancel()

	if err := e.rl.Order.Wait(ctx); err != nil {
		timedOut = true
		return Outcome{Status: StatusRejected, Reason: "timeout"}, nil
	}

	order := types.UserOrder{
		TokenID:   asset.String(),
		Price:     mustFloat(price.String()),
		Size:      mustFloat(size.String()),
		Side:      side,
		OrderType: ot,
		TickSize:  tickSizeEnum(e.tick),
	}
	payload := e.buildOrderPayload(order)

	body, err := json.Marshal([]types.OrderPayload{payload})
	if err != nil {
		return Outcome{}, fmt.Errorf("marshal order: %w", err)
	}
	headers, err := e.signer.L2Headers("POST", "/orders", string(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("l2 headers: %w", err)
	}

	var results []types.OrderResponse
	resp, err := e.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&results).
		Post("/orders")

	if ctx.Err() != nil {
		timedOut = true
		logger.Warn("order placement timed out")
		return Outcome{Status: StatusRejected, Reason: "timeout"}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("post order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || len(results) == 0 {
		return Outcome{Status: StatusRejected, Reason: fmt.Sprintf("status %d", resp.StatusCode())}, nil
	}

	return outcomeFromResponse(results[0], size), nil
}

func outcomeFromResponse(r types.OrderResponse, requested quote.Size) Outcome {
	if !r.Success {
		reason := r.ErrorMsg
		if reason == "" {
			reason = "rejected"
		}
		return Outcome{Status: StatusRejected, Reason: reason}
	}

	filled := quote.ZeroSize
	if r.FilledSize != "" {
		if sz, err := quote.NewSize(r.FilledSize); err == nil {
			filled = sz
		}
	}

	switch {
	case filled.IsZero():
		return Outcome{OrderID: r.OrderID, FilledSize: filled, Status: StatusUnfilled}
	case filled.Equal(requested):
		return Outcome{OrderID: r.OrderID, FilledSize: filled, Status: StatusFilled}
	default:
		return Outcome{OrderID: r.OrderID, FilledSize: filled, Status: StatusPartiallyFilled}
	}
}

// DeriveAPIKey performs the one-time L1-authenticated call that derives L2
// trading credentials from the wallet's private key, and installs them on
// the Executor's Signer. Callers only need this when the config did not
// already supply api_key/secret/passphrase.
func (e *Executor) DeriveAPIKey(ctx context.Context) (*Credentials, error) {
	headers, err := e.signer.L1Headers(0)
	if err != nil {
		return nil, fmt.Errorf("l1 headers: %w", err)
	}

	var result Credentials
	resp, err := e.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/auth/derive-api-key")
	if err != nil {
		return nil, fmt.Errorf("derive api key: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("derive api key: status %d: %s", resp.StatusCode(), resp.String())
	}

	e.signer.SetCredentials(result)
	e.logger.Info("API key derived", "api_key", result.ApiKey)
	return &result, nil
}

// Cancel cancels a single resting order by id.
func (e *Executor) Cancel(ctx context.Context, orderID string) (CancelOutcome, error) {
	if e.dryRun {
		e.logger.Info("dry-run: would cancel order", "order_id", orderID)
		return CancelOutcome{Cancelled: true}, nil
	}

	start := time.Now()
	timedOut := false
	defer func() { e.observe("cancel", start, timedOut) }()

	ctx, cancel := context.WithTimeout(ctx, orderPlacementTimeout)
	defer cancel()

	if err := e.rl.Cancel.Wait(ctx); err != nil {
		timedOut = true
		return CancelOutcome{}, nil
	}

	payload := struct {
		OrderIDs []string `json:"orderIDs"`
	}{OrderIDs: []string{orderID}}
	body, err := json.Marshal(payload)
	if err != nil {
		return CancelOutcome{}, fmt.Errorf("marshal cancel: %w", err)
	}
	headers, err := e.signer.L2Headers("DELETE", "/orders", string(body))
	if err != nil {
		return CancelOutcome{}, fmt.Errorf("l2 headers: %w", err)
	}

	var result types.CancelResponse
	resp, err := e.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Delete("/orders")
	if err != nil {
		return CancelOutcome{}, fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return CancelOutcome{}, nil
	}

	for _, id := range result.Canceled {
		if id == orderID {
			return CancelOutcome{Cancelled: true}, nil
		}
	}
	return CancelOutcome{}, nil
}

// FetchTopOfBook performs the synchronous REST fallback used when the
// streaming book has gone stale.
func (e *Executor) FetchTopOfBook(ctx context.Context, asset quote.AssetID) (TopOfBook, error) {
	start := time.Now()
	timedOut := false
	defer func() { e.observe("fetch_top_of_book", start, timedOut) }()

	ctx, cancel := context.WithTimeout(ctx, topOfBookTimeout)
	defer cancel()

	if err := e.rl.Book.Wait(ctx); err != nil {
		timedOut = true
		return TopOfBook{}, ctx.Err()
	}

	var result types.BookResponse
	resp, err := e.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", asset.String()).
		SetResult(&result).
		Get("/book")
	if err != nil {
		return TopOfBook{}, fmt.Errorf("fetch top of book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return TopOfBook{}, fmt.Errorf("fetch top of book: status %d", resp.StatusCode())
	}

	var tob TopOfBook
	if len(result.Bids) > 0 {
		if p, err := quote.NewPrice(result.Bids[0].Price); err == nil {
			tob.Bid, tob.HaveBid = p, true
		}
	}
	if len(result.Asks) > 0 {
		if p, err := quote.NewPrice(result.Asks[0].Price); err == nil {
			tob.Ask, tob.HaveAsk = p, true
		}
	}
	return tob, nil
}

// buildOrderPayload converts a high-level UserOrder into the on-chain
// SignedOrder the REST API expects, scaling price/size to big.Int
// maker/taker amounts at the market's tick precision.
func (e *Executor) buildOrderPayload(order types.UserOrder) types.OrderPayload {
	tickSize := order.TickSize
	if tickSize == "" {
		tickSize = types.Tick001
	}
	makerAmt, takerAmt := PriceToAmounts(order.Price, order.Size, order.Side, tickSize)

	return types.OrderPayload{
		Order: types.SignedOrder{
			Maker:         e.signer.FunderAddress().Hex(),
			Signer:        e.signer.Address().Hex(),
			Taker:         "0x0000000000000000000000000000000000000000",
			TokenID:       order.TokenID,
			MakerAmount:   makerAmt,
			TakerAmount:   takerAmt,
			Side:          order.Side,
			Expiration:    "0",
			Nonce:         "0",
			FeeRateBps:    "0",
			SignatureType: e.signer.sigType,
		},
		Owner:     e.signer.creds.ApiKey,
		OrderType: order.OrderType,
	}
}

func tickSizeEnum(t quote.TickSize) types.TickSize {
	switch t.String() {
	case "0.1":
		return types.Tick01
	case "0.001":
		return types.Tick0001
	case "0.0001":
		return types.Tick00001
	default:
		return types.Tick001
	}
}

func mustFloat(s string) float64 {
	var f float64
	_, _ = fmt.Sscanf(s, "%g", &f)
	return f
}
