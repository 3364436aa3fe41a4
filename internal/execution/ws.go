// ws.go implements the streaming market-data feed the tick driver consumes.
//
// The feed subscribes by asset ID and receives "book" snapshots and
// "price_change" deltas for a single tracked asset at a time; Retarget is
// called again on each window rotation to switch it. It auto-reconnects
// with exponential backoff (1s -> 30s max) and re-subscribes on reattach,
// and sends a ping at the ~10s cadence the feed requires to stay alive.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sniper/pkg/types"
)

const (
	pingInterval     = 10 * time.Second // feed requires ~10s heartbeat cadence
	readTimeout      = 30 * time.Second // ~3 missed pings triggers reconnect
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
	readBufferSize   = 64
	tradeBufferSize  = 16
)

// Feed manages a single WebSocket connection to the market channel for the
// currently tracked asset.
type Feed struct {
	url  string
	conn *websocket.Conn
	connMu sync.Mutex

	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	bookCh        chan types.WSBookEvent
	priceChangeCh chan types.WSPriceChangeEvent
	tradeCh       chan types.WSTradeEvent

	logger *slog.Logger
}

// NewFeed creates a market-channel WebSocket feed.
func NewFeed(wsURL string, logger *slog.Logger) *Feed {
	return &Feed{
		url:           wsURL,
		subscribed:    make(map[string]bool),
		bookCh:        make(chan types.WSBookEvent, readBufferSize),
		priceChangeCh: make(chan types.WSPriceChangeEvent, readBufferSize),
		tradeCh:       make(chan types.WSTradeEvent, tradeBufferSize),
		logger:        logger.With("component", "feed"),
	}
}

// BookEvents returns a read-only channel of full book snapshot events.
func (f *Feed) BookEvents() <-chan types.WSBookEvent { return f.bookCh }

// PriceChangeEvents returns a read-only channel of incremental book updates.
func (f *Feed) PriceChangeEvents() <-chan types.WSPriceChangeEvent { return f.priceChangeCh }

// TradeEvents returns a read-only channel of fill notifications, used by
// the driver only as a secondary signal — the synchronous order response
// remains authoritative for the in-tick retry decision.
func (f *Feed) TradeEvents() <-chan types.WSTradeEvent { return f.tradeCh }

// Run connects and maintains the connection with auto-reconnect. Blocks
// until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("feed disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Retarget replaces the entire subscription set with a single asset id,
// used at startup and at window-rotation boundaries. If connected, it
// unsubscribes the previous asset and subscribes the new one; if not, the
// new set is sent by the initial subscription on the next connect.
func (f *Feed) Retarget(assetID string) error {
	f.subscribedMu.Lock()
	old := make([]string, 0, len(f.subscribed))
	for id := range f.subscribed {
		old = append(old, id)
	}
	f.subscribed = map[string]bool{assetID: true}
	f.subscribedMu.Unlock()

	f.connMu.Lock()
	connected := f.conn != nil
	f.connMu.Unlock()
	if !connected {
		return nil
	}

	if len(old) > 0 {
		if err := f.writeJSON(types.WSUpdateMsg{AssetIDs: old, Operation: "unsubscribe"}); err != nil {
			f.logger.Warn("unsubscribe previous asset failed", "error", err)
		}
	}
	return f.writeJSON(types.WSUpdateMsg{AssetIDs: []string{assetID}, Operation: "subscribe"})
}

// Close gracefully closes the connection.
func (f *Feed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.sendInitialSubscription(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("feed connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.dispatchMessage(msg)
	}
}

func (f *Feed) sendInitialSubscription() error {
	f.subscribedMu.RLock()
	ids := make([]string, 0, len(f.subscribed))
	for id := range f.subscribed {
		ids = append(ids, id)
	}
	f.subscribedMu.RUnlock()

	return f.writeJSON(types.WSSubscribeMsg{Type: "market", AssetIDs: ids})
}

func (f *Feed) dispatchMessage(data []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json feed message", "data", string(data))
		return
	}

	switch envelope.EventType {
	case "book":
		var evt types.WSBookEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal book event", "error", err)
			return
		}
		select {
		case f.bookCh <- evt:
		default:
			f.logger.Warn("book channel full, dropping event", "asset", evt.AssetID)
		}

	case "price_change":
		var evt types.WSPriceChangeEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal price_change event", "error", err)
			return
		}
		select {
		case f.priceChangeCh <- evt:
		default:
			f.logger.Warn("price_change channel full, dropping event")
		}

	case "trade":
		var evt types.WSTradeEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal trade event", "error", err)
			return
		}
		select {
		case f.tradeCh <- evt:
		default:
			f.logger.Warn("trade channel full, dropping event", "id", evt.ID)
		}

	case "last_trade_price", "tick_size_change", "best_bid_ask", "new_market", "market_resolved":
		f.logger.Debug("ignoring event", "type", envelope.EventType)

	default:
		f.logger.Debug("unknown feed event type", "type", envelope.EventType)
	}
}

func (f *Feed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.TextMessage, []byte("PING")); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *Feed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("feed not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *Feed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("feed not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
