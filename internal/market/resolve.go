package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"sniper/internal/config"
	"sniper/internal/quote"
)

// gammaMarket is the JSON shape returned by the Gamma markets API.
type gammaMarket struct {
	ID                    string  `json:"id"`
	Question              string  `json:"question"`
	ConditionID           string  `json:"conditionId"`
	Slug                  string  `json:"slug"`
	Active                bool    `json:"active"`
	Closed                bool    `json:"closed"`
	AcceptingOrders       bool    `json:"acceptingOrders"`
	EnableOrderBook       bool    `json:"enableOrderBook"`
	EndDate               string  `json:"endDate"`
	Liquidity             string  `json:"liquidity"`
	Volume24hr            float64 `json:"volume24hr"`
	ClobTokenIds          string  `json:"clobTokenIds"`
	Spread                float64 `json:"spread"`
	OrderPriceMinTickSize float64 `json:"orderPriceMinTickSize"`
}

// Resolver polls the Gamma API to resolve a window identifier to a concrete
// asset id — the `resolve(window_identifier, outcome) -> AssetId` black box
// spec.md §6 names. Unlike a multi-market scanner that ranks and selects N
// candidates, Resolver always returns exactly one answer for one window; the
// ranking logic becomes a tie-breaker when a window matches more than one
// live listing (e.g. a duplicate recurring-market entry).
type Resolver struct {
	httpClient *resty.Client
	logger     *slog.Logger
}

// NewResolver creates a market-discovery resolver pointed at the Gamma API.
func NewResolver(cfg config.Config, logger *slog.Logger) *Resolver {
	client := resty.New().
		SetBaseURL(cfg.API.GammaBaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &Resolver{
		httpClient: client,
		logger:     logger.With("component", "resolve"),
	}
}

// Resolve maps a window identifier (a slug, slug fragment, or condition id)
// and a desired outcome ("Yes" or "No") to a single tradeable AssetId. If
// more than one active market matches the identifier, the candidate with the
// highest spread x sqrt(volume) x liquidity-factor score wins the tie-break.
func (r *Resolver) Resolve(ctx context.Context, windowIdentifier, outcome string) (quote.AssetID, error) {
	candidates, err := r.fetchCandidates(ctx, windowIdentifier)
	if err != nil {
		return quote.AssetID{}, fmt.Errorf("fetch candidates for %q: %w", windowIdentifier, err)
	}

	matched := filterByIdentifier(candidates, windowIdentifier)
	if len(matched) == 0 {
		return quote.AssetID{}, fmt.Errorf("no active market matches window %q", windowIdentifier)
	}

	best := pickBest(matched)

	tokenID, err := tokenForOutcome(best, outcome)
	if err != nil {
		return quote.AssetID{}, fmt.Errorf("window %q: %w", windowIdentifier, err)
	}

	asset, err := quote.ParseAssetID(tokenID)
	if err != nil {
		return quote.AssetID{}, fmt.Errorf("window %q: parse token id %q: %w", windowIdentifier, tokenID, err)
	}

	r.logger.Info("resolved window", "identifier", windowIdentifier, "outcome", outcome,
		"market_id", best.ID, "slug", best.Slug, "asset", asset.String())

	return asset, nil
}

func (r *Resolver) fetchCandidates(ctx context.Context, windowIdentifier string) ([]gammaMarket, error) {
	var all []gammaMarket
	offset, limit := 0, 100

	for {
		var page []gammaMarket
		resp, err := r.httpClient.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"limit":          strconv.Itoa(limit),
				"offset":         strconv.Itoa(offset),
				"active":      "true",
				"closed":      "false",
				"search_term": windowIdentifier,
			}).
			SetResult(&page).
			Get("/markets")
		if err != nil {
			return nil, fmt.Errorf("fetch markets page %d: %w", offset, err)
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("fetch markets: status %d", resp.StatusCode())
		}

		all = append(all, page...)
		if len(page) < limit {
			break
		}
		offset += limit
	}

	return all, nil
}

func filterByIdentifier(markets []gammaMarket, windowIdentifier string) []gammaMarket {
	needle := strings.ToLower(strings.TrimSpace(windowIdentifier))

	var out []gammaMarket
	for _, m := range markets {
		if !m.Active || m.Closed || !m.AcceptingOrders || !m.EnableOrderBook {
			continue
		}
		if m.ClobTokenIds == "" {
			continue
		}
		slug := strings.ToLower(m.Slug)
		condition := strings.ToLower(m.ConditionID)
		question := strings.ToLower(m.Question)
		if slug == needle || condition == needle || m.ID == windowIdentifier ||
			strings.Contains(slug, needle) || strings.Contains(question, needle) {
			out = append(out, m)
		}
	}
	return out
}

// pickBest breaks ties among multiple matching markets using the same
// opportunity score a multi-market scanner would rank by:
// spread x sqrt(volume24h) x min(liquidity/10000, 1).
func pickBest(markets []gammaMarket) gammaMarket {
	if len(markets) == 1 {
		return markets[0]
	}

	type scored struct {
		market gammaMarket
		score  float64
	}
	scoredMarkets := make([]scored, 0, len(markets))
	for _, m := range markets {
		liquidity, _ := strconv.ParseFloat(m.Liquidity, 64)
		liquidityFactor := math.Min(liquidity/10000.0, 1.0)
		score := m.Spread * math.Sqrt(m.Volume24hr) * liquidityFactor
		scoredMarkets = append(scoredMarkets, scored{market: m, score: score})
	}
	sort.Slice(scoredMarkets, func(i, j int) bool {
		return scoredMarkets[i].score > scoredMarkets[j].score
	})
	return scoredMarkets[0].market
}

func tokenForOutcome(m gammaMarket, outcome string) (string, error) {
	var tokenIDs []string
	if err := json.Unmarshal([]byte(m.ClobTokenIds), &tokenIDs); err != nil {
		return "", fmt.Errorf("parse clobTokenIds: %w", err)
	}
	if len(tokenIDs) < 2 {
		return "", fmt.Errorf("market %s has %d token ids, want 2", m.ID, len(tokenIDs))
	}

	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case "yes":
		return tokenIDs[0], nil
	case "no":
		return tokenIDs[1], nil
	default:
		return "", fmt.Errorf("unknown outcome %q, want \"Yes\" or \"No\"", outcome)
	}
}
