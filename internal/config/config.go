// Package config defines all configuration for the sniper agent.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via POLY_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun    bool            `mapstructure:"dry_run"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	API       APIConfig       `mapstructure:"api"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Window    WindowConfig    `mapstructure:"window"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// WalletConfig holds the Ethereum wallet used for signing orders.
// PrivateKey signs L1 (EIP-712) auth and derives L2 API keys.
// FunderAddress is the on-chain address that funds orders (may differ from signer if using a proxy).
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
}

// APIConfig holds exchange API endpoints and optional pre-derived L2 credentials.
// If ApiKey/Secret/Passphrase are empty, the agent derives them via L1 auth on startup.
type APIConfig struct {
	CLOBBaseURL  string `mapstructure:"clob_base_url"`
	GammaBaseURL string `mapstructure:"gamma_base_url"`
	WSMarketURL  string `mapstructure:"ws_market_url"`
	ApiKey       string `mapstructure:"api_key"`
	Secret       string `mapstructure:"secret"`
	Passphrase   string `mapstructure:"passphrase"`
}

// StrategyConfig tunes the SL > TP > Buy evaluator: fixed absolute price
// thresholds and a fixed per-action order size, all expressed as decimal
// strings and parsed into quote.Price/quote.Size at load time.
//
//   - BuyMin/BuyMax: the band the best ask must sit in for a buy to place.
//   - TakeProfit/StopLoss: absolute best-bid thresholds that trigger an exit.
//   - OrderSize: shares per buy/sell action.
//   - MaxPosition: the position cap enforced by internal/position.
//   - Tick: the market's price granularity.
//   - DedupeTTLMs: dedup admission window, must fall in [20,80].
//   - StaleThresholdMs: book staleness threshold, must fall in [100,250].
type StrategyConfig struct {
	BuyMin           string `mapstructure:"buy_min"`
	BuyMax           string `mapstructure:"buy_max"`
	TakeProfit       string `mapstructure:"take_profit"`
	StopLoss         string `mapstructure:"stop_loss"`
	OrderSize        string `mapstructure:"order_size"`
	MaxPosition      string `mapstructure:"max_position"`
	Tick             string `mapstructure:"tick_size"`
	DedupeTTLMs      int    `mapstructure:"dedupe_ttl_ms"`
	StaleThresholdMs int    `mapstructure:"stale_threshold_ms"`
}

// WindowConfig controls which window the agent is hunting and how/when it
// rotates to the next one.
//
//   - Identifier: the window-discovery query passed to market.Resolve (e.g.
//     a recurring market slug template).
//   - Outcome: which binary outcome token to track ("Yes" or "No").
//   - AutoRotateSeconds: if > 0, rotate to the next window this often even
//     without an explicit resolution signal.
type WindowConfig struct {
	Identifier        string `mapstructure:"identifier"`
	Outcome           string `mapstructure:"outcome"`
	AutoRotateSeconds int    `mapstructure:"auto_rotate_seconds"`
}

// StoreConfig sets where the best-effort operational snapshot is persisted.
// Never read back to seed Position — see internal/store.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the read-only status/metrics HTTP surface.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: POLY_PRIVATE_KEY, POLY_API_KEY, POLY_API_SECRET, POLY_PASSPHRASE.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("POLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("POLY_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if key := os.Getenv("POLY_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("POLY_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("POLY_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if os.Getenv("POLY_DRY_RUN") == "true" || os.Getenv("POLY_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Strategy.Tick == "" {
		cfg.Strategy.Tick = "0.01"
	}
	if cfg.Strategy.DedupeTTLMs == 0 {
		cfg.Strategy.DedupeTTLMs = 50
	}
	if cfg.Strategy.StaleThresholdMs == 0 {
		cfg.Strategy.StaleThresholdMs = 200
	}
}

// Validate checks all required fields and value ranges, including the
// configuration-violation checks spec.md §7 requires to be fatal at startup.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required (set POLY_PRIVATE_KEY)")
	}
	if c.Wallet.ChainID == 0 {
		return fmt.Errorf("wallet.chain_id is required (137 for mainnet)")
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		return fmt.Errorf("wallet.signature_type must be one of: 0 (EOA), 1 (POLY_PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		return fmt.Errorf("wallet.funder_address is required when wallet.signature_type is 1 or 2")
	}
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	if c.Window.Identifier == "" {
		return fmt.Errorf("window.identifier is required")
	}
	if c.Window.Outcome == "" {
		return fmt.Errorf("window.outcome is required")
	}

	thresholds := map[string]string{
		"strategy.buy_min":     c.Strategy.BuyMin,
		"strategy.buy_max":     c.Strategy.BuyMax,
		"strategy.take_profit": c.Strategy.TakeProfit,
		"strategy.stop_loss":   c.Strategy.StopLoss,
	}
	parsed := make(map[string]float64, len(thresholds))
	for name, raw := range thresholds {
		if raw == "" {
			return fmt.Errorf("%s is required", name)
		}
		var f float64
		if _, err := fmt.Sscanf(raw, "%g", &f); err != nil {
			return fmt.Errorf("%s: invalid decimal %q", name, raw)
		}
		if f < 0 || f > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, f)
		}
		parsed[name] = f
	}
	if parsed["strategy.buy_min"] >= parsed["strategy.buy_max"] {
		return fmt.Errorf("strategy.buy_min must be < strategy.buy_max")
	}
	if c.Strategy.OrderSize == "" {
		return fmt.Errorf("strategy.order_size is required")
	}
	if c.Strategy.MaxPosition == "" {
		return fmt.Errorf("strategy.max_position is required")
	}
	if c.Strategy.DedupeTTLMs < 20 || c.Strategy.DedupeTTLMs > 80 {
		return fmt.Errorf("strategy.dedupe_ttl_ms must be within [20,80], got %d", c.Strategy.DedupeTTLMs)
	}
	if c.Strategy.StaleThresholdMs < 100 || c.Strategy.StaleThresholdMs > 250 {
		return fmt.Errorf("strategy.stale_threshold_ms must be within [100,250], got %d", c.Strategy.StaleThresholdMs)
	}
	var tick float64
	if _, err := fmt.Sscanf(c.Strategy.Tick, "%g", &tick); err != nil || tick <= 0 {
		return fmt.Errorf("strategy.tick_size: invalid decimal %q", c.Strategy.Tick)
	}
	return nil
}

// DedupeTTL returns the configured dedup admission window as a duration.
func (c *Config) DedupeTTL() time.Duration {
	return time.Duration(c.Strategy.DedupeTTLMs) * time.Millisecond
}

// StaleThreshold returns the configured book-staleness threshold as a duration.
func (c *Config) StaleThreshold() time.Duration {
	return time.Duration(c.Strategy.StaleThresholdMs) * time.Millisecond
}
