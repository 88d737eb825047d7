package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"sniperBot/internal/adapters/logger" // Import the logger package for LogLevel
	"sniperBot/internal/ports"
)

// WrappedSOLMint is the default base asset.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

// Config holds all application configuration.
type Config struct {
	// Chain and providers
	RPCURL        string `toml:"rpc_url"`
	BackupRPCURL  string `toml:"backup_rpc_url"` // Broadcast channel, defaults to RPCURL
	JitoURL       string `toml:"jito_url"`
	JitoAuth      string `toml:"jito_auth"`
	JupiterURL    string `toml:"jupiter_url"`
	JupiterAPIKey string `toml:"jupiter_api_key"`
	WalletKey     string `toml:"-"` // Environment only
	BaseMint      string `toml:"base_mint"`

	// Trading Parameters
	BuyAmount              float64 `toml:"buy_amount"` // Base units per buy
	AutoSell               bool    `toml:"auto_sell"`
	BuySlippage            float64 `toml:"buy_slippage"` // Percent
	SellSlippage           float64 `toml:"sell_slippage"`
	SellEscalationSlippage float64 `toml:"sell_escalation_slippage"`

	// Exit Strategy
	ExitStrategy  string        `toml:"exit_strategy"`
	ProfitTarget  float64       `toml:"profit_target"` // Percent
	StopLoss      float64       `toml:"stop_loss"`     // Percent, negative
	TrailingStop  float64       `toml:"trailing_stop"` // Gap in percent below the high ROI
	MaxHoldTime   time.Duration `toml:"max_hold_time"`
	EnableMultiTP bool          `toml:"enable_multi_tp"`
	TPLevels      string        `toml:"tp_levels"` // "pct:trigger,..."

	// Execution
	MaxSwapRetries      int           `toml:"max_swap_retries"`
	RetryBackoff        time.Duration `toml:"retry_backoff"`
	PriceImpactWarning  float64       `toml:"price_impact_warning"`
	PriceImpactAbort    float64       `toml:"price_impact_abort"`
	MinOutputBase       float64       `toml:"min_output_base"` // Dust threshold for sells, base units
	PriorityFeeMode     string        `toml:"priority_fee_mode"`
	PriorityFeeLamports uint64        `toml:"priority_fee_lamports"`
	CongestionRefresh   time.Duration `toml:"congestion_refresh"`
	SubmitTimeout       time.Duration `toml:"submit_timeout"`
	ConfirmTimeout      time.Duration `toml:"confirm_timeout"`
	ConfirmMaxPolls     int           `toml:"confirm_max_polls"`
	MaxConcurrentCalls  int           `toml:"max_concurrent_calls"`

	// Monitoring
	PriceCheckInterval     time.Duration `toml:"price_check_interval"`
	PriceDisplayInterval   time.Duration `toml:"price_display_interval"`
	ProbePercent           float64       `toml:"probe_percent"`
	ProbeFailureThreshold  int           `toml:"probe_failure_threshold"`
	ProbeFailureBackoff    time.Duration `toml:"probe_failure_backoff"`
	EnableVolumeMonitoring bool          `toml:"enable_volume_monitoring"`
	VolumeSpikeMultiplier  float64       `toml:"volume_spike_multiplier"`
	VolumeDryupPercent     float64       `toml:"volume_dryup_percent"`
	VolumeMinSamples       int           `toml:"volume_min_samples"`
	VolumeSampleInterval   time.Duration `toml:"volume_sample_interval"`
	BalanceWaitAttempts    int           `toml:"balance_wait_attempts"`
	BalanceWaitInterval    time.Duration `toml:"balance_wait_interval"`

	// Risk
	MaxOpenPositions       int     `toml:"max_open_positions"`
	MaxPositionSizePercent float64 `toml:"max_position_size_percent"`
	MaxDailyTrades         int     `toml:"max_daily_trades"`
	MaxDailyLoss           float64 `toml:"max_daily_loss"`
	FeeReserve             float64 `toml:"fee_reserve"`
	DynamicPositionSizing  bool    `toml:"dynamic_position_sizing"` // Shrink buys on volatile tokens

	// Token safety and order splitting
	CheckTokenSafety     bool    `toml:"check_token_safety"`
	CheckHoneypot        bool    `toml:"check_honeypot"`
	MinLiquidityUSD      float64 `toml:"min_liquidity_usd"`
	MaxLiquidityShare    float64 `toml:"max_liquidity_share_percent"` // Largest buy as a share of estimated liquidity
	UseOrderSplitting    bool    `toml:"use_order_splitting"`
	SplitThresholdImpact float64 `toml:"split_threshold_impact"` // Percent

	// Database
	DBPath string `toml:"db_path"`

	// Logging
	LogLevel  logger.LogLevel `toml:"log_level"` // Use the LogLevel type from the logger adapter
	LogFormat logger.Format   `toml:"log_format"`

	Redis     RedisConfig     `toml:"redis"`
	Reference ReferenceConfig `toml:"reference"`
	Paper     PaperConfig     `toml:"paper"`
}

// RedisConfig configures the intent source and event bus. Empty Addr disables it.
type RedisConfig struct {
	Addr          string        `toml:"addr"`
	Password      string        `toml:"password"`
	DB            int           `toml:"db"`
	IntentChannel string        `toml:"intent_channel"`
	EventChannel  string        `toml:"event_channel"`
	DedupeTTL     time.Duration `toml:"dedupe_ttl"`
}

// ReferenceConfig configures the USD reference price feed.
type ReferenceConfig struct {
	Enabled   bool          `toml:"enabled"`
	APIKey    string        `toml:"api_key"`
	SecretKey string        `toml:"-"`
	Testnet   bool          `toml:"testnet"`
	Symbol    string        `toml:"symbol"`
	CacheTTL  time.Duration `toml:"cache_ttl"`
}

// PaperConfig configures simulated trading.
type PaperConfig struct {
	Balance float64       `toml:"balance"` // Starting base balance
	Latency time.Duration `toml:"latency"` // Zero measures RPC latency
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		JupiterURL:             "https://quote-api.jup.ag/v6",
		BaseMint:               WrappedSOLMint,
		BuyAmount:              0.05,
		AutoSell:               true,
		BuySlippage:            10,
		SellSlippage:           10,
		SellEscalationSlippage: 25,
		ExitStrategy:           "TRAILING_STOP",
		ProfitTarget:           50,
		StopLoss:               -30,
		TrailingStop:           15,
		MaxHoldTime:            30 * time.Minute,
		TPLevels:               "25:30,25:50,25:100,25:200",
		MaxSwapRetries:         5,
		RetryBackoff:           time.Second,
		PriceImpactWarning:     5,
		PriceImpactAbort:       10,
		MinOutputBase:          0.005,
		PriorityFeeMode:        "auto",
		PriorityFeeLamports:    300_000,
		CongestionRefresh:      60 * time.Second,
		SubmitTimeout:          5 * time.Second,
		ConfirmTimeout:         30 * time.Second,
		ConfirmMaxPolls:        20,
		MaxConcurrentCalls:     8,
		PriceCheckInterval:     2 * time.Second,
		PriceDisplayInterval:   30 * time.Second,
		ProbePercent:           1,
		ProbeFailureThreshold:  5,
		ProbeFailureBackoff:    15 * time.Second,
		VolumeSpikeMultiplier:  3,
		VolumeDryupPercent:     20,
		VolumeMinSamples:       10,
		VolumeSampleInterval:   10 * time.Second,
		BalanceWaitAttempts:    20,
		BalanceWaitInterval:    3 * time.Second,
		MaxOpenPositions:       5,
		MaxPositionSizePercent: 20,
		MaxDailyTrades:         50,
		FeeReserve:             0.01,
		DynamicPositionSizing:  true,
		CheckTokenSafety:       true,
		CheckHoneypot:          true,
		MinLiquidityUSD:        1000,
		MaxLiquidityShare:      5,
		UseOrderSplitting:      true,
		SplitThresholdImpact:   2,
		DBPath:                 "./data/sniper.db",
		LogLevel:               logger.LevelInfo,
		LogFormat:              logger.FormatConsole,
		Redis: RedisConfig{
			IntentChannel: "sniper:intents",
			EventChannel:  "sniper:events",
			DedupeTTL:     24 * time.Hour,
		},
		Reference: ReferenceConfig{
			Symbol:   "SOLUSDT",
			CacheTTL: 30 * time.Second,
		},
		Paper: PaperConfig{Balance: 10},
	}
}

// Load builds the configuration from defaults, the optional TOML file at path,
// a .env file and the process environment, in that order, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ports.ErrConfigurationError, path, err)
		}
	}

	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: read .env: %w", ports.ErrConfigurationError, err)
	}

	env := &envReader{}
	cfg.applyEnv(env)
	errs := append(env.errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: configuration validation failed: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c *Config) applyEnv(env *envReader) {
	env.setString(&c.RPCURL, "RPC_URL")
	env.setString(&c.BackupRPCURL, "BACKUP_RPC_URL")
	env.setString(&c.JitoURL, "JITO_URL")
	env.setString(&c.JitoAuth, "JITO_AUTH")
	env.setString(&c.JupiterURL, "JUPITER_URL")
	env.setString(&c.JupiterAPIKey, "JUPITER_API_KEY")
	env.setString(&c.WalletKey, "WALLET_PRIVATE_KEY")
	env.setString(&c.BaseMint, "BASE_MINT")

	env.setFloat(&c.BuyAmount, "BUY_AMOUNT")
	env.setBool(&c.AutoSell, "AUTO_SELL")
	env.setFloat(&c.BuySlippage, "DEFAULT_SLIPPAGE")
	env.setFloat(&c.SellSlippage, "SELL_SLIPPAGE")
	env.setFloat(&c.SellEscalationSlippage, "SELL_ESCALATION_SLIPPAGE")

	env.setString(&c.ExitStrategy, "EXIT_STRATEGY")
	env.setFloat(&c.ProfitTarget, "PROFIT_TARGET")
	env.setFloat(&c.StopLoss, "STOP_LOSS")
	env.setFloat(&c.TrailingStop, "TRAILING_STOP")
	env.setDuration(&c.MaxHoldTime, "MAX_HOLD_TIME")
	env.setBool(&c.EnableMultiTP, "ENABLE_MULTI_TP")
	env.setString(&c.TPLevels, "TP_LEVELS")

	env.setInt(&c.MaxSwapRetries, "MAX_SWAP_RETRIES")
	env.setDuration(&c.RetryBackoff, "RETRY_BACKOFF")
	env.setFloat(&c.PriceImpactWarning, "PRICE_IMPACT_WARNING")
	env.setFloat(&c.PriceImpactAbort, "PRICE_IMPACT_ABORT")
	env.setFloat(&c.MinOutputBase, "MIN_OUTPUT_BASE")
	env.setString(&c.PriorityFeeMode, "PRIORITY_FEE_MODE")
	env.setUint(&c.PriorityFeeLamports, "PRIORITY_FEE_LAMPORTS")
	env.setDuration(&c.CongestionRefresh, "CONGESTION_REFRESH")
	env.setDuration(&c.SubmitTimeout, "SUBMIT_TIMEOUT")
	env.setDuration(&c.ConfirmTimeout, "CONFIRM_TIMEOUT")
	env.setInt(&c.ConfirmMaxPolls, "CONFIRM_MAX_POLLS")
	env.setInt(&c.MaxConcurrentCalls, "MAX_CONCURRENT_CALLS")

	env.setDuration(&c.PriceCheckInterval, "PRICE_CHECK_INTERVAL")
	env.setDuration(&c.PriceDisplayInterval, "PRICE_DISPLAY_INTERVAL")
	env.setFloat(&c.ProbePercent, "PROBE_PERCENT")
	env.setInt(&c.ProbeFailureThreshold, "PROBE_FAILURE_THRESHOLD")
	env.setDuration(&c.ProbeFailureBackoff, "PROBE_FAILURE_BACKOFF")
	env.setBool(&c.EnableVolumeMonitoring, "ENABLE_VOLUME_MONITORING")
	env.setFloat(&c.VolumeSpikeMultiplier, "VOLUME_SPIKE_MULTIPLIER")
	env.setFloat(&c.VolumeDryupPercent, "VOLUME_DRYUP_PERCENT")
	env.setInt(&c.VolumeMinSamples, "VOLUME_MIN_SAMPLES")
	env.setDuration(&c.VolumeSampleInterval, "VOLUME_SAMPLE_INTERVAL")
	env.setInt(&c.BalanceWaitAttempts, "BALANCE_WAIT_ATTEMPTS")
	env.setDuration(&c.BalanceWaitInterval, "BALANCE_WAIT_INTERVAL")

	env.setInt(&c.MaxOpenPositions, "MAX_OPEN_POSITIONS")
	env.setFloat(&c.MaxPositionSizePercent, "MAX_POSITION_SIZE_PERCENT")
	env.setInt(&c.MaxDailyTrades, "MAX_DAILY_TRADES")
	env.setFloat(&c.MaxDailyLoss, "MAX_DAILY_LOSS")
	env.setFloat(&c.FeeReserve, "FEE_RESERVE")
	env.setBool(&c.DynamicPositionSizing, "DYNAMIC_POSITION_SIZING")

	env.setBool(&c.CheckTokenSafety, "CHECK_TOKEN_SAFETY")
	env.setBool(&c.CheckHoneypot, "CHECK_HONEYPOT")
	env.setFloat(&c.MinLiquidityUSD, "MIN_LIQUIDITY_USD")
	env.setFloat(&c.MaxLiquidityShare, "MAX_LIQUIDITY_SHARE_PERCENT")
	env.setBool(&c.UseOrderSplitting, "USE_ORDER_SPLITTING")
	env.setFloat(&c.SplitThresholdImpact, "SPLIT_THRESHOLD_IMPACT")

	env.setString(&c.DBPath, "DB_PATH")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = logger.ParseLevel(v) // Use the parser from the logger package
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = logger.Format(strings.ToLower(v))
	}

	env.setString(&c.Redis.Addr, "REDIS_ADDR")
	env.setString(&c.Redis.Password, "REDIS_PASSWORD")
	env.setInt(&c.Redis.DB, "REDIS_DB")
	env.setString(&c.Redis.IntentChannel, "REDIS_INTENT_CHANNEL")
	env.setString(&c.Redis.EventChannel, "REDIS_EVENT_CHANNEL")
	env.setDuration(&c.Redis.DedupeTTL, "REDIS_DEDUPE_TTL")

	env.setBool(&c.Reference.Enabled, "REFERENCE_ENABLED")
	env.setString(&c.Reference.APIKey, "REFERENCE_API_KEY")
	env.setString(&c.Reference.SecretKey, "REFERENCE_API_SECRET")
	env.setBool(&c.Reference.Testnet, "REFERENCE_TESTNET")
	env.setString(&c.Reference.Symbol, "REFERENCE_SYMBOL")
	env.setDuration(&c.Reference.CacheTTL, "REFERENCE_CACHE_TTL")

	env.setFloat(&c.Paper.Balance, "PAPER_BALANCE")
	env.setDuration(&c.Paper.Latency, "PAPER_LATENCY")
}

func (c *Config) validate() []string {
	var errs []string
	if c.RPCURL == "" {
		errs = append(errs, "RPC_URL must be set")
	}
	if c.JupiterURL == "" {
		errs = append(errs, "JUPITER_URL must be set")
	}
	if c.BaseMint == "" {
		errs = append(errs, "BASE_MINT must be set")
	}

	if c.BuyAmount <= 0 {
		errs = append(errs, "BUY_AMOUNT must be positive")
	}
	slippages := []struct {
		key   string
		value float64
	}{
		{"DEFAULT_SLIPPAGE", c.BuySlippage},
		{"SELL_SLIPPAGE", c.SellSlippage},
		{"SELL_ESCALATION_SLIPPAGE", c.SellEscalationSlippage},
	}
	for _, sl := range slippages {
		if sl.value <= 0 || sl.value > 100 {
			errs = append(errs, sl.key+" must be between 0 and 100")
		}
	}

	switch c.ExitStrategy {
	case "FULL_TP":
		if c.ProfitTarget <= 0 {
			errs = append(errs, "PROFIT_TARGET must be positive")
		}
	case "TRAILING_STOP":
		if c.TrailingStop <= 0 {
			errs = append(errs, "TRAILING_STOP must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("EXIT_STRATEGY must be FULL_TP or TRAILING_STOP, got %q", c.ExitStrategy))
	}
	if c.StopLoss >= 0 {
		errs = append(errs, "STOP_LOSS must be negative")
	}
	if c.MaxHoldTime <= 0 {
		errs = append(errs, "MAX_HOLD_TIME must be positive")
	}
	if c.EnableMultiTP && strings.TrimSpace(c.TPLevels) == "" {
		errs = append(errs, "TP_LEVELS must be set when ENABLE_MULTI_TP is on")
	}

	if c.MaxSwapRetries < 0 {
		errs = append(errs, "MAX_SWAP_RETRIES cannot be negative")
	}
	if c.PriceImpactWarning <= 0 || c.PriceImpactAbort <= c.PriceImpactWarning {
		errs = append(errs, "PRICE_IMPACT_ABORT must be greater than PRICE_IMPACT_WARNING, both positive")
	}
	if c.MinOutputBase < 0 {
		errs = append(errs, "MIN_OUTPUT_BASE cannot be negative")
	}
	switch c.PriorityFeeMode {
	case "auto":
	case "custom":
		if c.PriorityFeeLamports == 0 {
			errs = append(errs, "PRIORITY_FEE_LAMPORTS must be set in custom fee mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("PRIORITY_FEE_MODE must be auto or custom, got %q", c.PriorityFeeMode))
	}
	if c.MaxConcurrentCalls <= 0 {
		errs = append(errs, "MAX_CONCURRENT_CALLS must be positive")
	}

	if c.PriceCheckInterval <= 0 {
		errs = append(errs, "PRICE_CHECK_INTERVAL must be positive")
	}
	if c.ProbePercent <= 0 || c.ProbePercent > 100 {
		errs = append(errs, "PROBE_PERCENT must be between 0 and 100")
	}
	if c.EnableVolumeMonitoring && (c.VolumeSpikeMultiplier <= 1 || c.VolumeDryupPercent <= 0) {
		errs = append(errs, "VOLUME_SPIKE_MULTIPLIER must exceed 1 and VOLUME_DRYUP_PERCENT must be positive")
	}

	if c.MaxOpenPositions < 0 || c.MaxDailyTrades < 0 {
		errs = append(errs, "MAX_OPEN_POSITIONS and MAX_DAILY_TRADES cannot be negative")
	}
	if c.MaxPositionSizePercent < 0 || c.MaxPositionSizePercent > 100 {
		errs = append(errs, "MAX_POSITION_SIZE_PERCENT must be between 0 and 100")
	}
	if c.MinLiquidityUSD < 0 {
		errs = append(errs, "MIN_LIQUIDITY_USD cannot be negative")
	}
	if c.MaxLiquidityShare < 0 || c.MaxLiquidityShare > 100 {
		errs = append(errs, "MAX_LIQUIDITY_SHARE_PERCENT must be between 0 and 100")
	}
	if c.UseOrderSplitting && c.SplitThresholdImpact <= 0 {
		errs = append(errs, "SPLIT_THRESHOLD_IMPACT must be positive when order splitting is enabled")
	}

	if c.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}
	if c.LogFormat != logger.FormatConsole && c.LogFormat != logger.FormatJSON {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be console or json, got %q", c.LogFormat))
	}
	if c.Reference.Enabled && c.Reference.Symbol == "" {
		errs = append(errs, "REFERENCE_SYMBOL must be set when the reference price is enabled")
	}
	if c.Paper.Balance < 0 {
		errs = append(errs, "PAPER_BALANCE cannot be negative")
	}
	return errs
}

// ValidateLive checks the settings only live trading needs.
func (c *Config) ValidateLive() error {
	if strings.TrimSpace(c.WalletKey) == "" {
		return fmt.Errorf("%w: WALLET_PRIVATE_KEY must be set for live trading", ports.ErrConfigurationError)
	}
	return nil
}

// --- Env Var Helpers ---

// envReader overrides values from the environment and collects parse errors.
type envReader struct {
	errs []string
}

func (e *envReader) setString(dst *string, key string) {
	*dst = getEnv(key, *dst)
}

func (e *envReader) setInt(dst *int, key string) {
	v, err := getEnvAsIntRequired(key, *dst)
	if err != nil {
		e.errs = append(e.errs, err.Error())
		return
	}
	*dst = v
}

func (e *envReader) setUint(dst *uint64, key string) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return
	}
	v, err := strconv.ParseUint(strings.ReplaceAll(valueStr, "_", ""), 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("invalid unsigned value '%s' for key %s: %v", valueStr, key, err))
		return
	}
	*dst = v
}

func (e *envReader) setFloat(dst *float64, key string) {
	v, err := getEnvAsFloatRequired(key, *dst)
	if err != nil {
		e.errs = append(e.errs, err.Error())
		return
	}
	*dst = v
}

func (e *envReader) setBool(dst *bool, key string) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return
	}
	v, err := strconv.ParseBool(valueStr)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("invalid boolean value '%s' for key %s", valueStr, key))
		return
	}
	*dst = v
}

// setDuration accepts Go durations ("1m30s") or whole seconds ("90").
func (e *envReader) setDuration(dst *time.Duration, key string) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	v, err := time.ParseDuration(valueStr)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("invalid duration '%s' for key %s", valueStr, key))
		return
	}
	*dst = v
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
