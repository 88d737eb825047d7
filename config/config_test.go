package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperBot/internal/adapters/logger"
	"sniperBot/internal/ports"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RPC_URL", "https://rpc.example")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example", cfg.RPCURL)
	assert.Equal(t, WrappedSOLMint, cfg.BaseMint)
	assert.Equal(t, "TRAILING_STOP", cfg.ExitStrategy)
	assert.Equal(t, 0.05, cfg.BuyAmount)
	assert.Equal(t, 30*time.Minute, cfg.MaxHoldTime)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, logger.FormatConsole, cfg.LogFormat)
	assert.Equal(t, "sniper:intents", cfg.Redis.IntentChannel)
	assert.True(t, cfg.CheckTokenSafety)
	assert.True(t, cfg.UseOrderSplitting)
	assert.Equal(t, 2.0, cfg.SplitThresholdImpact)
	assert.Equal(t, 5.0, cfg.MaxLiquidityShare)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sniper.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
rpc_url = "https://file.example"
buy_amount = 0.2
exit_strategy = "FULL_TP"
profit_target = 80.0
max_hold_time = "10m"
log_level = "debug"
log_format = "json"

[redis]
addr = "localhost:6379"

[paper]
balance = 3.5
latency = "250ms"
`), 0o600))

	t.Setenv("BUY_AMOUNT", "0.3")
	t.Setenv("PRICE_CHECK_INTERVAL", "5")
	t.Setenv("CONFIRM_TIMEOUT", "45s")
	t.Setenv("PRIORITY_FEE_LAMPORTS", "1_000_000")
	t.Setenv("USE_ORDER_SPLITTING", "false")
	t.Setenv("MIN_LIQUIDITY_USD", "2500")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://file.example", cfg.RPCURL)
	assert.Equal(t, 0.3, cfg.BuyAmount, "environment overrides the file")
	assert.Equal(t, "FULL_TP", cfg.ExitStrategy)
	assert.Equal(t, 80.0, cfg.ProfitTarget)
	assert.Equal(t, 10*time.Minute, cfg.MaxHoldTime)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	assert.Equal(t, logger.FormatJSON, cfg.LogFormat)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "sniper:events", cfg.Redis.EventChannel, "unset keys keep defaults")
	assert.Equal(t, 3.5, cfg.Paper.Balance)
	assert.Equal(t, 250*time.Millisecond, cfg.Paper.Latency)
	assert.Equal(t, 5*time.Second, cfg.PriceCheckInterval)
	assert.Equal(t, 45*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, uint64(1_000_000), cfg.PriorityFeeLamports)
	assert.False(t, cfg.UseOrderSplitting)
	assert.Equal(t, 2500.0, cfg.MinLiquidityUSD)
}

func TestLoad_CollectsEveryProblem(t *testing.T) {
	t.Setenv("RPC_URL", "")
	t.Setenv("BUY_AMOUNT", "lots")
	t.Setenv("STOP_LOSS", "10")
	t.Setenv("EXIT_STRATEGY", "MOON")
	t.Setenv("AUTO_SELL", "maybe")
	t.Setenv("PRICE_IMPACT_ABORT", "1")

	_, err := Load("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
	for _, want := range []string{
		"RPC_URL must be set",
		"invalid float value 'lots' for key BUY_AMOUNT",
		"STOP_LOSS must be negative",
		`EXIT_STRATEGY must be FULL_TP or TRAILING_STOP, got "MOON"`,
		"invalid boolean value 'maybe' for key AUTO_SELL",
		"PRICE_IMPACT_ABORT must be greater than PRICE_IMPACT_WARNING",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_BadFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"multi tp without levels", func(c *Config) { c.EnableMultiTP = true; c.TPLevels = " " }, "TP_LEVELS must be set"},
		{"custom fee without amount", func(c *Config) { c.PriorityFeeMode = "custom"; c.PriorityFeeLamports = 0 }, "PRIORITY_FEE_LAMPORTS must be set"},
		{"unknown fee mode", func(c *Config) { c.PriorityFeeMode = "max" }, "PRIORITY_FEE_MODE"},
		{"slippage over 100", func(c *Config) { c.SellEscalationSlippage = 150 }, "SELL_ESCALATION_SLIPPAGE must be between 0 and 100"},
		{"volume thresholds", func(c *Config) { c.EnableVolumeMonitoring = true; c.VolumeSpikeMultiplier = 1 }, "VOLUME_SPIKE_MULTIPLIER"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"trailing gap", func(c *Config) { c.TrailingStop = 0 }, "TRAILING_STOP must be positive"},
		{"liquidity share", func(c *Config) { c.MaxLiquidityShare = 120 }, "MAX_LIQUIDITY_SHARE_PERCENT"},
		{"negative liquidity floor", func(c *Config) { c.MinLiquidityUSD = -1 }, "MIN_LIQUIDITY_USD cannot be negative"},
		{"split threshold", func(c *Config) { c.SplitThresholdImpact = 0 }, "SPLIT_THRESHOLD_IMPACT must be positive"},
		{"split threshold unused", func(c *Config) { c.UseOrderSplitting = false; c.SplitThresholdImpact = 0 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.RPCURL = "https://rpc.example"
			tt.mutate(c)
			errs := c.validate()
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}
}

func TestValidateLive(t *testing.T) {
	c := Default()
	assert.ErrorIs(t, c.ValidateLive(), ports.ErrConfigurationError)
	c.WalletKey = "secret"
	assert.NoError(t, c.ValidateLive())
}
