package main

import (
	"context"
	"fmt"
	"log" // Use standard log only for fatal errors before the logger is set up
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"sniperBot/config"
	"sniperBot/internal/adapters/binanceclient"
	"sniperBot/internal/adapters/jito"
	"sniperBot/internal/adapters/jupiter"
	"sniperBot/internal/adapters/logger"
	"sniperBot/internal/adapters/paper"
	"sniperBot/internal/adapters/redisbus"
	"sniperBot/internal/adapters/solanarpc"
	"sniperBot/internal/adapters/sqlite"
	"sniperBot/internal/app"
	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
	"sniperBot/internal/risk"
	"sniperBot/internal/strategy"
	"sniperBot/internal/strategy/analytics"
	"sniperBot/internal/strategy/indicators"
	"sniperBot/internal/swap"
	"sniperBot/internal/utils"
)

var (
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sniper",
		Short: "Token sniping engine",
		Long: `sniper buys tokens from incoming trade intents and manages each position
until exit using take profit, trailing stop, stop loss and hold time rules.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file (environment overrides it)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(tradeCmd("run", "Trade live from the configured intent source", false))
	rootCmd.AddCommand(tradeCmd("paper", "Trade against a simulated portfolio with live quotes", true))
	rootCmd.AddCommand(buyCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(optimizeCmd())
	rootCmd.AddCommand(recordCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func tradeCmd(use, short string, paperMode bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger := setup()
			ctx := cmd.Context()

			eng, err := newEngine(ctx, cfg, appLogger, paperMode)
			if err != nil {
				return err
			}
			defer eng.Close()

			var source ports.IntentSource = app.LineSource{R: os.Stdin}
			if eng.bus != nil {
				source = eng.bus.Intents(appLogger)
			} else {
				appLogger.Info(ctx, "Redis not configured, reading token addresses from stdin")
			}
			return eng.start(ctx, source)
		},
	}
}

func buyCmd() *cobra.Command {
	var (
		amount    float64
		slippage  float64
		paperMode bool
	)
	cmd := &cobra.Command{
		Use:   "buy <token> [token...]",
		Short: "Buy the given tokens and manage the positions until they close",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger := setup()
			eng, err := newEngine(cmd.Context(), cfg, appLogger, paperMode)
			if err != nil {
				return err
			}
			defer eng.Close()

			intents := make(app.StaticSource, 0, len(args))
			for _, token := range args {
				intents = append(intents, domain.TradeIntent{
					TokenID:    token,
					Amount:     amount,
					Slippage:   slippage,
					Source:     "cli",
					ReceivedAt: time.Now(),
				})
			}
			return eng.start(cmd.Context(), intents)
		},
	}
	cmd.Flags().Float64VarP(&amount, "amount", "a", 0, "Base amount per buy (default from config)")
	cmd.Flags().Float64VarP(&slippage, "slippage", "s", 0, "Max slippage percent (default from config)")
	cmd.Flags().BoolVar(&paperMode, "paper", false, "Simulate the trade")
	return cmd
}

func statsCmd() *cobra.Command {
	var (
		since   time.Duration
		balance float64
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show trading performance from the trade history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger := setup()
			ctx := cmd.Context()
			repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
			if err != nil {
				return err
			}
			defer repo.Close()

			trades, err := repo.FindTrades(ctx, sinceTime(since))
			if err != nil {
				return err
			}
			watermarks, err := repo.Watermarks(ctx)
			if err != nil {
				return err
			}
			failed, err := repo.CountEvents(ctx, domain.EventSellFailed)
			if err != nil {
				return err
			}
			maxROI := make(map[string]float64, len(watermarks))
			for id, w := range watermarks {
				maxROI[id] = w.MaxROI
			}

			printStats(analytics.AnalyzePerformance(trades, balance, maxROI), failed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "Only include trades newer than this (0 for all)")
	cmd.Flags().Float64Var(&balance, "balance", 0, "Starting base balance for return and drawdown figures")
	return cmd
}

func exportCmd() *cobra.Command {
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "export <file.csv>",
		Short: "Export the trade history as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger := setup()
			repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
			if err != nil {
				return err
			}
			defer repo.Close()

			trades, err := repo.FindTrades(cmd.Context(), sinceTime(since))
			if err != nil {
				return err
			}
			if err := utils.WriteTradesToCSV(trades, args[0]); err != nil {
				return err
			}
			appLogger.Info(cmd.Context(), "Trades exported", map[string]interface{}{"file": args[0], "trades": len(trades)})
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "Only include trades newer than this (0 for all)")
	return cmd
}

// setup loads configuration and creates the logger.
func setup() (*config.Config, *logger.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	if verbose {
		cfg.LogLevel = logger.LevelDebug
	}
	appLogger := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	appLogger.Debug(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})
	return cfg, appLogger
}

func sinceTime(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-d)
}

// engine holds the wired trading service and the resources it owns.
type engine struct {
	service   *app.TradingService
	bus       *redisbus.Client
	portfolio *paper.Portfolio
	logger    ports.Logger
	closers   []func() error
}

func (e *engine) start(ctx context.Context, source ports.IntentSource) error {
	err := e.service.Start(ctx, source)
	if e.portfolio != nil {
		e.portfolio.Report(context.Background())
	}
	if err != nil {
		e.logger.Error(context.Background(), err, "Trading service exited with error")
		return err
	}
	e.logger.Info(context.Background(), "Application finished gracefully.")
	return nil
}

// Close releases resources in reverse order of acquisition.
func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Error(context.Background(), err, "Error releasing resource")
		}
	}
}

func newEngine(ctx context.Context, cfg *config.Config, appLogger ports.Logger, paperMode bool) (_ *engine, err error) {
	eng := &engine{logger: appLogger}
	defer func() {
		if err != nil {
			eng.Close()
		}
	}()

	// 1. Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database repository: %w", err)
	}
	eng.closers = append(eng.closers, repo.Close)
	sinks := app.MultiSink{repo}

	// 2. Chain access and quotes
	rpcClient, err := solanarpc.Dial(cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	eng.closers = append(eng.closers, rpcClient.Close)

	quotes, err := jupiter.New(jupiter.Config{BaseURL: cfg.JupiterURL, APIKey: cfg.JupiterAPIKey, Logger: appLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize quote client: %w", err)
	}

	var owner solana.PublicKey
	var wallet solana.PrivateKey
	if !paperMode {
		if err := cfg.ValidateLive(); err != nil {
			return nil, err
		}
		if wallet, err = solanarpc.LoadWallet(cfg.WalletKey); err != nil {
			return nil, err
		}
		owner = wallet.PublicKey()
	}
	chain := solanarpc.NewChain(rpcClient, owner, cfg.BaseMint)

	// 3. Execution pipeline
	limiter := swap.NewLimiter(cfg.MaxConcurrentCalls)
	fees := swap.NewFeeSelector(swap.FeeConfig{
		Fixed:           cfg.PriorityFeeMode == "custom",
		FixedTip:        cfg.PriorityFeeLamports,
		RefreshInterval: cfg.CongestionRefresh,
	}, chain, appLogger)

	var (
		builder   ports.TxBuilder
		submitter ports.Submitter
		confirmer ports.Confirmer
		balances  ports.BalanceProvider
	)
	if paperMode {
		portfolio, err := paper.NewPortfolio(paper.Config{
			BaseMint:        cfg.BaseMint,
			StartingBalance: domain.FromUI(cfg.Paper.Balance, domain.BaseDecimals),
			Latency:         cfg.Paper.Latency,
			Probe: func(ctx context.Context) error {
				_, err := chain.SampleLoad(ctx)
				return err
			},
		}, appLogger)
		if err != nil {
			return nil, err
		}
		submitter, err = swap.NewDualSubmitter(portfolio.Channel("paper-priority"), portfolio.Channel("paper-rpc"), cfg.SubmitTimeout, appLogger)
		if err != nil {
			return nil, err
		}
		eng.portfolio = portfolio
		builder, confirmer, balances = portfolio, portfolio, portfolio
	} else {
		var priority ports.TxSender
		if cfg.JitoURL != "" {
			priority = jito.New(jito.Config{URL: cfg.JitoURL, AuthToken: cfg.JitoAuth, Timeout: cfg.SubmitTimeout})
		}
		broadcastAPI := rpcClient
		if cfg.BackupRPCURL != "" {
			if broadcastAPI, err = solanarpc.Dial(cfg.BackupRPCURL); err != nil {
				return nil, err
			}
			eng.closers = append(eng.closers, broadcastAPI.Close)
		}
		submitter, err = swap.NewDualSubmitter(priority, solanarpc.NewSender(broadcastAPI, "rpc"), cfg.SubmitTimeout, appLogger)
		if err != nil {
			return nil, err
		}
		builder = solanarpc.NewBuilder(quotes, wallet)
		confirmer = solanarpc.NewConfirmer(rpcClient, solanarpc.ConfirmerConfig{MaxPolls: cfg.ConfirmMaxPolls}, appLogger)
		balances = chain
	}

	swapCfg := swap.DefaultConfig()
	swapCfg.BaseMint = cfg.BaseMint
	swapCfg.MaxRetries = cfg.MaxSwapRetries
	swapCfg.RetryBackoff = cfg.RetryBackoff
	swapCfg.ImpactWarnPercent = cfg.PriceImpactWarning
	swapCfg.ImpactAbortPercent = cfg.PriceImpactAbort
	swapCfg.MinOutputBase = domain.FromUI(cfg.MinOutputBase, domain.BaseDecimals)
	swapCfg.ConfirmTimeout = cfg.ConfirmTimeout
	executor, err := swap.NewExecutor(swapCfg, swap.Dependencies{
		Quoter:    quotes,
		Builder:   builder,
		Submitter: submitter,
		Confirmer: confirmer,
		Tips:      fees,
		Limiter:   limiter,
		Logger:    appLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize swap executor: %w", err)
	}

	// 4. Exit strategy and risk
	exitCfg, err := exitConfig(cfg)
	if err != nil {
		return nil, err
	}
	evaluator, err := strategy.New(exitCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize exit strategy: %w", err)
	}
	volume := indicators.NewVolumeMonitor(volumeConfig(cfg))
	riskManager := risk.NewRiskManager(risk.RiskConfig{
		MaxOpenPositions:    cfg.MaxOpenPositions,
		MaxDailyTrades:      cfg.MaxDailyTrades,
		MaxDailyLoss:        cfg.MaxDailyLoss,
		PositionSizePercent: cfg.MaxPositionSizePercent,
		FeeReserve:          cfg.FeeReserve,
		VolatilitySizing:    cfg.DynamicPositionSizing,
	})

	var reference ports.ReferencePriceProvider
	if cfg.Reference.Enabled {
		ref, err := binanceclient.New(binanceclient.Config{
			APIKey:     cfg.Reference.APIKey,
			SecretKey:  cfg.Reference.SecretKey,
			UseTestnet: cfg.Reference.Testnet,
			Symbol:     cfg.Reference.Symbol,
			CacheTTL:   cfg.Reference.CacheTTL,
			Logger:     appLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize reference price client: %w", err)
		}
		reference = ref
	}

	// Interfaces stay nil unless enabled
	var safety app.SafetyCheck
	if cfg.CheckTokenSafety {
		checker, err := risk.NewSafetyChecker(risk.SafetyConfig{
			BaseMint:           cfg.BaseMint,
			ImpactAbortPercent: cfg.PriceImpactAbort,
			MinLiquidityUSD:    cfg.MinLiquidityUSD,
			MaxLiquidityShare:  cfg.MaxLiquidityShare,
			CheckHoneypot:      cfg.CheckHoneypot,
		}, quotes, repo, reference, appLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize token safety checks: %w", err)
		}
		safety = checker
	}
	var splitter app.OrderSplitter
	if cfg.UseOrderSplitting {
		sp, err := swap.NewSplitter(executor, swap.SplitConfig{
			ThresholdImpact: cfg.SplitThresholdImpact,
			ChunkDelay:      500 * time.Millisecond,
		}, appLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize order splitter: %w", err)
		}
		splitter = sp
	}

	// 5. Optional collaborators
	if cfg.Redis.Addr != "" {
		bus, err := redisbus.New(ctx, redisbus.Config{
			Addr:          cfg.Redis.Addr,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			IntentChannel: cfg.Redis.IntentChannel,
			EventChannel:  cfg.Redis.EventChannel,
			DedupeTTL:     cfg.Redis.DedupeTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		eng.bus = bus
		eng.closers = append(eng.closers, bus.Close)
		sinks = append(sinks, bus.Events())
	}

	// 6. Application Service
	eng.service, err = app.NewTradingService(app.ServiceConfig{
		BaseMint:            cfg.BaseMint,
		DefaultBuyAmount:    cfg.BuyAmount,
		BuySlippage:         cfg.BuySlippage,
		SellSlippage:        cfg.SellSlippage,
		EscalationSlippage:  cfg.SellEscalationSlippage,
		BalanceWaitAttempts: cfg.BalanceWaitAttempts,
		BalanceWaitInterval: cfg.BalanceWaitInterval,
		Paper:               paperMode,
	}, app.PollerConfig{
		Interval:             cfg.PriceCheckInterval,
		DisplayInterval:      cfg.PriceDisplayInterval,
		FailureThreshold:     cfg.ProbeFailureThreshold,
		FailureBackoff:       cfg.ProbeFailureBackoff,
		VolumeSampleInterval: cfg.VolumeSampleInterval,
		VolumeEnabled:        cfg.EnableVolumeMonitoring,
		AutoSell:             cfg.AutoSell,
	}, app.Dependencies{
		Executor:  executor,
		Prices:    swap.NewProber(quotes, cfg.BaseMint, cfg.ProbePercent, limiter),
		Evaluator: evaluator,
		Volume:    volume,
		Balances:  balances,
		Mints:     chain,
		Sink:      sinks,
		Trades:    repo,
		Reference: reference,
		Risk:      riskManager,
		Safety:    safety,
		Splitter:  splitter,
		Registry:  app.NewRegistry(),
		Logger:    appLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize trading service: %w", err)
	}

	appLogger.Info(ctx, "Engine initialized", map[string]interface{}{
		"paper":    paperMode,
		"strategy": cfg.ExitStrategy,
		"autoSell": cfg.AutoSell,
		"redis":    eng.bus != nil,
		"safety":   safety != nil,
		"split":    splitter != nil,
	})
	return eng, nil
}

// exitConfig maps configuration onto the exit evaluator settings.
func exitConfig(cfg *config.Config) (strategy.Config, error) {
	var levels []strategy.TakeProfitLevel
	if cfg.EnableMultiTP {
		var err error
		if levels, err = strategy.ParseLevels(cfg.TPLevels); err != nil {
			return strategy.Config{}, fmt.Errorf("%w: %w", ports.ErrConfigurationError, err)
		}
	}
	return strategy.Config{
		Strategy:     domain.ExitStrategy(cfg.ExitStrategy),
		ProfitTarget: cfg.ProfitTarget,
		StopLoss:     cfg.StopLoss,
		TrailingGap:  cfg.TrailingStop,
		MaxHold:      cfg.MaxHoldTime,
		MultiTP:      cfg.EnableMultiTP,
		Levels:       levels,
		VolumeExit:   cfg.EnableVolumeMonitoring,
	}, nil
}

func volumeConfig(cfg *config.Config) indicators.VolumeConfig {
	return indicators.VolumeConfig{
		SpikeMultiplier: cfg.VolumeSpikeMultiplier,
		DryUpPercent:    cfg.VolumeDryupPercent,
		MinSamples:      cfg.VolumeMinSamples,
	}
}

func printStats(m *analytics.PerformanceMetrics, failedSells int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Positions\t%d\n", m.Positions)
	fmt.Fprintf(w, "Sells\t%d (%d won, %d lost)\n", m.TotalTrades, m.WinningTrades, m.LosingTrades)
	fmt.Fprintf(w, "Win rate\t%.2f%%\n", m.WinRate*100)
	fmt.Fprintf(w, "Total PnL\t%.6f\n", m.TotalProfit)
	fmt.Fprintf(w, "Average win / loss\t%.6f / %.6f\n", m.AverageWin, m.AverageLoss)
	fmt.Fprintf(w, "Profit factor\t%.2f\n", m.ProfitFactor)
	fmt.Fprintf(w, "Expectancy\t%.6f\n", m.Expectancy)
	fmt.Fprintf(w, "Max drawdown\t%.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(w, "Average hold\t%s\n", m.AverageHoldTime.Round(time.Second))
	fmt.Fprintf(w, "Average max ROI\t%.2f%%\n", m.AverageMaxROI)
	fmt.Fprintf(w, "Volume\t%.4f base / %.2f USD\n", m.VolumeBase, m.VolumeUSD)
	fmt.Fprintf(w, "Failed sells\t%d\n", failedSells)

	reasons := make([]string, 0, len(m.ExitReasons))
	for r := range m.ExitReasons {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(w, "Exit %s\t%d\n", r, m.ExitReasons[domain.ExitReason(r)])
	}
	for _, mr := range m.GetMonthlyReturns() {
		fmt.Fprintf(w, "PnL %s\t%.6f\n", mr.Month.Format("2006-01"), mr.Return)
	}
	w.Flush()
}
