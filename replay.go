package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"sniperBot/internal/adapters/jupiter"
	"sniperBot/internal/adapters/solanarpc"
	"sniperBot/internal/domain"
	"sniperBot/internal/strategy"
	"sniperBot/internal/strategy/analytics"
	"sniperBot/internal/strategy/backtesting"
	"sniperBot/internal/strategy/optimization"
	"sniperBot/internal/swap"
)

// loadPaths reads recorded price paths from a CSV file.
func loadPaths(name string) (map[string][]backtesting.Tick, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return backtesting.ReadTicks(f)
}

func replayCmd() *cobra.Command {
	var (
		amount  float64
		fee     float64
		balance float64
	)
	cmd := &cobra.Command{
		Use:   "replay <ticks.csv>",
		Short: "Replay recorded price paths through the configured exit rules",
		Long: `replay buys each token at the first tick of its path and runs the exit
rules on every later tick. The CSV holds token,time,price[,volume] rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger := setup()
			ctx := cmd.Context()

			exitCfg, err := exitConfig(cfg)
			if err != nil {
				return err
			}
			evaluator, err := strategy.New(exitCfg)
			if err != nil {
				return err
			}
			paths, err := loadPaths(args[0])
			if err != nil {
				return err
			}
			if amount <= 0 {
				amount = cfg.BuyAmount
			}
			btCfg := backtesting.BacktestConfig{BuyAmount: amount, FeePerSell: fee}
			if cfg.EnableVolumeMonitoring {
				vc := volumeConfig(cfg)
				btCfg.Volume = &vc
			}

			tokens := make([]string, 0, len(paths))
			for token := range paths {
				tokens = append(tokens, token)
			}
			sort.Strings(tokens)

			var trades []*domain.Trade
			maxROI := make(map[string]float64, len(tokens))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TOKEN\tTICKS\tSELLS\tLAST EXIT\tMAX ROI\tPNL\tOPEN PNL")
			for _, token := range tokens {
				btCfg.TokenID = token
				result, err := backtesting.Backtest(ctx, evaluator, paths[token], btCfg)
				if err != nil {
					appLogger.Warn(ctx, "Skipping price path", map[string]interface{}{"token": token, "error": err.Error()})
					continue
				}
				trades = append(trades, result.Trades...)
				maxROI[result.Position.ID] = result.MaxROI

				last := "-"
				if n := len(result.Trades); n > 1 {
					last = string(result.Trades[n-1].Reason)
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%.2f%%\t%.6f\t%.6f\n",
					token, result.Ticks, len(result.Trades)-1, last, result.MaxROI, result.TotalProfit, result.UnrealizedPNL)
			}
			w.Flush()
			fmt.Println()

			printStats(analytics.AnalyzePerformance(trades, balance, maxROI), 0)
			return nil
		},
	}
	cmd.Flags().Float64VarP(&amount, "amount", "a", 0, "Base amount per buy (default from config)")
	cmd.Flags().Float64Var(&fee, "fee", 0.00001, "Base units charged per sell")
	cmd.Flags().Float64Var(&balance, "balance", 0, "Starting base balance for return and drawdown figures")
	return cmd
}

func optimizeCmd() *cobra.Command {
	var (
		ranges      []string
		amount      float64
		fee         float64
		balance     float64
		top         int
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "optimize <ticks.csv>",
		Short: "Search exit parameters over recorded price paths",
		Example: `  sniper optimize paths.csv --range stop_loss=-50:-10:10 --range trailing_gap=5:30:5
  sniper optimize paths.csv --range max_hold_minutes=10:60:10 --top 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger := setup()
			ctx := cmd.Context()

			base, err := exitConfig(cfg)
			if err != nil {
				return err
			}
			paramRanges := make([]optimization.ParameterRange, 0, len(ranges))
			for _, r := range ranges {
				pr, err := optimization.ParseRange(r)
				if err != nil {
					return err
				}
				paramRanges = append(paramRanges, pr)
			}
			paths, err := loadPaths(args[0])
			if err != nil {
				return err
			}
			if amount <= 0 {
				amount = cfg.BuyAmount
			}
			if balance <= 0 {
				balance = amount * float64(len(paths))
			}

			btCfg := backtesting.BacktestConfig{BuyAmount: amount, FeePerSell: fee}
			if cfg.EnableVolumeMonitoring {
				vc := volumeConfig(cfg)
				btCfg.Volume = &vc
			}
			optimizer, err := optimization.NewOptimizer(optimization.OptimizerConfig{
				Base:            base,
				ParameterRanges: paramRanges,
				Backtest:        btCfg,
				InitialFunds:    balance,
				Concurrency:     concurrency,
			})
			if err != nil {
				return err
			}

			appLogger.Info(ctx, "Optimizing exit parameters", map[string]interface{}{"paths": len(paths), "ranges": ranges})
			results, err := optimizer.Optimize(ctx, paths)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tSCORE\tPARAMETERS\tPNL\tWIN RATE\tMAX DD\tSELLS")
			for i, r := range results {
				if top > 0 && i >= top {
					break
				}
				names := make([]string, 0, len(r.Parameters))
				for name := range r.Parameters {
					names = append(names, name)
				}
				sort.Strings(names)
				params := ""
				for _, name := range names {
					params += fmt.Sprintf("%s=%g ", name, r.Parameters[name])
				}
				fmt.Fprintf(w, "%d\t%.4f\t%s\t%.6f\t%.2f%%\t%.2f%%\t%d\n",
					i+1, r.Score, params, r.Metrics.TotalProfit, r.Metrics.WinRate*100, r.Metrics.MaxDrawdown*100, r.Metrics.TotalTrades)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringArrayVarP(&ranges, "range", "r", nil, "Parameter range name=min:max:step (repeatable)")
	cmd.Flags().Float64VarP(&amount, "amount", "a", 0, "Base amount per buy (default from config)")
	cmd.Flags().Float64Var(&fee, "fee", 0.00001, "Base units charged per sell")
	cmd.Flags().Float64Var(&balance, "balance", 0, "Starting base balance (default amount times paths)")
	cmd.Flags().IntVar(&top, "top", 10, "Show the best N results, 0 for all")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Parameter sets evaluated in parallel")
	return cmd
}

func recordCmd() *cobra.Command {
	var (
		interval time.Duration
		duration time.Duration
		output   string
	)
	cmd := &cobra.Command{
		Use:   "record <token> [token...]",
		Short: "Record live price paths to CSV for replay and optimize",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger := setup()
			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			rpcClient, err := solanarpc.Dial(cfg.RPCURL)
			if err != nil {
				return err
			}
			defer rpcClient.Close()
			quotes, err := jupiter.New(jupiter.Config{BaseURL: cfg.JupiterURL, APIKey: cfg.JupiterAPIKey, Logger: appLogger})
			if err != nil {
				return err
			}
			chain := solanarpc.NewChain(rpcClient, solana.PublicKey{}, cfg.BaseMint)
			prober := swap.NewProber(quotes, cfg.BaseMint, cfg.ProbePercent, swap.NewLimiter(cfg.MaxConcurrentCalls))

			// Nominal holdings sized so each probe quotes one whole token
			holdings := make(map[string]uint64, len(args))
			decimals := make(map[string]uint8, len(args))
			for _, token := range args {
				d, err := chain.Decimals(ctx, token)
				if err != nil {
					return fmt.Errorf("failed to read decimals for %s: %w", token, err)
				}
				decimals[token] = d
				holdings[token] = domain.FromUI(100/cfg.ProbePercent, d)
			}

			if output == "" {
				output = filepath.Join("data", fmt.Sprintf("paths_%s.csv", time.Now().Format("20060102_150405")))
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return err
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			w := csv.NewWriter(f)
			if err := w.Write([]string{"token", "time", "price", "volume"}); err != nil {
				return err
			}

			appLogger.Info(ctx, "Recording price paths", map[string]interface{}{"tokens": len(args), "interval": interval.String(), "file": output})
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			rows := 0
			for {
				for _, token := range args {
					price, err := prober.Price(ctx, token, decimals[token], holdings[token])
					if err != nil {
						if ctx.Err() != nil {
							break
						}
						appLogger.Warn(ctx, "Price probe failed", map[string]interface{}{"token": token, "error": err.Error()})
						continue
					}
					if err := w.Write([]string{token, time.Now().UTC().Format(time.RFC3339), strconv.FormatFloat(price, 'g', -1, 64), ""}); err != nil {
						return err
					}
					rows++
				}
				w.Flush()
				if err := w.Error(); err != nil {
					return err
				}

				select {
				case <-ctx.Done():
					appLogger.Info(context.Background(), "Recording stopped", map[string]interface{}{"rows": rows, "file": output})
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", 2*time.Second, "Time between price probes")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Stop after this long (0 runs until interrupted)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "CSV file (default data/paths_<timestamp>.csv)")
	return cmd
}
