package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
	"sniperBot/internal/risk"
	"sniperBot/internal/strategy/indicators"
)

// SwapExecutor executes a single swap end to end.
type SwapExecutor interface {
	Execute(ctx context.Context, req domain.SwapRequest) (*domain.SwapResult, error)
}

// OrderSplitter executes a buy as several smaller swaps when impact is high.
type OrderSplitter interface {
	Execute(ctx context.Context, req domain.SwapRequest, impact float64) (*domain.SwapResult, error)
}

// SafetyCheck vets a token before it is bought.
type SafetyCheck interface {
	Check(ctx context.Context, token string, decimals uint8, amount float64) (risk.SafetyReport, error)
}

// ServiceConfig holds trading parameters used by the service.
type ServiceConfig struct {
	BaseMint            string
	DefaultBuyAmount    float64 // Base units
	BuySlippage         float64 // Percent
	SellSlippage        float64 // Percent
	EscalationSlippage  float64 // Percent, used by the sell escalation steps; raised to 1.5x SellSlippage when not above it
	ReducedSellFactor   float64 // Share of the requested percent sold by the last escalation step
	BalanceWaitAttempts int
	BalanceWaitInterval time.Duration
	Paper               bool
}

// Dependencies groups the collaborators of a TradingService.
type Dependencies struct {
	Executor  SwapExecutor
	Prices    PriceSource
	Evaluator ports.ExitEvaluator
	Volume    *indicators.VolumeMonitor
	Balances  ports.BalanceProvider
	Mints     ports.MintInfo
	Sink      ports.EventSink
	Trades    ports.TradeRepository        // Optional
	Reference ports.ReferencePriceProvider // Optional
	Safety    SafetyCheck                  // Optional
	Splitter  OrderSplitter                // Optional
	Risk      *risk.RiskManager
	Registry  *Registry
	Logger    ports.Logger
}

// TradingService turns intents into positions and manages them until exit.
type TradingService struct {
	cfg       ServiceConfig
	executor  SwapExecutor
	balances  ports.BalanceProvider
	mints     ports.MintInfo
	sink      ports.EventSink
	trades    ports.TradeRepository
	reference ports.ReferencePriceProvider
	safety    SafetyCheck
	splitter  OrderSplitter
	risk      *risk.RiskManager
	registry  *Registry
	poller    *Poller
	logger    ports.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	pending map[string]struct{} // Tokens with a buy in flight
}

// NewTradingService creates a new application service instance.
func NewTradingService(cfg ServiceConfig, pollCfg PollerConfig, deps Dependencies) (*TradingService, error) {
	// Validate dependencies
	if deps.Executor == nil || deps.Prices == nil || deps.Evaluator == nil || deps.Balances == nil ||
		deps.Mints == nil || deps.Sink == nil || deps.Risk == nil || deps.Registry == nil || deps.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}

	// Validate config values needed by service
	if cfg.BaseMint == "" {
		return nil, fmt.Errorf("configuration BaseMint must be set")
	}
	if cfg.DefaultBuyAmount <= 0 {
		return nil, fmt.Errorf("configuration DefaultBuyAmount must be positive")
	}
	if cfg.BuySlippage <= 0 || cfg.SellSlippage <= 0 {
		return nil, fmt.Errorf("configuration slippage must be positive")
	}
	if cfg.EscalationSlippage <= cfg.SellSlippage {
		cfg.EscalationSlippage = math.Min(cfg.SellSlippage*1.5, 100)
	}
	if cfg.ReducedSellFactor <= 0 || cfg.ReducedSellFactor >= 1 {
		cfg.ReducedSellFactor = 0.5
	}
	if cfg.BalanceWaitAttempts <= 0 {
		cfg.BalanceWaitAttempts = 20
	}
	if cfg.BalanceWaitInterval <= 0 {
		cfg.BalanceWaitInterval = 3 * time.Second
	}

	s := &TradingService{
		cfg:       cfg,
		executor:  deps.Executor,
		balances:  deps.Balances,
		mints:     deps.Mints,
		sink:      deps.Sink,
		trades:    deps.Trades,
		reference: deps.Reference,
		safety:    deps.Safety,
		splitter:  deps.Splitter,
		risk:      deps.Risk,
		registry:  deps.Registry,
		logger:    deps.Logger,
		now:       time.Now,
		sleep:     sleepContext,
		pending:   make(map[string]struct{}),
	}
	s.poller = NewPoller(pollCfg, deps.Registry, deps.Prices, deps.Evaluator, deps.Volume, s, deps.Sink, deps.Logger)
	s.poller.observe = deps.Risk.ObservePrice
	return s, nil
}

// Start consumes intents until ctx is canceled or a shutdown signal arrives,
// then waits for every tracked task to finish.
func (s *TradingService) Start(ctx context.Context, source ports.IntentSource) error {
	s.logger.Info(ctx, "Starting Trading Service...", map[string]interface{}{"paper": s.cfg.Paper})

	// Create a context that can be canceled by signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	// Sync today's trade count so daily limits survive restarts
	if s.trades != nil {
		count, err := s.trades.CountTodayBuys(ctx)
		if err != nil {
			s.logger.Error(ctx, err, "Failed to count trades for today")
			return fmt.Errorf("failed to count today's trades: %w", err)
		}
		s.risk.SeedDailyTrades(count)
		s.logger.Info(ctx, "Initial state synchronized", map[string]interface{}{"tradesToday": count})
	}

	intents, err := source.Intents(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to subscribe to trade intents")
		return fmt.Errorf("failed to subscribe to intents: %w", err)
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case intent, ok := <-intents:
			if !ok {
				s.logger.Info(ctx, "Intent source closed")
				break loop
			}
			s.registry.Go(func() error {
				if _, err := s.HandleIntent(ctx, intent); err != nil {
					s.logger.Warn(ctx, "Intent rejected", map[string]interface{}{
						"token":  intent.TokenID,
						"source": intent.Source,
						"error":  err.Error(),
					})
				}
				return nil
			})
		}
	}

	s.logger.Info(ctx, "Waiting for position tasks to finish", map[string]interface{}{"open": s.registry.Count()})
	return s.registry.Wait()
}

// Run keeps managing already open positions until ctx is done and all tasks return.
func (s *TradingService) Run(ctx context.Context) error {
	<-ctx.Done()
	return s.registry.Wait()
}

// HandleIntent buys the token and starts managing the resulting position.
// The returned position's poller runs until ctx is canceled or the position closes.
func (s *TradingService) HandleIntent(ctx context.Context, intent domain.TradeIntent) (domain.Position, error) {
	token := strings.TrimSpace(intent.TokenID)
	if token == "" || token == s.cfg.BaseMint {
		return domain.Position{}, fmt.Errorf("%w: invalid token %q", ports.ErrInvalidRequest, intent.TokenID)
	}
	if !s.claim(token) {
		return domain.Position{}, fmt.Errorf("%w: buy already in flight for %s", ports.ErrPositionExists, token)
	}
	defer s.release(token)

	if s.registry.Has(token) {
		return domain.Position{}, fmt.Errorf("%w: %s", ports.ErrPositionExists, token)
	}
	if s.trades != nil {
		bought, err := s.trades.HasBought(ctx, token)
		if err != nil {
			s.logger.Warn(ctx, "Failed to check trade history", map[string]interface{}{"token": token, "error": err.Error()})
		} else if bought {
			return domain.Position{}, fmt.Errorf("%w: %s was already traded", ports.ErrPositionExists, token)
		}
	}

	amount := intent.Amount
	if amount <= 0 {
		amount = s.cfg.DefaultBuyAmount
	}
	slippage := intent.Slippage
	if slippage <= 0 {
		slippage = s.cfg.BuySlippage
	}

	balanceRaw, err := s.balances.BaseBalance(ctx)
	if err != nil {
		return domain.Position{}, fmt.Errorf("failed to read base balance: %w", err)
	}
	balance := domain.ToUI(balanceRaw, domain.BaseDecimals)
	size := s.risk.GetPositionSize(ctx, amount, balance)
	size = s.risk.SizeForVolatility(ctx, token, size)
	if err := s.risk.ValidateIntent(ctx, size, balance); err != nil {
		return domain.Position{}, err
	}

	decimals, err := s.mints.Decimals(ctx, token)
	if err != nil {
		return domain.Position{}, fmt.Errorf("failed to resolve decimals for %s: %w", token, err)
	}

	var impact float64
	if s.safety != nil {
		report, err := s.safety.Check(ctx, token, decimals, size)
		if err != nil {
			s.logger.Warn(ctx, "Token failed safety checks", map[string]interface{}{"token": token, "error": err.Error()})
			return domain.Position{}, err
		}
		s.risk.ObservePrice(token, report.SpotPrice)
		impact = report.PriceImpact
		if report.MaxSize > 0 && report.MaxSize < size {
			s.logger.Info(ctx, "Buy capped by pool liquidity", map[string]interface{}{
				"token":     token,
				"requested": size,
				"capped":    report.MaxSize,
				"liquidity": report.Liquidity,
			})
			size = report.MaxSize
		}
	}

	s.logger.Info(ctx, "Buying token", map[string]interface{}{
		"token":    token,
		"amount":   size,
		"slippage": slippage,
		"impact":   impact,
		"source":   intent.Source,
	})
	req := domain.SwapRequest{
		Side:           domain.Buy,
		InputMint:      s.cfg.BaseMint,
		OutputMint:     token,
		Amount:         domain.FromUI(size, domain.BaseDecimals),
		MaxSlippage:    slippage,
		InputDecimals:  domain.BaseDecimals,
		OutputDecimals: decimals,
		Tag:            "buy",
	}
	var res *domain.SwapResult
	if s.splitter != nil {
		res, err = s.splitter.Execute(ctx, req, impact)
	} else {
		res, err = s.executor.Execute(ctx, req)
	}
	if err != nil {
		s.logger.Error(ctx, err, "Buy failed", map[string]interface{}{"token": token})
		return domain.Position{}, err
	}
	// A split order may land only some of its chunks
	if res.InAmount > 0 {
		size = domain.ToUI(res.InAmount, domain.BaseDecimals)
	}

	tokens := s.waitForTokens(ctx, token, res.OutAmount)
	price := domain.UnitPrice(res.InAmount, domain.BaseDecimals, tokens, decimals)
	if price <= 0 {
		price = res.Price
	}

	pos := domain.NewPosition(uuid.NewString(), token, price, size, tokens, decimals, s.now())
	pos.Source = intent.Source
	pos.BuySignature = res.Signature
	if err := s.registry.Open(pos); err != nil {
		s.logger.Error(ctx, err, "Bought token but could not track position", map[string]interface{}{"token": token})
		return domain.Position{}, err
	}
	s.risk.RecordBuy(ctx)

	s.record(ctx, domain.LifecycleEvent{
		ID:         uuid.NewString(),
		Type:       domain.EventBuyRecorded,
		PositionID: pos.ID,
		TokenID:    token,
		Time:       pos.BuyTime,
		Trade: &domain.Trade{
			ID:          uuid.NewString(),
			PositionID:  pos.ID,
			TokenID:     token,
			Side:        domain.Buy,
			Signature:   res.Signature,
			BaseAmount:  size,
			TokenAmount: tokens,
			Price:       price,
			USDValue:    s.usdValue(ctx, size),
			Source:      intent.Source,
			Paper:       s.cfg.Paper,
			ExecutedAt:  pos.BuyTime,
		},
	})
	s.logger.Info(ctx, "Position opened", map[string]interface{}{
		"token":     token,
		"price":     price,
		"tokens":    domain.ToUI(tokens, decimals),
		"signature": res.Signature,
		"attempts":  res.Attempts,
	})

	s.registry.Go(func() error { return s.poller.Run(ctx, token) })
	return pos, nil
}

// Sell manually sells pct percent of the original position.
func (s *TradingService) Sell(ctx context.Context, token string, pct float64) error {
	pos, err := s.registry.BeginSell(token)
	if err != nil {
		return err
	}
	if pct <= 0 || pct > pos.RemainingPercent() {
		pct = pos.RemainingPercent()
	}
	return s.ExecuteSell(ctx, pos, domain.ExitDecision{
		ShouldSell:  true,
		Reason:      domain.ExitReasonManual,
		SellPercent: pct,
		Message:     "manual sell",
	})
}

type sellStep struct {
	label    string
	pct      float64
	slippage float64
}

// ExecuteSell runs the sell escalation ladder for a position whose sell guard
// is set: the requested sell, then higher slippage, then a reduced percent.
// On total failure the guard is cleared and the position stays open.
func (s *TradingService) ExecuteSell(ctx context.Context, pos domain.Position, decision domain.ExitDecision) error {
	pct := decision.SellPercent
	if pct > pos.RemainingPercent() {
		pct = pos.RemainingPercent()
	}
	steps := []sellStep{
		{label: "standard", pct: pct, slippage: s.cfg.SellSlippage},
		{label: "escalated_slippage", pct: pct, slippage: s.cfg.EscalationSlippage},
		{label: "reduced_percent", pct: pct * s.cfg.ReducedSellFactor, slippage: s.cfg.EscalationSlippage},
	}

	var lastErr error
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		amount := s.sellAmount(ctx, pos, step.pct)
		if amount == 0 {
			lastErr = fmt.Errorf("%w: nothing to sell for %s", ports.ErrInvalidRequest, pos.TokenID)
			break
		}
		res, err := s.executor.Execute(ctx, domain.SwapRequest{
			Side:           domain.Sell,
			InputMint:      pos.TokenID,
			OutputMint:     s.cfg.BaseMint,
			Amount:         amount,
			MaxSlippage:    step.slippage,
			InputDecimals:  pos.TokenDecimals,
			OutputDecimals: domain.BaseDecimals,
			Tag:            string(decision.Reason),
		})
		if err == nil {
			return s.completeSell(ctx, pos, decision, step.pct, amount, res)
		}
		lastErr = err
		s.logger.Warn(ctx, "Sell step failed", map[string]interface{}{
			"token":    pos.TokenID,
			"step":     step.label,
			"percent":  step.pct,
			"slippage": step.slippage,
			"error":    err.Error(),
		})
	}

	if err := s.registry.AbortSell(pos.TokenID); err != nil && !errors.Is(err, ports.ErrPositionNotFound) {
		s.logger.Error(ctx, err, "Failed to clear sell guard", map[string]interface{}{"token": pos.TokenID})
	}
	err := fmt.Errorf("%w: %s: %w", ports.ErrSellFailed, pos.TokenID, lastErr)
	s.logger.Error(ctx, err, "CRITICAL: sell failed after escalation, manual action required", map[string]interface{}{
		"token":   pos.TokenID,
		"reason":  string(decision.Reason),
		"percent": pct,
	})
	s.record(ctx, domain.LifecycleEvent{
		ID:         uuid.NewString(),
		Type:       domain.EventSellFailed,
		PositionID: pos.ID,
		TokenID:    pos.TokenID,
		Time:       s.now(),
		Message:    err.Error(),
	})
	return err
}

// completeSell books what the swap actually consumed. The executor may have
// shrunk the amount to get past dust output, so the sold percent is scaled by
// the filled share of the request rather than taken from the request.
func (s *TradingService) completeSell(ctx context.Context, pos domain.Position, decision domain.ExitDecision, requested float64, amount uint64, res *domain.SwapResult) error {
	filled := res.InAmount
	if filled == 0 || filled > amount {
		filled = amount
	}
	pct := math.Min(requested*float64(filled)/float64(amount), pos.RemainingPercent())
	if filled < amount {
		s.logger.Warn(ctx, "Sell filled less than requested", map[string]interface{}{
			"token":     pos.TokenID,
			"requested": amount,
			"filled":    filled,
			"percent":   pct,
		})
	}

	updated, err := s.registry.CompleteSell(pos.TokenID, pct)
	if err != nil {
		s.logger.Error(ctx, err, "Sold tokens for a position no longer tracked", map[string]interface{}{"token": pos.TokenID})
	}
	closed := err == nil && updated.Status == domain.StatusClosed

	pnl := res.Proceeds - pos.BuyAmount*pct/100
	s.risk.RecordSell(ctx, pnl, closed)

	trade := &domain.Trade{
		ID:            uuid.NewString(),
		PositionID:    pos.ID,
		TokenID:       pos.TokenID,
		Side:          domain.Sell,
		Signature:     res.Signature,
		BaseAmount:    res.Proceeds,
		TokenAmount:   filled,
		Price:         res.Price,
		SoldPercent:   pct,
		ProfitPercent: domain.ROI(pos.BuyPrice, res.Price),
		PNL:           pnl,
		USDValue:      s.usdValue(ctx, res.Proceeds),
		Reason:        decision.Reason,
		Source:        pos.Source,
		Paper:         s.cfg.Paper,
		ExecutedAt:    s.now(),
	}
	s.record(ctx, domain.LifecycleEvent{
		ID:         uuid.NewString(),
		Type:       domain.EventSellRecorded,
		PositionID: pos.ID,
		TokenID:    pos.TokenID,
		Time:       trade.ExecutedAt,
		Trade:      trade,
		HighPrice:  pos.HighPrice,
		LowPrice:   pos.LowPrice,
		MaxROI:     pos.HighROI(),
		Message:    decision.Message,
	})
	s.logger.Info(ctx, "Position sold", map[string]interface{}{
		"token":     pos.TokenID,
		"reason":    string(decision.Reason),
		"percent":   pct,
		"sold":      updated.SoldPercent,
		"proceeds":  res.Proceeds,
		"pnl":       pnl,
		"roi":       trade.ProfitPercent,
		"closed":    closed,
		"signature": res.Signature,
	})
	return nil
}

// sellAmount converts a percent of the original position into raw tokens,
// capped by the wallet balance. A full exit sells the whole balance.
func (s *TradingService) sellAmount(ctx context.Context, pos domain.Position, pct float64) uint64 {
	want := domain.ScaleRaw(pos.TokenAmount, pct)
	full := pct >= pos.RemainingPercent()-1e-9

	balance, err := s.balances.TokenBalance(ctx, pos.TokenID)
	if err != nil || balance == 0 {
		return want
	}
	if full || want > balance {
		return balance
	}
	return want
}

// waitForTokens polls the token balance after a buy and falls back to the
// quoted amount when nothing shows up in time.
func (s *TradingService) waitForTokens(ctx context.Context, token string, expected uint64) uint64 {
	for attempt := 1; attempt <= s.cfg.BalanceWaitAttempts; attempt++ {
		balance, err := s.balances.TokenBalance(ctx, token)
		if err == nil && balance > 0 {
			return balance
		}
		if attempt == s.cfg.BalanceWaitAttempts {
			break
		}
		if err := s.sleep(ctx, s.cfg.BalanceWaitInterval); err != nil {
			break
		}
	}
	s.logger.Warn(ctx, "Token balance not visible, using quoted amount", map[string]interface{}{"token": token, "expected": expected})
	return expected
}

func (s *TradingService) usdValue(ctx context.Context, base float64) float64 {
	if s.reference == nil {
		return 0
	}
	px, err := s.reference.ReferencePrice(ctx)
	if err != nil {
		s.logger.Warn(ctx, "Reference price unavailable", map[string]interface{}{"error": err.Error()})
		return 0
	}
	return base * px
}

func (s *TradingService) record(ctx context.Context, event domain.LifecycleEvent) {
	if err := s.sink.Record(ctx, event); err != nil {
		s.logger.Error(ctx, err, "Failed to record lifecycle event", map[string]interface{}{
			"type":  string(event.Type),
			"token": event.TokenID,
		})
	}
}

func (s *TradingService) claim(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[token]; ok {
		return false
	}
	s.pending[token] = struct{}{}
	return true
}

func (s *TradingService) release(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, token)
}

// Positions returns snapshots of the open positions.
func (s *TradingService) Positions() []domain.Position {
	return s.registry.List()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
