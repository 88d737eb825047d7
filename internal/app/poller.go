package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
	"sniperBot/internal/strategy/indicators"
)

// PriceSource prices a token from its current holdings.
type PriceSource interface {
	Price(ctx context.Context, token string, decimals uint8, holdings uint64) (float64, error)
}

// Seller executes a sell for a position whose sell guard is already set.
type Seller interface {
	ExecuteSell(ctx context.Context, pos domain.Position, decision domain.ExitDecision) error
}

// PollerConfig holds per-position polling parameters.
type PollerConfig struct {
	Interval             time.Duration
	DisplayInterval      time.Duration
	FailureThreshold     int
	FailureBackoff       time.Duration
	VolumeSampleInterval time.Duration
	VolumeEnabled        bool
	AutoSell             bool
}

// TickState is the loop-local state carried between ticks of one position.
type TickState struct {
	Failures         int
	Backoff          time.Duration
	LastDisplay      time.Time
	LastVolumeSample time.Time
}

// Poller runs one polling loop per open position.
type Poller struct {
	cfg       PollerConfig
	registry  *Registry
	prices    PriceSource
	evaluator ports.ExitEvaluator
	volume    *indicators.VolumeMonitor
	estimator indicators.Indicator
	trend     indicators.Indicator
	seller    Seller
	sink      ports.EventSink
	logger    ports.Logger
	now       func() time.Time
	observe   func(token string, price float64) // Optional
}

// NewPoller creates a poller. volume may be nil when volume monitoring is off.
func NewPoller(cfg PollerConfig, registry *Registry, prices PriceSource, evaluator ports.ExitEvaluator,
	volume *indicators.VolumeMonitor, seller Seller, sink ports.EventSink, logger ports.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.DisplayInterval <= 0 {
		cfg.DisplayInterval = 5 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 10
	}
	if cfg.VolumeSampleInterval <= 0 {
		cfg.VolumeSampleInterval = 30 * time.Second
	}
	return &Poller{
		cfg:       cfg,
		registry:  registry,
		prices:    prices,
		evaluator: evaluator,
		volume:    volume,
		estimator: indicators.NewVolumeEstimator(10),
		trend: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: 10},
			Type:            indicators.ExponentialMovingAverage,
		}),
		seller: seller,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// Run polls token until its position is closed or removed, or ctx ends.
func (p *Poller) Run(ctx context.Context, token string) error {
	p.logger.Info(ctx, "Price polling started", map[string]interface{}{"token": token, "interval": p.cfg.Interval.String()})
	defer func() {
		if p.volume != nil {
			p.volume.Forget(token)
		}
		p.logger.Info(ctx, "Price polling stopped", map[string]interface{}{"token": token})
	}()

	state := &TickState{}
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if done := p.Tick(ctx, token, state); done {
			return nil
		}
		if state.Backoff > 0 {
			wait := state.Backoff
			state.Backoff = 0
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
		}
	}
}

// Tick performs one poll of token. It reports true once the loop should stop.
func (p *Poller) Tick(ctx context.Context, token string, state *TickState) bool {
	snap, ok := p.registry.Snapshot(token)
	if !ok || snap.Status == domain.StatusClosed {
		return true
	}
	if snap.SellInProgress {
		return false
	}

	holdings := domain.ScaleRaw(snap.TokenAmount, snap.RemainingPercent())
	price, err := p.prices.Price(ctx, token, snap.TokenDecimals, holdings)
	if err != nil {
		p.recordFailure(ctx, token, state, err)
		return false
	}
	if state.Failures > 0 {
		p.logger.Debug(ctx, "Price probe recovered", map[string]interface{}{"token": token, "failures": state.Failures})
		state.Failures = 0
	}
	if p.observe != nil {
		p.observe(token, price)
	}

	now := p.now()
	var decision domain.ExitDecision
	var moved bool
	pos, err := p.registry.Update(token, func(pos *domain.Position) error {
		moved = pos.ObservePrice(price, now)
		var signal domain.VolumeSignal
		if p.volume != nil {
			if now.Sub(state.LastVolumeSample) >= p.cfg.VolumeSampleInterval {
				if v, err := p.estimator.Calculate(pos.History.Prices()); err == nil {
					p.volume.Record(token, v, now)
					state.LastVolumeSample = now
				}
			}
			if p.cfg.VolumeEnabled {
				signal = p.volume.Check(token, now)
			}
		}
		decision = p.evaluator.Evaluate(*pos, signal, now)
		pos.TrailingStopPrice = decision.TrailingStopPrice
		pos.TrailingStopROI = decision.TrailingStopROI
		return nil
	})
	if err != nil {
		if errors.Is(err, ports.ErrPositionNotFound) {
			return true
		}
		return false
	}

	if moved {
		p.emitWatermark(ctx, pos, now)
	}
	if now.Sub(state.LastDisplay) >= p.cfg.DisplayInterval {
		state.LastDisplay = now
		p.display(ctx, pos)
	}

	if decision.ShouldSell && p.cfg.AutoSell {
		p.launchSell(ctx, token, decision)
	}
	return false
}

func (p *Poller) launchSell(ctx context.Context, token string, decision domain.ExitDecision) {
	pos, err := p.registry.BeginSell(token)
	if err != nil {
		p.logger.Debug(ctx, "Sell not started", map[string]interface{}{"token": token, "error": err.Error()})
		return
	}
	p.logger.Info(ctx, "Exit triggered", map[string]interface{}{
		"token":       token,
		"reason":      string(decision.Reason),
		"sellPercent": decision.SellPercent,
		"message":     decision.Message,
	})
	p.registry.Go(func() error {
		if err := p.seller.ExecuteSell(ctx, pos, decision); err != nil {
			p.logger.Error(ctx, err, "Sell task failed", map[string]interface{}{"token": token})
		}
		return nil
	})
}

func (p *Poller) recordFailure(ctx context.Context, token string, state *TickState, err error) {
	state.Failures++
	fields := map[string]interface{}{"token": token, "failures": state.Failures, "error": err.Error()}
	if state.Failures <= p.cfg.FailureThreshold {
		p.logger.Debug(ctx, "Price probe failed", fields)
		return
	}
	if state.Failures == p.cfg.FailureThreshold+1 || state.Failures%p.cfg.FailureThreshold == 0 {
		p.logger.Warn(ctx, "Price probe failing repeatedly, backing off", fields)
	}
	state.Backoff = p.cfg.FailureBackoff
}

func (p *Poller) emitWatermark(ctx context.Context, pos domain.Position, at time.Time) {
	if p.sink == nil {
		return
	}
	event := domain.LifecycleEvent{
		ID:         uuid.NewString(),
		Type:       domain.EventWatermarkUpdated,
		PositionID: pos.ID,
		TokenID:    pos.TokenID,
		Time:       at,
		HighPrice:  pos.HighPrice,
		LowPrice:   pos.LowPrice,
		MaxROI:     pos.HighROI(),
	}
	if err := p.sink.Record(ctx, event); err != nil {
		p.logger.Warn(ctx, "Failed to record watermark", map[string]interface{}{"token": pos.TokenID, "error": err.Error()})
	}
}

func (p *Poller) display(ctx context.Context, pos domain.Position) {
	fields := map[string]interface{}{
		"token":   pos.TokenID,
		"price":   pos.CurrentPrice,
		"roi":     pos.PercentChange,
		"highRoi": pos.HighROI(),
		"low":     pos.LowPrice,
		"sold":    pos.SoldPercent,
		"held":    p.now().Sub(pos.BuyTime).Round(time.Second).String(),
	}
	if pos.TrailingArmed() {
		fields["trailingStop"] = pos.TrailingStopPrice
		fields["exitRoi"] = pos.TrailingStopROI
	}
	if ema, err := p.trend.Calculate(pos.History.Prices()); err == nil {
		fields[p.trend.Name()] = ema
	}
	if p.volume != nil {
		w := p.volume.Windows(pos.TokenID, p.now())
		fields["vol1m"] = w.Vol1m
		fields["vol5m"] = w.Vol5m
		fields["vol30m"] = w.Vol30m
	}
	p.logger.Info(ctx, "Position status", fields)
}
