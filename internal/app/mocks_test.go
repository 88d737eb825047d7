package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"sniperBot/internal/domain"
	"sniperBot/internal/risk"
)

var errBoom = errors.New("boom")

type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

func (m *mockLogger) errors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.errorMsgs...)
}

func (m *mockLogger) infos() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.infoMsgs...)
}

func (m *mockLogger) warnings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.warnMsgs...)
}

// mockPrices returns prices from a script, repeating the last entry.
type mockPrices struct {
	mu     sync.Mutex
	script []priceStep
	calls  int
}

type priceStep struct {
	price float64
	err   error
}

func (m *mockPrices) Price(ctx context.Context, token string, decimals uint8, holdings uint64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	if i >= len(m.script) {
		i = len(m.script) - 1
	}
	m.calls++
	return m.script[i].price, m.script[i].err
}

func (m *mockPrices) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockEvaluator struct {
	decision domain.ExitDecision
}

func (m *mockEvaluator) Evaluate(pos domain.Position, vol domain.VolumeSignal, now time.Time) domain.ExitDecision {
	d := m.decision
	if d.TrailingStopPrice == 0 {
		d.TrailingStopPrice = pos.TrailingStopPrice
		d.TrailingStopROI = pos.TrailingStopROI
	}
	return d
}

type mockSeller struct {
	mu    sync.Mutex
	calls []domain.ExitDecision
	seen  []domain.Position
	err   error
}

func (m *mockSeller) ExecuteSell(ctx context.Context, pos domain.Position, decision domain.ExitDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, decision)
	m.seen = append(m.seen, pos)
	return m.err
}

func (m *mockSeller) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockSink struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
	err    error
}

func (m *mockSink) Record(ctx context.Context, event domain.LifecycleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockSink) ofType(t domain.EventType) []domain.LifecycleEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LifecycleEvent
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// mockExecutor returns results from a script, repeating the last entry.
type mockExecutor struct {
	mu       sync.Mutex
	script   []execStep
	requests []domain.SwapRequest
}

type execStep struct {
	res *domain.SwapResult
	err error
}

func (m *mockExecutor) Execute(ctx context.Context, req domain.SwapRequest) (*domain.SwapResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	i := len(m.requests) - 1
	if i >= len(m.script) {
		i = len(m.script) - 1
	}
	return m.script[i].res, m.script[i].err
}

func (m *mockExecutor) calls() []domain.SwapRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SwapRequest(nil), m.requests...)
}

type mockBalances struct {
	mu       sync.Mutex
	base     uint64
	baseErr  error
	tokens   map[string]uint64
	tokenErr error
}

func (m *mockBalances) BaseBalance(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.base, m.baseErr
}

func (m *mockBalances) TokenBalance(ctx context.Context, mint string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokenErr != nil {
		return 0, m.tokenErr
	}
	return m.tokens[mint], nil
}

type mockMints struct {
	decimals uint8
	err      error
}

func (m *mockMints) Decimals(ctx context.Context, mint string) (uint8, error) {
	return m.decimals, m.err
}

type mockTrades struct {
	bought   map[string]bool
	today    int
	countErr error
}

func (m *mockTrades) FindTrades(ctx context.Context, since time.Time) ([]*domain.Trade, error) {
	return nil, nil
}

func (m *mockTrades) CountTodayBuys(ctx context.Context) (int, error) {
	return m.today, m.countErr
}

func (m *mockTrades) HasBought(ctx context.Context, token string) (bool, error) {
	return m.bought[token], nil
}

type mockReference struct {
	price float64
	err   error
}

func (m *mockReference) ReferencePrice(ctx context.Context) (float64, error) {
	return m.price, m.err
}

type chanSource struct {
	ch chan domain.TradeIntent
}

func (c *chanSource) Intents(ctx context.Context) (<-chan domain.TradeIntent, error) {
	return c.ch, nil
}

type mockSafety struct {
	report  risk.SafetyReport
	err     error
	amounts []float64
}

func (m *mockSafety) Check(ctx context.Context, token string, decimals uint8, amount float64) (risk.SafetyReport, error) {
	m.amounts = append(m.amounts, amount)
	return m.report, m.err
}

type mockSplitter struct {
	res      *domain.SwapResult
	err      error
	requests []domain.SwapRequest
	impacts  []float64
}

func (m *mockSplitter) Execute(ctx context.Context, req domain.SwapRequest, impact float64) (*domain.SwapResult, error) {
	m.requests = append(m.requests, req)
	m.impacts = append(m.impacts, impact)
	return m.res, m.err
}
