package swap

import (
	"context"
	"errors"
	"sync"
	"time"

	"sniperBot/internal/domain"
)

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

// mockQuoter returns quotes from a script, repeating the last entry.
type mockQuoter struct {
	mu       sync.Mutex
	script   []quoteStep
	requests []domain.QuoteRequest
}

type quoteStep struct {
	out    uint64
	impact float64
	err    error
}

func (m *mockQuoter) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	step := m.script[len(m.script)-1]
	if len(m.requests) <= len(m.script) {
		step = m.script[len(m.requests)-1]
	}
	if step.err != nil {
		return nil, step.err
	}
	return &domain.Quote{
		InputMint:      req.InputMint,
		OutputMint:     req.OutputMint,
		InAmount:       req.Amount,
		OutAmount:      step.out,
		PriceImpactPct: step.impact,
		SlippageBps:    req.SlippageBps,
	}, nil
}

func (m *mockQuoter) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type mockBuilder struct {
	errs  []error
	calls int
	tips  []uint64
}

func (m *mockBuilder) BuildAndSign(ctx context.Context, quote *domain.Quote, tip uint64) (*domain.SignedTx, error) {
	m.calls++
	m.tips = append(m.tips, tip)
	if len(m.errs) >= m.calls && m.errs[m.calls-1] != nil {
		return nil, m.errs[m.calls-1]
	}
	return &domain.SignedTx{Raw: []byte("tx"), Signature: "sig"}, nil
}

type mockSubmitter struct {
	err   error
	calls int
}

func (m *mockSubmitter) Submit(ctx context.Context, tx *domain.SignedTx, tip uint64) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return tx.Signature, nil
}

type mockConfirmer struct {
	results []bool
	errs    []error
	calls   int
}

func (m *mockConfirmer) Confirm(ctx context.Context, signature string, timeout time.Duration) (bool, error) {
	m.calls++
	if len(m.errs) >= m.calls && m.errs[m.calls-1] != nil {
		return false, m.errs[m.calls-1]
	}
	if len(m.results) >= m.calls {
		return m.results[m.calls-1], nil
	}
	return true, nil
}

type fixedTips uint64

func (f fixedTips) TipAmount(ctx context.Context) uint64 { return uint64(f) }

// mockSender sends after a delay unless the context ends first.
type mockSender struct {
	name     string
	delay    time.Duration
	sig      string
	err      error
	canceled chan struct{}
}

func (m *mockSender) Name() string { return m.name }

func (m *mockSender) Send(ctx context.Context, tx *domain.SignedTx) (string, error) {
	select {
	case <-time.After(m.delay):
		if m.err != nil {
			return "", m.err
		}
		return m.sig, nil
	case <-ctx.Done():
		if m.canceled != nil {
			close(m.canceled)
		}
		return "", ctx.Err()
	}
}

type mockSampler struct {
	load  float64
	err   error
	calls int
}

func (m *mockSampler) SampleLoad(ctx context.Context) (float64, error) {
	m.calls++
	return m.load, m.err
}

var errBoom = errors.New("boom")
