// Package jupiter quotes exact-in swaps and fetches unsigned swap
// transactions from a Jupiter-compatible aggregator API.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

const defaultBaseURL = "https://quote-api.jup.ag/v6"

// Config holds configuration for the aggregator client.
type Config struct {
	BaseURL    string
	APIKey     string // Optional, sent as x-api-key
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     ports.Logger
}

// Client implements ports.Quoter.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  ports.Logger
}

// New creates an aggregator client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for jupiter client")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("%w: invalid jupiter url %q: %w", ports.ErrConfigurationError, base, err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: base, apiKey: cfg.APIKey, http: hc, logger: cfg.Logger}, nil
}

type quoteResponse struct {
	InputMint      string `json:"inputMint"`
	InAmount       string `json:"inAmount"`
	OutputMint     string `json:"outputMint"`
	OutAmount      string `json:"outAmount"`
	SlippageBps    int    `json:"slippageBps"`
	PriceImpactPct string `json:"priceImpactPct"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// Quote requests an exact-in quote. The full response body is kept as the
// route so it can be handed back when building the swap.
func (c *Client) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.Quote, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	q.Set("swapMode", "ExactIn")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrInvalidRequest, err)
	}
	body, err := c.do(httpReq, ports.ErrQuoteUnavailable)
	if err != nil {
		return nil, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode quote: %w", ports.ErrQuoteUnavailable, err)
	}
	in, err := strconv.ParseUint(resp.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid inAmount %q", ports.ErrQuoteUnavailable, resp.InAmount)
	}
	out, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid outAmount %q", ports.ErrQuoteUnavailable, resp.OutAmount)
	}
	if out == 0 {
		return nil, fmt.Errorf("%w: zero output for %s", ports.ErrQuoteUnavailable, req.OutputMint)
	}

	// priceImpactPct is reported as a fraction
	impact := decimal.Zero
	if resp.PriceImpactPct != "" {
		if impact, err = decimal.NewFromString(resp.PriceImpactPct); err != nil {
			return nil, fmt.Errorf("%w: invalid priceImpactPct %q", ports.ErrQuoteUnavailable, resp.PriceImpactPct)
		}
	}

	return &domain.Quote{
		InputMint:      resp.InputMint,
		OutputMint:     resp.OutputMint,
		InAmount:       in,
		OutAmount:      out,
		PriceImpactPct: impact.Abs().Mul(decimal.NewFromInt(100)).InexactFloat64(),
		SlippageBps:    resp.SlippageBps,
		Route:          json.RawMessage(body),
	}, nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports uint64          `json:"prioritizationFeeLamports,omitempty"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// SwapTransaction returns the unsigned serialized transaction for quote,
// paying priorityFee lamports.
func (c *Client) SwapTransaction(ctx context.Context, quote *domain.Quote, user string, priorityFee uint64) ([]byte, error) {
	if quote == nil || len(quote.Route) == 0 {
		return nil, fmt.Errorf("%w: quote without route", ports.ErrInvalidRequest)
	}
	payload, err := json.Marshal(swapRequest{
		QuoteResponse:             quote.Route,
		UserPublicKey:             user,
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: priorityFee,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode swap request: %w", ports.ErrBuildOrSignFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrInvalidRequest, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	body, err := c.do(httpReq, ports.ErrBuildOrSignFailed)
	if err != nil {
		return nil, err
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode swap: %w", ports.ErrBuildOrSignFailed, err)
	}
	if resp.SwapTransaction == "" {
		return nil, fmt.Errorf("%w: no swapTransaction in response", ports.ErrBuildOrSignFailed)
	}
	raw, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("%w: decode swapTransaction: %w", ports.ErrBuildOrSignFailed, err)
	}
	return raw, nil
}

// do executes req and maps HTTP failures onto port errors. Provider-level
// rejections are wrapped in kind.
func (c *Client) do(req *http.Request, kind error) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return nil, fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
		case errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %w: %w", kind, ports.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w: %w", kind, ports.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", kind, err)
	}
	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	fields := map[string]interface{}{"path": req.URL.Path, "status": resp.StatusCode, "errorCode": apiErr.ErrorCode}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn(req.Context(), "Aggregator rate limited", fields)
		return nil, fmt.Errorf("%w: %w: %s", kind, ports.ErrRateLimited, msg)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %w: status %d: %s", kind, ports.ErrConnectionFailed, resp.StatusCode, msg)
	default:
		c.logger.Debug(req.Context(), "Aggregator rejected request", fields)
		return nil, fmt.Errorf("%w: %w: %s", kind, ports.ErrProviderRejected, msg)
	}
}
