package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"sniperBot/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	defaultSymbol   = "SOLUSDT"
	defaultCacheTTL = 30 * time.Second
)

// Client implements the ports.ReferencePriceProvider interface using the
// go-binance futures API. It values the base asset in USD.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	symbol        string
	cacheTTL      time.Duration
	now           func() time.Time

	mu        sync.Mutex
	price     float64
	fetchedAt time.Time
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	BaseURL    string // Overrides the production/testnet URL when set
	Symbol     string // Base asset pair, e.g. SOLUSDT
	CacheTTL   time.Duration
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}

	// Public market data needs no credentials
	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}

	symbol := strings.ToUpper(cfg.Symbol)
	if symbol == "" {
		symbol = defaultSymbol
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	cfg.Logger.Info(context.Background(), "Binance reference price client configured", map[string]interface{}{
		"baseURL": client.BaseURL,
		"symbol":  symbol,
	})

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		symbol:        symbol,
		cacheTTL:      ttl,
		now:           time.Now,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1100, -1101, -1102, -1103, -1121: // Parameter/Request format errors, invalid symbol
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrProviderRejected
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// ReferencePrice returns the USD mark price of the base asset. Prices are
// cached for the configured TTL; the last ticker price is used when the
// mark price is unavailable.
func (c *Client) ReferencePrice(ctx context.Context) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.price > 0 && c.now().Sub(c.fetchedAt) < c.cacheTTL {
		return c.price, nil
	}

	price, err := c.GetMarkPrice(ctx, c.symbol)
	if err != nil {
		var tickerErr error
		price, tickerErr = c.GetTickerPrice(ctx, c.symbol)
		if tickerErr != nil {
			return 0, errors.Join(err, tickerErr)
		}
	}
	c.price = price
	c.fetchedAt = c.now()
	return price, nil
}

// GetMarkPrice retrieves the current mark price for a given symbol.
func (c *Client) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetMarkPrice"
	tickers, err := c.futuresClient.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		err := fmt.Errorf("no price data returned for symbol %s", symbol)
		return 0, c.handleError(ctx, err, op)
	}
	return parsePrice(ctx, c, tickers[0].MarkPrice, op)
}

// GetTickerPrice retrieves the last ticker price for a given symbol.
func (c *Client) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetTickerPrice"
	tickers, err := c.futuresClient.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		err := fmt.Errorf("no ticker data returned for symbol %s", symbol)
		return 0, c.handleError(ctx, err, op)
	}
	return parsePrice(ctx, c, tickers[0].LastPrice, op)
}

func parsePrice(ctx context.Context, c *Client, raw, op string) (float64, error) {
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		parseErr := fmt.Errorf("could not parse price '%s': %w", raw, err)
		return 0, c.handleError(ctx, parseErr, op)
	}
	if price <= 0 {
		return 0, c.handleError(ctx, fmt.Errorf("non-positive price '%s'", raw), op)
	}
	return price, nil
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	err := c.futuresClient.NewPingService().Do(ctx)
	if err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}
