// Package jito submits signed transactions to a block engine over JSON-RPC.
package jito

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

const defaultURL = "https://mainnet.block-engine.jito.wtf/api/v1/transactions"

// Config holds configuration for the block engine sender.
type Config struct {
	URL        string
	AuthToken  string // Optional, sent as x-jito-auth
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Sender implements ports.TxSender against a block engine.
type Sender struct {
	url   string
	auth  string
	http  *http.Client
	reqID atomic.Uint64
}

// New creates a block engine sender.
func New(cfg Config) *Sender {
	u := strings.TrimRight(cfg.URL, "/")
	if u == "" {
		u = defaultURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Sender{url: u, auth: cfg.AuthToken, http: hc}
}

// Name identifies the channel in logs.
func (s *Sender) Name() string { return "jito" }

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result string    `json:"result"`
	Error  *rpcError `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send submits tx and returns the signature reported by the block engine.
func (s *Sender) Send(ctx context.Context, tx *domain.SignedTx) (string, error) {
	if tx == nil || len(tx.Raw) == 0 {
		return "", fmt.Errorf("%w: empty transaction", ports.ErrInvalidRequest)
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      s.reqID.Add(1),
		Method:  "sendTransaction",
		Params: []interface{}{
			base64.StdEncoding.EncodeToString(tx.Raw),
			map[string]string{"encoding": "base64"},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ports.ErrInvalidRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.auth != "" {
		req.Header.Set("x-jito-auth", s.auth)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
		}
		return "", fmt.Errorf("%w: %w", ports.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", ports.ErrConnectionFailed, err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: block engine status %d", ports.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: block engine status %d", ports.ErrConnectionFailed, resp.StatusCode)
	}

	var out rpcResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode response (status %d): %w", ports.ErrProviderRejected, resp.StatusCode, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("%w: %d %s", ports.ErrProviderRejected, out.Error.Code, out.Error.Message)
	}
	if out.Result == "" {
		return "", fmt.Errorf("%w: empty signature (status %d)", ports.ErrProviderRejected, resp.StatusCode)
	}
	return out.Result, nil
}
