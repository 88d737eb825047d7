package jito

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

func TestSender_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-jito-auth"))
		var req struct {
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sendTransaction", req.Method)
		if assert.Len(t, req.Params, 2) {
			assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{9, 8, 7}), req.Params[0])
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"5igSig"}`))
	}))
	defer srv.Close()

	s := New(Config{URL: srv.URL, AuthToken: "secret"})
	assert.Equal(t, "jito", s.Name())
	sig, err := s.Send(context.Background(), &domain.SignedTx{Raw: []byte{9, 8, 7}})
	require.NoError(t, err)
	assert.Equal(t, "5igSig", sig)
}

func TestSender_SendErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "rpc error", status: http.StatusOK, body: `{"error":{"code":-32602,"message":"bundle dropped"}}`, wantErr: ports.ErrProviderRejected},
		{name: "empty result", status: http.StatusOK, body: `{"result":""}`, wantErr: ports.ErrProviderRejected},
		{name: "rate limited", status: http.StatusTooManyRequests, body: ``, wantErr: ports.ErrRateLimited},
		{name: "unavailable", status: http.StatusServiceUnavailable, body: ``, wantErr: ports.ErrConnectionFailed},
		{name: "garbage", status: http.StatusBadRequest, body: `<html>`, wantErr: ports.ErrProviderRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(Config{URL: srv.URL}).Send(context.Background(), &domain.SignedTx{Raw: []byte{1}})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSender_RejectsEmptyTx(t *testing.T) {
	_, err := New(Config{}).Send(context.Background(), &domain.SignedTx{})
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}
