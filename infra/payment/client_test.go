package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corepay "github.com/openroad/roadassist/core/payment"
)

func newGateway(t *testing.T) (*Client, *int32) {
	t.Helper()
	var tokenCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123", "token_type": "bearer", "expires_in": 3600,
		})
	})
	mux.HandleFunc("/v1/charges", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var in corepay.ChargeInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in.Amount <= 0 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		_ = json.NewEncoder(w).Encode(corepay.Charge{
			ID: "ch-1", Status: "created", CreatedAt: time.Now(),
		})
	})
	mux.HandleFunc("/v1/charges/ch-1/refunds", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cli := NewClient(Config{
		BaseURL: srv.URL,
		Credentials: Credentials{
			ClientID: "svc", ClientSecret: "secret", TokenURL: srv.URL + "/oauth/token",
		},
	})
	return cli, &tokenCalls
}

func TestCreateCharge(t *testing.T) {
	cli, tokenCalls := newGateway(t)
	ctx := context.Background()

	ch, err := cli.CreateCharge(ctx, corepay.ChargeInput{
		BreakdownID: "b1", RiderID: "r1", Amount: 120, Currency: "EUR",
	})
	require.NoError(t, err)
	assert.Equal(t, "ch-1", ch.ID)
	assert.Equal(t, "created", ch.Status)

	// Second call reuses the cached token.
	_, err = cli.CreateCharge(ctx, corepay.ChargeInput{
		BreakdownID: "b2", RiderID: "r1", Amount: 60, Currency: "EUR",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(tokenCalls))
}

func TestCreateChargeRejected(t *testing.T) {
	cli, _ := newGateway(t)

	_, err := cli.CreateCharge(context.Background(), corepay.ChargeInput{
		BreakdownID: "b1", RiderID: "r1", Amount: 0, Currency: "EUR",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestRefund(t *testing.T) {
	cli, _ := newGateway(t)
	require.NoError(t, cli.Refund(context.Background(), "ch-1", 30))
}

func TestTokenFailure(t *testing.T) {
	cli := NewClient(Config{
		BaseURL: "http://127.0.0.1:0",
		Credentials: Credentials{
			ClientID: "svc", ClientSecret: "secret", TokenURL: "http://127.0.0.1:0/token",
		},
	})
	_, err := cli.CreateCharge(context.Background(), corepay.ChargeInput{Amount: 10})
	assert.Error(t, err)
}
