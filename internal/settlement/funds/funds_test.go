package funds_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/engine"
	"github.com/radieske/wager-settlement-engine/internal/settlement/funds"
	walletdto "github.com/radieske/wager-settlement-engine/internal/settlement/funds/dto"
)

func TestMemoryTransferIsIdempotentByRef(t *testing.T) {
	ctx := context.Background()
	m := funds.NewMemory()
	m.Deposit("alice", 100)

	tr := engine.Transfer{From: "alice", To: "escrow:x", Amount: 60, Ref: "wager:x:alice#1"}
	require.NoError(t, m.Transfer(ctx, tr))
	require.NoError(t, m.Transfer(ctx, tr))
	assert.Equal(t, uint64(40), m.Balance("alice"))
	assert.Equal(t, uint64(60), m.Balance("escrow:x"))

	tr.Ref = "wager:x:alice#2"
	assert.ErrorIs(t, m.Transfer(ctx, tr), domain.ErrInsufficientFunds)
	assert.Equal(t, uint64(100), m.Total())
}

func TestMemoryFailOnPrefix(t *testing.T) {
	m := funds.NewMemory()
	m.Deposit("a", 10)
	down := errors.New("down")
	m.FailOn = map[string]error{"claim:": down}

	assert.ErrorIs(t, m.Transfer(context.Background(), engine.Transfer{From: "a", To: "b", Amount: 1, Ref: "claim:m:a#1"}), down)
	assert.NoError(t, m.Transfer(context.Background(), engine.Transfer{From: "a", To: "b", Amount: 1, Ref: "wager:m:a#1"}))
}

func TestWalletClientTransfer(t *testing.T) {
	var got walletdto.TransferRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wallet/transfer", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "svc-token", r.Header.Get(walletdto.ServiceTokenHeader))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		switch got.From {
		case "broke":
			http.Error(w, "insufficient funds", http.StatusConflict)
		case "weird":
			http.Error(w, "wallet not found", http.StatusConflict)
		case "down":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_ = json.NewEncoder(w).Encode(walletdto.TransferResponse{TransferID: "t1", Status: "DONE"})
		}
	}))
	defer srv.Close()

	c := funds.NewWalletClient(srv.URL, "svc-token")
	ctx := context.Background()

	require.NoError(t, c.Transfer(ctx, engine.Transfer{From: "alice", To: "escrow:m", Amount: 500, Ref: "wager:m:alice#abc"}))
	assert.Equal(t, walletdto.TransferRequest{From: "alice", To: "escrow:m", Amount: 500, ExternalRef: "wager:m:alice#abc"}, got)

	err := c.Transfer(ctx, engine.Transfer{From: "broke", To: "x", Amount: 1, Ref: "r"})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	err = c.Transfer(ctx, engine.Transfer{From: "weird", To: "x", Amount: 1, Ref: "r"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInsufficientFunds)

	err = c.Transfer(ctx, engine.Transfer{From: "down", To: "x", Amount: 1, Ref: "r"})
	assert.Error(t, err)

	err = c.Transfer(ctx, engine.Transfer{From: "alice", To: "x", Amount: 1 << 63, Ref: "r"})
	assert.Error(t, err)
}
