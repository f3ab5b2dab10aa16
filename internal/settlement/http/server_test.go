package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/dto"
	"github.com/radieske/wager-settlement-engine/internal/settlement/engine"
	"github.com/radieske/wager-settlement-engine/internal/settlement/funds"
	"github.com/radieske/wager-settlement-engine/internal/settlement/randomness"
	"github.com/radieske/wager-settlement-engine/internal/settlement/store"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
)

type apiHarness struct {
	t     *testing.T
	srv   *httptest.Server
	funds *funds.Memory
}

func newAPI(t *testing.T) *apiHarness {
	t.Helper()
	rules := domain.DefaultRules()
	derby := rules[domain.GameDerby]
	derby.MinStake = 1
	derby.BettingWindow = domain.Duration{}
	rules[domain.GameDerby] = derby

	f := funds.NewMemory()
	eng, err := engine.New(engine.Deps{
		Store: store.NewMemory(),
		Funds: f,
		Seeds: randomness.Crypto{Reader: bytes.NewReader(make([]byte, 64))},
		Rules: rules,
		Log:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	api := &API{Engine: eng, Log: zaptest.NewLogger(t)}
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return &apiHarness{t: t, srv: srv, funds: f}
}

func (h *apiHarness) do(method, path string, body any, out any) int {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	require.NoError(h.t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(h.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func TestDerbyLifecycleOverHTTP(t *testing.T) {
	h := newAPI(t)
	h.funds.Deposit("alice", 600)
	h.funds.Deposit("bob", 400)

	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/v1/treasury", dto.InitTreasuryRequest{Owner: "house"}, nil))

	var m dto.MarketResponse
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/v1/markets",
		dto.CreateMarketRequest{Game: "derby", Creator: "house", Labels: []string{"thunder", "bolt"}}, &m))
	require.NotEmpty(t, m.ID)
	assert.Equal(t, "OPEN", m.Status)
	base := "/v1/markets/" + m.ID

	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, base+"/wagers",
		dto.PlaceWagerRequest{Participant: "alice", Slot: 0, Lamports: 600}, nil))
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, base+"/wagers",
		dto.PlaceWagerRequest{Participant: "bob", Slot: 1, Lamports: 400}, nil))

	var errResp dto.ErrorResponse
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, base+"/resolve", nil, &errResp))
	assert.Equal(t, string(domain.KindConflict), errResp.Kind)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, base+"/start", dto.CallerRequest{Caller: "house"}, &m))
	assert.Equal(t, "RUNNING", m.Status)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, base+"/resolve", nil, &m))
	require.NotNil(t, m.WinningSlot)
	assert.Equal(t, "RESOLVED", m.Status)
	assert.Equal(t, uint64(10), m.FeeCharged.Lamports)
	assert.Equal(t, uint64(1000), m.TotalPool.Lamports)

	winner, loser := "alice", "bob"
	if *m.WinningSlot == 1 {
		winner, loser = "bob", "alice"
	}

	var w dto.WagerResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, base+"/wagers/"+winner+"/claim", nil, &w))
	assert.Equal(t, "CLAIMED", w.ClaimState)
	assert.Equal(t, uint64(990), w.Payout.Lamports)
	assert.Equal(t, "0.00000099", w.Payout.SOL)
	assert.Equal(t, uint64(990), h.funds.Balance(winner))

	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, base+"/wagers/"+winner+"/claim", nil, &errResp))
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, base+"/wagers/"+loser+"/claim", nil, &errResp))

	var ws []dto.WagerResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, base+"/wagers", nil, &ws))
	assert.Len(t, ws, 2)

	var tr dto.TreasuryResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/treasury", nil, &tr))
	assert.Equal(t, uint64(10), tr.AccumulatedFee.Lamports)
	assert.Equal(t, uint64(1), tr.LifetimeMarketCount)
}

func TestErrorMapping(t *testing.T) {
	h := newAPI(t)
	var errResp dto.ErrorResponse

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/v1/treasury", nil, &errResp))
	assert.Equal(t, string(domain.KindNotFound), errResp.Kind)

	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/v1/treasury", dto.InitTreasuryRequest{Owner: "house"}, nil))
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/v1/treasury", dto.InitTreasuryRequest{Owner: "house"}, &errResp))

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/v1/markets/nope", nil, &errResp))
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/v1/markets", dto.CreateMarketRequest{Game: "roulette", Creator: "house"}, &errResp))
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/v1/markets", dto.CreateMarketRequest{Game: "poker", Creator: "house", Commitment: "zz"}, &errResp))

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/v1/treasury/withdraw", dto.HouseFundsRequest{Caller: "mallory", Lamports: 1}, &errResp))
	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodPost, "/v1/treasury/withdraw", dto.HouseFundsRequest{Caller: "house", Lamports: 1}, &errResp))

	req, _ := http.NewRequest(http.MethodPost, h.srv.URL+"/v1/markets", bytes.NewBufferString("{"))
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestNewAmountRendersSOL(t *testing.T) {
	assert.Equal(t, "1", dto.NewAmount(domain.LamportsPerSOL).SOL)
	assert.Equal(t, "0.001", dto.NewAmount(domain.DefaultMinStake).SOL)
	assert.Equal(t, "0", dto.NewAmount(0).SOL)
}

type fakePrices struct{ lastLimit int }

func (f *fakePrices) ListCurrent(context.Context) ([]events.PriceQuote, error) {
	return []events.PriceQuote{{FeedID: "SOL/USD", Price: 15_000, Expo: -2, PublishedAt: time.Unix(10, 0).UTC()}}, nil
}

func (f *fakePrices) History(_ context.Context, feed string, limit int) ([]events.PriceQuote, error) {
	f.lastLimit = limit
	return []events.PriceQuote{{FeedID: feed, Price: 1}}, nil
}

func TestQuoteReadEndpoints(t *testing.T) {
	prices := &fakePrices{}
	api := &API{Log: zaptest.NewLogger(t), Prices: prices}
	srv := httptest.NewServer(api.Router())
	defer srv.Close()
	h := &apiHarness{t: t, srv: srv}

	var qs []events.PriceQuote
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/quotes", nil, &qs))
	require.Len(t, qs, 1)
	assert.Equal(t, "SOL/USD", qs[0].FeedID)

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/quotes/history?feed=BTC/USD", nil, &qs))
	assert.Equal(t, "BTC/USD", qs[0].FeedID)
	assert.Equal(t, 100, prices.lastLimit)

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/quotes/history?feed=BTC/USD&limit=5", nil, &qs))
	assert.Equal(t, 5, prices.lastLimit)

	var errResp dto.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/v1/quotes/history", nil, &errResp))
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/v1/quotes/history?feed=x&limit=0", nil, &errResp))
}
