package engine_test

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/engine"
	"github.com/radieske/wager-settlement-engine/internal/settlement/funds"
	"github.com/radieske/wager-settlement-engine/internal/settlement/resolver"
	"github.com/radieske/wager-settlement-engine/internal/settlement/store"
)

const (
	house         = "house"
	houseDeposit  = 1_000_000_000_000
	houseBankroll = 500_000_000_000
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixedSeeds struct {
	mu   sync.Mutex
	seed [32]byte
	err  error
}

func (f *fixedSeeds) FreshSeed(context.Context) ([32]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seed, f.err
}

func (f *fixedSeeds) set(v uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seed = seedOf(v)
}

func seedOf(v uint64) [32]byte {
	var s [32]byte
	binary.LittleEndian.PutUint64(s[:8], v)
	return s
}

type feed struct {
	mu     sync.Mutex
	quotes map[string]int64
	stale  bool
}

func (f *feed) Quote(_ context.Context, id string, _ time.Duration) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.quotes[id]
	if !ok || f.stale {
		return domain.Quote{}, domain.ErrStalePriceFeed
	}
	return domain.Quote{FeedID: id, Price: p}, nil
}

func (f *feed) set(id string, p int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[id] = p
}

// fakeVerifier aceita a prova "valid"; com next preenchido, delega ao
// verificador real.
type fakeVerifier struct {
	out  domain.Outcome
	err  error
	next resolver.Verifier
}

func (v *fakeVerifier) Verify(ctx context.Context, proof []byte, s domain.Subject) (domain.Outcome, error) {
	if v.next != nil {
		return v.next.Verify(ctx, proof, s)
	}
	if string(proof) != "valid" {
		return domain.Outcome{}, errors.New("bad signature")
	}
	return v.out, v.err
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	eng      *engine.Engine
	store    *store.Memory
	funds    *funds.Memory
	clock    *fakeClock
	seeds    *fixedSeeds
	feed     *feed
	verifier *fakeVerifier
	events   *recorder
}

type recorder struct {
	mu     sync.Mutex
	topics []string
}

func (r *recorder) Publish(_ context.Context, topic, _ string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return nil
}

// testRules baixa o stake mínimo e zera a janela de apostas para que os
// cenários usem valores pequenos.
func testRules() domain.RuleBook {
	rb := domain.DefaultRules()
	for _, g := range []domain.Game{domain.GameDerby, domain.GameFight} {
		r := rb[g]
		r.MinStake = 1
		r.BettingWindow = domain.Duration{}
		rb[g] = r
	}
	return rb
}

func newHarness(t *testing.T, rules domain.RuleBook) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		ctx:      context.Background(),
		store:    store.NewMemory(),
		funds:    funds.NewMemory(),
		clock:    &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		seeds:    &fixedSeeds{},
		feed:     &feed{quotes: map[string]int64{}},
		verifier: &fakeVerifier{},
		events:   &recorder{},
	}
	eng, err := engine.New(engine.Deps{
		Store:     h.store,
		Funds:     h.funds,
		Clock:     h.clock,
		Seeds:     h.seeds,
		Prices:    h.feed,
		Verifier:  h.verifier,
		Rules:     rules,
		Log:       zaptest.NewLogger(t),
		Publisher: h.events,
	})
	require.NoError(t, err)
	h.eng = eng

	h.funds.Deposit(house, houseDeposit)
	_, err = eng.InitTreasury(h.ctx, house)
	require.NoError(t, err)
	require.NoError(t, eng.FundBankroll(h.ctx, house, houseBankroll))
	return h
}

func (h *harness) market(game domain.Game, labels ...string) *domain.Market {
	h.t.Helper()
	m, err := h.eng.CreateMarket(h.ctx, engine.MarketSpec{Game: game, Creator: "creator", Labels: labels})
	require.NoError(h.t, err)
	return m
}

func (h *harness) bet(marketID, participant string, slot int, amount uint64) *domain.LedgerEntry {
	h.t.Helper()
	h.funds.Deposit(participant, amount)
	e, err := h.eng.PlaceWager(h.ctx, engine.Wager{MarketID: marketID, Participant: participant, Slot: slot, Amount: amount})
	require.NoError(h.t, err)
	return e
}

func (h *harness) snapshot(id string) *domain.Market {
	h.t.Helper()
	m, err := h.eng.Market(h.ctx, id)
	require.NoError(h.t, err)
	return m
}

func (h *harness) treasury() *domain.Treasury {
	h.t.Helper()
	tr, err := h.eng.Treasury(h.ctx)
	require.NoError(h.t, err)
	return tr
}

// requireBalanced confere que o escrow registrado no mercado é exatamente o
// saldo da conta de escrow no ledger externo.
func (h *harness) requireBalanced(id string) {
	h.t.Helper()
	m := h.snapshot(id)
	require.Equal(h.t, m.EscrowBalance, h.funds.Balance(domain.EscrowAccount(id)), "escrow drift on %s", id)
}

func (h *harness) requireHouseBalanced() {
	h.t.Helper()
	tr := h.treasury()
	require.Equal(h.t, tr.AccumulatedFee, h.funds.Balance(domain.TreasuryAccount), "treasury drift")
	require.Equal(h.t, tr.Bankroll, h.funds.Balance(domain.BankrollAccount), "bankroll drift")
}
