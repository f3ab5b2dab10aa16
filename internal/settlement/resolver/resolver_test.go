package resolver

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
)

func seedOf(v uint64) [32]byte {
	var s [32]byte
	binary.LittleEndian.PutUint64(s[:8], v)
	return s
}

func TestSelectWeightedUnstakedIsUniform(t *testing.T) {
	seen := map[int]bool{}
	for i := uint64(0); i < 64; i++ {
		slot, err := SelectWeighted([]uint64{0, 0}, seedOf(i*7919))
		require.NoError(t, err)
		require.Contains(t, []int{0, 1}, slot)
		seen[slot] = true
	}
	assert.True(t, seen[0], "slot 0 never drawn")
	assert.True(t, seen[1], "slot 1 never drawn")

	slot, _ := SelectWeighted([]uint64{0, 0, 0}, seedOf(5))
	assert.Equal(t, 2, slot)
}

func TestSelectWeightedBoundaries(t *testing.T) {
	// total 1000, pesos 1111 e 10000
	cases := []struct {
		stakes []uint64
		seed   uint64
		want   int
	}{
		{[]uint64{900, 100}, 0, 0},
		{[]uint64{900, 100}, 1110, 0},
		{[]uint64{900, 100}, 1111, 1},
		{[]uint64{900, 100}, 11110, 1},
		{[]uint64{900, 100}, 11111, 0},
		// total 100, pesos 100, 200, 200
		{[]uint64{100, 0, 0}, 99, 0},
		{[]uint64{100, 0, 0}, 100, 1},
		{[]uint64{100, 0, 0}, 299, 1},
		{[]uint64{100, 0, 0}, 300, 2},
		{[]uint64{100, 0, 0}, 499, 2},
		{[]uint64{100, 0, 0}, 500, 0},
	}
	for _, tc := range cases {
		got, err := SelectWeighted(tc.stakes, seedOf(tc.seed))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "stakes=%v seed=%d", tc.stakes, tc.seed)
	}
}

func TestSelectWeightedDeterministic(t *testing.T) {
	stakes := []uint64{3_000_000, 0, 12_500_000, 7_000_000, 1}
	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i * 31)
	}
	first, err := SelectWeighted(stakes, seed)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := SelectWeighted(stakes, seed)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSelectWeightedWidePool(t *testing.T) {
	// total² passa de u64; o sorteio continua definido e dentro do intervalo
	stakes := []uint64{math.MaxUint64 / 2, 1, 0}
	slot, err := SelectWeighted(stakes, seedOf(0))
	require.NoError(t, err)
	assert.Equal(t, 0, slot)

	var seed [32]byte
	for i := range seed {
		seed[i] = 0xff
	}
	slot, err = SelectWeighted(stakes, seed)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, slot, 0)
	assert.Less(t, slot, len(stakes))
}

func TestSelectWeightedEmpty(t *testing.T) {
	_, err := SelectWeighted(nil, seedOf(1))
	assert.ErrorIs(t, err, domain.ErrInvalidSlotCount)
}

func TestComparePerformance(t *testing.T) {
	cases := []struct {
		name                       string
		startA, endA, startB, endB int64
		want                       int
	}{
		{"a wins", 100, 110, 100, 105, 0},
		{"b wins", 100, 105, 100, 110, 1},
		{"tie goes to a", 100, 110, 200, 220, 0},
		{"both fall, smaller loss wins", 100, 90, 100, 80, 0},
		{"b falls less", 100, 70, 100, 95, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComparePerformance(tc.startA, tc.endA, tc.startB, tc.endB)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ComparePerformance(0, 10, 100, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestCheckReveal(t *testing.T) {
	c := domain.Commit(domain.Tails, 42)
	assert.NoError(t, CheckReveal(c, domain.Tails, 42))
	assert.ErrorIs(t, CheckReveal(c, domain.Heads, 42), domain.ErrInvalidReveal)
	assert.ErrorIs(t, CheckReveal(c, domain.Tails, 43), domain.ErrInvalidReveal)
	assert.ErrorIs(t, CheckReveal(c, 2, 42), domain.ErrInvalidOutcome)
}

func TestFlipOutcome(t *testing.T) {
	seen := map[int]bool{}
	for i := uint64(0); i < 64; i++ {
		o := FlipOutcome(seedOf(i), "player-1", 7)
		assert.Equal(t, o, FlipOutcome(seedOf(i), "player-1", 7))
		seen[o] = true
	}
	assert.Len(t, seen, 2)
}

type fixedSeeds struct {
	seed [32]byte
	err  error
}

func (f fixedSeeds) FreshSeed(context.Context) ([32]byte, error) { return f.seed, f.err }

type staticFeed map[string]domain.Quote

func (s staticFeed) Quote(_ context.Context, id string, _ time.Duration) (domain.Quote, error) {
	q, ok := s[id]
	if !ok {
		return domain.Quote{}, errors.New("no quote")
	}
	return q, nil
}

type verifierFunc func([]byte, domain.Subject) (domain.Outcome, error)

func (f verifierFunc) Verify(_ context.Context, p []byte, s domain.Subject) (domain.Outcome, error) {
	return f(p, s)
}

func twoSlotMarket() *domain.Market {
	return &domain.Market{
		ID:    "m1",
		Slots: []domain.OutcomeSlot{{Index: 0, TotalStaked: 900}, {Index: 1, TotalStaked: 100}},
		FeedA: "SOL", FeedB: "BTC", StartPriceA: 100, StartPriceB: 100,
	}
}

func TestSetResolvers(t *testing.T) {
	ctx := context.Background()
	set := NewSet(fixedSeeds{seed: seedOf(1111)},
		staticFeed{"SOL": {Price: 101}, "BTC": {Price: 120}},
		verifierFunc(func(_ []byte, s domain.Subject) (domain.Outcome, error) {
			if s.MarketID != "m1" || s.Participant != "" {
				return domain.Outcome{}, domain.ErrVerificationFailed
			}
			return domain.Outcome{Slot: 1}, nil
		}))

	_, err := set.For(domain.StrategyCommitReveal)
	assert.ErrorIs(t, err, domain.ErrUnsupportedStrategy)

	r, err := set.For(domain.StrategyWeightedRandom)
	require.NoError(t, err)
	res, err := r.Resolve(ctx, Request{Market: twoSlotMarket()})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Slot)
	assert.Equal(t, seedOf(1111), res.Seed)

	r, err = set.For(domain.StrategyPriceFeed)
	require.NoError(t, err)
	res, err = r.Resolve(ctx, Request{Market: twoSlotMarket()})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Slot)
	assert.Equal(t, int64(101), res.EndPriceA)
	assert.Equal(t, int64(120), res.EndPriceB)

	r, err = set.For(domain.StrategyVerified)
	require.NoError(t, err)
	res, err = r.Resolve(ctx, Request{Market: twoSlotMarket(), Proof: []byte("p")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Slot)
}

func TestResolverFailures(t *testing.T) {
	ctx := context.Background()

	_, err := WeightedRandom{Seeds: fixedSeeds{err: errors.New("down")}}.Resolve(ctx, Request{Market: twoSlotMarket()})
	assert.ErrorIs(t, err, domain.ErrRandomnessUnavailable)

	_, err = PriceCompare{Feed: staticFeed{"SOL": {Price: 1}}}.Resolve(ctx, Request{Market: twoSlotMarket()})
	assert.ErrorIs(t, err, domain.ErrStalePriceFeed)

	_, err = Verified{Verifier: verifierFunc(func([]byte, domain.Subject) (domain.Outcome, error) {
		return domain.Outcome{}, errors.New("bad proof")
	})}.Resolve(ctx, Request{Market: twoSlotMarket()})
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)

	_, err = Verified{Verifier: verifierFunc(func([]byte, domain.Subject) (domain.Outcome, error) {
		return domain.Outcome{Slot: 5}, nil
	})}.Resolve(ctx, Request{Market: twoSlotMarket()})
	assert.ErrorIs(t, err, domain.ErrInvalidOutcome)
}
