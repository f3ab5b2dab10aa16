package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasisPointFee(t *testing.T) {
	cases := []struct {
		name   string
		amount uint64
		bps    uint16
		want   uint64
	}{
		{"one percent", 1000, 100, 10},
		{"truncates", 999, 100, 9},
		{"zero bps", 1000, 0, 0},
		{"full pool", 1000, 10_000, 1000},
		{"half percent", 10_000_000, 50, 50_000},
		{"max amount does not wrap", math.MaxUint64, 100, math.MaxUint64 / 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BasisPointFee(tc.amount, tc.bps)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := BasisPointFee(1, 10_001)
	assert.ErrorIs(t, err, ErrInvalidBPS)
}

func TestBasisPointFeeBound(t *testing.T) {
	pools := []uint64{0, 1, 7, 1000, 123_456_789, math.MaxUint64}
	for _, pool := range pools {
		for _, bps := range []uint16{0, 1, 50, 100, 9_999, 10_000} {
			fee, err := BasisPointFee(pool, bps)
			require.NoError(t, err)
			assert.LessOrEqual(t, fee, pool)
		}
	}
}

func TestProportionalShare(t *testing.T) {
	got, err := ProportionalShare(40, 890, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(356), got)

	got, err = ProportionalShare(40, 890, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)

	// produto de 128 bits, quociente cabe em u64
	got, err = ProportionalShare(math.MaxUint64, math.MaxUint64, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got)

	_, err = ProportionalShare(math.MaxUint64, 2, 1)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestCheckedAddSub(t *testing.T) {
	_, err := Add(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = Sub(1, 2)
	assert.ErrorIs(t, err, ErrUnderflow)

	s, err := Sum(1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), s)

	_, err = Sum(math.MaxUint64-1, 1, 1)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestPerformanceBPS(t *testing.T) {
	cases := []struct {
		start, end int64
		want       int64
	}{
		{100, 110, 1000},
		{100, 90, -1000},
		{3, 4, 3333},
		{3, 2, -3333},
		{100, 100, 0},
		{5, -3, -16000},
	}
	for _, tc := range cases {
		got, err := PerformanceBPS(tc.start, tc.end)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "start=%d end=%d", tc.start, tc.end)
	}

	_, err := PerformanceBPS(0, 10)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = PerformanceBPS(1, math.MaxInt64)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestInt64Conversions(t *testing.T) {
	_, err := ToInt64(math.MaxUint64)
	assert.ErrorIs(t, err, ErrOverflow)

	v, err := ToInt64(42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = FromInt64(-1)
	assert.ErrorIs(t, err, ErrUnderflow)
}
