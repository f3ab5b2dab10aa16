package resolver

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
)

// WeightedRandom sorteia o vencedor com peso inverso ao volume apostado:
// slots menos populares têm mais chance.
type WeightedRandom struct {
	Seeds RandomSource
}

func (w WeightedRandom) Resolve(ctx context.Context, req Request) (Resolution, error) {
	seed, err := w.Seeds.FreshSeed(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %v", domain.ErrRandomnessUnavailable, err)
	}
	slot, err := SelectWeighted(req.Market.Stakes(), seed)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Slot: slot, Seed: seed}, nil
}

// SelectWeighted é função pura de (stakes, seed).
//
// Pesos: 2*total para slot sem apostas, total²/staked para os demais. Tudo em
// 256 bits: total² pode passar de u64 com pools grandes e nesse caso a soma dos
// pesos também passa, então o alvo usa a seed inteira (little-endian) em vez
// dos 8 primeiros bytes. Nenhum peso é saturado e nenhum pool é rejeitado.
func SelectWeighted(stakes []uint64, seed [32]byte) (int, error) {
	n := len(stakes)
	if n == 0 {
		return 0, domain.ErrInvalidSlotCount
	}
	seed64 := binary.LittleEndian.Uint64(seed[:8])

	total := new(uint256.Int)
	for _, s := range stakes {
		total.Add(total, uint256.NewInt(s))
	}
	if total.IsZero() {
		return int(seed64 % uint64(n)), nil
	}

	square := new(uint256.Int).Mul(total, total)
	double := new(uint256.Int).Lsh(total, 1)
	weights := make([]*uint256.Int, n)
	sum := new(uint256.Int)
	for i, s := range stakes {
		if s == 0 {
			weights[i] = double
		} else {
			weights[i] = new(uint256.Int).Div(square, uint256.NewInt(s))
		}
		sum.Add(sum, weights[i])
	}

	var target *uint256.Int
	if sum.IsUint64() {
		target = uint256.NewInt(seed64 % sum.Uint64())
	} else {
		target = new(uint256.Int).Mod(seedLE(seed), sum)
	}

	cumulative := new(uint256.Int)
	for i, w := range weights {
		cumulative.Add(cumulative, w)
		if target.Lt(cumulative) {
			return i, nil
		}
	}
	return n - 1, nil
}

// seedLE interpreta os 32 bytes como inteiro little-endian, coerente com seed64.
func seedLE(seed [32]byte) *uint256.Int {
	var be [32]byte
	for i := range seed {
		be[31-i] = seed[i]
	}
	return new(uint256.Int).SetBytes(be[:])
}
