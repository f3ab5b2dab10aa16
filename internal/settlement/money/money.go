// Package money concentra a aritmética inteira em lamports usada pela liquidação.
// Nenhuma operação aqui usa ponto flutuante e nenhuma faz wrap silencioso.
package money

import (
	"errors"
	"math"

	"github.com/holiman/uint256"
)

// BPSDenominator é o denominador de basis points (100% = 10000).
const BPSDenominator = 10_000

var (
	ErrOverflow   = errors.New("arithmetic overflow")
	ErrUnderflow  = errors.New("arithmetic underflow")
	ErrInvalidBPS = errors.New("basis points above 10000")
)

// BasisPointFee retorna floor(amount * bps / 10000).
// O produto é calculado em 256 bits, então nunca estoura antes da divisão.
func BasisPointFee(amount uint64, bps uint16) (uint64, error) {
	if bps > BPSDenominator {
		return 0, ErrInvalidBPS
	}
	return MulDiv(amount, uint64(bps), BPSDenominator)
}

// ProportionalShare retorna floor(stake * numerator / denominator), ou 0 quando
// denominator == 0.
func ProportionalShare(stake, numerator, denominator uint64) (uint64, error) {
	if denominator == 0 {
		return 0, nil
	}
	return MulDiv(stake, numerator, denominator)
}

// MulDiv calcula floor(a * b / d) com produto alargado.
// Quociente que não cabe em u64 é rejeitado com ErrOverflow.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrOverflow
	}
	x := uint256.NewInt(a)
	x.Mul(x, uint256.NewInt(b))
	x.Div(x, uint256.NewInt(d))
	if !x.IsUint64() {
		return 0, ErrOverflow
	}
	return x.Uint64(), nil
}

// Add soma com checagem de overflow.
func Add(a, b uint64) (uint64, error) {
	s := a + b
	if s < a {
		return 0, ErrOverflow
	}
	return s, nil
}

// Sub subtrai com checagem de underflow.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Sum soma todos os valores com checagem de overflow.
func Sum(values ...uint64) (uint64, error) {
	var total uint64
	for _, v := range values {
		var err error
		if total, err = Add(total, v); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Double retorna 2*a com checagem.
func Double(a uint64) (uint64, error) { return Add(a, a) }

// PerformanceBPS calcula ((end - start) * 10000) / start com sinal, truncando
// em direção a zero. start precisa ser positivo.
func PerformanceBPS(start, end int64) (int64, error) {
	if start <= 0 {
		return 0, ErrOverflow
	}
	delta := new(uint256.Int)
	neg := end < start
	if neg {
		delta.SetUint64(uint64(start) - uint64(end))
	} else {
		delta.SetUint64(uint64(end) - uint64(start))
	}
	delta.Mul(delta, uint256.NewInt(BPSDenominator))
	delta.Div(delta, uint256.NewInt(uint64(start)))
	if !delta.IsUint64() || delta.Uint64() > math.MaxInt64 {
		return 0, ErrOverflow
	}
	v := int64(delta.Uint64())
	if neg {
		v = -v
	}
	return v, nil
}

// ToInt64 converte para a representação BIGINT do Postgres.
func ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(v), nil
}

// FromInt64 é o inverso de ToInt64; valores negativos indicam dado corrompido.
func FromInt64(v int64) (uint64, error) {
	if v < 0 {
		return 0, ErrUnderflow
	}
	return uint64(v), nil
}
