// Package randomness fornece seeds para os sorteios do engine.
package randomness

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
)

// Crypto lê seeds do gerador do sistema operacional.
type Crypto struct {
	// Reader substitui crypto/rand.Reader nos testes.
	Reader io.Reader
}

// FreshSeed implementa resolver.RandomSource. Cada chamada devolve uma seed nova.
func (c Crypto) FreshSeed(ctx context.Context) ([32]byte, error) {
	var seed [32]byte
	if err := ctx.Err(); err != nil {
		return seed, err
	}
	r := c.Reader
	if r == nil {
		r = rand.Reader
	}
	if _, err := io.ReadFull(r, seed[:]); err != nil {
		return seed, fmt.Errorf("read seed: %w", err)
	}
	return seed, nil
}
