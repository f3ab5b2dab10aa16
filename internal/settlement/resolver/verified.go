package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
)

// Verified aceita o vencedor vindo de um showdown MPC, desde que a prova
// confira com o commitment do baralho e com o ID do mercado.
type Verified struct {
	Verifier Verifier
}

func (v Verified) Resolve(ctx context.Context, req Request) (Resolution, error) {
	m := req.Market
	out, err := v.Verifier.Verify(ctx, req.Proof, domain.Subject{Commitment: m.Commitment, MarketID: m.ID})
	if err != nil {
		if errors.Is(err, domain.ErrVerificationFailed) {
			return Resolution{}, err
		}
		return Resolution{}, fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
	}
	if out.Slot < 0 || out.Slot >= len(m.Slots) {
		return Resolution{}, fmt.Errorf("%w: seat %d", domain.ErrInvalidOutcome, out.Slot)
	}
	return Resolution{Slot: out.Slot}, nil
}
