// Package resolver escolhe o slot vencedor de um mercado. Cada jogo declara uma
// Strategy e o engine busca aqui a implementação correspondente.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
)

// RandomSource fornece seeds novas de 32 bytes.
type RandomSource interface {
	FreshSeed(ctx context.Context) ([32]byte, error)
}

// PriceFeed devolve a última cotação de um instrumento, rejeitando cotações
// mais velhas que maxStaleness.
type PriceFeed interface {
	Quote(ctx context.Context, feedID string, maxStaleness time.Duration) (domain.Quote, error)
}

// Verifier valida uma prova de resultado MPC. A prova precisa estar amarrada
// ao commitment, ao mercado e (no flip) ao participante do subject.
type Verifier interface {
	Verify(ctx context.Context, proof []byte, subject domain.Subject) (domain.Outcome, error)
}

// Request carrega o que uma estratégia precisa para decidir.
type Request struct {
	Market *domain.Market
	Rules  domain.Rules
	Proof  []byte
}

// Resolution é a decisão tomada. Campos além de Slot são gravados no mercado
// para auditoria.
type Resolution struct {
	Slot      int
	Seed      [32]byte
	EndPriceA int64
	EndPriceB int64
}

// Resolver decide o vencedor de um mercado. Falhas não alteram nada: quem chama
// só grava o resultado depois de um retorno sem erro.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (Resolution, error)
}

// Set associa estratégias às suas implementações.
type Set map[domain.Strategy]Resolver

// NewSet monta o conjunto padrão a partir dos colaboradores externos.
// Colaborador nil deixa a estratégia correspondente de fora.
func NewSet(seeds RandomSource, prices PriceFeed, verifier Verifier) Set {
	s := Set{}
	if seeds != nil {
		s[domain.StrategyWeightedRandom] = WeightedRandom{Seeds: seeds}
	}
	if prices != nil {
		s[domain.StrategyPriceFeed] = PriceCompare{Feed: prices}
	}
	if verifier != nil {
		s[domain.StrategyVerified] = Verified{Verifier: verifier}
	}
	return s
}

// For devolve o resolver de uma estratégia. Commit-reveal é resolvido por
// ticket e nunca aparece aqui.
func (s Set) For(strategy domain.Strategy) (Resolver, error) {
	r, ok := s[strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedStrategy, strategy)
	}
	return r, nil
}
