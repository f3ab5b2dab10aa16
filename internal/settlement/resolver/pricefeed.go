package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/money"
)

// PriceCompare decide lutas entre dois instrumentos: vence quem teve a maior
// variação percentual desde a abertura.
type PriceCompare struct {
	Feed PriceFeed
}

func (p PriceCompare) Resolve(ctx context.Context, req Request) (Resolution, error) {
	m := req.Market
	maxAge := req.Rules.MaxPriceStaleness.Duration

	qa, err := p.Feed.Quote(ctx, m.FeedA, maxAge)
	if err != nil {
		return Resolution{}, staleErr(m.FeedA, err)
	}
	qb, err := p.Feed.Quote(ctx, m.FeedB, maxAge)
	if err != nil {
		return Resolution{}, staleErr(m.FeedB, err)
	}

	slot, err := ComparePerformance(m.StartPriceA, qa.Price, m.StartPriceB, qb.Price)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Slot: slot, EndPriceA: qa.Price, EndPriceB: qb.Price}, nil
}

// ComparePerformance devolve 0 se o lado A performou melhor ou empatou, 1 caso
// contrário.
func ComparePerformance(startA, endA, startB, endB int64) (int, error) {
	if startA <= 0 || startB <= 0 {
		return 0, fmt.Errorf("%w: start price must be positive", domain.ErrInvalidPrice)
	}
	perfA, err := money.PerformanceBPS(startA, endA)
	if err != nil {
		return 0, err
	}
	perfB, err := money.PerformanceBPS(startB, endB)
	if err != nil {
		return 0, err
	}
	if perfA >= perfB {
		return 0, nil
	}
	return 1, nil
}

func staleErr(feed string, err error) error {
	if errors.Is(err, domain.ErrStalePriceFeed) {
		return fmt.Errorf("feed %s: %w", feed, err)
	}
	return fmt.Errorf("feed %s: %w: %v", feed, domain.ErrStalePriceFeed, err)
}
