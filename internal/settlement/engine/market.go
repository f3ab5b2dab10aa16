package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/money"
	"github.com/radieske/wager-settlement-engine/internal/settlement/resolver"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/topics"
)

// MarketSpec descreve um mercado a ser aberto.
type MarketSpec struct {
	Game    domain.Game
	Creator string
	Labels  []string

	// fight
	FeedA string
	FeedB string

	// poker: commitment do baralho gerado pelo MPC
	Commitment [32]byte
}

var flipLabels = []string{"heads", "tails"}

// CreateMarket abre um mercado e incrementa o contador da tesouraria.
func (e *Engine) CreateMarket(ctx context.Context, s MarketSpec) (*domain.Market, error) {
	rules, err := e.rulesFor(s.Game)
	if err != nil {
		return nil, err
	}
	labels := s.Labels
	if len(labels) == 0 && rules.Strategy == domain.StrategyCommitReveal {
		labels = flipLabels
	}
	if len(labels) < rules.MinSlots || len(labels) > rules.MaxSlots {
		return nil, fmt.Errorf("%w: %s takes %d-%d slots, got %d",
			domain.ErrInvalidSlotCount, s.Game, rules.MinSlots, rules.MaxSlots, len(labels))
	}

	now := e.clock.Now()
	m := &domain.Market{
		ID:        uuid.NewString(),
		Game:      s.Game,
		CreatorID: s.Creator,
		Status:    domain.StatusOpen,
		OpenedAt:  now,
	}
	for i, l := range labels {
		m.Slots = append(m.Slots, domain.OutcomeSlot{Index: i, Label: l})
	}

	switch rules.Strategy {
	case domain.StrategyPriceFeed:
		if s.FeedA == "" || s.FeedB == "" || s.FeedA == s.FeedB {
			return nil, fmt.Errorf("%w: two distinct feeds required", domain.ErrInvalidOutcome)
		}
		m.FeedA, m.FeedB = s.FeedA, s.FeedB
		if err := e.captureStartPrices(ctx, m, rules); err != nil {
			return nil, err
		}
	case domain.StrategyVerified:
		if s.Commitment == ([32]byte{}) {
			return nil, domain.ErrInvalidCommitment
		}
		m.Commitment = s.Commitment
	}

	err = e.run(ctx, "create_market", func(tx Tx) ([]Transfer, error) {
		t, err := tx.Treasury()
		if err != nil {
			return nil, err
		}
		if t.LifetimeMarketCount, err = money.Add(t.LifetimeMarketCount, 1); err != nil {
			return nil, err
		}
		t.UpdatedAt = now
		if err := tx.SaveTreasury(t); err != nil {
			return nil, err
		}
		return nil, tx.CreateMarket(m)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("market created",
		zap.String("market_id", m.ID), zap.String("game", string(m.Game)),
		zap.String("creator", m.CreatorID), zap.Int("slots", len(m.Slots)))
	return m, nil
}

func (e *Engine) captureStartPrices(ctx context.Context, m *domain.Market, rules domain.Rules) error {
	if e.prices == nil {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedStrategy, rules.Strategy)
	}
	maxAge := rules.MaxPriceStaleness.Duration
	qa, err := e.prices.Quote(ctx, m.FeedA, maxAge)
	if err != nil {
		e.log.Warn("start quote unavailable", zap.String("feed", m.FeedA), zap.Error(err))
		return fmt.Errorf("feed %s: %w", m.FeedA, wrapStale(err))
	}
	qb, err := e.prices.Quote(ctx, m.FeedB, maxAge)
	if err != nil {
		e.log.Warn("start quote unavailable", zap.String("feed", m.FeedB), zap.Error(err))
		return fmt.Errorf("feed %s: %w", m.FeedB, wrapStale(err))
	}
	if qa.Price <= 0 || qb.Price <= 0 {
		return domain.ErrInvalidPrice
	}
	m.StartPriceA, m.StartPriceB = qa.Price, qb.Price
	return nil
}

// StartMarket fecha as apostas: Open -> Running. Exige janela mínima cumprida e
// participantes suficientes.
func (e *Engine) StartMarket(ctx context.Context, caller, id string) (*domain.Market, error) {
	var out *domain.Market
	err := e.run(ctx, "start_market", func(tx Tx) ([]Transfer, error) {
		m, rules, err := e.lockMarket(tx, id)
		if err != nil {
			return nil, err
		}
		if rules.Strategy == domain.StrategyCommitReveal {
			return nil, domain.ErrUnsupportedStrategy
		}
		if err := authorize(tx, m, caller); err != nil {
			return nil, err
		}
		if m.Status != domain.StatusOpen {
			return nil, domain.ErrMarketNotOpen
		}
		now := e.clock.Now()
		if now.Sub(m.OpenedAt) < rules.BettingWindow.Duration || m.Participants() < rules.MinParticipants {
			return nil, domain.ErrMarketNotReady
		}
		m.Status = domain.StatusRunning
		m.LockedAt = now
		out = m
		return nil, tx.SaveMarket(m)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("market running", zap.String("market_id", id), zap.Uint32("participants", out.Participants()))
	return out, nil
}

// LockMarket encerra a entrada de novos tickets num mercado commit-reveal.
// Tickets já abertos continuam podendo ser revelados.
func (e *Engine) LockMarket(ctx context.Context, caller, id string) (*domain.Market, error) {
	var out *domain.Market
	err := e.run(ctx, "lock_market", func(tx Tx) ([]Transfer, error) {
		m, rules, err := e.lockMarket(tx, id)
		if err != nil {
			return nil, err
		}
		if rules.Strategy != domain.StrategyCommitReveal {
			return nil, domain.ErrUnsupportedStrategy
		}
		if err := authorize(tx, m, caller); err != nil {
			return nil, err
		}
		if m.Status != domain.StatusOpen {
			return nil, domain.ErrMarketNotOpen
		}
		m.Status = domain.StatusLocked
		m.LockedAt = e.clock.Now()
		out = m
		return nil, tx.SaveMarket(m)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("market locked", zap.String("market_id", id))
	return out, nil
}

// CancelMarket cancela um mercado ainda aberto, liberando refunds.
func (e *Engine) CancelMarket(ctx context.Context, caller, id string) (*domain.Market, error) {
	var out *domain.Market
	err := e.run(ctx, "cancel_market", func(tx Tx) ([]Transfer, error) {
		m, _, err := e.lockMarket(tx, id)
		if err != nil {
			return nil, err
		}
		if err := authorize(tx, m, caller); err != nil {
			return nil, err
		}
		if m.Status != domain.StatusOpen {
			return nil, domain.ErrMarketNotOpen
		}
		m.Status = domain.StatusCancelled
		m.ResolvedAt = e.clock.Now()
		out = m
		return nil, tx.SaveMarket(m)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("market cancelled", zap.String("market_id", id), zap.String("by", caller))
	e.publish(ctx, topics.MarketResolved, id, events.MarketResolved{
		MarketID: id, Game: string(out.Game), Status: string(out.Status),
		TotalPool: out.EscrowBalance, ResolvedAt: out.ResolvedAt,
	})
	return out, nil
}

// ResolveMarket escolhe o vencedor e cobra a taxa da casa numa única transição.
// Se o resolver falhar o mercado fica exatamente como estava.
func (e *Engine) ResolveMarket(ctx context.Context, id string, proof []byte) (*domain.Market, error) {
	var (
		out   *domain.Market
		total uint64
	)
	err := e.run(ctx, "resolve_market", func(tx Tx) ([]Transfer, error) {
		m, rules, err := e.lockMarket(tx, id)
		if err != nil {
			return nil, err
		}
		switch {
		case m.Status == domain.StatusResolved:
			return nil, domain.ErrMarketAlreadyResolved
		case rules.RequireRunning && m.Status != domain.StatusRunning:
			return nil, domain.ErrMarketNotRunning
		case m.Status != domain.StatusOpen && m.Status != domain.StatusRunning:
			return nil, domain.ErrMarketNotOpen
		case m.Status == domain.StatusOpen && e.clock.Now().Sub(m.OpenedAt) < rules.BettingWindow.Duration:
			// sem fase Running, a janela de apostas precisa fechar antes do resultado
			return nil, domain.ErrMarketNotReady
		}

		r, err := e.resolvers.For(rules.Strategy)
		if err != nil {
			return nil, err
		}
		res, err := r.Resolve(ctx, resolver.Request{Market: m.Clone(), Rules: rules, Proof: proof})
		if err != nil {
			e.log.Warn("resolver failed", zap.String("market_id", id),
				zap.String("strategy", string(rules.Strategy)), zap.Error(err))
			return nil, err
		}

		if total, err = m.TotalPool(); err != nil {
			return nil, err
		}
		fee, err := money.BasisPointFee(total, rules.FeeBPS)
		if err != nil {
			return nil, err
		}
		if m.EscrowBalance, err = money.Sub(m.EscrowBalance, fee); err != nil {
			return nil, err
		}
		slot := res.Slot
		m.WinningSlot = &slot
		m.FeeCharged = fee
		m.Status = domain.StatusResolved
		m.ResolvedAt = e.clock.Now()
		if rules.Strategy == domain.StrategyPriceFeed {
			m.EndPriceA, m.EndPriceB = res.EndPriceA, res.EndPriceB
		}
		if rules.Strategy == domain.StrategyWeightedRandom {
			e.log.Info("weighted draw", zap.String("market_id", id),
				zap.String("seed", hex.EncodeToString(res.Seed[:])), zap.Uint64s("stakes", m.Stakes()))
		}

		t, err := tx.Treasury()
		if err != nil {
			return nil, err
		}
		if err := creditFees(t, fee, total); err != nil {
			return nil, err
		}
		t.UpdatedAt = m.ResolvedAt
		if err := tx.SaveMarket(m); err != nil {
			return nil, err
		}
		if err := tx.SaveTreasury(t); err != nil {
			return nil, err
		}
		out = m
		return []Transfer{{From: m.Escrow(), To: domain.TreasuryAccount, Amount: fee, Ref: ref("fee", m.ID, "")}}, nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("market resolved",
		zap.String("market_id", id), zap.String("game", string(out.Game)),
		zap.Int("winning_slot", *out.WinningSlot), zap.Uint64("total_pool", total),
		zap.Uint64("fee", out.FeeCharged))
	if e.hooks.OnMarketResolved != nil {
		e.hooks.OnMarketResolved(out.Game, out.FeeCharged)
	}
	e.publish(ctx, topics.MarketResolved, id, events.MarketResolved{
		MarketID: id, Game: string(out.Game), Status: string(out.Status),
		WinningSlot: out.WinningSlot, TotalPool: total, FeeCharged: out.FeeCharged,
		ResolvedAt: out.ResolvedAt,
	})
	return out, nil
}

func (e *Engine) lockMarket(tx Tx, id string) (*domain.Market, domain.Rules, error) {
	m, err := tx.Market(id)
	if err != nil {
		return nil, domain.Rules{}, err
	}
	rules, err := e.rulesFor(m.Game)
	if err != nil {
		return nil, domain.Rules{}, err
	}
	return m, rules, nil
}

// authorize aceita o criador do mercado ou o dono da casa.
func authorize(tx Tx, m *domain.Market, caller string) error {
	if caller != "" && caller == m.CreatorID {
		return nil
	}
	t, err := tx.Treasury()
	if err != nil {
		return err
	}
	if caller == "" || caller != t.OwnerID {
		return domain.ErrUnauthorized
	}
	return nil
}

func wrapStale(err error) error {
	if errors.Is(err, domain.ErrStalePriceFeed) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStalePriceFeed, err)
}
