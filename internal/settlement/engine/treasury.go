package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/money"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/topics"
)

// InitTreasury cria a tesouraria da casa. Só pode ser chamado uma vez.
func (e *Engine) InitTreasury(ctx context.Context, owner string) (*domain.Treasury, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner required", domain.ErrUnauthorized)
	}
	t := &domain.Treasury{OwnerID: owner, UpdatedAt: e.clock.Now()}
	err := e.run(ctx, "init_treasury", func(tx Tx) ([]Transfer, error) {
		return nil, tx.CreateTreasury(t)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("treasury initialized", zap.String("owner", owner))
	return t, nil
}

// Treasury devolve um snapshot da tesouraria.
func (e *Engine) Treasury(ctx context.Context) (*domain.Treasury, error) {
	return e.store.Treasury(ctx)
}

// WithdrawTreasury transfere taxas acumuladas para o dono.
func (e *Engine) WithdrawTreasury(ctx context.Context, caller string, amount uint64) error {
	return e.moveHouseFunds(ctx, caller, amount, "WITHDRAW_FEES", func(t *domain.Treasury) (Transfer, error) {
		if amount > t.AccumulatedFee {
			return Transfer{}, domain.ErrInsufficientTreasury
		}
		t.AccumulatedFee -= amount
		return Transfer{From: domain.TreasuryAccount, To: caller, Amount: amount}, nil
	})
}

// FundBankroll deposita liquidez da casa para casar apostas double-or-nothing.
func (e *Engine) FundBankroll(ctx context.Context, caller string, amount uint64) error {
	return e.moveHouseFunds(ctx, caller, amount, "FUND_BANKROLL", func(t *domain.Treasury) (Transfer, error) {
		v, err := money.Add(t.Bankroll, amount)
		if err != nil {
			return Transfer{}, err
		}
		t.Bankroll = v
		return Transfer{From: caller, To: domain.BankrollAccount, Amount: amount}, nil
	})
}

// WithdrawBankroll devolve ao dono liquidez não comprometida.
func (e *Engine) WithdrawBankroll(ctx context.Context, caller string, amount uint64) error {
	return e.moveHouseFunds(ctx, caller, amount, "WITHDRAW_BANKROLL", func(t *domain.Treasury) (Transfer, error) {
		if amount > t.Bankroll {
			return Transfer{}, domain.ErrInsufficientBankroll
		}
		t.Bankroll -= amount
		return Transfer{From: domain.BankrollAccount, To: caller, Amount: amount}, nil
	})
}

func (e *Engine) moveHouseFunds(ctx context.Context, caller string, amount uint64, kind string,
	apply func(t *domain.Treasury) (Transfer, error)) error {
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	var owner string
	err := e.run(ctx, "treasury", func(tx Tx) ([]Transfer, error) {
		t, err := tx.Treasury()
		if err != nil {
			return nil, err
		}
		if t.OwnerID != caller {
			return nil, domain.ErrUnauthorized
		}
		tr, err := apply(t)
		if err != nil {
			return nil, err
		}
		t.UpdatedAt = e.clock.Now()
		if err := tx.SaveTreasury(t); err != nil {
			return nil, err
		}
		owner = t.OwnerID
		tr.Ref = "treasury:" + uuid.NewString()
		return []Transfer{tr}, nil
	})
	if err != nil {
		return err
	}
	e.log.Info("treasury moved", zap.String("kind", kind), zap.Uint64("amount", amount))
	e.publish(ctx, topics.TreasuryMoved, owner, events.TreasuryMoved{
		OwnerID: owner, Kind: kind, AmountLamport: amount, Ts: e.clock.Now(),
	})
	return nil
}

// creditFees soma taxa e volume na tesouraria já travada.
func creditFees(t *domain.Treasury, fee, volume uint64) error {
	f, err := money.Add(t.AccumulatedFee, fee)
	if err != nil {
		return err
	}
	v, err := money.Add(t.LifetimeVolume, volume)
	if err != nil {
		return err
	}
	t.AccumulatedFee, t.LifetimeVolume = f, v
	return nil
}
