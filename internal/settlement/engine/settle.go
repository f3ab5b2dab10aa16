package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/money"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/topics"
)

// Payout calcula o valor devido a uma aposta vencedora pari-mutuel.
//
// payout = stake + floor(stake * (losing - fee) / winning). Quando a taxa passa
// do pool perdedor, os vencedores dividem o que sobrou no escrow
// proporcionalmente, e a soma dos payouts nunca excede o escrow.
func Payout(m *domain.Market, stake uint64) (uint64, error) {
	if m.WinningSlot == nil {
		return 0, domain.ErrMarketNotResolved
	}
	w := *m.WinningSlot
	winning := m.Slots[w].TotalStaked
	losing, err := m.LosingPool(w)
	if err != nil {
		return 0, err
	}
	if losing >= m.FeeCharged {
		share, err := money.ProportionalShare(stake, losing-m.FeeCharged, winning)
		if err != nil {
			return 0, err
		}
		return money.Add(stake, share)
	}
	total, err := m.TotalPool()
	if err != nil {
		return 0, err
	}
	return money.ProportionalShare(stake, total-m.FeeCharged, winning)
}

// Claim paga uma aposta vencedora. Idempotente no sentido de que a segunda
// chamada falha com ErrAlreadyClaimed sem mover nada.
func (e *Engine) Claim(ctx context.Context, marketID, participant string) (*domain.LedgerEntry, error) {
	var (
		out  *domain.LedgerEntry
		game domain.Game
	)
	err := e.run(ctx, "claim", func(tx Tx) ([]Transfer, error) {
		m, rules, err := e.lockMarket(tx, marketID)
		if err != nil {
			return nil, err
		}
		game = m.Game
		if rules.Payout == domain.PayoutParimutuel && m.Status != domain.StatusResolved {
			return nil, domain.ErrMarketNotResolved
		}
		entry, err := tx.Entry(marketID, participant)
		if err != nil {
			return nil, err
		}

		var payout uint64
		if rules.Payout == domain.PayoutDoubleOrNothing {
			payout, err = flipPayout(entry)
		} else {
			payout, err = parimutuelPayout(m, entry)
		}
		if err != nil {
			return nil, err
		}

		if payout > m.EscrowBalance {
			e.log.Error("escrow shortfall", zap.String("market_id", marketID),
				zap.Uint64("escrow", m.EscrowBalance), zap.Uint64("payout", payout))
			return nil, domain.ErrEscrowShortfall
		}
		m.EscrowBalance -= payout
		entry.ClaimState = domain.Claimed
		entry.Payout = payout
		entry.SettledAt = e.clock.Now()
		if err := tx.SaveMarket(m); err != nil {
			return nil, err
		}
		if err := tx.SaveEntry(entry); err != nil {
			return nil, err
		}
		out = entry
		return []Transfer{{From: m.Escrow(), To: participant, Amount: payout, Ref: ref("claim", marketID, participant)}}, nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("wager claimed", zap.String("market_id", marketID),
		zap.String("participant", participant), zap.Uint64("payout", out.Payout))
	if e.hooks.OnClaimed != nil {
		e.hooks.OnClaimed(game, out.Payout)
	}
	e.publish(ctx, topics.WagerSettled, marketID, events.WagerSettled{
		MarketID: marketID, Game: string(game), ParticipantID: participant,
		Kind: string(domain.Claimed), AmountLamport: out.Payout, PlayerWins: true, Ts: out.SettledAt,
	})
	return out, nil
}

func parimutuelPayout(m *domain.Market, entry *domain.LedgerEntry) (uint64, error) {
	if m.Status != domain.StatusResolved {
		return 0, domain.ErrMarketNotResolved
	}
	if entry.ClaimState != domain.Unclaimed {
		return 0, domain.ErrAlreadyClaimed
	}
	if entry.Slot != *m.WinningSlot {
		return 0, domain.ErrNotWinner
	}
	return Payout(m, entry.Amount)
}

func flipPayout(entry *domain.LedgerEntry) (uint64, error) {
	t := entry.Ticket
	if t == nil {
		return 0, domain.ErrUnsupportedStrategy
	}
	if !t.Status.Resolved() {
		return 0, domain.ErrWagerNotResolved
	}
	if entry.ClaimState != domain.Unclaimed {
		return 0, domain.ErrAlreadyClaimed
	}
	if t.Status == domain.TicketTimedOut || !t.PlayerWins {
		return 0, domain.ErrNotWinner
	}
	both, err := money.Double(entry.Amount)
	if err != nil {
		return 0, err
	}
	return money.Sub(both, t.Fee)
}

// Refund devolve o stake de um mercado cancelado. Em flips, devolve também o
// valor casado pela casa ao bankroll, desde que o ticket ainda esteja pendente.
func (e *Engine) Refund(ctx context.Context, marketID, participant string) (*domain.LedgerEntry, error) {
	var (
		out  *domain.LedgerEntry
		game domain.Game
	)
	err := e.run(ctx, "refund", func(tx Tx) ([]Transfer, error) {
		m, _, err := e.lockMarket(tx, marketID)
		if err != nil {
			return nil, err
		}
		game = m.Game
		if m.Status != domain.StatusCancelled {
			return nil, domain.ErrMarketNotCancelled
		}
		entry, err := tx.Entry(marketID, participant)
		if err != nil {
			return nil, err
		}
		if entry.ClaimState != domain.Unclaimed {
			return nil, domain.ErrAlreadyClaimed
		}

		transfers := []Transfer{{From: m.Escrow(), To: participant, Amount: entry.Amount, Ref: ref("refund", marketID, participant)}}
		release := entry.Amount
		if t := entry.Ticket; t != nil {
			if t.Status.Resolved() {
				return nil, domain.ErrTicketResolved
			}
			if release, err = money.Add(release, t.HouseMatch); err != nil {
				return nil, err
			}
			tr, err := tx.Treasury()
			if err != nil {
				return nil, err
			}
			if tr.Bankroll, err = money.Add(tr.Bankroll, t.HouseMatch); err != nil {
				return nil, err
			}
			tr.UpdatedAt = e.clock.Now()
			if err := tx.SaveTreasury(tr); err != nil {
				return nil, err
			}
			transfers = append(transfers, Transfer{
				From: m.Escrow(), To: domain.BankrollAccount, Amount: t.HouseMatch,
				Ref: ref("unmatch", marketID, participant),
			})
		}

		if m.EscrowBalance, err = money.Sub(m.EscrowBalance, release); err != nil {
			return nil, domain.ErrEscrowShortfall
		}
		entry.ClaimState = domain.Refunded
		entry.Payout = entry.Amount
		entry.SettledAt = e.clock.Now()
		if err := tx.SaveMarket(m); err != nil {
			return nil, err
		}
		if err := tx.SaveEntry(entry); err != nil {
			return nil, err
		}
		out = entry
		return transfers, nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("wager refunded", zap.String("market_id", marketID),
		zap.String("participant", participant), zap.Uint64("amount", out.Amount))
	if e.hooks.OnRefunded != nil {
		e.hooks.OnRefunded(game, out.Amount)
	}
	e.publish(ctx, topics.WagerSettled, marketID, events.WagerSettled{
		MarketID: marketID, Game: string(game), ParticipantID: participant,
		Kind: string(domain.Refunded), AmountLamport: out.Amount, Ts: out.SettledAt,
	})
	return out, nil
}

// SweepResidual move para a tesouraria o que sobrou no escrow depois que todos
// os vencedores sacaram: poeira de arredondamento, ou o pote inteiro quando o
// slot vencedor não tinha apostas.
func (e *Engine) SweepResidual(ctx context.Context, caller, marketID string) (uint64, error) {
	var (
		residual uint64
		out      *domain.Market
	)
	err := e.run(ctx, "sweep_residual", func(tx Tx) ([]Transfer, error) {
		m, rules, err := e.lockMarket(tx, marketID)
		if err != nil {
			return nil, err
		}
		if rules.Payout != domain.PayoutParimutuel {
			return nil, domain.ErrUnsupportedStrategy
		}
		if m.Status != domain.StatusResolved {
			return nil, domain.ErrMarketNotResolved
		}
		if m.ResidualSwept {
			return nil, domain.ErrResidualSwept
		}
		entries, err := tx.Entries(marketID)
		if err != nil {
			return nil, err
		}
		for _, en := range entries {
			if en.Slot == *m.WinningSlot && en.ClaimState == domain.Unclaimed {
				return nil, domain.ErrResidualPending
			}
		}

		t, err := tx.Treasury()
		if err != nil {
			return nil, err
		}
		if t.OwnerID != caller {
			return nil, domain.ErrUnauthorized
		}
		residual = m.EscrowBalance
		if err := creditFees(t, residual, 0); err != nil {
			return nil, err
		}
		t.UpdatedAt = e.clock.Now()
		m.EscrowBalance = 0
		m.ResidualSwept = true
		if err := tx.SaveMarket(m); err != nil {
			return nil, err
		}
		if err := tx.SaveTreasury(t); err != nil {
			return nil, err
		}
		out = m
		return []Transfer{{From: m.Escrow(), To: domain.TreasuryAccount, Amount: residual, Ref: ref("sweep", marketID, "")}}, nil
	})
	if err != nil {
		return 0, err
	}

	e.log.Info("residual swept", zap.String("market_id", marketID), zap.Uint64("amount", residual))
	e.publish(ctx, topics.MarketResolved, marketID, events.MarketResolved{
		MarketID: marketID, Game: string(out.Game), Status: string(out.Status),
		WinningSlot: out.WinningSlot, FeeCharged: out.FeeCharged,
		ResolvedAt: out.ResolvedAt, ResidualSwept: residual,
	})
	return residual, nil
}
