package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/money"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/topics"
)

// Wager é um pedido de aposta. Em jogos commit-reveal Slot é ignorado e a
// escolha vai oculta em Commitment.
type Wager struct {
	MarketID    string
	Participant string
	Slot        int
	Amount      uint64
	Commitment  [32]byte
}

// PlaceWager registra a aposta e move o stake para o escrow do mercado.
func (e *Engine) PlaceWager(ctx context.Context, w Wager) (*domain.LedgerEntry, error) {
	if w.Participant == "" {
		return nil, domain.ErrUnauthorized
	}
	var (
		entry *domain.LedgerEntry
		game  domain.Game
	)
	err := e.run(ctx, "place_wager", func(tx Tx) ([]Transfer, error) {
		m, rules, err := e.lockMarket(tx, w.MarketID)
		if err != nil {
			return nil, err
		}
		game = m.Game
		if m.Status != domain.StatusOpen {
			return nil, domain.ErrMarketNotOpen
		}
		if w.Amount < rules.MinStake || w.Amount > rules.MaxStake {
			return nil, domain.ErrStakeOutOfRange
		}

		commitReveal := rules.Strategy == domain.StrategyCommitReveal
		if commitReveal {
			if w.Commitment == ([32]byte{}) {
				return nil, domain.ErrInvalidCommitment
			}
		} else {
			if w.Slot < 0 || w.Slot >= len(m.Slots) {
				return nil, domain.ErrInvalidOutcome
			}
			if rules.SeatPerSlot && m.Slots[w.Slot].ParticipantCount > 0 {
				return nil, domain.ErrSlotOccupied
			}
		}

		if _, err := tx.Entry(m.ID, w.Participant); err == nil {
			return nil, domain.ErrDuplicateWager
		} else if !errors.Is(err, domain.ErrEntryNotFound) {
			return nil, err
		}
		if commitReveal {
			if err := commitmentFree(tx, m.ID, w.Commitment); err != nil {
				return nil, err
			}
		}

		now := e.clock.Now()
		entry = &domain.LedgerEntry{
			MarketID:      m.ID,
			ParticipantID: w.Participant,
			Slot:          w.Slot,
			Amount:        w.Amount,
			ClaimState:    domain.Unclaimed,
			CreatedAt:     now,
		}
		transfers := []Transfer{{
			From: w.Participant, To: m.Escrow(), Amount: w.Amount,
			Ref: ref("wager", m.ID, w.Participant),
		}}

		if commitReveal {
			match, err := e.matchStake(tx, m, w.Participant, w.Amount)
			if err != nil {
				return nil, err
			}
			entry.Slot = -1
			entry.Ticket = &domain.CommitRevealTicket{
				Commitment: w.Commitment,
				CommitTime: now,
				Status:     domain.TicketCommitted,
				Choice:     -1,
				Outcome:    -1,
				HouseMatch: w.Amount,
			}
			transfers = append(transfers, match)
		} else {
			slot := &m.Slots[w.Slot]
			if slot.TotalStaked, err = money.Add(slot.TotalStaked, w.Amount); err != nil {
				return nil, err
			}
			slot.ParticipantCount++
			if m.EscrowBalance, err = money.Add(m.EscrowBalance, w.Amount); err != nil {
				return nil, err
			}
		}

		if err := tx.SaveMarket(m); err != nil {
			return nil, err
		}
		if err := tx.CreateEntry(entry); err != nil {
			return nil, err
		}
		return transfers, nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("wager placed",
		zap.String("market_id", w.MarketID), zap.String("participant", w.Participant),
		zap.Int("slot", entry.Slot), zap.Uint64("amount", w.Amount))
	if e.hooks.OnWagerPlaced != nil {
		e.hooks.OnWagerPlaced(game, w.Amount)
	}
	e.publish(ctx, topics.WagerPlaced, w.MarketID, events.WagerPlaced{
		MarketID: w.MarketID, Game: string(game), ParticipantID: w.Participant,
		Slot: entry.Slot, AmountLamport: w.Amount, Ts: entry.CreatedAt,
	})
	return entry, nil
}

// matchStake reserva no bankroll o valor que a casa põe contra o jogador e
// soma os dois lados no escrow. O volume de flips conta na colocação.
func (e *Engine) matchStake(tx Tx, m *domain.Market, participant string, amount uint64) (Transfer, error) {
	t, err := tx.Treasury()
	if err != nil {
		return Transfer{}, err
	}
	if t.Bankroll < amount {
		return Transfer{}, domain.ErrInsufficientBankroll
	}
	both, err := money.Double(amount)
	if err != nil {
		return Transfer{}, err
	}
	if m.EscrowBalance, err = money.Add(m.EscrowBalance, both); err != nil {
		return Transfer{}, err
	}
	if t.LifetimeVolume, err = money.Add(t.LifetimeVolume, amount); err != nil {
		return Transfer{}, err
	}
	t.Bankroll -= amount
	t.UpdatedAt = e.clock.Now()
	if err := tx.SaveTreasury(t); err != nil {
		return Transfer{}, err
	}
	return Transfer{From: domain.BankrollAccount, To: m.Escrow(), Amount: amount, Ref: ref("match", m.ID, participant)}, nil
}

// commitmentFree recusa um commitment que já pertence a outro ticket do
// mercado; a prova MPC de um ticket não pode servir para o outro.
func commitmentFree(tx Tx, marketID string, c [32]byte) error {
	entries, err := tx.Entries(marketID)
	if err != nil {
		return err
	}
	for _, en := range entries {
		if en.Ticket != nil && en.Ticket.Commitment == c {
			return domain.ErrCommitmentInUse
		}
	}
	return nil
}
