package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/money"
	"github.com/radieske/wager-settlement-engine/internal/settlement/resolver"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
	"github.com/radieske/wager-settlement-engine/pkg/contracts/topics"
)

// Um ticket commit-reveal é resolvido por exatamente um de três caminhos:
// Reveal, SubmitVerifiedResult ou TimeoutResolve. Os outros passam a devolver
// ErrTicketResolved.

// Reveal abre o compromisso do jogador e sorteia o lado com uma seed nova.
func (e *Engine) Reveal(ctx context.Context, marketID, participant string, choice uint8, nonce uint64) (*domain.LedgerEntry, error) {
	return e.resolveTicket(ctx, "reveal", marketID, participant, func(en *domain.LedgerEntry, rules domain.Rules) error {
		t := en.Ticket
		if !e.clock.Now().Before(t.CommitTime.Add(rules.RevealTimeout.Duration)) {
			return domain.ErrRevealTimeout
		}
		if err := resolver.CheckReveal(t.Commitment, choice, nonce); err != nil {
			return err
		}
		if e.seeds == nil {
			return domain.ErrRandomnessUnavailable
		}
		seed, err := e.seeds.FreshSeed(ctx)
		if err != nil {
			e.log.Warn("seed unavailable", zap.String("market_id", marketID), zap.Error(err))
			return fmt.Errorf("%w: %v", domain.ErrRandomnessUnavailable, err)
		}
		t.Choice = int(choice)
		t.Outcome = resolver.FlipOutcome(seed, participant, nonce)
		t.PlayerWins = t.Choice == t.Outcome
		t.Status = domain.TicketRevealed
		return nil
	})
}

// SubmitVerifiedResult resolve o ticket com o resultado de uma computação MPC,
// verificado contra o commitment do ticket, o mercado e o participante.
func (e *Engine) SubmitVerifiedResult(ctx context.Context, marketID, participant string, proof []byte) (*domain.LedgerEntry, error) {
	return e.resolveTicket(ctx, "verified_result", marketID, participant, func(en *domain.LedgerEntry, rules domain.Rules) error {
		t := en.Ticket
		if !e.clock.Now().Before(t.CommitTime.Add(rules.RevealTimeout.Duration)) {
			return domain.ErrRevealTimeout
		}
		if e.verifier == nil {
			return domain.ErrVerificationFailed
		}
		out, err := e.verifier.Verify(ctx, proof, domain.Subject{
			Commitment: t.Commitment, MarketID: marketID, Participant: participant,
		})
		if err != nil {
			e.log.Warn("mpc result rejected", zap.String("market_id", marketID), zap.String("participant", participant), zap.Error(err))
			if errors.Is(err, domain.ErrVerificationFailed) {
				return err
			}
			return fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
		}
		if out.Slot != domain.Heads && out.Slot != domain.Tails {
			return domain.ErrInvalidOutcome
		}
		t.Outcome = out.Slot
		t.PlayerWins = out.PlayerWins
		t.Status = domain.TicketVerified
		return nil
	})
}

// TimeoutResolve encerra um ticket não revelado após o prazo. Qualquer um pode
// chamar; o stake do jogador vai inteiro para a tesouraria.
func (e *Engine) TimeoutResolve(ctx context.Context, marketID, participant string) (*domain.LedgerEntry, error) {
	return e.resolveTicket(ctx, "timeout_resolve", marketID, participant, func(en *domain.LedgerEntry, rules domain.Rules) error {
		t := en.Ticket
		if e.clock.Now().Before(t.CommitTime.Add(rules.RevealTimeout.Duration)) {
			return domain.ErrTimeoutNotReached
		}
		t.Status = domain.TicketTimedOut
		t.PlayerWins = false
		return nil
	})
}

// resolveTicket trava o mercado, aplica decide ao ticket pendente e faz a
// contabilidade comum aos três caminhos.
func (e *Engine) resolveTicket(ctx context.Context, op, marketID, participant string,
	decide func(en *domain.LedgerEntry, rules domain.Rules) error) (*domain.LedgerEntry, error) {
	var (
		out  *domain.LedgerEntry
		game domain.Game
	)
	err := e.run(ctx, op, func(tx Tx) ([]Transfer, error) {
		m, rules, err := e.lockMarket(tx, marketID)
		if err != nil {
			return nil, err
		}
		game = m.Game
		if rules.Strategy != domain.StrategyCommitReveal {
			return nil, domain.ErrUnsupportedStrategy
		}
		en, err := tx.Entry(marketID, participant)
		if err != nil {
			return nil, err
		}
		if en.Ticket == nil {
			return nil, domain.ErrUnsupportedStrategy
		}
		if en.Ticket.Status.Resolved() {
			return nil, domain.ErrTicketResolved
		}
		if m.Status == domain.StatusCancelled {
			return nil, domain.ErrMarketNotOpen
		}
		if err := decide(en, rules); err != nil {
			return nil, err
		}

		tr, err := tx.Treasury()
		if err != nil {
			return nil, err
		}
		transfers, err := e.settleTicket(m, en, tr, rules)
		if err != nil {
			return nil, err
		}
		if err := tx.SaveMarket(m); err != nil {
			return nil, err
		}
		if err := tx.SaveEntry(en); err != nil {
			return nil, err
		}
		if err := tx.SaveTreasury(tr); err != nil {
			return nil, err
		}
		out = en
		return transfers, nil
	})
	if err != nil {
		return nil, err
	}

	t := out.Ticket
	e.log.Info("ticket resolved", zap.String("market_id", marketID),
		zap.String("participant", participant), zap.String("status", string(t.Status)),
		zap.Int("outcome", t.Outcome), zap.Bool("player_wins", t.PlayerWins), zap.Uint64("fee", t.Fee))
	if e.hooks.OnTicketResolved != nil {
		e.hooks.OnTicketResolved(game, t.Status)
	}
	e.publish(ctx, topics.WagerSettled, marketID, events.WagerSettled{
		MarketID: marketID, Game: string(game), ParticipantID: participant,
		Kind: string(t.Status), AmountLamport: out.Amount, PlayerWins: t.PlayerWins, Ts: t.ResolvedAt,
	})
	return out, nil
}

// settleTicket move o escrow do ticket conforme o resultado:
//   - vitória: taxa para a tesouraria, 2S-F fica no escrow até o claim
//   - derrota: taxa para a tesouraria, 2S-F volta ao bankroll
//   - timeout: S do jogador para a tesouraria, S da casa volta ao bankroll
func (e *Engine) settleTicket(m *domain.Market, en *domain.LedgerEntry, tr *domain.Treasury, rules domain.Rules) ([]Transfer, error) {
	t := en.Ticket
	stake := en.Amount
	now := e.clock.Now()
	t.ResolvedAt = now
	tr.UpdatedAt = now

	both, err := money.Add(stake, t.HouseMatch)
	if err != nil {
		return nil, err
	}
	var toTreasury, toBankroll uint64
	if t.Status == domain.TicketTimedOut {
		toTreasury, toBankroll = stake, t.HouseMatch
	} else {
		fee, err := money.BasisPointFee(stake, rules.FeeBPS)
		if err != nil {
			return nil, err
		}
		toTreasury = fee
		if !t.PlayerWins {
			toBankroll = both - fee
		}
	}
	t.Fee = toTreasury

	if m.EscrowBalance, err = money.Sub(m.EscrowBalance, toTreasury+toBankroll); err != nil {
		return nil, domain.ErrEscrowShortfall
	}
	if err := creditFees(tr, toTreasury, 0); err != nil {
		return nil, err
	}
	if tr.Bankroll, err = money.Add(tr.Bankroll, toBankroll); err != nil {
		return nil, err
	}
	return []Transfer{
		{From: m.Escrow(), To: domain.TreasuryAccount, Amount: toTreasury, Ref: ref("ticket-fee", m.ID, en.ParticipantID)},
		{From: m.Escrow(), To: domain.BankrollAccount, Amount: toBankroll, Ref: ref("ticket-house", m.ID, en.ParticipantID)},
	}, nil
}

// SweepTimeouts resolve por timeout todos os tickets vencidos dos jogos
// commit-reveal. Tickets resolvidos por outro caminho no meio do caminho são
// ignorados. Uma falha num ticket não interrompe a varredura: o erro é
// registrado e devolvido junto com os demais ao final.
func (e *Engine) SweepTimeouts(ctx context.Context) (int, error) {
	now := e.clock.Now()
	done := 0
	var errs []error
	for g, r := range e.rules {
		if r.Strategy != domain.StrategyCommitReveal {
			continue
		}
		refs, err := e.store.ExpiredTickets(ctx, g, now.Add(-r.RevealTimeout.Duration))
		if err != nil {
			errs = append(errs, fmt.Errorf("list expired %s tickets: %w", g, err))
			continue
		}
		for _, tr := range refs {
			if ctx.Err() != nil {
				return done, errors.Join(append(errs, ctx.Err())...)
			}
			_, err := e.TimeoutResolve(ctx, tr.MarketID, tr.ParticipantID)
			switch {
			case err == nil:
				done++
			case errors.Is(err, domain.ErrTicketResolved), errors.Is(err, domain.ErrTimeoutNotReached),
				errors.Is(err, domain.ErrMarketNotOpen):
			default:
				e.log.Warn("ticket timeout failed", zap.String("market_id", tr.MarketID),
					zap.String("participant", tr.ParticipantID), zap.Error(err))
				errs = append(errs, fmt.Errorf("%s/%s: %w", tr.MarketID, tr.ParticipantID, err))
			}
		}
	}
	return done, errors.Join(errs...)
}
