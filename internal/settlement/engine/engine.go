// Package engine implementa a liquidação compartilhada pelos jogos: ledger de
// apostas, máquina de estados do mercado, cálculo de payouts e tesouraria.
//
// Toda operação mutável roda dentro de Store.Atomic. A transferência de fundos é
// sempre o último passo da unidade de trabalho: se falhar, nada é gravado.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/resolver"
)

// Transfer move lamports entre duas contas do colaborador de fundos.
// Ref é única por movimento e torna a transferência idempotente do outro lado.
type Transfer struct {
	From   string
	To     string
	Amount uint64
	Ref    string
}

// Funds é o ledger externo que realmente guarda os saldos.
type Funds interface {
	Transfer(ctx context.Context, t Transfer) error
}

// Clock permite fixar o tempo nos testes.
type Clock interface {
	Now() time.Time
}

// SystemClock usa o relógio do sistema, em UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Publisher publica eventos já confirmados. Falhas são apenas logadas.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, v any) error
}

// Hooks são callbacks de métricas, todos opcionais.
type Hooks struct {
	OnWagerPlaced    func(game domain.Game, amount uint64)
	OnMarketResolved func(game domain.Game, fee uint64)
	OnClaimed        func(game domain.Game, payout uint64)
	OnRefunded       func(game domain.Game, amount uint64)
	OnTicketResolved func(game domain.Game, status domain.TicketStatus)
	OnError          func(op string) // por operação
}

// Deps reúne os colaboradores do engine.
type Deps struct {
	Store     Store
	Funds     Funds
	Clock     Clock
	Seeds     resolver.RandomSource
	Prices    resolver.PriceFeed
	Verifier  resolver.Verifier
	Rules     domain.RuleBook
	Log       *zap.Logger
	Publisher Publisher
	Hooks     Hooks
}

// Engine é seguro para uso concorrente; a serialização fica a cargo do Store.
type Engine struct {
	store     Store
	funds     Funds
	clock     Clock
	seeds     resolver.RandomSource
	prices    resolver.PriceFeed
	verifier  resolver.Verifier
	resolvers resolver.Set
	rules     domain.RuleBook
	log       *zap.Logger
	publ      Publisher
	hooks     Hooks
}

// New valida as dependências e monta o engine.
func New(d Deps) (*Engine, error) {
	if d.Store == nil || d.Funds == nil {
		return nil, errors.New("engine: store and funds are required")
	}
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Rules == nil {
		d.Rules = domain.DefaultRules()
	}
	for g, r := range d.Rules {
		r.Game = g
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Engine{
		store:     d.Store,
		funds:     d.Funds,
		clock:     d.Clock,
		seeds:     d.Seeds,
		prices:    d.Prices,
		verifier:  d.Verifier,
		resolvers: resolver.NewSet(d.Seeds, d.Prices, d.Verifier),
		rules:     d.Rules,
		log:       d.Log,
		publ:      d.Publisher,
		hooks:     d.Hooks,
	}, nil
}

// run executa fn numa unidade de trabalho e, no fim dela, as transferências que
// fn devolveu. Se uma transferência falhar, as anteriores são estornadas e a
// unidade é desfeita. Se o commit falhar depois das transferências, todas são
// estornadas. Cada tentativa ganha um sufixo próprio nas refs, então repetir a
// operação depois de uma falha nunca colide com a tentativa anterior.
func (e *Engine) run(ctx context.Context, op string, fn func(tx Tx) ([]Transfer, error)) error {
	var moved []Transfer
	attempt := uuid.NewString()[:8]
	err := e.store.Atomic(ctx, func(tx Tx) error {
		moved = nil
		transfers, err := fn(tx)
		if err != nil {
			return err
		}
		for _, t := range transfers {
			if t.Amount == 0 {
				continue
			}
			t.Ref += "#" + attempt
			if err := e.funds.Transfer(ctx, t); err != nil {
				e.compensate(ctx, op, moved)
				moved = nil
				return fmt.Errorf("transfer %s: %w", t.Ref, err)
			}
			moved = append(moved, t)
		}
		return nil
	})
	if err != nil {
		if len(moved) > 0 {
			e.compensate(ctx, op, moved)
		}
		e.log.Debug("operation rejected", zap.String("op", op), zap.Error(err))
		if e.hooks.OnError != nil {
			e.hooks.OnError(op)
		}
		return err
	}
	return nil
}

func (e *Engine) compensate(ctx context.Context, op string, moved []Transfer) {
	for i := len(moved) - 1; i >= 0; i-- {
		t := moved[i]
		back := Transfer{From: t.To, To: t.From, Amount: t.Amount, Ref: "compensate:" + t.Ref}
		if err := e.funds.Transfer(ctx, back); err != nil {
			// saldo divergente entre engine e ledger externo: precisa de ação manual
			e.log.Error("compensating transfer failed",
				zap.String("op", op), zap.String("ref", back.Ref),
				zap.String("from", back.From), zap.String("to", back.To),
				zap.Uint64("amount", back.Amount), zap.Error(err))
			continue
		}
		e.log.Warn("transfer compensated", zap.String("op", op), zap.String("ref", back.Ref))
	}
}

func (e *Engine) publish(ctx context.Context, topic, key string, v any) {
	if e.publ == nil {
		return
	}
	if err := e.publ.Publish(ctx, topic, key, v); err != nil {
		e.log.Warn("event publish failed", zap.String("topic", topic), zap.String("key", key), zap.Error(err))
	}
}

func (e *Engine) rulesFor(g domain.Game) (domain.Rules, error) {
	return e.rules.Lookup(g)
}

// Rules expõe as regras efetivas de um jogo (útil para a API).
func (e *Engine) Rules(g domain.Game) (domain.Rules, error) { return e.rulesFor(g) }

// Market devolve um snapshot do mercado.
func (e *Engine) Market(ctx context.Context, id string) (*domain.Market, error) {
	return e.store.Market(ctx, id)
}

// Entry devolve um snapshot da aposta de um participante.
func (e *Engine) Entry(ctx context.Context, marketID, participant string) (*domain.LedgerEntry, error) {
	return e.store.Entry(ctx, marketID, participant)
}

// Entries lista as apostas de um mercado.
func (e *Engine) Entries(ctx context.Context, marketID string) ([]*domain.LedgerEntry, error) {
	return e.store.Entries(ctx, marketID)
}

func ref(kind, marketID, participant string) string {
	if participant == "" {
		return kind + ":" + marketID
	}
	return kind + ":" + marketID + ":" + participant
}
