// Package funds implementa o colaborador de fundos do engine: um ledger em
// memória e o cliente HTTP do wallet-service.
package funds

import (
	"context"
	"strings"
	"sync"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/engine"
	"github.com/radieske/wager-settlement-engine/internal/settlement/money"
)

// Memory é um ledger de saldos em memória. Transferências com Ref já vista
// são ignoradas.
type Memory struct {
	mu       sync.Mutex
	balances map[string]uint64
	seen     map[string]bool

	// FailOn força erro nas transferências cuja Ref começa com a chave (testes).
	FailOn map[string]error
}

func NewMemory() *Memory {
	return &Memory{balances: map[string]uint64{}, seen: map[string]bool{}}
}

// Deposit credita saldo externo numa conta.
func (m *Memory) Deposit(account string, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] += amount
}

func (m *Memory) Balance(account string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account]
}

// Total soma todos os saldos; a liquidação nunca altera esse valor.
func (m *Memory) Total() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var t uint64
	for _, b := range m.balances {
		t += b
	}
	return t
}

func (m *Memory) Transfer(_ context.Context, t engine.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for prefix, err := range m.FailOn {
		if strings.HasPrefix(t.Ref, prefix) {
			return err
		}
	}
	if m.seen[t.Ref] {
		return nil
	}
	from, err := money.Sub(m.balances[t.From], t.Amount)
	if err != nil {
		return domain.ErrInsufficientFunds
	}
	to, err := money.Add(m.balances[t.To], t.Amount)
	if err != nil {
		return err
	}
	m.balances[t.From], m.balances[t.To] = from, to
	m.seen[t.Ref] = true
	return nil
}
