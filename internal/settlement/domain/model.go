package domain

import (
	"time"

	"github.com/radieske/wager-settlement-engine/internal/settlement/money"
)

// MarketStatus é o estado do ciclo de vida de um mercado.
type MarketStatus string

const (
	StatusOpen      MarketStatus = "OPEN"
	StatusLocked    MarketStatus = "LOCKED"
	StatusRunning   MarketStatus = "RUNNING"
	StatusResolved  MarketStatus = "RESOLVED"
	StatusCancelled MarketStatus = "CANCELLED"
)

// Terminal indica se nenhuma transição é mais possível.
func (s MarketStatus) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// ClaimState acompanha a liquidação de uma entrada do ledger.
type ClaimState string

const (
	Unclaimed ClaimState = "UNCLAIMED"
	Claimed   ClaimState = "CLAIMED"
	Refunded  ClaimState = "REFUNDED"
)

// TicketStatus é o estado de um ticket commit-reveal.
type TicketStatus string

const (
	TicketCommitted TicketStatus = "COMMITTED"
	TicketRevealed  TicketStatus = "REVEALED"
	TicketVerified  TicketStatus = "VERIFIED" // resolvido por resultado MPC
	TicketTimedOut  TicketStatus = "TIMED_OUT"
)

// Resolved indica se o ticket já passou por um dos caminhos de resolução.
func (s TicketStatus) Resolved() bool { return s != TicketCommitted }

// Treasury acumula as taxas da casa. Existe uma única por processo.
type Treasury struct {
	OwnerID             string
	AccumulatedFee      uint64
	LifetimeMarketCount uint64
	LifetimeVolume      uint64
	// Bankroll é liquidez da casa para casar apostas double-or-nothing;
	// nunca se mistura com AccumulatedFee.
	Bankroll  uint64
	UpdatedAt time.Time
}

// OutcomeSlot é um dos resultados possíveis de um mercado.
type OutcomeSlot struct {
	Index            int
	Label            string
	TotalStaked      uint64
	ParticipantCount uint32
}

// Market é o escrow de um evento de aposta (corrida, luta, flip, mão de poker).
type Market struct {
	ID        string
	Game      Game
	CreatorID string
	Slots     []OutcomeSlot
	Status    MarketStatus

	OpenedAt   time.Time
	LockedAt   time.Time
	ResolvedAt time.Time

	WinningSlot   *int
	FeeCharged    uint64
	EscrowBalance uint64
	ResidualSwept bool

	// fight: instrumentos e cotações de abertura/fechamento
	FeedA       string
	FeedB       string
	StartPriceA int64
	StartPriceB int64
	EndPriceA   int64
	EndPriceB   int64

	// poker: commitment do baralho verificado no showdown
	Commitment [32]byte
}

// Clone devolve uma cópia profunda, usada pelos stores para isolar transações.
func (m *Market) Clone() *Market {
	c := *m
	c.Slots = append([]OutcomeSlot(nil), m.Slots...)
	if m.WinningSlot != nil {
		w := *m.WinningSlot
		c.WinningSlot = &w
	}
	return &c
}

// TotalPool soma os stakes de todos os slots.
func (m *Market) TotalPool() (uint64, error) {
	return sumSlots(m.Slots, -1)
}

// Stakes devolve o total apostado por slot, na ordem dos slots.
func (m *Market) Stakes() []uint64 {
	out := make([]uint64, len(m.Slots))
	for i, s := range m.Slots {
		out[i] = s.TotalStaked
	}
	return out
}

// Participants soma participantes de todos os slots.
func (m *Market) Participants() uint32 {
	var n uint32
	for _, s := range m.Slots {
		n += s.ParticipantCount
	}
	return n
}

// Escrow identifica a conta de escrow do mercado no colaborador de fundos.
func (m *Market) Escrow() string { return EscrowAccount(m.ID) }

// EscrowAccount monta o identificador de conta de escrow de um mercado.
func EscrowAccount(marketID string) string { return "escrow:" + marketID }

// Contas fixas da casa no colaborador de fundos.
const (
	TreasuryAccount = "house:treasury"
	BankrollAccount = "house:bankroll"
)

// CommitRevealTicket guarda o compromisso oculto de uma aposta flip.
type CommitRevealTicket struct {
	Commitment [32]byte
	CommitTime time.Time
	Status     TicketStatus
	ResolvedAt time.Time

	Choice     int // revelado; -1 enquanto oculto
	Outcome    int // lado sorteado; -1 enquanto pendente
	PlayerWins bool
	Fee        uint64
	HouseMatch uint64
}

// LedgerEntry é a aposta de um participante em um mercado.
type LedgerEntry struct {
	MarketID      string
	ParticipantID string
	Slot          int // -1 em jogos commit-reveal
	Amount        uint64
	ClaimState    ClaimState
	Payout        uint64
	CreatedAt     time.Time
	SettledAt     time.Time

	Ticket *CommitRevealTicket
}

// Clone devolve uma cópia profunda.
func (e *LedgerEntry) Clone() *LedgerEntry {
	c := *e
	if e.Ticket != nil {
		t := *e.Ticket
		c.Ticket = &t
	}
	return &c
}

// Outcome é o resultado entregue por um verificador externo (MPC).
type Outcome struct {
	Slot       int
	PlayerWins bool
}

// Quote é uma cotação de instrumento (preço em inteiros com escala fixa).
type Quote struct {
	FeedID      string
	Price       int64
	PublishedAt time.Time
}

func sumSlots(slots []OutcomeSlot, skip int) (uint64, error) {
	var total uint64
	for _, s := range slots {
		if s.Index == skip {
			continue
		}
		var err error
		if total, err = money.Add(total, s.TotalStaked); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// LosingPool soma os slots que não venceram.
func (m *Market) LosingPool(winner int) (uint64, error) {
	return sumSlots(m.Slots, winner)
}
