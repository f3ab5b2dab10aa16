package engine

import (
	"context"
	"time"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
)

// Store persiste tesouraria, mercados e apostas.
//
// As leituras fora de Atomic devolvem snapshots sem lock. Atomic executa fn numa
// unidade de trabalho: tudo que fn gravar é confirmado junto, ou nada é se fn
// devolver erro.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	Treasury(ctx context.Context) (*domain.Treasury, error)
	Market(ctx context.Context, id string) (*domain.Market, error)
	Entry(ctx context.Context, marketID, participant string) (*domain.LedgerEntry, error)
	Entries(ctx context.Context, marketID string) ([]*domain.LedgerEntry, error)

	// ExpiredTickets lista tickets ainda COMMITTED de um jogo com commit antes de before.
	ExpiredTickets(ctx context.Context, game domain.Game, before time.Time) ([]TicketRef, error)
}

// Tx é a visão transacional do Store. Market e Treasury travam o registro até o
// fim da unidade; a ordem de lock é sempre mercado antes de tesouraria.
// Apostas são protegidas pelo lock do seu mercado.
type Tx interface {
	Treasury() (*domain.Treasury, error)
	CreateTreasury(t *domain.Treasury) error
	SaveTreasury(t *domain.Treasury) error

	Market(id string) (*domain.Market, error)
	CreateMarket(m *domain.Market) error
	SaveMarket(m *domain.Market) error

	Entry(marketID, participant string) (*domain.LedgerEntry, error)
	Entries(marketID string) ([]*domain.LedgerEntry, error)
	CreateEntry(e *domain.LedgerEntry) error
	SaveEntry(e *domain.LedgerEntry) error
}

// TicketRef aponta para um ticket commit-reveal.
type TicketRef struct {
	MarketID      string
	ParticipantID string
	CommitTime    time.Time
}
