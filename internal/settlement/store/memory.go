// Package store tem a implementação em memória do engine.Store, usada nos
// testes e no modo local do settlement-service.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/engine"
)

// Memory guarda tudo em mapas. Cada mercado e a tesouraria têm um lock próprio,
// mantido do primeiro acesso transacional até o fim da unidade de trabalho.
type Memory struct {
	mu       sync.RWMutex // protege os mapas e os valores confirmados
	treasury *domain.Treasury
	tLock    chan struct{}
	markets  map[string]*marketRec
}

type marketRec struct {
	lock    chan struct{}
	market  *domain.Market
	entries map[string]*domain.LedgerEntry
}

func NewMemory() *Memory {
	return &Memory{
		tLock:   make(chan struct{}, 1),
		markets: map[string]*marketRec{},
	}
}

func acquire(ctx context.Context, l chan struct{}) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Atomic executa fn com escrita bufferizada; nada é visível fora antes do commit.
func (s *Memory) Atomic(ctx context.Context, fn func(tx engine.Tx) error) error {
	tx := &memTx{
		ctx:     ctx,
		s:       s,
		markets: map[string]*domain.Market{},
		entries: map[entryKey]*domain.LedgerEntry{},
	}
	defer tx.release()
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *Memory) Treasury(_ context.Context) (*domain.Treasury, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.treasury == nil {
		return nil, domain.ErrTreasuryNotFound
	}
	t := *s.treasury
	return &t, nil
}

func (s *Memory) Market(_ context.Context, id string) (*domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.markets[id]
	if !ok {
		return nil, domain.ErrMarketNotFound
	}
	return rec.market.Clone(), nil
}

func (s *Memory) Entry(_ context.Context, marketID, participant string) (*domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.markets[marketID]
	if !ok {
		return nil, domain.ErrMarketNotFound
	}
	e, ok := rec.entries[participant]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return e.Clone(), nil
}

func (s *Memory) Entries(_ context.Context, marketID string) ([]*domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.markets[marketID]
	if !ok {
		return nil, domain.ErrMarketNotFound
	}
	return sortedEntries(rec.entries), nil
}

func (s *Memory) ExpiredTickets(_ context.Context, game domain.Game, before time.Time) ([]engine.TicketRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []engine.TicketRef
	for id, rec := range s.markets {
		if rec.market.Game != game {
			continue
		}
		for p, e := range rec.entries {
			t := e.Ticket
			if t == nil || t.Status != domain.TicketCommitted || t.CommitTime.After(before) {
				continue
			}
			out = append(out, engine.TicketRef{MarketID: id, ParticipantID: p, CommitTime: t.CommitTime})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CommitTime.Before(out[j].CommitTime) })
	return out, nil
}

func sortedEntries(m map[string]*domain.LedgerEntry) []*domain.LedgerEntry {
	out := make([]*domain.LedgerEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ParticipantID < out[j].ParticipantID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

type entryKey struct{ market, participant string }

type memTx struct {
	ctx context.Context
	s   *Memory

	held []chan struct{}

	treasury      *domain.Treasury
	treasuryHeld  bool
	treasuryDirty bool

	markets map[string]*domain.Market // travados nesta unidade
	dirty   []string
	entries map[entryKey]*domain.LedgerEntry
	touched []entryKey
}

func (tx *memTx) release() {
	for i := len(tx.held) - 1; i >= 0; i-- {
		<-tx.held[i]
	}
	tx.held = nil
}

func (tx *memTx) lockTreasury() error {
	if tx.treasuryHeld {
		return nil
	}
	if err := acquire(tx.ctx, tx.s.tLock); err != nil {
		return err
	}
	tx.held = append(tx.held, tx.s.tLock)
	tx.treasuryHeld = true
	return nil
}

func (tx *memTx) Treasury() (*domain.Treasury, error) {
	if err := tx.lockTreasury(); err != nil {
		return nil, err
	}
	if tx.treasury == nil {
		tx.s.mu.RLock()
		cur := tx.s.treasury
		tx.s.mu.RUnlock()
		if cur == nil {
			return nil, domain.ErrTreasuryNotFound
		}
		t := *cur
		tx.treasury = &t
	}
	return tx.treasury, nil
}

func (tx *memTx) CreateTreasury(t *domain.Treasury) error {
	if err := tx.lockTreasury(); err != nil {
		return err
	}
	tx.s.mu.RLock()
	exists := tx.s.treasury != nil
	tx.s.mu.RUnlock()
	if exists || tx.treasury != nil {
		return domain.ErrTreasuryExists
	}
	c := *t
	tx.treasury = &c
	tx.treasuryDirty = true
	return nil
}

func (tx *memTx) SaveTreasury(t *domain.Treasury) error {
	if !tx.treasuryHeld || tx.treasury == nil {
		return fmt.Errorf("memory store: treasury saved without lock")
	}
	c := *t
	tx.treasury = &c
	tx.treasuryDirty = true
	return nil
}

func (tx *memTx) Market(id string) (*domain.Market, error) {
	if m, ok := tx.markets[id]; ok {
		return m, nil
	}
	tx.s.mu.RLock()
	rec, ok := tx.s.markets[id]
	tx.s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrMarketNotFound
	}
	if err := acquire(tx.ctx, rec.lock); err != nil {
		return nil, err
	}
	tx.held = append(tx.held, rec.lock)

	tx.s.mu.RLock()
	m := rec.market.Clone()
	tx.s.mu.RUnlock()
	tx.markets[id] = m
	return m, nil
}

func (tx *memTx) CreateMarket(m *domain.Market) error {
	tx.s.mu.RLock()
	_, exists := tx.s.markets[m.ID]
	tx.s.mu.RUnlock()
	if exists || tx.markets[m.ID] != nil {
		return fmt.Errorf("memory store: market %s already exists", m.ID)
	}
	tx.markets[m.ID] = m.Clone()
	tx.dirty = append(tx.dirty, m.ID)
	return nil
}

func (tx *memTx) SaveMarket(m *domain.Market) error {
	if _, ok := tx.markets[m.ID]; !ok {
		return fmt.Errorf("memory store: market %s saved without lock", m.ID)
	}
	tx.markets[m.ID] = m.Clone()
	tx.dirty = append(tx.dirty, m.ID)
	return nil
}

func (tx *memTx) Entry(marketID, participant string) (*domain.LedgerEntry, error) {
	k := entryKey{marketID, participant}
	if e, ok := tx.entries[k]; ok {
		return e.Clone(), nil
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	rec, ok := tx.s.markets[marketID]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	e, ok := rec.entries[participant]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return e.Clone(), nil
}

func (tx *memTx) Entries(marketID string) ([]*domain.LedgerEntry, error) {
	merged := map[string]*domain.LedgerEntry{}
	tx.s.mu.RLock()
	if rec, ok := tx.s.markets[marketID]; ok {
		for p, e := range rec.entries {
			merged[p] = e
		}
	}
	tx.s.mu.RUnlock()
	for k, e := range tx.entries {
		if k.market == marketID {
			merged[k.participant] = e
		}
	}
	return sortedEntries(merged), nil
}

func (tx *memTx) CreateEntry(e *domain.LedgerEntry) error {
	if _, err := tx.Entry(e.MarketID, e.ParticipantID); err == nil {
		return domain.ErrDuplicateWager
	}
	k := entryKey{e.MarketID, e.ParticipantID}
	tx.entries[k] = e.Clone()
	tx.touched = append(tx.touched, k)
	return nil
}

func (tx *memTx) SaveEntry(e *domain.LedgerEntry) error {
	k := entryKey{e.MarketID, e.ParticipantID}
	if _, err := tx.Entry(e.MarketID, e.ParticipantID); err != nil {
		return err
	}
	tx.entries[k] = e.Clone()
	tx.touched = append(tx.touched, k)
	return nil
}

func (tx *memTx) commit() {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.treasuryDirty {
		t := *tx.treasury
		s.treasury = &t
	}
	for _, id := range tx.dirty {
		m := tx.markets[id]
		rec, ok := s.markets[id]
		if !ok {
			rec = &marketRec{lock: make(chan struct{}, 1), entries: map[string]*domain.LedgerEntry{}}
			s.markets[id] = rec
		}
		rec.market = m.Clone()
	}
	for _, k := range tx.touched {
		rec, ok := s.markets[k.market]
		if !ok {
			continue
		}
		rec.entries[k.participant] = tx.entries[k].Clone()
	}
}
