package repo

import (
	"context"
	"database/sql"
	"math"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/engine"
	"github.com/radieske/wager-settlement-engine/internal/settlement/money"
)

func TestMarketArgsNullsAndOverflow(t *testing.T) {
	m := &domain.Market{
		ID: "m1", Game: domain.GameDerby, CreatorID: "alice", Status: domain.StatusOpen,
		Slots:    []domain.OutcomeSlot{{Index: 0, Label: "a"}, {Index: 1, Label: "b"}},
		OpenedAt: time.Unix(100, 0),
	}
	args, err := marketArgs(m)
	require.NoError(t, err)
	require.Len(t, args, 19)
	assert.Equal(t, sql.NullTime{}, args[6])
	assert.Equal(t, sql.NullInt64{}, args[8])
	assert.Nil(t, args[18])

	w := 1
	m.WinningSlot = &w
	m.Commitment = [32]byte{1}
	args, err = marketArgs(m)
	require.NoError(t, err)
	assert.Equal(t, sql.NullInt64{Int64: 1, Valid: true}, args[8])
	assert.Len(t, args[18], 32)

	m.EscrowBalance = math.MaxUint64
	_, err = marketArgs(m)
	assert.ErrorIs(t, err, money.ErrOverflow)
}

func TestEntryArgsTicketColumns(t *testing.T) {
	le := &domain.LedgerEntry{MarketID: "m1", ParticipantID: "bob", Slot: 0, Amount: 10, ClaimState: domain.Unclaimed}
	args, err := entryArgs(le)
	require.NoError(t, err)
	require.Len(t, args, 17)
	for _, a := range args[8:] {
		assert.Nil(t, a)
	}

	le.Slot = -1
	le.Ticket = &domain.CommitRevealTicket{Status: domain.TicketCommitted, CommitTime: time.Unix(5, 0), Choice: -1, Outcome: -1, HouseMatch: 10}
	args, err = entryArgs(le)
	require.NoError(t, err)
	assert.Equal(t, "COMMITTED", args[10])
	assert.Equal(t, sql.NullTime{}, args[11])
	assert.Equal(t, int64(10), args[16])
}

// Integração: roda só com POSTGRES_TEST_DSN apontando para um banco descartável.
func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN não definido")
	}
	ctx := context.Background()
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(ctx, db))

	p := NewPostgres(db)
	id := "it-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)

	err = p.Atomic(ctx, func(tx engine.Tx) error {
		if _, err := tx.Treasury(); err == domain.ErrTreasuryNotFound {
			if err := tx.CreateTreasury(&domain.Treasury{OwnerID: "house", UpdatedAt: now}); err != nil {
				return err
			}
		}
		if err := tx.CreateMarket(&domain.Market{
			ID: id, Game: domain.GameFlip, CreatorID: "house", Status: domain.StatusOpen,
			Slots: []domain.OutcomeSlot{{Index: 0, Label: "heads"}, {Index: 1, Label: "tails"}}, OpenedAt: now,
		}); err != nil {
			return err
		}
		return tx.CreateEntry(&domain.LedgerEntry{
			MarketID: id, ParticipantID: "bob", Slot: -1, Amount: 100, ClaimState: domain.Unclaimed, CreatedAt: now,
			Ticket: &domain.CommitRevealTicket{Status: domain.TicketCommitted, CommitTime: now, Choice: -1, Outcome: -1, HouseMatch: 100},
		})
	})
	require.NoError(t, err)

	err = p.Atomic(ctx, func(tx engine.Tx) error {
		return tx.CreateEntry(&domain.LedgerEntry{MarketID: id, ParticipantID: "bob", Slot: -1, Amount: 1, ClaimState: domain.Unclaimed, CreatedAt: now})
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateWager)

	le, err := p.Entry(ctx, id, "bob")
	require.NoError(t, err)
	require.NotNil(t, le.Ticket)
	assert.Equal(t, domain.TicketCommitted, le.Ticket.Status)
	assert.Equal(t, uint64(100), le.Ticket.HouseMatch)

	refs, err := p.ExpiredTickets(ctx, domain.GameFlip, now.Add(time.Second))
	require.NoError(t, err)
	var found bool
	for _, r := range refs {
		found = found || r.MarketID == id
	}
	assert.True(t, found)

	_, err = p.Market(ctx, "missing-"+id)
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)
}
