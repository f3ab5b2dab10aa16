// Package repo implementa engine.Store em Postgres. Cada unidade de trabalho é
// uma transação; mercado e tesouraria são travados com SELECT ... FOR UPDATE.
package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
	"github.com/radieske/wager-settlement-engine/internal/settlement/engine"
	"github.com/radieske/wager-settlement-engine/internal/settlement/money"
)

// Postgres implementa engine.Store
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// queryer cobre *sql.DB e *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Atomic abre uma transação, executa fn e faz commit. Qualquer erro desfaz tudo.
func (p *Postgres) Atomic(ctx context.Context, fn func(tx engine.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&pgTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) Treasury(ctx context.Context) (*domain.Treasury, error) {
	return selectTreasury(ctx, p.db, "")
}

func (p *Postgres) Market(ctx context.Context, id string) (*domain.Market, error) {
	return selectMarket(ctx, p.db, id, "")
}

func (p *Postgres) Entry(ctx context.Context, marketID, participant string) (*domain.LedgerEntry, error) {
	return selectEntry(ctx, p.db, marketID, participant)
}

func (p *Postgres) Entries(ctx context.Context, marketID string) ([]*domain.LedgerEntry, error) {
	if _, err := selectMarket(ctx, p.db, marketID, ""); err != nil {
		return nil, err
	}
	return selectEntries(ctx, p.db, marketID)
}

// ExpiredTickets usa o índice parcial de tickets COMMITTED.
func (p *Postgres) ExpiredTickets(ctx context.Context, game domain.Game, before time.Time) ([]engine.TicketRef, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT e.market_id, e.participant_id, e.ticket_commit_time
		FROM ledger_entries e
		JOIN markets m ON m.id = e.market_id
		WHERE m.game = $1 AND e.ticket_status = 'COMMITTED' AND e.ticket_commit_time <= $2
		ORDER BY e.ticket_commit_time`, string(game), before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.TicketRef
	for rows.Next() {
		var r engine.TicketRef
		if err := rows.Scan(&r.MarketID, &r.ParticipantID, &r.CommitTime); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// pgTx é a visão transacional; o contexto da unidade vale para todas as queries.
type pgTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *pgTx) Treasury() (*domain.Treasury, error) {
	return selectTreasury(t.ctx, t.tx, "FOR UPDATE")
}

func (t *pgTx) CreateTreasury(tr *domain.Treasury) error {
	var e enc
	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO treasury (id, owner_id, accumulated_fee, lifetime_market_count, lifetime_volume, bankroll, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		tr.OwnerID, e.i(tr.AccumulatedFee), e.i(tr.LifetimeMarketCount), e.i(tr.LifetimeVolume), e.i(tr.Bankroll), tr.UpdatedAt)
	if e.err != nil {
		return e.err
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrTreasuryExists
	}
	return nil
}

func (t *pgTx) SaveTreasury(tr *domain.Treasury) error {
	var e enc
	args := []any{e.i(tr.AccumulatedFee), e.i(tr.LifetimeMarketCount), e.i(tr.LifetimeVolume), e.i(tr.Bankroll), tr.UpdatedAt}
	if e.err != nil {
		return e.err
	}
	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE treasury
		SET accumulated_fee = $1, lifetime_market_count = $2, lifetime_volume = $3, bankroll = $4,
		    updated_at = $5, version = version + 1
		WHERE id = 1`, args...)
	return err
}

func (t *pgTx) Market(id string) (*domain.Market, error) {
	return selectMarket(t.ctx, t.tx, id, "FOR UPDATE")
}

func (t *pgTx) CreateMarket(m *domain.Market) error {
	args, err := marketArgs(m)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO markets (id, game, creator_id, status, slots, opened_at, locked_at, resolved_at,
		    winning_slot, fee_charged, escrow_balance, residual_swept, feed_a, feed_b,
		    start_price_a, start_price_b, end_price_a, end_price_b, commitment)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`, args...)
	return err
}

func (t *pgTx) SaveMarket(m *domain.Market) error {
	args, err := marketArgs(m)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, `
		UPDATE markets SET game=$2, creator_id=$3, status=$4, slots=$5, opened_at=$6, locked_at=$7,
		    resolved_at=$8, winning_slot=$9, fee_charged=$10, escrow_balance=$11, residual_swept=$12,
		    feed_a=$13, feed_b=$14, start_price_a=$15, start_price_b=$16, end_price_a=$17,
		    end_price_b=$18, commitment=$19, version = version + 1
		WHERE id=$1`, args...)
	return err
}

func (t *pgTx) Entry(marketID, participant string) (*domain.LedgerEntry, error) {
	return selectEntry(t.ctx, t.tx, marketID, participant)
}

func (t *pgTx) Entries(marketID string) ([]*domain.LedgerEntry, error) {
	return selectEntries(t.ctx, t.tx, marketID)
}

func (t *pgTx) CreateEntry(le *domain.LedgerEntry) error {
	args, err := entryArgs(le)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO ledger_entries (market_id, participant_id, slot, amount, claim_state, payout, created_at,
		    settled_at, ticket_commitment, ticket_commit_time, ticket_status, ticket_resolved_at,
		    ticket_choice, ticket_outcome, ticket_player_wins, ticket_fee, ticket_house_match)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`, args...)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		return domain.ErrDuplicateWager
	}
	return err
}

func (t *pgTx) SaveEntry(le *domain.LedgerEntry) error {
	args, err := entryArgs(le)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE ledger_entries SET slot=$3, amount=$4, claim_state=$5, payout=$6, created_at=$7,
		    settled_at=$8, ticket_commitment=$9, ticket_commit_time=$10, ticket_status=$11,
		    ticket_resolved_at=$12, ticket_choice=$13, ticket_outcome=$14, ticket_player_wins=$15,
		    ticket_fee=$16, ticket_house_match=$17
		WHERE market_id=$1 AND participant_id=$2`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// --- leitura ---

const treasuryCols = `owner_id, accumulated_fee, lifetime_market_count, lifetime_volume, bankroll, updated_at`

func selectTreasury(ctx context.Context, q queryer, lock string) (*domain.Treasury, error) {
	var (
		tr                    domain.Treasury
		fee, count, vol, roll int64
	)
	err := q.QueryRowContext(ctx, `SELECT `+treasuryCols+` FROM treasury WHERE id = 1 `+lock).
		Scan(&tr.OwnerID, &fee, &count, &vol, &roll, &tr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTreasuryNotFound
	}
	if err != nil {
		return nil, err
	}
	var d dec
	tr.AccumulatedFee, tr.LifetimeMarketCount = d.u(fee), d.u(count)
	tr.LifetimeVolume, tr.Bankroll = d.u(vol), d.u(roll)
	return &tr, d.err
}

const marketCols = `id, game, creator_id, status, slots, opened_at, locked_at, resolved_at, winning_slot,
	fee_charged, escrow_balance, residual_swept, feed_a, feed_b, start_price_a, start_price_b,
	end_price_a, end_price_b, commitment`

func selectMarket(ctx context.Context, q queryer, id, lock string) (*domain.Market, error) {
	var (
		m                domain.Market
		game, status     string
		slots            []byte
		locked, resolved sql.NullTime
		winning          sql.NullInt64
		fee, escrow      int64
		commitment       []byte
	)
	err := q.QueryRowContext(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1 `+lock, id).Scan(
		&m.ID, &game, &m.CreatorID, &status, &slots, &m.OpenedAt, &locked, &resolved, &winning,
		&fee, &escrow, &m.ResidualSwept, &m.FeedA, &m.FeedB, &m.StartPriceA, &m.StartPriceB,
		&m.EndPriceA, &m.EndPriceB, &commitment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMarketNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Game, m.Status = domain.Game(game), domain.MarketStatus(status)
	if err := json.Unmarshal(slots, &m.Slots); err != nil {
		return nil, fmt.Errorf("decode slots of %s: %w", id, err)
	}
	m.LockedAt, m.ResolvedAt = locked.Time, resolved.Time
	if winning.Valid {
		w := int(winning.Int64)
		m.WinningSlot = &w
	}
	copy(m.Commitment[:], commitment)
	var d dec
	m.FeeCharged, m.EscrowBalance = d.u(fee), d.u(escrow)
	return &m, d.err
}

const entryCols = `market_id, participant_id, slot, amount, claim_state, payout, created_at, settled_at,
	ticket_commitment, ticket_commit_time, ticket_status, ticket_resolved_at, ticket_choice,
	ticket_outcome, ticket_player_wins, ticket_fee, ticket_house_match`

type rowScanner interface{ Scan(dest ...any) error }

func scanEntry(r rowScanner) (*domain.LedgerEntry, error) {
	var (
		le                     domain.LedgerEntry
		claim                  string
		amount, payout         int64
		settled                sql.NullTime
		commitment             []byte
		commitTime, resolvedAt sql.NullTime
		status                 sql.NullString
		choice, outcome        sql.NullInt64
		wins                   sql.NullBool
		fee, match             sql.NullInt64
	)
	err := r.Scan(&le.MarketID, &le.ParticipantID, &le.Slot, &amount, &claim, &payout, &le.CreatedAt,
		&settled, &commitment, &commitTime, &status, &resolvedAt, &choice, &outcome, &wins, &fee, &match)
	if err != nil {
		return nil, err
	}
	var d dec
	le.Amount, le.Payout = d.u(amount), d.u(payout)
	le.ClaimState = domain.ClaimState(claim)
	le.SettledAt = settled.Time
	if status.Valid {
		t := &domain.CommitRevealTicket{
			CommitTime: commitTime.Time,
			Status:     domain.TicketStatus(status.String),
			ResolvedAt: resolvedAt.Time,
			Choice:     int(choice.Int64),
			Outcome:    int(outcome.Int64),
			PlayerWins: wins.Bool,
			Fee:        d.u(fee.Int64),
			HouseMatch: d.u(match.Int64),
		}
		copy(t.Commitment[:], commitment)
		le.Ticket = t
	}
	return &le, d.err
}

func selectEntry(ctx context.Context, q queryer, marketID, participant string) (*domain.LedgerEntry, error) {
	le, err := scanEntry(q.QueryRowContext(ctx,
		`SELECT `+entryCols+` FROM ledger_entries WHERE market_id = $1 AND participant_id = $2`, marketID, participant))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEntryNotFound
	}
	return le, err
}

func selectEntries(ctx context.Context, q queryer, marketID string) ([]*domain.LedgerEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+entryCols+` FROM ledger_entries WHERE market_id = $1 ORDER BY created_at, participant_id`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.LedgerEntry
	for rows.Next() {
		le, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, le)
	}
	return out, rows.Err()
}

// --- escrita ---

func marketArgs(m *domain.Market) ([]any, error) {
	slots, err := json.Marshal(m.Slots)
	if err != nil {
		return nil, err
	}
	var winning sql.NullInt64
	if m.WinningSlot != nil {
		winning = sql.NullInt64{Int64: int64(*m.WinningSlot), Valid: true}
	}
	var commitment []byte
	if m.Commitment != ([32]byte{}) {
		commitment = m.Commitment[:]
	}
	var e enc
	args := []any{
		m.ID, string(m.Game), m.CreatorID, string(m.Status), slots, m.OpenedAt,
		nullTime(m.LockedAt), nullTime(m.ResolvedAt), winning, e.i(m.FeeCharged), e.i(m.EscrowBalance),
		m.ResidualSwept, m.FeedA, m.FeedB, m.StartPriceA, m.StartPriceB, m.EndPriceA, m.EndPriceB, commitment,
	}
	return args, e.err
}

func entryArgs(le *domain.LedgerEntry) ([]any, error) {
	var e enc
	args := []any{
		le.MarketID, le.ParticipantID, le.Slot, e.i(le.Amount), string(le.ClaimState), e.i(le.Payout),
		le.CreatedAt, nullTime(le.SettledAt),
	}
	if t := le.Ticket; t != nil {
		args = append(args, t.Commitment[:], nullTime(t.CommitTime), string(t.Status), nullTime(t.ResolvedAt),
			t.Choice, t.Outcome, t.PlayerWins, e.i(t.Fee), e.i(t.HouseMatch))
	} else {
		args = append(args, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	}
	return args, e.err
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// enc converte lamports para BIGINT guardando o primeiro erro.
type enc struct{ err error }

func (e *enc) i(v uint64) int64 {
	n, err := money.ToInt64(v)
	if err != nil && e.err == nil {
		e.err = err
	}
	return n
}

// dec faz o caminho inverso.
type dec struct{ err error }

func (d *dec) u(v int64) uint64 {
	n, err := money.FromInt64(v)
	if err != nil && d.err == nil {
		d.err = err
	}
	return n
}
