package dto

import (
	"encoding/hex"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/wager-settlement-engine/internal/settlement/domain"
)

// LamportsPerSOL é a escala de exibição dos valores.
const LamportsPerSOL = 9

// Amount mostra um valor em lamports e em SOL.
type Amount struct {
	Lamports uint64 `json:"lamports"`
	SOL      string `json:"sol"`
}

func NewAmount(l uint64) Amount {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(l), -LamportsPerSOL)
	return Amount{Lamports: l, SOL: d.String()}
}

type TreasuryResponse struct {
	OwnerID             string    `json:"owner_id"`
	AccumulatedFee      Amount    `json:"accumulated_fee"`
	LifetimeMarketCount uint64    `json:"lifetime_market_count"`
	LifetimeVolume      Amount    `json:"lifetime_volume"`
	Bankroll            Amount    `json:"bankroll"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func NewTreasury(t *domain.Treasury) TreasuryResponse {
	return TreasuryResponse{
		OwnerID:             t.OwnerID,
		AccumulatedFee:      NewAmount(t.AccumulatedFee),
		LifetimeMarketCount: t.LifetimeMarketCount,
		LifetimeVolume:      NewAmount(t.LifetimeVolume),
		Bankroll:            NewAmount(t.Bankroll),
		UpdatedAt:           t.UpdatedAt,
	}
}

type SlotResponse struct {
	Index        int    `json:"index"`
	Label        string `json:"label"`
	TotalStaked  Amount `json:"total_staked"`
	Participants uint32 `json:"participants"`
}

type MarketResponse struct {
	ID            string         `json:"id"`
	Game          string         `json:"game"`
	CreatorID     string         `json:"creator_id"`
	Status        string         `json:"status"`
	Slots         []SlotResponse `json:"slots"`
	TotalPool     Amount         `json:"total_pool"`
	WinningSlot   *int           `json:"winning_slot,omitempty"`
	FeeCharged    Amount         `json:"fee_charged"`
	EscrowBalance Amount         `json:"escrow_balance"`
	ResidualSwept bool           `json:"residual_swept"`
	OpenedAt      time.Time      `json:"opened_at"`
	LockedAt      *time.Time     `json:"locked_at,omitempty"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`

	FeedA       string `json:"feed_a,omitempty"`
	FeedB       string `json:"feed_b,omitempty"`
	StartPriceA int64  `json:"start_price_a,omitempty"`
	StartPriceB int64  `json:"start_price_b,omitempty"`
	EndPriceA   int64  `json:"end_price_a,omitempty"`
	EndPriceB   int64  `json:"end_price_b,omitempty"`
	Commitment  string `json:"commitment,omitempty"`
}

func NewMarket(m *domain.Market) MarketResponse {
	out := MarketResponse{
		ID:            m.ID,
		Game:          string(m.Game),
		CreatorID:     m.CreatorID,
		Status:        string(m.Status),
		WinningSlot:   m.WinningSlot,
		FeeCharged:    NewAmount(m.FeeCharged),
		EscrowBalance: NewAmount(m.EscrowBalance),
		ResidualSwept: m.ResidualSwept,
		OpenedAt:      m.OpenedAt,
		LockedAt:      optTime(m.LockedAt),
		ResolvedAt:    optTime(m.ResolvedAt),
		FeedA:         m.FeedA,
		FeedB:         m.FeedB,
		StartPriceA:   m.StartPriceA,
		StartPriceB:   m.StartPriceB,
		EndPriceA:     m.EndPriceA,
		EndPriceB:     m.EndPriceB,
	}
	// pool inválido (overflow) não acontece com stakes aceitos; exibe 0 nesse caso
	pool, _ := m.TotalPool()
	out.TotalPool = NewAmount(pool)
	for _, s := range m.Slots {
		out.Slots = append(out.Slots, SlotResponse{
			Index: s.Index, Label: s.Label, TotalStaked: NewAmount(s.TotalStaked), Participants: s.ParticipantCount,
		})
	}
	if m.Commitment != ([32]byte{}) {
		out.Commitment = hex.EncodeToString(m.Commitment[:])
	}
	return out
}

type TicketResponse struct {
	Commitment string     `json:"commitment"`
	CommitTime time.Time  `json:"commit_time"`
	Status     string     `json:"status"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Choice     *int       `json:"choice,omitempty"`
	Outcome    *int       `json:"outcome,omitempty"`
	PlayerWins bool       `json:"player_wins"`
	Fee        Amount     `json:"fee"`
	HouseMatch Amount     `json:"house_match"`
}

type WagerResponse struct {
	MarketID      string          `json:"market_id"`
	ParticipantID string          `json:"participant_id"`
	Slot          int             `json:"slot"`
	Amount        Amount          `json:"amount"`
	ClaimState    string          `json:"claim_state"`
	Payout        Amount          `json:"payout"`
	CreatedAt     time.Time       `json:"created_at"`
	SettledAt     *time.Time      `json:"settled_at,omitempty"`
	Ticket        *TicketResponse `json:"ticket,omitempty"`
}

func NewWager(e *domain.LedgerEntry) WagerResponse {
	out := WagerResponse{
		MarketID:      e.MarketID,
		ParticipantID: e.ParticipantID,
		Slot:          e.Slot,
		Amount:        NewAmount(e.Amount),
		ClaimState:    string(e.ClaimState),
		Payout:        NewAmount(e.Payout),
		CreatedAt:     e.CreatedAt,
		SettledAt:     optTime(e.SettledAt),
	}
	if t := e.Ticket; t != nil {
		tr := &TicketResponse{
			Commitment: hex.EncodeToString(t.Commitment[:]),
			CommitTime: t.CommitTime,
			Status:     string(t.Status),
			ResolvedAt: optTime(t.ResolvedAt),
			PlayerWins: t.PlayerWins,
			Fee:        NewAmount(t.Fee),
			HouseMatch: NewAmount(t.HouseMatch),
		}
		// choice/outcome ficam ocultos enquanto valem -1
		if t.Choice >= 0 {
			c := t.Choice
			tr.Choice = &c
		}
		if t.Outcome >= 0 {
			o := t.Outcome
			tr.Outcome = &o
		}
		out.Ticket = tr
	}
	return out
}

func NewWagers(es []*domain.LedgerEntry) []WagerResponse {
	out := make([]WagerResponse, 0, len(es))
	for _, e := range es {
		out = append(out, NewWager(e))
	}
	return out
}

type SweepResponse struct {
	MarketID string `json:"market_id"`
	Residual Amount `json:"residual"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
