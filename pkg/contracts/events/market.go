package events

import "time"

// Evento publicado no tópico "market_resolved"
type MarketResolved struct {
	MarketID      string    `json:"market_id"`
	Game          string    `json:"game"`
	Status        string    `json:"status"` // "RESOLVED" | "CANCELLED"
	WinningSlot   *int      `json:"winning_slot,omitempty"`
	TotalPool     uint64    `json:"total_pool_lamports"`
	FeeCharged    uint64    `json:"fee_lamports"`
	ResolvedAt    time.Time `json:"resolved_at"`
	ResidualSwept uint64    `json:"residual_swept_lamports,omitempty"`
}

// TreasuryMoved registra movimentações do dono da casa (saques, bankroll).
type TreasuryMoved struct {
	OwnerID       string    `json:"owner_id"`
	Kind          string    `json:"kind"` // "WITHDRAW_FEES" | "FUND_BANKROLL" | "WITHDRAW_BANKROLL"
	AmountLamport uint64    `json:"amount_lamports"`
	Ts            time.Time `json:"ts"`
}
