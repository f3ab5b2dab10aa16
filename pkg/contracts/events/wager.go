package events

import "time"

// Evento publicado no tópico "wager_placed" após o commit da aposta.
type WagerPlaced struct {
	MarketID      string    `json:"market_id"`
	Game          string    `json:"game"`
	ParticipantID string    `json:"participant_id"`
	Slot          int       `json:"slot"` // -1 para commit-reveal
	AmountLamport uint64    `json:"amount_lamports"`
	Ts            time.Time `json:"ts"`
}

// WagerSettled cobre claims, refunds e tickets resolvidos.
type WagerSettled struct {
	MarketID      string    `json:"market_id"`
	Game          string    `json:"game"`
	ParticipantID string    `json:"participant_id"`
	Kind          string    `json:"kind"` // "CLAIMED" | "REFUNDED" | "REVEALED" | "VERIFIED" | "TIMED_OUT"
	AmountLamport uint64    `json:"amount_lamports"`
	PlayerWins    bool      `json:"player_wins,omitempty"`
	Ts            time.Time `json:"ts"`
}
