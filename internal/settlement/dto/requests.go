package dto

type InitTreasuryRequest struct {
	Owner string `json:"owner"`
}

// HouseFundsRequest serve para saque de taxas e movimentação de bankroll.
type HouseFundsRequest struct {
	Caller   string `json:"caller"`
	Lamports uint64 `json:"amount_lamports"`
}

type CreateMarketRequest struct {
	Game       string   `json:"game"` // derby | fight | flip | poker
	Creator    string   `json:"creator"`
	Labels     []string `json:"labels,omitempty"`
	FeedA      string   `json:"feed_a,omitempty"`
	FeedB      string   `json:"feed_b,omitempty"`
	Commitment string   `json:"commitment,omitempty"` // hex, 32 bytes (poker)
}

type CallerRequest struct {
	Caller string `json:"caller"`
}

type PlaceWagerRequest struct {
	Participant string `json:"participant"`
	Slot        int    `json:"slot"`
	Lamports    uint64 `json:"amount_lamports"`
	Commitment  string `json:"commitment,omitempty"` // hex, só em flip
}

type RevealRequest struct {
	Choice uint8  `json:"choice"` // 0 = heads, 1 = tails
	Nonce  uint64 `json:"nonce"`
}

// ProofRequest carrega o atestado MPC; []byte trafega em base64.
type ProofRequest struct {
	Proof []byte `json:"proof"`
}
