package dto

// AttestRequest pede ao dealer simulado um resultado assinado para um commitment.
// Participant vai vazio no showdown de poker.
type AttestRequest struct {
	Commitment  string `json:"commitment"` // hex, 32 bytes
	MarketID    string `json:"market_id"`
	Participant string `json:"participant,omitempty"`
	Slot        int    `json:"slot"`
	PlayerWins  bool   `json:"player_wins"`
}

// AttestResponse carrega a prova pronta para /resolve ou /verified.
type AttestResponse struct {
	Proof []byte `json:"proof"`
}
