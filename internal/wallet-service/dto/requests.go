package dto

// ServiceTokenHeader carrega o segredo interno exigido em deposit e transfer.
const ServiceTokenHeader = "X-Service-Token"

type DepositRequest struct {
	OwnerID     string `json:"owner_id"`
	Amount      int64  `json:"amount_lamports"`
	ExternalRef string `json:"external_ref,omitempty"` // opcional p/ idempotência simples
}

// TransferRequest move lamports entre duas carteiras (participante, escrow ou casa).
type TransferRequest struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      int64  `json:"amount_lamports"`
	ExternalRef string `json:"external_ref"` // ex: claim:<market>:<participant>#<tentativa>
}
