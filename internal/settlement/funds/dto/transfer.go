package dto

// ServiceTokenHeader é o header em que o wallet-service espera o token interno.
const ServiceTokenHeader = "X-Service-Token"

// TransferRequest representa o payload de transferência do wallet-service.
type TransferRequest struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      int64  `json:"amount_lamports"`
	ExternalRef string `json:"external_ref"` // idempotência por referência
}

// TransferResponse representa a resposta do endpoint de transferência.
type TransferResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"` // "DONE" | "DUPLICATE"
}
