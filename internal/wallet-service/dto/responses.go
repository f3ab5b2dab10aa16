package dto

type WalletResponse struct {
	OwnerID  string `json:"owner_id"`
	WalletID string `json:"wallet_id"`
	Balance  int64  `json:"balance_lamports"`
}

type TransferResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"` // "DONE" | "DUPLICATE"
}
