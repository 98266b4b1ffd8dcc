package dto

// CreateTransferRequest is the request body for starting a private transfer.
// Amounts are in base units.
type CreateTransferRequest struct {
	RequesterID   int64  `json:"requester_id" binding:"required,gt=0"`
	RequesterName string `json:"requester_name" binding:"max=64"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	Recipient     string `json:"recipient" binding:"required,max=128"`
}

// CreateTransferResponse is the quote returned on transfer creation. The
// requester funds DepositAddress with Amount; the recipient receives
// RecipientGets once the transfer completes.
type CreateTransferResponse struct {
	TransferID     string `json:"transfer_id"`
	DepositAddress string `json:"deposit_address"`
	Amount         int64  `json:"amount"`
	Fee            int64  `json:"fee"`
	RecipientGets  int64  `json:"recipient_gets"`
}

// TransferStatusResponse is the public view of a transfer. The deposit
// secret is never part of it.
type TransferStatusResponse struct {
	TransferID     string  `json:"transfer_id"`
	Status         string  `json:"status"`
	Amount         int64   `json:"amount"`
	Recipient      string  `json:"recipient"`
	DepositAddress string  `json:"deposit_address"`
	DepositTx      *string `json:"deposit_tx,omitempty"`
	WithdrawTx     *string `json:"withdraw_tx,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}
