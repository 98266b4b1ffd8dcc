package domain

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// UnitsPerCoin is the number of base units in one native coin.
// All amounts in this system are carried as int64 base units.
const UnitsPerCoin int64 = 1_000_000_000

// TransferStatus represents the lifecycle state of a private transfer.
type TransferStatus string

const (
	TransferStatusPending     TransferStatus = "pending"
	TransferStatusDeposited   TransferStatus = "deposited"
	TransferStatusShielding   TransferStatus = "shielding"
	TransferStatusWithdrawing TransferStatus = "withdrawing"
	TransferStatusComplete    TransferStatus = "complete"
	TransferStatusFailed      TransferStatus = "failed"
	TransferStatusExpired     TransferStatus = "expired"
	// TransferStatusRefunded is set only by the operator refund tool,
	// never by the watcher or the executor.
	TransferStatusRefunded TransferStatus = "refunded"
)

// Transfer is the unit of work: one requested private send, from deposit
// detection through shielding to final payout.
type Transfer struct {
	ID             string         `json:"id"`
	RequesterID    int64          `json:"requester_id"`
	RequesterName  string         `json:"requester_name"`
	Amount         int64          `json:"amount"` // Requested gross amount, base units
	Recipient      string         `json:"recipient"`
	DepositAddress string         `json:"deposit_address"`
	DepositSecret  string         `json:"-"` // Single-use signing key, never exposed
	Status         TransferStatus `json:"status"`
	DepositTx      *string        `json:"deposit_tx,omitempty"`  // Sweep transaction ref
	WithdrawTx     *string        `json:"withdraw_tx,omitempty"` // Final payout transaction ref
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsTerminal returns true if no further automated transition can occur.
func (t *Transfer) IsTerminal() bool {
	switch t.Status {
	case TransferStatusComplete, TransferStatusFailed, TransferStatusExpired, TransferStatusRefunded:
		return true
	}
	return false
}

// forwardTransitions is the directed lifecycle graph. Refunded is excluded:
// it is an operator action on an already-terminal transfer.
var forwardTransitions = map[TransferStatus][]TransferStatus{
	TransferStatusPending:     {TransferStatusDeposited, TransferStatusExpired},
	TransferStatusDeposited:   {TransferStatusShielding},
	TransferStatusShielding:   {TransferStatusWithdrawing, TransferStatusFailed},
	TransferStatusWithdrawing: {TransferStatusComplete, TransferStatusFailed},
}

// CanTransitionTo reports whether moving from s to next follows the
// lifecycle graph. Transitions are strictly forward; terminal states
// accept nothing.
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	for _, allowed := range forwardTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// MinimumDeposit returns the balance at which a deposit counts as received.
// A 1% tolerance absorbs network-fee rounding on the depositor's side.
func MinimumDeposit(amount int64) int64 {
	return amount - amount/100
}

// NewTransferID generates a short opaque transfer identifier.
func NewTransferID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		panic("transfer id entropy unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}
