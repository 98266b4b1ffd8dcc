package ports

import (
	"context"
	"errors"
	"time"

	"private-transfer-relay/internal/core/domain"
)

// ErrStatusConflict is returned by UpdateStatus when the stored status no
// longer matches the expected one: another actor moved the transfer first.
// Callers treat it as "already handled", never as a failure of the transfer.
var ErrStatusConflict = errors.New("transfer status changed concurrently")

// TxRefs carries the optional on-chain references recorded alongside a
// status update. Each ref is set exactly once over a transfer's life.
type TxRefs struct {
	DepositTx  *string
	WithdrawTx *string
}

// TransferRepository defines persistence operations for transfers.
// Transfers are never deleted; terminal states are retained for audit
// and manual remediation.
type TransferRepository interface {
	Create(ctx context.Context, t *domain.Transfer) error
	// GetByID returns nil, nil when the transfer does not exist.
	GetByID(ctx context.Context, id string) (*domain.Transfer, error)
	// ListPending returns pending transfers created within the given window,
	// oldest first.
	ListPending(ctx context.Context, youngerThan time.Duration) ([]domain.Transfer, error)
	// ListByStatus returns all transfers in the given status, oldest first.
	ListByStatus(ctx context.Context, status domain.TransferStatus) ([]domain.Transfer, error)
	// UpdateStatus moves the transfer from the expected status to a new one,
	// refreshes updated_at, and records any transaction refs supplied. The
	// update is a compare-and-set: if the stored status is not `from`, the
	// row is untouched and ErrStatusConflict is returned, so no caller can
	// ever move a transfer backward off a state it did not observe.
	UpdateStatus(ctx context.Context, id string, from, to domain.TransferStatus, refs TxRefs) error
	// ExpirePending bulk-expires pending transfers older than the window and
	// returns how many were expired.
	ExpirePending(ctx context.Context, olderThan time.Duration) (int64, error)
}
