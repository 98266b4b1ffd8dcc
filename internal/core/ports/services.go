package ports

import (
	"context"
	"errors"

	"private-transfer-relay/internal/core/domain"
)

// ErrInsufficientBalance is returned by Sweep when the address holds too
// little to cover the transfer's own network fee plus the requested reserve.
// Nothing is submitted in that case.
var ErrInsufficientBalance = errors.New("balance cannot cover sweep reserve")

// BalanceOracle queries the live on-chain balance of an address, in base
// units. Failures are transient network errors; callers retry on the next
// poll cycle.
type BalanceOracle interface {
	Balance(ctx context.Context, address string) (int64, error)
}

// ChainClient is the full chain-facing capability: balance queries, deposit
// wallet generation, and native-value transfer submission.
type ChainClient interface {
	BalanceOracle

	// GenerateWallet creates a fresh single-use keypair and returns its
	// address and signing secret.
	GenerateWallet() (address string, secret string, err error)
	// SendTransfer submits a transfer signed with fromSecret and blocks until
	// it is confirmed, returning the transaction ref.
	SendTransfer(ctx context.Context, fromSecret string, toAddress string, amount int64) (string, error)
	// Sweep drains the address behind fromSecret to toAddress, keeping back
	// the network fee of the sweep itself plus reserve base units. It returns
	// the transaction ref and the amount actually moved, or
	// ErrInsufficientBalance without submitting anything.
	Sweep(ctx context.Context, fromSecret string, toAddress string, reserve int64) (txRef string, amount int64, err error)
	// RelayerAddress is the relayer-controlled account sweeps land on.
	RelayerAddress() string
	IsValidAddress(address string) bool
}

// PoolService is the external privacy pool. Its internal protocol is opaque;
// any failure is treated as total.
type PoolService interface {
	Deposit(ctx context.Context, amount int64) error
	PrivateBalance(ctx context.Context) (int64, error)
	// Withdraw pays the given amount from the pool to the recipient and
	// returns the payout transaction ref.
	Withdraw(ctx context.Context, amount int64, recipient string) (string, error)
}

// Notifier delivers a user-facing message. Delivery is best-effort; the
// lifecycle never blocks on a notification failure.
type Notifier interface {
	Notify(ctx context.Context, userID int64, message string) error
}

// TransferExecutor performs the value movement for one deposited transfer,
// end to end, always leaving it complete or failed.
type TransferExecutor interface {
	Execute(ctx context.Context, t *domain.Transfer) error
}

// TransferQueue serializes executor invocations. Enqueue is idempotent per
// transfer id and safe for concurrent callers; it reports whether the
// transfer was newly added.
type TransferQueue interface {
	Enqueue(t *domain.Transfer) bool
}

// --- Service Ports (Business Logic) ---

// CreateTransferRequest holds validated input for transfer creation.
type CreateTransferRequest struct {
	RequesterID   int64
	RequesterName string
	Amount        int64 // Base units
	Recipient     string
}

// CreateTransferResult is returned to the presentation layer. The deposit
// secret never leaves the subsystem.
type CreateTransferResult struct {
	TransferID     string
	DepositAddress string
	Amount         int64
	Fee            int64
	RecipientGets  int64
}

// TransferService is the boundary exposed to the presentation layer.
type TransferService interface {
	CreateTransfer(ctx context.Context, req CreateTransferRequest) (*CreateTransferResult, error)
	GetTransferStatus(ctx context.Context, id string) (*domain.Transfer, error)
}
