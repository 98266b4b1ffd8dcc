package service

import (
	"context"
	"errors"
	"fmt"

	"private-transfer-relay/internal/core/domain"
	"private-transfer-relay/internal/core/ports"
	"private-transfer-relay/internal/metrics"
	"private-transfer-relay/pkg/apperror"

	"github.com/rs/zerolog"
)

// TransferExecutorImpl implements ports.TransferExecutor. It performs the
// value movement for one deposited transfer: sweep the deposit wallet to the
// relayer, shield the swept funds through the privacy pool, and pay out to
// the recipient. Each invocation is exactly one attempt; there are no
// internal retries. Only the queue worker calls Execute, which is what keeps
// the relayer account and pool session single-owner.
type TransferExecutorImpl struct {
	repo  ports.TransferRepository
	chain ports.ChainClient
	pool  ports.PoolService
	fees  domain.FeePolicy
	met   *metrics.Registry
	log   zerolog.Logger
}

// NewTransferExecutor creates a new TransferExecutorImpl.
func NewTransferExecutor(
	repo ports.TransferRepository,
	chain ports.ChainClient,
	pool ports.PoolService,
	fees domain.FeePolicy,
	met *metrics.Registry,
	log zerolog.Logger,
) *TransferExecutorImpl {
	return &TransferExecutorImpl{
		repo:  repo,
		chain: chain,
		pool:  pool,
		fees:  fees,
		met:   met,
		log:   log,
	}
}

// Execute runs one shielding attempt. Every status write is a guarded
// transition from the status this attempt last persisted, so a stale copy of
// an already-settled transfer can never drag the stored row backward. On
// return t.Status reflects what was persisted: complete or failed for a real
// attempt, or still deposited when nothing was written and the watcher
// should retry.
func (e *TransferExecutorImpl) Execute(ctx context.Context, t *domain.Transfer) error {
	if !t.Status.CanTransitionTo(domain.TransferStatusShielding) {
		return apperror.Validation(fmt.Sprintf("transfer %s is %s, not executable", t.ID, t.Status))
	}

	e.log.Info().Str("transfer_id", t.ID).Msg("executing private transfer")

	if err := e.repo.UpdateStatus(ctx, t.ID, domain.TransferStatusDeposited, domain.TransferStatusShielding, ports.TxRefs{}); err != nil {
		if errors.Is(err, ports.ErrStatusConflict) {
			// The stored row moved on since this copy was read: a previous
			// attempt already settled it. Nothing to do.
			e.log.Info().Str("transfer_id", t.ID).Msg("transfer already handled, skipping")
			return nil
		}
		// The shielding transition never persisted, so the row is still
		// deposited and the watcher re-enqueues it. Not a failed attempt.
		return apperror.ErrDatabaseError(fmt.Errorf("mark shielding: %w", err))
	}
	t.Status = domain.TransferStatusShielding

	// Sweep what actually arrived. The chain adapter keeps back the sweep's
	// own gas cost plus the dust buffer; what it reports moved is
	// authoritative, not the requested amount.
	sweepTx, sweepAmount, err := e.chain.Sweep(ctx, t.DepositSecret, e.chain.RelayerAddress(), e.fees.SweepBuffer)
	if err != nil {
		if errors.Is(err, ports.ErrInsufficientBalance) {
			return e.fail(ctx, t, apperror.ErrInsufficientFunds())
		}
		return e.fail(ctx, t, apperror.ErrChainSubmit(fmt.Errorf("sweep: %w", err)))
	}
	e.log.Debug().Str("transfer_id", t.ID).Str("tx", sweepTx).Int64("amount", sweepAmount).Msg("swept deposit to relayer")

	if err := e.repo.UpdateStatus(ctx, t.ID, domain.TransferStatusShielding, domain.TransferStatusWithdrawing, ports.TxRefs{DepositTx: &sweepTx}); err != nil {
		return e.fail(ctx, t, apperror.ErrDatabaseError(fmt.Errorf("mark withdrawing: %w", err)))
	}
	t.Status = domain.TransferStatusWithdrawing

	depositAmount := sweepAmount - e.fees.Fee(t.Amount)
	if depositAmount <= 0 {
		return e.fail(ctx, t, apperror.ErrInsufficientFunds())
	}

	if err := e.pool.Deposit(ctx, depositAmount); err != nil {
		return e.fail(ctx, t, apperror.ErrPool("deposit", err))
	}

	poolBalance, err := e.pool.PrivateBalance(ctx)
	if err != nil {
		return e.fail(ctx, t, apperror.ErrPool("balance", err))
	}

	withdrawTx, err := e.pool.Withdraw(ctx, poolBalance, t.Recipient)
	if err != nil {
		return e.fail(ctx, t, apperror.ErrPool("withdraw", err))
	}

	if err := e.repo.UpdateStatus(ctx, t.ID, domain.TransferStatusWithdrawing, domain.TransferStatusComplete, ports.TxRefs{WithdrawTx: &withdrawTx}); err != nil {
		return e.fail(ctx, t, apperror.ErrDatabaseError(fmt.Errorf("mark complete: %w", err)))
	}

	t.Status = domain.TransferStatusComplete
	t.WithdrawTx = &withdrawTx
	e.met.IncTransfer("complete")
	e.log.Info().
		Str("transfer_id", t.ID).
		Str("withdraw_tx", withdrawTx).
		Msg("transfer complete")
	return nil
}

// fail records the terminal failed status, transitioning from whatever this
// attempt last persisted, and passes the original error through. A store
// failure at this point is logged, not retried; the operator reconciles from
// the failed list.
func (e *TransferExecutorImpl) fail(ctx context.Context, t *domain.Transfer, cause error) error {
	if err := e.repo.UpdateStatus(ctx, t.ID, t.Status, domain.TransferStatusFailed, ports.TxRefs{}); err != nil {
		e.log.Error().Err(err).Str("transfer_id", t.ID).Msg("failed to record failed status")
	}
	t.Status = domain.TransferStatusFailed
	e.met.IncTransfer("failed")
	e.log.Error().Err(cause).Str("transfer_id", t.ID).Msg("transfer failed")
	return cause
}
