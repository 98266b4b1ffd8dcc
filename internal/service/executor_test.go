package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"private-transfer-relay/internal/core/domain"
	"private-transfer-relay/internal/core/ports"
	"private-transfer-relay/internal/core/ports/mocks"
	"private-transfer-relay/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newExecutorFixture(t *testing.T) (*TransferExecutorImpl, *mocks.MockTransferRepository, *mocks.MockChainClient, *mocks.MockPoolService) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mockRepo := mocks.NewMockTransferRepository(ctrl)
	mockChain := mocks.NewMockChainClient(ctrl)
	mockPool := mocks.NewMockPoolService(ctrl)
	exec := NewTransferExecutor(mockRepo, mockChain, mockPool, domain.DefaultFeePolicy(), nil, newTestLogger())
	return exec, mockRepo, mockChain, mockPool
}

func depositedTransfer() *domain.Transfer {
	return &domain.Transfer{
		ID:             "abc123def456",
		RequesterID:    7,
		Amount:         domain.UnitsPerCoin,
		Recipient:      "0xRecipient",
		DepositAddress: "0xDeposit",
		DepositSecret:  "deposit-secret",
		Status:         domain.TransferStatusDeposited,
	}
}

func TestExecutor_Execute_HappyPath(t *testing.T) {
	exec, mockRepo, mockChain, mockPool := newExecutorFixture(t)
	tr := depositedTransfer()

	// Sender overpaid slightly; the chain adapter reports what actually
	// moved after keeping back gas and the dust buffer.
	sweepAmount := domain.UnitsPerCoin + 1_000_000 - 5_000
	fee := int64(10_500_000)
	poolDeposit := sweepAmount - fee

	gomock.InOrder(
		mockRepo.EXPECT().UpdateStatus(gomock.Any(), tr.ID, domain.TransferStatusDeposited, domain.TransferStatusShielding, ports.TxRefs{}).Return(nil),
		mockChain.EXPECT().RelayerAddress().Return("0xRelayer"),
		mockChain.EXPECT().Sweep(gomock.Any(), "deposit-secret", "0xRelayer", int64(5_000)).Return("0xSweepTx", sweepAmount, nil),
		mockRepo.EXPECT().UpdateStatus(gomock.Any(), tr.ID, domain.TransferStatusShielding, domain.TransferStatusWithdrawing, gomock.Any()).DoAndReturn(
			func(ctx context.Context, id string, from, to domain.TransferStatus, refs ports.TxRefs) error {
				require.NotNil(t, refs.DepositTx)
				assert.Equal(t, "0xSweepTx", *refs.DepositTx)
				return nil
			},
		),
		mockPool.EXPECT().Deposit(gomock.Any(), poolDeposit).Return(nil),
		mockPool.EXPECT().PrivateBalance(gomock.Any()).Return(poolDeposit, nil),
		mockPool.EXPECT().Withdraw(gomock.Any(), poolDeposit, "0xRecipient").Return("0xPayoutTx", nil),
		mockRepo.EXPECT().UpdateStatus(gomock.Any(), tr.ID, domain.TransferStatusWithdrawing, domain.TransferStatusComplete, gomock.Any()).DoAndReturn(
			func(ctx context.Context, id string, from, to domain.TransferStatus, refs ports.TxRefs) error {
				require.NotNil(t, refs.WithdrawTx)
				assert.Equal(t, "0xPayoutTx", *refs.WithdrawTx)
				return nil
			},
		),
	)

	err := exec.Execute(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusComplete, tr.Status)
	require.NotNil(t, tr.WithdrawTx)
	assert.Equal(t, "0xPayoutTx", *tr.WithdrawTx)
}

func TestExecutor_Execute_RejectsNonDeposited(t *testing.T) {
	exec, _, _, _ := newExecutorFixture(t)

	for _, status := range []domain.TransferStatus{
		domain.TransferStatusPending,
		domain.TransferStatusComplete,
		domain.TransferStatusFailed,
		domain.TransferStatusExpired,
	} {
		tr := depositedTransfer()
		tr.Status = status
		err := exec.Execute(context.Background(), tr)
		require.Error(t, err, "status %s", status)
		assert.Equal(t, status, tr.Status, "status must not change")
	}
}

func TestExecutor_Execute_AlreadySettled_SkipsWithoutTouchingFunds(t *testing.T) {
	exec, mockRepo, _, _ := newExecutorFixture(t)
	tr := depositedTransfer()

	// A stale copy of a transfer another attempt already settled: the
	// guarded write loses, and the attempt stands down without a sweep, a
	// payout, or any further status write.
	mockRepo.EXPECT().
		UpdateStatus(gomock.Any(), tr.ID, domain.TransferStatusDeposited, domain.TransferStatusShielding, ports.TxRefs{}).
		Return(fmt.Errorf("%w: transfer %s is not deposited", ports.ErrStatusConflict, tr.ID))

	err := exec.Execute(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusDeposited, tr.Status)
}

func TestExecutor_Execute_MarkShieldingError_LeavesTransferDeposited(t *testing.T) {
	exec, mockRepo, _, _ := newExecutorFixture(t)
	tr := depositedTransfer()

	// A plain store error before the transition persisted: the row is still
	// deposited, so the attempt must surface the error and must NOT force a
	// failed status. The watcher re-enqueues the intact row.
	mockRepo.EXPECT().
		UpdateStatus(gomock.Any(), tr.ID, domain.TransferStatusDeposited, domain.TransferStatusShielding, ports.TxRefs{}).
		Return(errors.New("db down"))

	err := exec.Execute(context.Background(), tr)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SYS_001", appErr.Code)
	assert.Equal(t, domain.TransferStatusDeposited, tr.Status)
}

func TestExecutor_Execute_InsufficientBalance_FailsWithoutSweep(t *testing.T) {
	exec, mockRepo, mockChain, _ := newExecutorFixture(t)
	tr := depositedTransfer()

	gomock.InOrder(
		mockRepo.EXPECT().UpdateStatus(gomock.Any(), tr.ID, domain.TransferStatusDeposited, domain.TransferStatusShielding, ports.TxRefs{}).Return(nil),
		mockChain.EXPECT().RelayerAddress().Return("0xRelayer"),
		// Balance does not even cover gas plus the dust buffer. No
		// transaction is ever submitted.
		mockChain.EXPECT().Sweep(gomock.Any(), "deposit-secret", "0xRelayer", int64(5_000)).
			Return("", int64(0), fmt.Errorf("%w: address holds dust", ports.ErrInsufficientBalance)),
		mockRepo.EXPECT().UpdateStatus(gomock.Any(), tr.ID, domain.TransferStatusShielding, domain.TransferStatusFailed, ports.TxRefs{}).Return(nil),
	)

	err := exec.Execute(context.Background(), tr)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TRF_002", appErr.Code)
	assert.Equal(t, domain.TransferStatusFailed, tr.Status)
}

func TestExecutor_Execute_SweepError_Fails(t *testing.T) {
	exec, mockRepo, mockChain, _ := newExecutorFixture(t)
	tr := depositedTransfer()

	gomock.InOrder(
		mockRepo.EXPECT().UpdateStatus(gomock.Any(), tr.ID, domain.TransferStatusDeposited, domain.TransferStatusShielding, ports.TxRefs{}).Return(nil),
		mockChain.EXPECT().RelayerAddress().Return("0xRelayer"),
		mockChain.EXPECT().Sweep(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", int64(0), errors.New("nonce too low")),
		mockRepo.EXPECT().UpdateStatus(gomock.Any(), tr.ID, domain.TransferStatusShielding, domain.TransferStatusFailed, ports.TxRefs{}).Return(nil),
	)

	err := exec.Execute(context.Background(), tr)
	require.Error(t, err)
	assert.Equal(t, domain.TransferStatusFailed, tr.Status)
}

func TestExecutor_Execute_PoolWithdrawError_Fails(t *testing.T) {
	exec, mockRepo, mockChain, mockPool := newExecutorFixture(t)
	tr := depositedTransfer()

	sweepAmount := domain.UnitsPerCoin - 26_000
	poolDeposit := sweepAmount - 10_500_000

	gomock.InOrder(
		mockRepo.EXPECT().UpdateStatus(gomock.Any(), tr.ID, domain.TransferStatusDeposited, domain.TransferStatusShielding, ports.TxRefs{}).Return(nil),
		mockChain.EXPECT().RelayerAddress().Return("0xRelayer"),
		mockChain.EXPECT().Sweep(gomock.Any(), "deposit-secret", "0xRelayer", int64(5_000)).Return("0xSweepTx", sweepAmount, nil),
		mockRepo.EXPECT().UpdateStatus(gomock.Any(), tr.ID, domain.TransferStatusShielding, domain.TransferStatusWithdrawing, gomock.Any()).Return(nil),
		mockPool.EXPECT().Deposit(gomock.Any(), poolDeposit).Return(nil),
		mockPool.EXPECT().PrivateBalance(gomock.Any()).Return(poolDeposit, nil),
		mockPool.EXPECT().Withdraw(gomock.Any(), poolDeposit, "0xRecipient").Return("", errors.New("pool session expired")),
		mockRepo.EXPECT().UpdateStatus(gomock.Any(), tr.ID, domain.TransferStatusWithdrawing, domain.TransferStatusFailed, ports.TxRefs{}).Return(nil),
	)

	err := exec.Execute(context.Background(), tr)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "POOL_001", appErr.Code)
	assert.Equal(t, domain.TransferStatusFailed, tr.Status)
}

func TestExecutor_Execute_FailedStatusWriteErrorStillReturnsCause(t *testing.T) {
	exec, mockRepo, mockChain, _ := newExecutorFixture(t)
	tr := depositedTransfer()

	gomock.InOrder(
		mockRepo.EXPECT().UpdateStatus(gomock.Any(), tr.ID, domain.TransferStatusDeposited, domain.TransferStatusShielding, ports.TxRefs{}).Return(nil),
		mockChain.EXPECT().RelayerAddress().Return("0xRelayer"),
		mockChain.EXPECT().Sweep(gomock.Any(), "deposit-secret", "0xRelayer", int64(5_000)).
			Return("", int64(0), fmt.Errorf("%w: address holds dust", ports.ErrInsufficientBalance)),
		mockRepo.EXPECT().UpdateStatus(gomock.Any(), tr.ID, domain.TransferStatusShielding, domain.TransferStatusFailed, ports.TxRefs{}).Return(errors.New("db down")),
	)

	err := exec.Execute(context.Background(), tr)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TRF_002", appErr.Code)
}
