package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"private-transfer-relay/internal/core/domain"
	"private-transfer-relay/internal/core/ports"
	"private-transfer-relay/internal/core/ports/mocks"
	"private-transfer-relay/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestTransferService_CreateTransfer_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockTransferRepository(ctrl)
	mockChain := mocks.NewMockChainClient(ctrl)
	svc := NewTransferService(mockRepo, mockChain, domain.DefaultFeePolicy(), newTestLogger())

	mockChain.EXPECT().IsValidAddress("0xRecipient").Return(true)
	mockChain.EXPECT().GenerateWallet().Return("0xDeposit", "secret-key", nil)

	var created *domain.Transfer
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, tr *domain.Transfer) error {
			created = tr
			return nil
		},
	)

	res, err := svc.CreateTransfer(context.Background(), ports.CreateTransferRequest{
		RequesterID:   42,
		RequesterName: "alice",
		Amount:        domain.UnitsPerCoin,
		Recipient:     "0xRecipient",
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, created.ID, res.TransferID)
	assert.Equal(t, "0xDeposit", res.DepositAddress)
	assert.Equal(t, int64(10_500_000), res.Fee)
	assert.Equal(t, int64(989_500_000), res.RecipientGets)

	assert.Equal(t, domain.TransferStatusPending, created.Status)
	assert.Equal(t, "secret-key", created.DepositSecret)
	assert.Equal(t, int64(42), created.RequesterID)
	assert.Len(t, created.ID, 12)
}

func TestTransferService_CreateTransfer_AmountOutOfRange(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockTransferRepository(ctrl)
	mockChain := mocks.NewMockChainClient(ctrl)
	svc := NewTransferService(mockRepo, mockChain, domain.DefaultFeePolicy(), newTestLogger())

	for _, amount := range []int64{0, 19_999_999, 100*domain.UnitsPerCoin + 1} {
		_, err := svc.CreateTransfer(context.Background(), ports.CreateTransferRequest{
			RequesterID: 1,
			Amount:      amount,
			Recipient:   "0xRecipient",
		})
		require.Error(t, err)
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "VAL_001", appErr.Code)
	}
}

func TestTransferService_CreateTransfer_InvalidRecipient(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockTransferRepository(ctrl)
	mockChain := mocks.NewMockChainClient(ctrl)
	svc := NewTransferService(mockRepo, mockChain, domain.DefaultFeePolicy(), newTestLogger())

	mockChain.EXPECT().IsValidAddress("not-an-address").Return(false)

	_, err := svc.CreateTransfer(context.Background(), ports.CreateTransferRequest{
		RequesterID: 1,
		Amount:      domain.UnitsPerCoin,
		Recipient:   "not-an-address",
	})
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VAL_002", appErr.Code)
}

func TestTransferService_CreateTransfer_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockTransferRepository(ctrl)
	mockChain := mocks.NewMockChainClient(ctrl)
	svc := NewTransferService(mockRepo, mockChain, domain.DefaultFeePolicy(), newTestLogger())

	mockChain.EXPECT().IsValidAddress(gomock.Any()).Return(true)
	mockChain.EXPECT().GenerateWallet().Return("0xDeposit", "secret-key", nil)
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	_, err := svc.CreateTransfer(context.Background(), ports.CreateTransferRequest{
		RequesterID: 1,
		Amount:      domain.UnitsPerCoin,
		Recipient:   "0xRecipient",
	})
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SYS_001", appErr.Code)
}

func TestTransferService_GetTransferStatus_Found(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockTransferRepository(ctrl)
	mockChain := mocks.NewMockChainClient(ctrl)
	svc := NewTransferService(mockRepo, mockChain, domain.DefaultFeePolicy(), newTestLogger())

	mockRepo.EXPECT().GetByID(gomock.Any(), "abc123def456").Return(&domain.Transfer{
		ID:     "abc123def456",
		Status: domain.TransferStatusWithdrawing,
	}, nil)

	tr, err := svc.GetTransferStatus(context.Background(), "abc123def456")
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusWithdrawing, tr.Status)
}

func TestTransferService_GetTransferStatus_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockTransferRepository(ctrl)
	mockChain := mocks.NewMockChainClient(ctrl)
	svc := NewTransferService(mockRepo, mockChain, domain.DefaultFeePolicy(), newTestLogger())

	mockRepo.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, nil)

	_, err := svc.GetTransferStatus(context.Background(), "missing")
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TRF_001", appErr.Code)
}
