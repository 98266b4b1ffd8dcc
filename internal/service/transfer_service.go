package service

import (
	"context"
	"time"

	"private-transfer-relay/internal/core/domain"
	"private-transfer-relay/internal/core/ports"
	"private-transfer-relay/pkg/apperror"

	"github.com/rs/zerolog"
)

// TransferServiceImpl implements ports.TransferService.
type TransferServiceImpl struct {
	repo  ports.TransferRepository
	chain ports.ChainClient
	fees  domain.FeePolicy
	log   zerolog.Logger
}

// NewTransferService creates a new TransferServiceImpl.
func NewTransferService(
	repo ports.TransferRepository,
	chain ports.ChainClient,
	fees domain.FeePolicy,
	log zerolog.Logger,
) *TransferServiceImpl {
	return &TransferServiceImpl{
		repo:  repo,
		chain: chain,
		fees:  fees,
		log:   log,
	}
}

// CreateTransfer validates the request, provisions a fresh single-use deposit
// wallet and records the transfer as pending. The returned quote tells the
// requester how much to send and what the recipient will receive after fees.
func (s *TransferServiceImpl) CreateTransfer(ctx context.Context, req ports.CreateTransferRequest) (*ports.CreateTransferResult, error) {
	if !s.fees.AmountInRange(req.Amount) {
		return nil, apperror.ErrAmountOutOfRange(domain.FormatCoins(s.fees.MinAmount), domain.FormatCoins(s.fees.MaxAmount))
	}
	if !s.chain.IsValidAddress(req.Recipient) {
		return nil, apperror.ErrInvalidRecipient()
	}

	address, secret, err := s.chain.GenerateWallet()
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	now := time.Now().UTC()
	t := &domain.Transfer{
		ID:             domain.NewTransferID(),
		RequesterID:    req.RequesterID,
		RequesterName:  req.RequesterName,
		Amount:         req.Amount,
		Recipient:      req.Recipient,
		DepositAddress: address,
		DepositSecret:  secret,
		Status:         domain.TransferStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("transfer_id", t.ID).
		Int64("requester_id", t.RequesterID).
		Int64("amount", t.Amount).
		Msg("transfer created")

	return &ports.CreateTransferResult{
		TransferID:     t.ID,
		DepositAddress: address,
		Amount:         req.Amount,
		Fee:            s.fees.Fee(req.Amount),
		RecipientGets:  s.fees.RecipientGets(req.Amount),
	}, nil
}

// GetTransferStatus returns the current state of a transfer.
func (s *TransferServiceImpl) GetTransferStatus(ctx context.Context, id string) (*domain.Transfer, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if t == nil {
		return nil, apperror.ErrNotFound(id)
	}
	return t, nil
}
