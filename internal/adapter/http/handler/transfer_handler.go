package handler

import (
	"time"

	"private-transfer-relay/internal/adapter/http/dto"
	"private-transfer-relay/internal/core/domain"
	"private-transfer-relay/internal/core/ports"
	"private-transfer-relay/pkg/apperror"
	"private-transfer-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransferHandler handles transfer endpoints.
type TransferHandler struct {
	transferSvc ports.TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferSvc ports.TransferService) *TransferHandler {
	return &TransferHandler{transferSvc: transferSvc}
}

// CreateTransfer handles POST /api/v1/transfers.
func (h *TransferHandler) CreateTransfer(c *gin.Context) {
	var req dto.CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.transferSvc.CreateTransfer(c.Request.Context(), ports.CreateTransferRequest{
		RequesterID:   req.RequesterID,
		RequesterName: req.RequesterName,
		Amount:        req.Amount,
		Recipient:     req.Recipient,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.CreateTransferResponse{
		TransferID:     result.TransferID,
		DepositAddress: result.DepositAddress,
		Amount:         result.Amount,
		Fee:            result.Fee,
		RecipientGets:  result.RecipientGets,
	})
}

// GetTransfer handles GET /api/v1/transfers/:id.
func (h *TransferHandler) GetTransfer(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.Error(c, apperror.Validation("transfer id is required"))
		return
	}

	t, err := h.transferSvc.GetTransferStatus(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransferStatusResponse(t))
}

func toTransferStatusResponse(t *domain.Transfer) dto.TransferStatusResponse {
	return dto.TransferStatusResponse{
		TransferID:     t.ID,
		Status:         string(t.Status),
		Amount:         t.Amount,
		Recipient:      t.Recipient,
		DepositAddress: t.DepositAddress,
		DepositTx:      t.DepositTx,
		WithdrawTx:     t.WithdrawTx,
		CreatedAt:      t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
