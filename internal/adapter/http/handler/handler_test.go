package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"private-transfer-relay/internal/adapter/http/dto"
	"private-transfer-relay/internal/core/domain"
	"private-transfer-relay/internal/core/ports"
	"private-transfer-relay/internal/core/ports/mocks"
	"private-transfer-relay/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCreateTransfer_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := mocks.NewMockTransferService(ctrl)
	h := NewTransferHandler(mockSvc)

	mockSvc.EXPECT().CreateTransfer(gomock.Any(), ports.CreateTransferRequest{
		RequesterID:   42,
		RequesterName: "alice",
		Amount:        domain.UnitsPerCoin,
		Recipient:     "0xRecipient",
	}).Return(&ports.CreateTransferResult{
		TransferID:     "a1b2c3d4e5f6",
		DepositAddress: "0xDeposit",
		Amount:         domain.UnitsPerCoin,
		Fee:            10_500_000,
		RecipientGets:  989_500_000,
	}, nil)

	body, _ := json.Marshal(dto.CreateTransferRequest{
		RequesterID:   42,
		RequesterName: "alice",
		Amount:        domain.UnitsPerCoin,
		Recipient:     "0xRecipient",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/transfers", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CreateTransfer(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "a1b2c3d4e5f6", data["transfer_id"])
	assert.Equal(t, "0xDeposit", data["deposit_address"])
	assert.Equal(t, float64(10_500_000), data["fee"])
	assert.Equal(t, float64(989_500_000), data["recipient_gets"])
}

func TestCreateTransfer_BindingError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := mocks.NewMockTransferService(ctrl)
	h := NewTransferHandler(mockSvc)

	// Missing required fields => binding error, service never called.
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/transfers", bytes.NewReader([]byte("{}")))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CreateTransfer(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTransfer_AmountRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := mocks.NewMockTransferService(ctrl)
	h := NewTransferHandler(mockSvc)

	mockSvc.EXPECT().CreateTransfer(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrAmountOutOfRange("0.02", "100"))

	body, _ := json.Marshal(dto.CreateTransferRequest{
		RequesterID: 42,
		Amount:      1,
		Recipient:   "0xRecipient",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/transfers", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CreateTransfer(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VAL_001", resp["error_code"])
}

func TestGetTransfer_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := mocks.NewMockTransferService(ctrl)
	h := NewTransferHandler(mockSvc)

	withdrawTx := "0xPayoutTx"
	now := time.Now().UTC()
	mockSvc.EXPECT().GetTransferStatus(gomock.Any(), "a1b2c3d4e5f6").Return(&domain.Transfer{
		ID:             "a1b2c3d4e5f6",
		Status:         domain.TransferStatusComplete,
		Amount:         domain.UnitsPerCoin,
		Recipient:      "0xRecipient",
		DepositAddress: "0xDeposit",
		DepositSecret:  "must-not-leak",
		WithdrawTx:     &withdrawTx,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/transfers/a1b2c3d4e5f6", nil)
	c.Params = gin.Params{{Key: "id", Value: "a1b2c3d4e5f6"}}

	h.GetTransfer(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "must-not-leak")

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "complete", data["status"])
	assert.Equal(t, "0xPayoutTx", data["withdraw_tx"])
	_, hasSecret := data["deposit_secret"]
	assert.False(t, hasSecret)
}

func TestGetTransfer_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := mocks.NewMockTransferService(ctrl)
	h := NewTransferHandler(mockSvc)

	mockSvc.EXPECT().GetTransferStatus(gomock.Any(), "missing00000").
		Return(nil, apperror.ErrNotFound("missing00000"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/transfers/missing00000", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing00000"}}

	h.GetTransfer(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Router tests ---

type staticChecker struct {
	name string
	err  error
}

func (s staticChecker) Ping(ctx context.Context) error { return s.err }
func (s staticChecker) Name() string                   { return s.name }

func TestRouter_HealthEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := SetupRouter(RouterDeps{
		TransferSvc:    mocks.NewMockTransferService(ctrl),
		HealthCheckers: []ports.HealthChecker{staticChecker{name: "postgresql"}, staticChecker{name: "redis"}},
		Logger:         zerolog.New(io.Discard),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestRouter_UnknownRoute(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := SetupRouter(RouterDeps{
		TransferSvc: mocks.NewMockTransferService(ctrl),
		Logger:      zerolog.New(io.Discard),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_TransferRoutesWired(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := mocks.NewMockTransferService(ctrl)
	mockSvc.EXPECT().GetTransferStatus(gomock.Any(), "a1b2c3d4e5f6").
		Return(&domain.Transfer{ID: "a1b2c3d4e5f6", Status: domain.TransferStatusPending}, nil)

	r := SetupRouter(RouterDeps{
		TransferSvc: mockSvc,
		Logger:      zerolog.New(io.Discard),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/transfers/a1b2c3d4e5f6", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
