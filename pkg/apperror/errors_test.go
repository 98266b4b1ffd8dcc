package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	e := New("VAL_002", "Invalid recipient address", http.StatusBadRequest)
	assert.Equal(t, "[VAL_002] Invalid recipient address", e.Error())
}

func TestAppError_ErrorWithWrapped(t *testing.T) {
	inner := errors.New("connection refused")
	e := ErrNetwork(inner)
	assert.Contains(t, e.Error(), "NET_001")
	assert.Contains(t, e.Error(), "connection refused")
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("dial tcp: timeout")
	e := ErrChainSubmit(inner)

	assert.ErrorIs(t, e, inner)
	wrapped := fmt.Errorf("sweep: %w", e)
	var appErr *AppError
	assert.ErrorAs(t, wrapped, &appErr)
	assert.Equal(t, "NET_002", appErr.Code)
}

func TestErrPool_CarriesCause(t *testing.T) {
	e := ErrPool("proof generation timed out", nil)
	assert.Equal(t, "POOL_001", e.Code)
	assert.Contains(t, e.Message, "proof generation timed out")
	assert.Equal(t, http.StatusBadGateway, e.HTTPStatus)
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ErrAmountOutOfRange("0.02", "100").HTTPStatus)
	assert.Equal(t, http.StatusNotFound, ErrNotFound("transfer").HTTPStatus)
	assert.Equal(t, http.StatusUnprocessableEntity, ErrInsufficientFunds().HTTPStatus)
	assert.Equal(t, http.StatusTooManyRequests, ErrRateLimitExceeded().HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, ErrDatabaseError(errors.New("x")).HTTPStatus)
}
