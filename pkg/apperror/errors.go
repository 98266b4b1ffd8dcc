package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Request Validation (VAL) ----

func ErrAmountOutOfRange(minCoins, maxCoins string) *AppError {
	return New("VAL_001", fmt.Sprintf("Amount must be between %s and %s", minCoins, maxCoins), http.StatusBadRequest)
}

func ErrInvalidRecipient() *AppError {
	return New("VAL_002", "Invalid recipient address", http.StatusBadRequest)
}

// Validation returns a generic VAL_003 validation error.
func Validation(message string) *AppError {
	return New("VAL_003", message, http.StatusBadRequest)
}

// ---- Transfer Lifecycle (TRF) ----

func ErrNotFound(entity string) *AppError {
	return New("TRF_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInsufficientFunds() *AppError {
	return New("TRF_002", "Deposit balance insufficient to cover network fees", http.StatusUnprocessableEntity)
}

// ---- External Collaborators (NET / POOL) ----

// ErrNetwork marks a transient chain RPC failure.
func ErrNetwork(err error) *AppError {
	return Wrap("NET_001", "Chain RPC request failed", http.StatusBadGateway, err)
}

// ErrChainSubmit marks a failed or unconfirmed transaction submission.
func ErrChainSubmit(err error) *AppError {
	return Wrap("NET_002", "Transaction submission failed", http.StatusBadGateway, err)
}

// ErrPool marks a privacy pool failure; callers treat any failure as total.
func ErrPool(cause string, err error) *AppError {
	return Wrap("POOL_001", fmt.Sprintf("Privacy pool operation failed: %s", cause), http.StatusBadGateway, err)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
