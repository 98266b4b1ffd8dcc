package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"private-transfer-relay/config"
	"private-transfer-relay/pkg/apperror"

	"github.com/rs/zerolog"
)

// Client talks to the external privacy pool over HTTP. The pool holds one
// session per relayer; calls are only ever made from the queue worker, so
// the session is never shared.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a privacy pool client.
func NewClient(cfg config.PoolConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

type depositRequest struct {
	Amount int64 `json:"amount"`
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

type withdrawRequest struct {
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
}

type withdrawResponse struct {
	TxRef string `json:"tx_ref"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Deposit shields the given amount into the pool from the relayer account.
func (c *Client) Deposit(ctx context.Context, amount int64) error {
	return c.post(ctx, "/v1/deposit", depositRequest{Amount: amount}, nil)
}

// PrivateBalance returns the shielded balance available for withdrawal.
func (c *Client) PrivateBalance(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/balance", nil)
	if err != nil {
		return 0, fmt.Errorf("build balance request: %w", err)
	}
	var out balanceResponse
	if err := c.do(req, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

// Withdraw pays the amount from the pool to the recipient and returns the
// payout transaction ref.
func (c *Client) Withdraw(ctx context.Context, amount int64, recipient string) (string, error) {
	var out withdrawResponse
	if err := c.post(ctx, "/v1/withdraw", withdrawRequest{Amount: amount, Recipient: recipient}, &out); err != nil {
		return "", err
	}
	if out.TxRef == "" {
		return "", apperror.ErrPool("withdraw", fmt.Errorf("pool returned no tx ref"))
	}
	return out.TxRef, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal pool payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("build pool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	op := strings.TrimPrefix(req.URL.Path, "/v1/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.ErrPool(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return apperror.ErrPool(op, fmt.Errorf("pool status %d: %s", resp.StatusCode, apiErr.Error))
		}
		return apperror.ErrPool(op, fmt.Errorf("pool status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.ErrPool(op, fmt.Errorf("decode pool response: %w", err))
	}
	return nil
}
