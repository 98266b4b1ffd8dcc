package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"private-transfer-relay/internal/core/domain"
	"private-transfer-relay/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// TransferRepo implements ports.TransferRepository.
type TransferRepo struct {
	pool Pool
}

// NewTransferRepo creates a new TransferRepo.
func NewTransferRepo(pool Pool) *TransferRepo {
	return &TransferRepo{pool: pool}
}

const transferColumns = `id, requester_id, requester_name, amount, recipient,
	deposit_address, deposit_secret, status, deposit_tx, withdraw_tx, created_at, updated_at`

// Create inserts a new transfer.
func (r *TransferRepo) Create(ctx context.Context, t *domain.Transfer) error {
	query := `INSERT INTO transfers (id, requester_id, requester_name, amount, recipient,
		deposit_address, deposit_secret, status, deposit_tx, withdraw_tx, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.RequesterID, t.RequesterName, t.Amount, t.Recipient,
		t.DepositAddress, t.DepositSecret, t.Status,
		t.DepositTx, t.WithdrawTx, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// GetByID fetches a transfer by its public id. Returns nil, nil when no such
// transfer exists.
func (r *TransferRepo) GetByID(ctx context.Context, id string) (*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`

	t, err := r.scanTransfer(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// ListPending returns pending transfers created within the window, oldest
// first. Transfers older than the window are the expiry pass's business.
func (r *TransferRepo) ListPending(ctx context.Context, youngerThan time.Duration) ([]domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers
		WHERE status = $1 AND created_at > $2 ORDER BY created_at ASC`

	cutoff := time.Now().UTC().Add(-youngerThan)
	rows, err := r.pool.Query(ctx, query, domain.TransferStatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list pending transfers: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// ListByStatus returns all transfers in the given status, oldest first.
func (r *TransferRepo) ListByStatus(ctx context.Context, status domain.TransferStatus) ([]domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers
		WHERE status = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list transfers by status: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// UpdateStatus moves the transfer from one status to another and records any
// transaction refs supplied. Absent refs leave the stored values untouched.
// The WHERE clause pins the expected current status, so a row that was moved
// by a concurrent actor (or is already terminal) is never overwritten; that
// case surfaces as ports.ErrStatusConflict.
func (r *TransferRepo) UpdateStatus(ctx context.Context, id string, from, to domain.TransferStatus, refs ports.TxRefs) error {
	query := `UPDATE transfers SET status = $1, updated_at = $2,
		deposit_tx = COALESCE($3, deposit_tx), withdraw_tx = COALESCE($4, withdraw_tx)
		WHERE id = $5 AND status = $6`

	tag, err := r.pool.Exec(ctx, query, to, time.Now().UTC(), refs.DepositTx, refs.WithdrawTx, id, from)
	if err != nil {
		return fmt.Errorf("update transfer status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transfer %s is not %s", ports.ErrStatusConflict, id, from)
	}
	return nil
}

// ExpirePending bulk-expires pending transfers older than the window.
func (r *TransferRepo) ExpirePending(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `UPDATE transfers SET status = $1, updated_at = $2
		WHERE status = $3 AND created_at <= $4`

	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := r.pool.Exec(ctx, query, domain.TransferStatusExpired, time.Now().UTC(), domain.TransferStatusPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire pending transfers: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *TransferRepo) scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var t domain.Transfer
	err := row.Scan(
		&t.ID, &t.RequesterID, &t.RequesterName, &t.Amount, &t.Recipient,
		&t.DepositAddress, &t.DepositSecret, &t.Status,
		&t.DepositTx, &t.WithdrawTx, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan transfer: %w", err)
	}
	return &t, nil
}

func (r *TransferRepo) collect(rows pgx.Rows) ([]domain.Transfer, error) {
	var out []domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		if err := rows.Scan(
			&t.ID, &t.RequesterID, &t.RequesterName, &t.Amount, &t.Recipient,
			&t.DepositAddress, &t.DepositSecret, &t.Status,
			&t.DepositTx, &t.WithdrawTx, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transfer row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return out, nil
}
