package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"private-transfer-relay/internal/core/domain"
	"private-transfer-relay/internal/core/ports"
)

// In-memory fakes for the relay's external edges. The repository mimics the
// Postgres adapter's semantics (nil on missing, COALESCE on tx refs); the
// chain fake moves balances the way the node would.

type inMemoryTransferRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Transfer
	order []string
}

func newInMemoryTransferRepo() *inMemoryTransferRepo {
	return &inMemoryTransferRepo{items: map[string]*domain.Transfer{}}
}

func (r *inMemoryTransferRepo) Create(ctx context.Context, t *domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[t.ID]; ok {
		return fmt.Errorf("duplicate transfer id %s", t.ID)
	}
	cp := *t
	r.items[t.ID] = &cp
	r.order = append(r.order, t.ID)
	return nil
}

func (r *inMemoryTransferRepo) GetByID(ctx context.Context, id string) (*domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransferRepo) ListPending(ctx context.Context, youngerThan time.Duration) ([]domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-youngerThan)
	var out []domain.Transfer
	for _, id := range r.order {
		t := r.items[id]
		if t.Status == domain.TransferStatusPending && t.CreatedAt.After(cutoff) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *inMemoryTransferRepo) ListByStatus(ctx context.Context, status domain.TransferStatus) ([]domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transfer
	for _, id := range r.order {
		if t := r.items[id]; t.Status == status {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *inMemoryTransferRepo) UpdateStatus(ctx context.Context, id string, from, to domain.TransferStatus, refs ports.TxRefs) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok || t.Status != from {
		return fmt.Errorf("%w: transfer %s is not %s", ports.ErrStatusConflict, id, from)
	}
	t.Status = to
	t.UpdatedAt = time.Now()
	if refs.DepositTx != nil {
		t.DepositTx = refs.DepositTx
	}
	if refs.WithdrawTx != nil {
		t.WithdrawTx = refs.WithdrawTx
	}
	return nil
}

func (r *inMemoryTransferRepo) ExpirePending(ctx context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var n int64
	for _, t := range r.items {
		if t.Status == domain.TransferStatusPending && !t.CreatedAt.After(cutoff) {
			t.Status = domain.TransferStatusExpired
			t.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

// backdate rewrites a transfer's creation time, for expiry tests.
func (r *inMemoryTransferRepo) backdate(id string, age time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.items[id]; ok {
		t.CreatedAt = time.Now().Add(-age)
	}
}

// fakeChain implements ports.ChainClient with an in-memory ledger.
type fakeChain struct {
	mu       sync.Mutex
	balances map[string]int64
	secrets  map[string]string // secret -> address
	nextID   int
	txSeq    int
	sweeps   []sweep
}

type sweep struct {
	from   string
	to     string
	amount int64
	at     time.Time
}

const relayerAddress = "0xRelayer"

func newFakeChain() *fakeChain {
	return &fakeChain{
		balances: map[string]int64{},
		secrets:  map[string]string{},
	}
}

func (c *fakeChain) fund(address string, amount int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[address] += amount
}

func (c *fakeChain) Balance(ctx context.Context, address string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[address], nil
}

func (c *fakeChain) GenerateWallet() (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	address := fmt.Sprintf("0xDeposit%04d", c.nextID)
	secret := fmt.Sprintf("secret%04d", c.nextID)
	c.secrets[secret] = address
	return address, secret, nil
}

func (c *fakeChain) SendTransfer(ctx context.Context, fromSecret string, toAddress string, amount int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	from, ok := c.secrets[fromSecret]
	if !ok {
		return "", fmt.Errorf("unknown signing secret")
	}
	if c.balances[from] < amount {
		return "", fmt.Errorf("insufficient balance in %s", from)
	}
	c.balances[from] -= amount
	c.balances[toAddress] += amount
	c.txSeq++
	return fmt.Sprintf("0xTx%04d", c.txSeq), nil
}

// Sweep drains the funded address minus the reserve. The fake charges no
// gas, so the swept amount is simply balance - reserve.
func (c *fakeChain) Sweep(ctx context.Context, fromSecret string, toAddress string, reserve int64) (string, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	from, ok := c.secrets[fromSecret]
	if !ok {
		return "", 0, fmt.Errorf("unknown signing secret")
	}
	amount := c.balances[from] - reserve
	if amount <= 0 {
		return "", 0, fmt.Errorf("%w: %s holds %d units against %d units reserve",
			ports.ErrInsufficientBalance, from, c.balances[from], reserve)
	}
	c.balances[from] -= amount
	c.balances[toAddress] += amount
	c.txSeq++
	tx := fmt.Sprintf("0xTx%04d", c.txSeq)
	c.sweeps = append(c.sweeps, sweep{from: from, to: toAddress, amount: amount, at: time.Now()})
	return tx, amount, nil
}

func (c *fakeChain) RelayerAddress() string { return relayerAddress }

func (c *fakeChain) IsValidAddress(address string) bool {
	return strings.HasPrefix(address, "0x") && len(address) > 4
}

func (c *fakeChain) sweepLog() []sweep {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sweep(nil), c.sweeps...)
}

// fakePool implements ports.PoolService with a simple shielded balance.
// depositLatency slows Deposit down so tests can observe queue behavior
// while a transfer is mid-execution; overlapped trips if two deposits
// ever run concurrently.
type fakePool struct {
	mu        sync.Mutex
	balance   int64
	withdraws []poolWithdraw
	txSeq     int

	depositLatency time.Duration
	active         int32
	overlapped     atomic.Bool
}

type poolWithdraw struct {
	amount    int64
	recipient string
	at        time.Time
}

func newFakePool() *fakePool { return &fakePool{} }

func (p *fakePool) Deposit(ctx context.Context, amount int64) error {
	if atomic.AddInt32(&p.active, 1) > 1 {
		p.overlapped.Store(true)
	}
	defer atomic.AddInt32(&p.active, -1)
	if p.depositLatency > 0 {
		time.Sleep(p.depositLatency)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balance += amount
	return nil
}

func (p *fakePool) PrivateBalance(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

func (p *fakePool) Withdraw(ctx context.Context, amount int64, recipient string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if amount > p.balance {
		return "", fmt.Errorf("pool balance too low")
	}
	p.balance -= amount
	p.txSeq++
	p.withdraws = append(p.withdraws, poolWithdraw{amount: amount, recipient: recipient, at: time.Now()})
	return fmt.Sprintf("pool-tx-%04d", p.txSeq), nil
}

func (p *fakePool) withdrawLog() []poolWithdraw {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]poolWithdraw(nil), p.withdraws...)
}

// recordingNotifier captures messages per user.
type recordingNotifier struct {
	mu       sync.Mutex
	messages map[int64][]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{messages: map[int64][]string{}}
}

func (n *recordingNotifier) Notify(ctx context.Context, userID int64, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages[userID] = append(n.messages[userID], message)
	return nil
}

func (n *recordingNotifier) forUser(userID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages[userID]...)
}
