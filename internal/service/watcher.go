package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"private-transfer-relay/internal/core/domain"
	"private-transfer-relay/internal/core/ports"
	"private-transfer-relay/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// PaymentWatcher polls deposit addresses of pending transfers. When a
// deposit covering the expected amount (within tolerance) shows up, the
// transfer is marked deposited and handed to the queue. Pending transfers
// that never receive a deposit are expired after the configured window.
type PaymentWatcher struct {
	repo     ports.TransferRepository
	oracle   ports.BalanceOracle
	queue    ports.TransferQueue
	notifier ports.Notifier
	interval time.Duration
	expiry   time.Duration
	met      *metrics.Registry
	log      zerolog.Logger

	cron *cron.Cron
}

// NewPaymentWatcher creates a new PaymentWatcher.
func NewPaymentWatcher(
	repo ports.TransferRepository,
	oracle ports.BalanceOracle,
	queue ports.TransferQueue,
	notifier ports.Notifier,
	interval time.Duration,
	expiry time.Duration,
	met *metrics.Registry,
	log zerolog.Logger,
) *PaymentWatcher {
	return &PaymentWatcher{
		repo:     repo,
		oracle:   oracle,
		queue:    queue,
		notifier: notifier,
		interval: interval,
		expiry:   expiry,
		met:      met,
		log:      log,
	}
}

// Start schedules the polling cycle. It returns immediately; cycles run on
// the cron goroutine until Stop is called. A cycle that outlasts the
// interval (many transfers, slow RPC) makes the next tick wait instead of
// running alongside it, so no two cycles ever observe the same pending row
// concurrently.
func (w *PaymentWatcher) Start(ctx context.Context) error {
	cronLog := cron.PrintfLogger(&w.log)
	w.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLog), cron.Recover(cronLog)))
	_, err := w.cron.AddFunc(fmt.Sprintf("@every %s", w.interval), func() {
		w.RunCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule watcher: %w", err)
	}
	w.cron.Start()
	w.log.Info().Dur("interval", w.interval).Dur("expiry", w.expiry).Msg("payment watcher started")
	return nil
}

// Stop halts scheduling and waits for an in-progress cycle to finish.
func (w *PaymentWatcher) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}

// RunCycle performs one pass: expire stale pending transfers, then check the
// deposit address of each remaining one. A failure on one transfer never
// blocks the rest of the cycle.
func (w *PaymentWatcher) RunCycle(ctx context.Context) {
	expired, err := w.repo.ExpirePending(ctx, w.expiry)
	if err != nil {
		w.met.IncWatcherError()
		w.log.Error().Err(err).Msg("expiring stale transfers")
	} else if expired > 0 {
		w.met.AddExpired(expired)
		w.log.Info().Int64("count", expired).Msg("expired unfunded transfers")
	}

	pending, err := w.repo.ListPending(ctx, w.expiry)
	if err != nil {
		w.met.IncWatcherError()
		w.log.Error().Err(err).Msg("listing pending transfers")
		return
	}

	for i := range pending {
		w.checkDeposit(ctx, &pending[i])
	}

	// Re-enqueue transfers that were already funded but not yet executed,
	// e.g. after a restart. Enqueue is idempotent so transfers already in
	// the queue are untouched.
	deposited, err := w.repo.ListByStatus(ctx, domain.TransferStatusDeposited)
	if err != nil {
		w.met.IncWatcherError()
		w.log.Error().Err(err).Msg("listing deposited transfers")
		return
	}
	for i := range deposited {
		w.queue.Enqueue(&deposited[i])
	}
}

func (w *PaymentWatcher) checkDeposit(ctx context.Context, t *domain.Transfer) {
	balance, err := w.oracle.Balance(ctx, t.DepositAddress)
	if err != nil {
		w.met.IncWatcherError()
		w.log.Warn().Err(err).Str("transfer_id", t.ID).Msg("balance check failed")
		return
	}
	if balance < domain.MinimumDeposit(t.Amount) {
		return
	}

	// Flip the status before enqueueing so a crash between the two leaves
	// the transfer in deposited, where the next boot's watcher scan will
	// not see it as pending and double-charge the sender. The guarded
	// update also settles races between overlapping observers: whoever
	// loses the compare-and-set stands down without notifying.
	if err := w.repo.UpdateStatus(ctx, t.ID, domain.TransferStatusPending, domain.TransferStatusDeposited, ports.TxRefs{}); err != nil {
		if errors.Is(err, ports.ErrStatusConflict) {
			w.log.Debug().Str("transfer_id", t.ID).Msg("transfer no longer pending, skipping")
			return
		}
		w.met.IncWatcherError()
		w.log.Error().Err(err).Str("transfer_id", t.ID).Msg("marking deposited")
		return
	}
	t.Status = domain.TransferStatusDeposited
	w.met.IncDepositDetected()
	w.log.Info().
		Str("transfer_id", t.ID).
		Int64("balance", balance).
		Int64("expected", t.Amount).
		Msg("deposit detected")

	if err := w.notifier.Notify(ctx, t.RequesterID, fmt.Sprintf("Payment received for transfer %s. Processing will begin shortly.", t.ID)); err != nil {
		w.log.Warn().Err(err).Str("transfer_id", t.ID).Msg("notification failed")
	}
	w.queue.Enqueue(t)
}
