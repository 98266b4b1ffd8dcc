package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"private-transfer-relay/internal/core/domain"
	"private-transfer-relay/internal/core/ports"
	"private-transfer-relay/internal/metrics"

	"github.com/rs/zerolog"
)

// QueueWorker implements ports.TransferQueue. Deposited transfers are
// executed strictly one at a time, in arrival order, by a single worker
// goroutine. The worker starts itself on the first enqueue and parks when
// the queue drains, so an idle relay has no spinning goroutine.
type QueueWorker struct {
	executor    ports.TransferExecutor
	notifier    ports.Notifier
	settleDelay time.Duration
	met         *metrics.Registry
	log         zerolog.Logger

	mu       sync.Mutex
	items    []*domain.Transfer
	queued   map[string]bool
	running  bool
	inFlight bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewQueueWorker creates a new QueueWorker.
func NewQueueWorker(
	executor ports.TransferExecutor,
	notifier ports.Notifier,
	settleDelay time.Duration,
	met *metrics.Registry,
	log zerolog.Logger,
) *QueueWorker {
	return &QueueWorker{
		executor:    executor,
		notifier:    notifier,
		settleDelay: settleDelay,
		met:         met,
		log:         log,
		queued:      map[string]bool{},
		done:        make(chan struct{}),
	}
}

// Enqueue adds a transfer to the processing queue. It reports false when the
// transfer is already waiting or currently executing, so repeated watcher
// detections of the same deposit are harmless. When the transfer lands
// behind others, the requester is told their position.
func (q *QueueWorker) Enqueue(t *domain.Transfer) bool {
	q.mu.Lock()
	if q.queued[t.ID] {
		q.mu.Unlock()
		return false
	}
	q.queued[t.ID] = true
	q.items = append(q.items, t)

	position := len(q.items)
	if q.inFlight {
		position++
	}
	depth := len(q.items)
	start := !q.running
	if start {
		q.running = true
		q.wg.Add(1)
	}
	q.mu.Unlock()

	q.met.SetQueueDepth(depth)
	q.log.Info().Str("transfer_id", t.ID).Int("position", position).Msg("transfer queued")

	if position > 1 {
		q.notify(t, fmt.Sprintf("Your transfer %s is queued at position %d. It will be processed in order.", t.ID, position))
	}
	if start {
		go q.run()
	}
	return true
}

// Shutdown waits for the in-flight transfer to finish. Queued transfers that
// have not started stay in the deposited state and are re-enqueued by the
// watcher on the next boot.
func (q *QueueWorker) Shutdown(ctx context.Context) error {
	close(q.done)
	stopped := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *QueueWorker) run() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.running = false
			q.mu.Unlock()
			q.met.SetQueueDepth(0)
			return
		}
		t := q.items[0]
		q.items = q.items[1:]
		q.inFlight = true
		depth := len(q.items)
		q.mu.Unlock()

		q.met.SetQueueDepth(depth)
		q.process(t)

		q.mu.Lock()
		q.inFlight = false
		delete(q.queued, t.ID)
		more := len(q.items) > 0
		q.mu.Unlock()

		select {
		case <-q.done:
			q.mu.Lock()
			q.running = false
			q.mu.Unlock()
			return
		default:
		}

		// Let the relayer account settle between consecutive transfers.
		if more && q.settleDelay > 0 {
			select {
			case <-q.done:
			case <-time.After(q.settleDelay):
			}
		}
	}
}

// process runs one execution attempt and tells the requester how it ended.
// The outcome message follows the status the executor persisted: a transfer
// it never touched (already settled elsewhere, or a write that never landed
// and will be retried by the watcher) produces no user-facing message.
func (q *QueueWorker) process(t *domain.Transfer) {
	ctx := context.Background()
	err := q.executor.Execute(ctx, t)
	switch t.Status {
	case domain.TransferStatusComplete:
		msg := fmt.Sprintf("Your private transfer %s is complete.", t.ID)
		if t.WithdrawTx != nil {
			msg = fmt.Sprintf("Your private transfer %s is complete. Payout tx: %s", t.ID, *t.WithdrawTx)
		}
		q.notify(t, msg)
	case domain.TransferStatusFailed:
		q.notify(t, fmt.Sprintf("Your transfer %s could not be completed. The team has been notified.", t.ID))
	default:
		q.log.Info().Err(err).Str("transfer_id", t.ID).Str("status", string(t.Status)).Msg("attempt ended without a transition")
	}
}

func (q *QueueWorker) notify(t *domain.Transfer, message string) {
	if err := q.notifier.Notify(context.Background(), t.RequesterID, message); err != nil {
		q.log.Warn().Err(err).Str("transfer_id", t.ID).Msg("notification failed")
	}
}
