package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/store"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/worker"
)

const settlementBatch = 100

// SettlementWorker periodically retries settlements left pending.
type SettlementWorker struct {
	transactions store.TransactionStore
	pool         *worker.Pool
	interval     time.Duration
	logger       *slog.Logger
}

func NewSettlementWorker(transactions store.TransactionStore, pool *worker.Pool, interval time.Duration, logger *slog.Logger) *SettlementWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SettlementWorker{transactions: transactions, pool: pool, interval: interval, logger: logger}
}

// RunOnce queues every pending settlement and returns how many were queued.
func (w *SettlementWorker) RunOnce(ctx context.Context) (int, error) {
	pending, err := w.transactions.ListPendingSettlement(ctx, settlementBatch)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, tx := range pending {
		if w.pool.Submit(tx.TransactionID) {
			queued++
		}
	}
	if queued > 0 {
		w.logger.InfoContext(ctx, "settlements queued", "count", queued, "pending", len(pending))
	}
	return queued, nil
}

// Run ticks until ctx is cancelled.
func (w *SettlementWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "failed to list pending settlements", "error", err)
			}
		}
	}
}
