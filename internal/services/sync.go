package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/store"
)

// SettleFunc runs the completion side effect for one transaction.
type SettleFunc func(ctx context.Context, transactionID string) error

type SyncResult struct {
	Transaction *models.Transaction
	// Ignored is set when the transaction was already terminal and the update
	// was dropped.
	Ignored bool
	// Completed is set for the one caller that moved the transaction to
	// completed.
	Completed bool
}

// StatusSync applies provider statuses coming from polling and webhooks.
// Terminal statuses are final: the first one recorded wins.
type StatusSync struct {
	transactions store.TransactionStore
	settle       SettleFunc
	logger       *slog.Logger
}

func NewStatusSync(transactions store.TransactionStore, settle SettleFunc, logger *slog.Logger) *StatusSync {
	return &StatusSync{transactions: transactions, settle: settle, logger: logger}
}

func (s *StatusSync) Apply(ctx context.Context, tx *models.Transaction, u store.StatusUpdate) (*SyncResult, error) {
	if tx.Status.IsTerminal() {
		s.logger.InfoContext(ctx, "transaction already final, update ignored",
			"transaction_id", tx.TransactionID,
			"status", tx.Status,
			"incoming", u.Status,
		)
		return &SyncResult{Transaction: tx, Ignored: true}, nil
	}

	if u.Status != models.StatusCompleted {
		updated, ok, err := s.transactions.ApplyStatus(ctx, tx.TransactionID, u)
		if err != nil {
			return nil, fmt.Errorf("failed to update status of %s: %w", tx.TransactionID, err)
		}
		if !ok {
			return &SyncResult{Transaction: updated, Ignored: true}, nil
		}
		s.logger.InfoContext(ctx, "transaction status updated", "transaction_id", tx.TransactionID, "status", updated.Status)
		return &SyncResult{Transaction: updated}, nil
	}

	updated, won, err := s.transactions.Complete(ctx, tx.TransactionID, u)
	if err != nil {
		return nil, fmt.Errorf("failed to complete %s: %w", tx.TransactionID, err)
	}
	if !won {
		s.logger.InfoContext(ctx, "transaction completed by another delivery", "transaction_id", tx.TransactionID)
		return &SyncResult{Transaction: updated, Ignored: true}, nil
	}
	s.logger.InfoContext(ctx, "transaction completed", "transaction_id", tx.TransactionID, "amount", updated.Amount.String())

	if s.settle != nil {
		// a failed settlement stays pending for the settlement worker
		if err := s.settle(ctx, tx.TransactionID); err != nil {
			s.logger.ErrorContext(ctx, "settlement failed", "transaction_id", tx.TransactionID, "error", err)
		}
		if fresh, err := s.transactions.GetByTransactionID(ctx, tx.TransactionID); err == nil {
			updated = fresh
		}
	}
	return &SyncResult{Transaction: updated, Completed: true}, nil
}
