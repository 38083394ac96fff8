package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
)

// ManualConfidence is recorded when a user categorizes a transaction
// themselves.
const ManualConfidence = 1.0

// TransactionService exposes transaction queries and manual
// categorization.
type TransactionService struct {
	store Store
}

func NewTransactionService(store Store) *TransactionService {
	return &TransactionService{store: store}
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *TransactionService) List(ctx context.Context, filter TransactionFilter) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, filter)
}

func (s *TransactionService) ListUncategorized(ctx context.Context, userID int64, limit int) ([]core.Transaction, error) {
	return s.store.ListUncategorizedTransactions(ctx, userID, limit)
}

func (s *TransactionService) PrimaryCategory(ctx context.Context, transactionID int64) (core.Category, error) {
	return s.store.PrimaryCategory(ctx, transactionID)
}

// Categorize records the user's category choice for a transaction,
// replacing whatever the matcher picked. The category must belong to
// the same user as the transaction's account.
func (s *TransactionService) Categorize(ctx context.Context, transactionID, categoryID int64) (core.Classification, error) {
	tx, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return core.Classification{}, fmt.Errorf("get transaction: %w", err)
	}
	account, err := s.store.GetAccount(ctx, tx.AccountID)
	if err != nil {
		return core.Classification{}, fmt.Errorf("get account: %w", err)
	}
	category, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return core.Classification{}, fmt.Errorf("get category: %w", err)
	}
	if category.UserID != account.UserID {
		return core.Classification{}, fmt.Errorf("category %d: %w", categoryID, core.ErrNotFound)
	}

	c, err := s.store.Classify(ctx, transactionID, categoryID, ManualConfidence, false)
	if err != nil {
		return core.Classification{}, fmt.Errorf("classify: %w", err)
	}
	slog.InfoContext(ctx, "Transaction categorized manually",
		"transaction_id", transactionID,
		"category", category.FullName())
	return c, nil
}
