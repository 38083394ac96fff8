package services

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// TransactionFilter narrows transaction listings. Zero values mean
// "no filter"; Limit zero falls back to the store's default.
type TransactionFilter struct {
	UserID     int64
	AccountID  int64
	CategoryID int64
	Start      time.Time
	End        time.Time
	Pending    *bool
	Limit      int
}

// Ports for the persistence layer. The SQLite repository and the
// in-memory store both satisfy Store; the engine and the HTTP surface
// only ever see these interfaces.
type (
	AccountStore interface {
		GetAccount(ctx context.Context, id int64) (core.Account, error)
		CreateAccount(ctx context.Context, account core.Account) (core.Account, error)
		ListAccountsByUser(ctx context.Context, userID int64) ([]core.Account, error)

		// Linked listings return active accounts with a non-empty
		// credential, the population batch syncs operate on.
		ListLinkedAccounts(ctx context.Context) ([]core.Account, error)
		ListLinkedAccountsByUser(ctx context.Context, userID int64) ([]core.Account, error)

		UpdateAccountBalances(ctx context.Context, id int64, current, available core.Money, syncedAt time.Time) error
		MarkAccountSynced(ctx context.Context, id int64, at time.Time) error
		MarkAccountSyncError(ctx context.Context, id int64, at time.Time) error

		// UnlinkAccount clears the credential, deactivates the account
		// and sets sync status to disconnected.
		UnlinkAccount(ctx context.Context, id int64) error
	}

	TransactionStore interface {
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		GetTransactionByProviderID(ctx context.Context, providerTransactionID string) (core.Transaction, error)
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)

		// UpdateTransactionProviderFields mutates the only two fields
		// the provider may correct after creation.
		UpdateTransactionProviderFields(ctx context.Context, id int64, amount core.Money, pending bool) error

		ListTransactions(ctx context.Context, filter TransactionFilter) ([]core.Transaction, error)
		ListUncategorizedTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error)
	}

	CategoryStore interface {
		GetCategory(ctx context.Context, id int64) (core.Category, error)
		CreateCategory(ctx context.Context, category core.Category) (core.Category, error)
		ListCategoriesByUser(ctx context.Context, userID int64) ([]core.Category, error)
	}

	ClassificationStore interface {
		// Classify atomically replaces any existing classification for
		// the transaction. Auto classifications never displace a manual
		// one, and identical auto re-runs are no-ops.
		Classify(ctx context.Context, transactionID, categoryID int64, confidence float64, auto bool) (core.Classification, error)

		// PrimaryCategory returns the category of the transaction's
		// sole classification, or core.ErrNotFound.
		PrimaryCategory(ctx context.Context, transactionID int64) (core.Category, error)
	}

	UserStore interface {
		CreateUser(ctx context.Context, email string) (int64, error)
	}

	Store interface {
		AccountStore
		TransactionStore
		CategoryStore
		ClassificationStore
		UserStore
	}
)
