package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/matcher"
	"fintrack/internal/provider"
)

const (
	defaultSyncWindow = 30 * 24 * time.Hour
	defaultWorkers    = 4
)

// SyncResult reports what a single account sync changed.
type SyncResult struct {
	Created int
	Updated int
}

// BatchItemError records one failed account inside a batch.
type BatchItemError struct {
	AccountID   int64
	AccountName string
	Err         error
}

// BatchResult aggregates a multi-account sync. A non-empty Errors
// slice does not mean the batch failed: every other account still
// synced.
type BatchResult struct {
	Synced  int
	Created int
	Updated int
	Errors  []BatchItemError
}

// SyncEngine pulls transactions and balances from the provider and
// reconciles them into the store, classifying new transactions as it
// goes.
type SyncEngine struct {
	store    Store
	provider provider.Client
	window   time.Duration
	workers  int
	locks    *accountLocks
	now      func() time.Time
}

type SyncEngineOption func(*SyncEngine)

// WithSyncWindow overrides how far back each sync reaches.
func WithSyncWindow(window time.Duration) SyncEngineOption {
	return func(e *SyncEngine) {
		if window > 0 {
			e.window = window
		}
	}
}

// WithWorkers bounds how many accounts a batch syncs concurrently.
func WithWorkers(n int) SyncEngineOption {
	return func(e *SyncEngine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithClock(now func() time.Time) SyncEngineOption {
	return func(e *SyncEngine) {
		e.now = now
	}
}

func NewSyncEngine(store Store, client provider.Client, opts ...SyncEngineOption) *SyncEngine {
	e := &SyncEngine{
		store:    store,
		provider: client,
		window:   defaultSyncWindow,
		workers:  defaultWorkers,
		locks:    newAccountLocks(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncAccount synchronizes one account: fetches the window of
// transactions, overwrites balances from the provider snapshot, then
// creates or updates each transaction. Individual bad rows are skipped
// and logged; only provider and balance failures abort the sync.
func (e *SyncEngine) SyncAccount(ctx context.Context, account core.Account) (SyncResult, error) {
	if !account.Linked() {
		return SyncResult{}, fmt.Errorf("account %d: %w", account.ID, core.ErrNotLinked)
	}

	// Concurrent syncs of the same account would race on
	// create-vs-update decisions, so they are serialized.
	unlock := e.locks.lock(account.ID)
	defer unlock()

	now := e.now()
	start := now.Add(-e.window)

	slog.InfoContext(ctx, "Syncing account",
		"account_id", account.ID,
		"account", account.DisplayName(),
		"window_start", start.Format("2006-01-02"))

	txs, err := e.provider.FetchTransactions(ctx, account.Credential, start, now)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch transactions: %w", err)
	}

	if err := e.refreshBalances(ctx, account, now); err != nil {
		return SyncResult{}, err
	}

	categories, err := e.store.ListCategoriesByUser(ctx, account.UserID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list categories: %w", err)
	}

	var result SyncResult
	for _, pt := range txs {
		// The feed may interleave sibling accounts from the same
		// credential.
		if pt.ProviderAccountID != account.ProviderAccountID {
			continue
		}
		if err := pt.Validate(); err != nil {
			slog.WarnContext(ctx, "Skipping invalid transaction from provider",
				"account_id", account.ID,
				"provider_transaction_id", pt.ProviderTransactionID,
				"error", err)
			continue
		}

		existing, err := e.store.GetTransactionByProviderID(ctx, pt.ProviderTransactionID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			if e.createAndClassify(ctx, account, pt, categories) {
				result.Created++
			}
		case err != nil:
			slog.ErrorContext(ctx, "Failed to look up transaction",
				"provider_transaction_id", pt.ProviderTransactionID,
				"error", err)
		default:
			if existing.Amount == pt.Amount && existing.Pending == pt.Pending {
				continue
			}
			if err := e.store.UpdateTransactionProviderFields(ctx, existing.ID, pt.Amount, pt.Pending); err != nil {
				slog.ErrorContext(ctx, "Failed to update transaction",
					"transaction_id", existing.ID,
					"error", err)
				continue
			}
			result.Updated++
		}
	}

	slog.InfoContext(ctx, "Account sync complete",
		"account_id", account.ID,
		"created", result.Created,
		"updated", result.Updated)
	return result, nil
}

// refreshBalances overwrites stored balances with the provider's
// current snapshot. The provider omitting the account is not an error;
// the stale balances simply stand.
func (e *SyncEngine) refreshBalances(ctx context.Context, account core.Account, now time.Time) error {
	providerAccounts, err := e.provider.FetchAccounts(ctx, account.Credential)
	if err != nil {
		return fmt.Errorf("fetch accounts: %w", err)
	}
	for _, pa := range providerAccounts {
		if pa.ProviderAccountID != account.ProviderAccountID {
			continue
		}
		if err := e.store.UpdateAccountBalances(ctx, account.ID, pa.BalanceCurrent, pa.BalanceAvailable, now); err != nil {
			return fmt.Errorf("update balances: %w", err)
		}
		return nil
	}
	slog.WarnContext(ctx, "Provider snapshot omitted account, keeping stored balances",
		"account_id", account.ID,
		"provider_account_id", account.ProviderAccountID)
	return nil
}

// createAndClassify stores a new transaction and runs the matcher over
// it. A classification failure downgrades to a log line: the
// transaction itself is already safely stored.
func (e *SyncEngine) createAndClassify(ctx context.Context, account core.Account, pt provider.Transaction, categories []core.Category) bool {
	tx := core.Transaction{
		AccountID:             account.ID,
		ProviderTransactionID: pt.ProviderTransactionID,
		Amount:                pt.Amount,
		Currency:              pt.Currency,
		Date:                  pt.Date,
		Description:           pt.Description,
		MerchantName:          pt.MerchantName,
		Category:              pt.Category,
		Subcategory:           pt.Subcategory,
		Pending:               pt.Pending,
	}
	created, err := e.store.CreateTransaction(ctx, tx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to create transaction",
			"provider_transaction_id", pt.ProviderTransactionID,
			"error", err)
		return false
	}

	match, ok := matcher.Match(created, categories)
	if !ok {
		slog.InfoContext(ctx, "No category match for transaction",
			"transaction_id", created.ID,
			"description", created.Description)
		return true
	}
	if _, err := e.store.Classify(ctx, created.ID, match.Category.ID, match.Confidence, true); err != nil {
		slog.ErrorContext(ctx, "Failed to classify transaction",
			"transaction_id", created.ID,
			"category", match.Category.Name,
			"error", err)
		return true
	}
	slog.InfoContext(ctx, "Transaction classified",
		"transaction_id", created.ID,
		"category", match.Category.FullName(),
		"confidence", match.Confidence)
	return true
}

// SyncUserAccounts syncs every linked account of one user.
func (e *SyncEngine) SyncUserAccounts(ctx context.Context, userID int64) (BatchResult, error) {
	accounts, err := e.store.ListLinkedAccountsByUser(ctx, userID)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list linked accounts: %w", err)
	}
	return e.syncBatch(ctx, accounts), nil
}

// SyncAllAccounts syncs every linked account in the system.
func (e *SyncEngine) SyncAllAccounts(ctx context.Context) (BatchResult, error) {
	accounts, err := e.store.ListLinkedAccounts(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list linked accounts: %w", err)
	}
	return e.syncBatch(ctx, accounts), nil
}

// syncBatch runs accounts through SyncAccount with bounded
// concurrency. One failing account never stops the others; it is
// marked errored and reported in the result.
func (e *SyncEngine) syncBatch(ctx context.Context, accounts []core.Account) BatchResult {
	runID := uuid.NewString()
	slog.InfoContext(ctx, "Starting batch sync",
		"run_id", runID,
		"accounts", len(accounts))

	var (
		mu     sync.Mutex
		result BatchResult
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, account := range accounts {
		g.Go(func() error {
			res, err := e.SyncAccount(ctx, account)
			now := e.now()
			if err != nil {
				slog.ErrorContext(ctx, "Account sync failed",
					"run_id", runID,
					"account_id", account.ID,
					"account", account.DisplayName(),
					"error", err)
				if markErr := e.store.MarkAccountSyncError(ctx, account.ID, now); markErr != nil {
					slog.ErrorContext(ctx, "Failed to mark account sync error",
						"account_id", account.ID,
						"error", markErr)
				}
				mu.Lock()
				result.Errors = append(result.Errors, BatchItemError{
					AccountID:   account.ID,
					AccountName: account.DisplayName(),
					Err:         err,
				})
				mu.Unlock()
				return nil
			}
			if err := e.store.MarkAccountSynced(ctx, account.ID, now); err != nil {
				slog.ErrorContext(ctx, "Failed to mark account synced",
					"account_id", account.ID,
					"error", err)
			}
			mu.Lock()
			result.Synced++
			result.Created += res.Created
			result.Updated += res.Updated
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	slog.InfoContext(ctx, "Batch sync complete",
		"run_id", runID,
		"synced", result.Synced,
		"created", result.Created,
		"updated", result.Updated,
		"failed", len(result.Errors))
	return result
}

// accountLocks serializes syncs per account ID.
type accountLocks struct {
	mu sync.Mutex
	m  map[int64]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{m: make(map[int64]*sync.Mutex)}
}

func (l *accountLocks) lock(id int64) func() {
	l.mu.Lock()
	am, ok := l.m[id]
	if !ok {
		am = &sync.Mutex{}
		l.m[id] = am
	}
	l.mu.Unlock()

	am.Lock()
	return am.Unlock
}
