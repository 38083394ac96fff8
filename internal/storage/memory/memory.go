// Package memory implements the persistence ports with in-memory maps.
// It backs tests and the memory data backend, and mirrors the SQLite
// repository's semantics including classification exclusivity.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type Store struct {
	mu              sync.Mutex
	nextID          int64
	users           map[int64]string
	accounts        map[int64]core.Account
	transactions    map[int64]core.Transaction
	categories      map[int64]core.Category
	classifications map[int64]core.Classification
}

func NewStore() *Store {
	return &Store{
		users:           make(map[int64]string),
		accounts:        make(map[int64]core.Account),
		transactions:    make(map[int64]core.Transaction),
		categories:      make(map[int64]core.Category),
		classifications: make(map[int64]core.Classification),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateUser(_ context.Context, email string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.users[id] = email
	return id, nil
}

func (s *Store) GetAccount(_ context.Context, id int64) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, core.ErrNotFound
	}
	return a, nil
}

func (s *Store) CreateAccount(_ context.Context, account core.Account) (core.Account, error) {
	if err := account.Validate(); err != nil {
		return core.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if account.SyncStatus == "" {
		account.SyncStatus = core.SyncStatusConnected
	}
	account.ID = s.id()
	s.accounts[account.ID] = account
	return account, nil
}

func (s *Store) ListAccountsByUser(_ context.Context, userID int64) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectAccounts(func(a core.Account) bool {
		return a.UserID == userID
	}), nil
}

func (s *Store) ListLinkedAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectAccounts(func(a core.Account) bool {
		return a.Active && a.Linked()
	}), nil
}

func (s *Store) ListLinkedAccountsByUser(_ context.Context, userID int64) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectAccounts(func(a core.Account) bool {
		return a.UserID == userID && a.Active && a.Linked()
	}), nil
}

func (s *Store) selectAccounts(keep func(core.Account) bool) []core.Account {
	var out []core.Account
	for _, a := range s.accounts {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) UpdateAccountBalances(_ context.Context, id int64, current, available core.Money, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.ErrNotFound
	}
	a.BalanceCurrent = current
	a.BalanceAvailable = available
	a.LastSyncAt = syncedAt
	s.accounts[id] = a
	return nil
}

func (s *Store) MarkAccountSynced(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.ErrNotFound
	}
	a.SyncStatus = core.SyncStatusConnected
	a.LastSyncAt = at
	s.accounts[id] = a
	return nil
}

func (s *Store) MarkAccountSyncError(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.ErrNotFound
	}
	a.SyncStatus = core.SyncStatusError
	a.LastErrorAt = at
	s.accounts[id] = a
	return nil
}

func (s *Store) UnlinkAccount(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.ErrNotFound
	}
	a.Credential = ""
	a.Active = false
	a.SyncStatus = core.SyncStatusDisconnected
	s.accounts[id] = a
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

func (s *Store) GetTransactionByProviderID(_ context.Context, providerTransactionID string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.ProviderTransactionID == providerTransactionID {
			return t, nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.ProviderTransactionID == tx.ProviderTransactionID {
			return core.Transaction{}, fmt.Errorf("transaction %q already exists", tx.ProviderTransactionID)
		}
	}
	tx.ID = s.id()
	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) UpdateTransactionProviderFields(_ context.Context, id int64, amount core.Money, pending bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.ErrNotFound
	}
	t.Amount = amount
	t.Pending = pending
	s.transactions[id] = t
	return nil
}

func (s *Store) ListTransactions(_ context.Context, filter services.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Transaction
	for _, t := range s.transactions {
		if filter.AccountID != 0 && t.AccountID != filter.AccountID {
			continue
		}
		if filter.UserID != 0 {
			a, ok := s.accounts[t.AccountID]
			if !ok || a.UserID != filter.UserID {
				continue
			}
		}
		if !filter.Start.IsZero() && t.Date.Before(filter.Start) {
			continue
		}
		if !filter.End.IsZero() && t.Date.After(filter.End) {
			continue
		}
		if filter.CategoryID != 0 && !s.classifiedAs(t.ID, filter.CategoryID) {
			continue
		}
		if filter.Pending != nil && t.Pending != *filter.Pending {
			continue
		}
		out = append(out, t)
	}
	sortTransactions(out)
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// classifiedAs reports whether a classification maps the transaction to
// the category. Callers hold s.mu.
func (s *Store) classifiedAs(transactionID, categoryID int64) bool {
	for _, c := range s.classifications {
		if c.TransactionID == transactionID && c.CategoryID == categoryID {
			return true
		}
	}
	return false
}

func (s *Store) ListUncategorizedTransactions(_ context.Context, userID int64, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	classified := make(map[int64]bool, len(s.classifications))
	for _, c := range s.classifications {
		classified[c.TransactionID] = true
	}

	var out []core.Transaction
	for _, t := range s.transactions {
		if classified[t.ID] {
			continue
		}
		a, ok := s.accounts[t.AccountID]
		if !ok || a.UserID != userID {
			continue
		}
		out = append(out, t)
	}
	sortTransactions(out)
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortTransactions(txs []core.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].ID > txs[j].ID
	})
}

func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (s *Store) CreateCategory(_ context.Context, category core.Category) (core.Category, error) {
	if err := category.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.UserID == category.UserID && strings.EqualFold(c.Name, category.Name) {
			return core.Category{}, fmt.Errorf("category %q already exists", category.Name)
		}
	}
	if category.ParentID != 0 {
		parent, ok := s.categories[category.ParentID]
		if !ok {
			return core.Category{}, core.ErrNotFound
		}
		category.ParentName = parent.Name
	}
	category.ID = s.id()
	s.categories[category.ID] = category
	return category, nil
}

func (s *Store) ListCategoriesByUser(_ context.Context, userID int64) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Classify mirrors the SQLite repository: at most one classification
// per transaction, manual wins over auto, identical auto re-runs are
// no-ops.
func (s *Store) Classify(_ context.Context, transactionID, categoryID int64, confidence float64, auto bool) (core.Classification, error) {
	c := core.Classification{
		TransactionID:  transactionID,
		CategoryID:     categoryID,
		Confidence:     confidence,
		AutoClassified: auto,
	}
	if err := c.Validate(); err != nil {
		return core.Classification{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing []core.Classification
	for _, ec := range s.classifications {
		if ec.TransactionID == transactionID {
			existing = append(existing, ec)
		}
	}
	if len(existing) > 1 {
		return core.Classification{}, &core.InvariantViolationError{
			Invariant: "one classification per transaction",
			Detail:    fmt.Sprintf("transaction %d has %d classifications", transactionID, len(existing)),
		}
	}
	if len(existing) == 1 {
		prev := existing[0]
		if auto && !prev.AutoClassified {
			return prev, nil
		}
		if auto && prev.CategoryID == categoryID && prev.Confidence == confidence {
			return prev, nil
		}
		delete(s.classifications, prev.ID)
	}

	c.ID = s.id()
	c.CreatedAt = time.Now().UTC()
	s.classifications[c.ID] = c
	return c, nil
}

func (s *Store) PrimaryCategory(_ context.Context, transactionID int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.classifications {
		if c.TransactionID == transactionID {
			cat, ok := s.categories[c.CategoryID]
			if !ok {
				return core.Category{}, core.ErrNotFound
			}
			return cat, nil
		}
	}
	return core.Category{}, core.ErrNotFound
}

// Corrupt inserts a classification row directly, bypassing Classify's
// exclusivity check. Tests use it to stage invariant violations.
func (s *Store) Corrupt(c core.Classification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.classifications[c.ID] = c
}
