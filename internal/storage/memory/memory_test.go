package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func seedUserAccount(t *testing.T, store *Store) (int64, core.Account) {
	t.Helper()
	ctx := context.Background()

	userID, err := store.CreateUser(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	account, err := store.CreateAccount(ctx, core.Account{
		UserID:            userID,
		Name:              "Checking",
		InstitutionName:   "Test Bank",
		AccountType:       "checking",
		ProviderAccountID: "acc-1",
		Credential:        "token-1",
		Currency:          "USD",
		Active:            true,
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	return userID, account
}

func seedTransaction(t *testing.T, store *Store, accountID int64, providerID string) core.Transaction {
	t.Helper()
	tx, err := store.CreateTransaction(context.Background(), core.Transaction{
		AccountID:             accountID,
		ProviderTransactionID: providerID,
		Amount:                core.Money{Cents: -1200},
		Currency:              "USD",
		Date:                  time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Description:           "Coffee",
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	return tx
}

func TestClassifyReplacesExisting(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	userID, account := seedUserAccount(t, store)
	tx := seedTransaction(t, store, account.ID, "tx-1")

	food, err := store.CreateCategory(ctx, core.Category{UserID: userID, Name: "Food & Dining", Color: "#FF5733"})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	shopping, err := store.CreateCategory(ctx, core.Category{UserID: userID, Name: "Shopping", Color: "#E74C3C"})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}

	if _, err := store.Classify(ctx, tx.ID, food.ID, 0.80, true); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if _, err := store.Classify(ctx, tx.ID, shopping.ID, 0.90, true); err != nil {
		t.Fatalf("Classify() replace error = %v", err)
	}

	got, err := store.PrimaryCategory(ctx, tx.ID)
	if err != nil {
		t.Fatalf("PrimaryCategory() error = %v", err)
	}
	if got.ID != shopping.ID {
		t.Errorf("PrimaryCategory() = %q, want %q", got.Name, shopping.Name)
	}
}

func TestManualClassificationIsTerminal(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	userID, account := seedUserAccount(t, store)
	tx := seedTransaction(t, store, account.ID, "tx-1")

	food, _ := store.CreateCategory(ctx, core.Category{UserID: userID, Name: "Food & Dining", Color: "#FF5733"})
	bills, _ := store.CreateCategory(ctx, core.Category{UserID: userID, Name: "Bills & Utilities", Color: "#34495E"})

	if _, err := store.Classify(ctx, tx.ID, bills.ID, 1.0, false); err != nil {
		t.Fatalf("manual Classify() error = %v", err)
	}

	// The matcher running again must not displace the user's choice.
	got, err := store.Classify(ctx, tx.ID, food.ID, 0.95, true)
	if err != nil {
		t.Fatalf("auto Classify() error = %v", err)
	}
	if got.CategoryID != bills.ID || got.AutoClassified {
		t.Errorf("auto Classify() displaced manual choice: got category %d auto=%v", got.CategoryID, got.AutoClassified)
	}

	// A second manual choice still replaces the first.
	got, err = store.Classify(ctx, tx.ID, food.ID, 1.0, false)
	if err != nil {
		t.Fatalf("second manual Classify() error = %v", err)
	}
	if got.CategoryID != food.ID {
		t.Errorf("manual Classify() category = %d, want %d", got.CategoryID, food.ID)
	}
}

func TestIdenticalAutoRerunIsNoop(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	userID, account := seedUserAccount(t, store)
	tx := seedTransaction(t, store, account.ID, "tx-1")

	food, _ := store.CreateCategory(ctx, core.Category{UserID: userID, Name: "Food & Dining", Color: "#FF5733"})

	first, err := store.Classify(ctx, tx.ID, food.ID, 0.80, true)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	second, err := store.Classify(ctx, tx.ID, food.ID, 0.80, true)
	if err != nil {
		t.Fatalf("Classify() rerun error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("rerun created a new row: id %d, want %d", second.ID, first.ID)
	}
}

func TestClassifyDetectsInvariantViolation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	userID, account := seedUserAccount(t, store)
	tx := seedTransaction(t, store, account.ID, "tx-1")

	food, _ := store.CreateCategory(ctx, core.Category{UserID: userID, Name: "Food & Dining", Color: "#FF5733"})

	store.Corrupt(core.Classification{TransactionID: tx.ID, CategoryID: food.ID, Confidence: 0.8, AutoClassified: true})
	store.Corrupt(core.Classification{TransactionID: tx.ID, CategoryID: food.ID, Confidence: 0.9, AutoClassified: true})

	_, err := store.Classify(ctx, tx.ID, food.ID, 1.0, false)
	var inv *core.InvariantViolationError
	if !errors.As(err, &inv) {
		t.Fatalf("Classify() error = %v, want InvariantViolationError", err)
	}
}

func TestListUncategorizedTransactions(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	userID, account := seedUserAccount(t, store)

	tx1 := seedTransaction(t, store, account.ID, "tx-1")
	tx2 := seedTransaction(t, store, account.ID, "tx-2")

	food, _ := store.CreateCategory(ctx, core.Category{UserID: userID, Name: "Food & Dining", Color: "#FF5733"})
	if _, err := store.Classify(ctx, tx1.ID, food.ID, 0.80, true); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	got, err := store.ListUncategorizedTransactions(ctx, userID, 0)
	if err != nil {
		t.Fatalf("ListUncategorizedTransactions() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != tx2.ID {
		t.Errorf("ListUncategorizedTransactions() = %v, want only tx %d", got, tx2.ID)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	userID, account := seedUserAccount(t, store)

	older, err := store.CreateTransaction(ctx, core.Transaction{
		AccountID:             account.ID,
		ProviderTransactionID: "tx-old",
		Amount:                core.Money{Cents: -500},
		Currency:              "USD",
		Date:                  time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Description:           "Old charge",
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	newer := seedTransaction(t, store, account.ID, "tx-new")

	got, err := store.ListTransactions(ctx, services.TransactionFilter{UserID: userID})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != newer.ID {
		t.Fatalf("ListTransactions() order = %v, want newest first", got)
	}

	got, err = store.ListTransactions(ctx, services.TransactionFilter{
		UserID: userID,
		Start:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != newer.ID {
		t.Errorf("ListTransactions(start) = %v, want only %d", got, newer.ID)
	}

	category, err := store.CreateCategory(ctx, core.Category{UserID: userID, Name: "Misc"})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	if _, err := store.Classify(ctx, older.ID, category.ID, 0.8, true); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	got, err = store.ListTransactions(ctx, services.TransactionFilter{
		UserID:     userID,
		CategoryID: category.ID,
	})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != older.ID {
		t.Errorf("ListTransactions(category) = %v, want only %d", got, older.ID)
	}
}

func TestUnlinkAccount(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_, account := seedUserAccount(t, store)

	if err := store.UnlinkAccount(ctx, account.ID); err != nil {
		t.Fatalf("UnlinkAccount() error = %v", err)
	}

	got, err := store.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if got.Linked() || got.Active || got.SyncStatus != core.SyncStatusDisconnected {
		t.Errorf("UnlinkAccount() left account %+v", got)
	}

	linked, err := store.ListLinkedAccounts(ctx)
	if err != nil {
		t.Fatalf("ListLinkedAccounts() error = %v", err)
	}
	if len(linked) != 0 {
		t.Errorf("ListLinkedAccounts() = %v, want empty", linked)
	}
}
