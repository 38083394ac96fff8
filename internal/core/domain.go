package core

import (
	"errors"
	"strings"
	"time"
)

// Sync status values for an account.
const (
	SyncStatusConnected    SyncStatus = "connected"
	SyncStatusError        SyncStatus = "error"
	SyncStatusDisconnected SyncStatus = "disconnected"
)

type (
	SyncStatus string

	// Account is a linked (or manually created) bank account. The provider
	// credential is opaque to the core; an empty credential means the
	// account is not linked and cannot be synced.
	Account struct {
		ID                int64
		UserID            int64
		Name              string
		InstitutionName   string
		AccountType       string
		ProviderAccountID string
		Credential        string
		BalanceCurrent    Money
		BalanceAvailable  Money
		Currency          string
		SyncStatus        SyncStatus
		LastSyncAt        time.Time
		LastErrorAt       time.Time
		Active            bool
	}

	// Transaction is one imported bank transaction. Amount is signed:
	// negative for expenses, positive for income. After creation only
	// Amount and Pending may change (provider corrections).
	Transaction struct {
		ID                    int64
		AccountID             int64
		ProviderTransactionID string
		Amount                Money
		Currency              string
		Date                  time.Time
		Description           string
		MerchantName          string
		Category              string // provider-supplied hint
		Subcategory           string // provider-supplied hint
		Pending               bool
	}

	// Category is a user-owned spending category. Categories form a
	// two-level hierarchy: ParentID zero means top level. ParentName is
	// populated by store reads so FullName works without a second lookup.
	Category struct {
		ID          int64
		UserID      int64
		Name        string
		Color       string
		ParentID    int64
		ParentName  string
		BudgetLimit Money
	}

	// Classification assigns exactly one Category to a Transaction.
	// At most one classification row exists per transaction.
	Classification struct {
		ID             int64
		TransactionID  int64
		CategoryID     int64
		Confidence     float64
		AutoClassified bool
		CreatedAt      time.Time
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyDescription  = errors.New("empty description")
	ErrEmptyName         = errors.New("empty name")
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")
	ErrMissingProviderID = errors.New("missing provider id")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidSyncStatus = errors.New("invalid sync status")
)

func (s SyncStatus) Validate() error {
	switch s {
	case SyncStatusConnected, SyncStatusError, SyncStatusDisconnected:
		return nil
	}
	return ErrInvalidSyncStatus
}

// Linked reports whether the account carries a provider credential.
func (a Account) Linked() bool {
	return strings.TrimSpace(a.Credential) != ""
}

// DisplayName is the human-readable label used in logs and API responses.
func (a Account) DisplayName() string {
	if a.InstitutionName == "" {
		return a.Name
	}
	return a.InstitutionName + " - " + a.Name
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(a.ProviderAccountID) == "" {
		return ErrMissingProviderID
	}
	if a.SyncStatus != "" {
		if err := a.SyncStatus.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t Transaction) IsExpense() bool {
	return t.Amount.Cents < 0
}

func (t Transaction) IsIncome() bool {
	return t.Amount.Cents > 0
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ProviderTransactionID) == "" {
		return ErrMissingProviderID
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// FullName renders the two-level hierarchy as "Parent > Name".
func (c Category) FullName() string {
	if c.ParentName != "" {
		return c.ParentName + " > " + c.Name
	}
	return c.Name
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (cl Classification) Validate() error {
	if cl.Confidence < 0 || cl.Confidence > 1 {
		return ErrInvalidConfidence
	}
	return nil
}
