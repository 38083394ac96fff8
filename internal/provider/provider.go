// Package provider defines the port to the external account-aggregation
// service: the typed payloads crossing the boundary and the Client
// interface the sync engine consumes. Concrete adapters live in
// subpackages (bankfeed for the real HTTP service, memory for tests).
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
)

type (
	// Account is the provider's view of a bank account.
	Account struct {
		ProviderAccountID string
		Name              string
		OfficialName      string
		InstitutionName   string
		Type              string
		Subtype           string
		BalanceCurrent    core.Money
		BalanceAvailable  core.Money
		Currency          string
	}

	// Transaction is one row of the provider's transaction feed. The
	// amount sign is already normalized: expenses negative, income
	// positive. Adapters whose upstream uses the opposite convention
	// must flip it before returning.
	Transaction struct {
		ProviderTransactionID string
		ProviderAccountID     string
		Amount                core.Money
		Currency              string
		Date                  time.Time
		MerchantName          string
		Description           string
		Category              string
		Subcategory           string
		Pending               bool
	}
)

// Client is the aggregation-provider port. Implementations page through
// results transparently and surface failures as *provider.Error.
type Client interface {
	FetchAccounts(ctx context.Context, credential string) ([]Account, error)
	FetchTransactions(ctx context.Context, credential string, start, end time.Time) ([]Transaction, error)

	// RemoveLink revokes the credential upstream. Best effort: callers
	// log failures and continue their disconnect workflow.
	RemoveLink(ctx context.Context, credential string) error
}

// Validate rejects feed rows missing the fields reconciliation depends
// on. Invalid rows are skipped per transaction, never fatal per account.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ProviderTransactionID) == "" {
		return core.ErrMissingProviderID
	}
	if strings.TrimSpace(t.ProviderAccountID) == "" {
		return core.ErrMissingProviderID
	}
	if strings.TrimSpace(t.Description) == "" {
		return core.ErrEmptyDescription
	}
	if t.Date.IsZero() {
		return core.ErrInvalidDate
	}
	return nil
}

// Error wraps any failure from the provider: auth, network, rate limit
// or malformed response. StatusCode is zero when no HTTP status applies.
type Error struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
