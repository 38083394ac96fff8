package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/provider"
)

// AccountService wraps account lifecycle operations that touch both
// the store and the provider.
type AccountService struct {
	store    Store
	provider provider.Client
}

func NewAccountService(store Store, client provider.Client) *AccountService {
	return &AccountService{store: store, provider: client}
}

func (s *AccountService) Get(ctx context.Context, id int64) (core.Account, error) {
	return s.store.GetAccount(ctx, id)
}

func (s *AccountService) ListByUser(ctx context.Context, userID int64) ([]core.Account, error) {
	return s.store.ListAccountsByUser(ctx, userID)
}

// Unlink revokes the provider link and deactivates the account. The
// remote revocation is best effort: a provider failure is logged but
// the local unlink still happens, since the user asked for it.
func (s *AccountService) Unlink(ctx context.Context, id int64) error {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if account.Linked() {
		if err := s.provider.RemoveLink(ctx, account.Credential); err != nil {
			slog.WarnContext(ctx, "Provider link revocation failed, unlinking locally anyway",
				"account_id", id,
				"error", err)
		}
	}

	if err := s.store.UnlinkAccount(ctx, id); err != nil {
		return fmt.Errorf("unlink account: %w", err)
	}
	slog.InfoContext(ctx, "Account unlinked",
		"account_id", id,
		"account", account.DisplayName())
	return nil
}
