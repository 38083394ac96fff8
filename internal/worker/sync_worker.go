// Package worker runs sync requests delivered over AMQP and a periodic
// full sync as a safety net for lost messages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/services"
)

type SyncWorker struct {
	store  services.Store
	engine *services.SyncEngine
}

func NewSyncWorker(store services.Store, engine *services.SyncEngine) *SyncWorker {
	return &SyncWorker{store: store, engine: engine}
}

// HandleSyncRequest runs the sync a queued message asks for. Batch
// scopes never return an error for individual account failures; those
// are already marked on the accounts themselves.
func (w *SyncWorker) HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	slog.InfoContext(ctx, "Processing sync request",
		"scope", msg.Scope,
		"account_id", msg.AccountID,
		"user_id", msg.UserID)

	switch msg.Scope {
	case amqp.ScopeAccount:
		account, err := w.store.GetAccount(ctx, msg.AccountID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				slog.WarnContext(ctx, "Sync requested for unknown account, dropping",
					"account_id", msg.AccountID)
				return nil
			}
			return fmt.Errorf("get account: %w", err)
		}
		if _, err := w.engine.SyncAccount(ctx, account); err != nil {
			// Unlinked is user-actionable, never retried. Requeueing the
			// message would redeliver it forever.
			if errors.Is(err, core.ErrNotLinked) {
				slog.WarnContext(ctx, "Sync requested for unlinked account, dropping",
					"account_id", account.ID)
				return nil
			}
			now := time.Now()
			if markErr := w.store.MarkAccountSyncError(ctx, account.ID, now); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark account sync error",
					"account_id", account.ID, "error", markErr)
			}
			return fmt.Errorf("sync account %d: %w", account.ID, err)
		}
		if err := w.store.MarkAccountSynced(ctx, account.ID, time.Now()); err != nil {
			slog.ErrorContext(ctx, "Failed to mark account synced",
				"account_id", account.ID, "error", err)
		}
		return nil

	case amqp.ScopeUser:
		_, err := w.engine.SyncUserAccounts(ctx, msg.UserID)
		return err

	case amqp.ScopeAll:
		_, err := w.engine.SyncAllAccounts(ctx)
		return err

	default:
		slog.WarnContext(ctx, "Dropping sync request with unknown scope", "scope", msg.Scope)
		return nil
	}
}

// RunPeriodic syncs all linked accounts on a fixed interval until ctx
// ends.
func (w *SyncWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := w.engine.SyncAllAccounts(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Periodic sync failed", "error", err)
				continue
			}
			slog.InfoContext(ctx, "Periodic sync finished",
				"synced", result.Synced,
				"created", result.Created,
				"updated", result.Updated,
				"failed", len(result.Errors))
		}
	}
}
