package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

const accountColumns = `id, user_id, name, institution_name, account_type, provider_account_id,
	credential, balance_current_cents, balance_available_cents, currency,
	sync_status, last_sync_at, last_error_at, active`

func scanAccount(row interface{ Scan(...any) error }) (core.Account, error) {
	var (
		a                     core.Account
		lastSyncAt, lastErrAt sql.NullString
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.InstitutionName, &a.AccountType,
		&a.ProviderAccountID, &a.Credential, &a.BalanceCurrent.Cents,
		&a.BalanceAvailable.Cents, &a.Currency, &a.SyncStatus,
		&lastSyncAt, &lastErrAt, &a.Active)
	if err != nil {
		return core.Account{}, err
	}
	a.LastSyncAt = parseTime(lastSyncAt)
	a.LastErrorAt = parseTime(lastErrAt)
	return a, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, account core.Account) (core.Account, error) {
	if err := account.Validate(); err != nil {
		return core.Account{}, err
	}
	if account.SyncStatus == "" {
		account.SyncStatus = core.SyncStatusConnected
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, institution_name, account_type,
			provider_account_id, credential, balance_current_cents,
			balance_available_cents, currency, sync_status, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.UserID, account.Name, account.InstitutionName, account.AccountType,
		account.ProviderAccountID, account.Credential, account.BalanceCurrent.Cents,
		account.BalanceAvailable.Cents, account.Currency, account.SyncStatus, account.Active)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	account.ID, err = res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("create account id: %w", err)
	}
	return account, nil
}

func (r *SQLiteRepository) ListAccountsByUser(ctx context.Context, userID int64) ([]core.Account, error) {
	return r.listAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY id`, userID)
}

func (r *SQLiteRepository) ListLinkedAccounts(ctx context.Context) ([]core.Account, error) {
	return r.listAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE active = 1 AND credential != '' ORDER BY id`)
}

func (r *SQLiteRepository) ListLinkedAccountsByUser(ctx context.Context, userID int64) ([]core.Account, error) {
	return r.listAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE user_id = ? AND active = 1 AND credential != '' ORDER BY id`, userID)
}

func (r *SQLiteRepository) listAccounts(ctx context.Context, query string, args ...any) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (r *SQLiteRepository) UpdateAccountBalances(ctx context.Context, id int64, current, available core.Money, syncedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		 SET balance_current_cents = ?, balance_available_cents = ?,
		     last_sync_at = ?, updated_at = ?
		 WHERE id = ?`,
		current.Cents, available.Cents, formatTime(syncedAt), formatTime(syncedAt), id)
	if err != nil {
		return fmt.Errorf("update account balances: %w", err)
	}
	return requireRow(res, "update account balances")
}

func (r *SQLiteRepository) MarkAccountSynced(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET sync_status = ?, last_sync_at = ?, updated_at = ? WHERE id = ?`,
		core.SyncStatusConnected, formatTime(at), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("mark account synced: %w", err)
	}
	return requireRow(res, "mark account synced")
}

func (r *SQLiteRepository) MarkAccountSyncError(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET sync_status = ?, last_error_at = ?, updated_at = ? WHERE id = ?`,
		core.SyncStatusError, formatTime(at), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("mark account sync error: %w", err)
	}
	return requireRow(res, "mark account sync error")
}

func (r *SQLiteRepository) UnlinkAccount(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		 SET credential = '', active = 0, sync_status = ?, updated_at = ?
		 WHERE id = ?`,
		core.SyncStatusDisconnected, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("unlink account: %w", err)
	}
	return requireRow(res, "unlink account")
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
