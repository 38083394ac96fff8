package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

const transactionColumns = `id, account_id, provider_transaction_id, amount_cents, currency,
	date, description, merchant_name, category, subcategory, pending`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t    core.Transaction
		date string
	)
	err := row.Scan(&t.ID, &t.AccountID, &t.ProviderTransactionID, &t.Amount.Cents,
		&t.Currency, &date, &t.Description, &t.MerchantName,
		&t.Category, &t.Subcategory, &t.Pending)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date %q: %w", date, err)
	}
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) GetTransactionByProviderID(ctx context.Context, providerTransactionID string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE provider_transaction_id = ?`,
		providerTransactionID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction by provider id: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (account_id, provider_transaction_id, amount_cents,
			currency, date, description, merchant_name, category, subcategory, pending)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.AccountID, tx.ProviderTransactionID, tx.Amount.Cents, tx.Currency,
		tx.Date.Format(dateLayout), tx.Description, tx.MerchantName,
		tx.Category, tx.Subcategory, tx.Pending)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	tx.ID, err = res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction id: %w", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) UpdateTransactionProviderFields(ctx context.Context, id int64, amount core.Money, pending bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET amount_cents = ?, pending = ?, updated_at = ? WHERE id = ?`,
		amount.Cents, pending, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update transaction provider fields: %w", err)
	}
	return requireRow(res, "update transaction provider fields")
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, filter services.TransactionFilter) ([]core.Transaction, error) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != 0 {
		conds = append(conds, "account_id IN (SELECT id FROM accounts WHERE user_id = ?)")
		args = append(args, filter.UserID)
	}
	if filter.AccountID != 0 {
		conds = append(conds, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if !filter.Start.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, filter.Start.Format(dateLayout))
	}
	if !filter.End.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, filter.End.Format(dateLayout))
	}
	if filter.CategoryID != 0 {
		conds = append(conds, "id IN (SELECT transaction_id FROM classifications WHERE category_id = ?)")
		args = append(args, filter.CategoryID)
	}
	if filter.Pending != nil {
		conds = append(conds, "pending = ?")
		args = append(args, *filter.Pending)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	return r.listTransactions(ctx, query, args...)
}

func (r *SQLiteRepository) ListUncategorizedTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE account_id IN (SELECT id FROM accounts WHERE user_id = ?)
		   AND id NOT IN (SELECT transaction_id FROM classifications)
		 ORDER BY date DESC, id DESC
		 LIMIT ?`, userID, limit)
}

func (r *SQLiteRepository) listTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}
