package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// Classify replaces the transaction's classification inside a single
// database transaction so a reader never observes two rows. Automatic
// results never displace a manual choice, and re-running the matcher
// with an identical result leaves the row untouched.
func (r *SQLiteRepository) Classify(ctx context.Context, transactionID, categoryID int64, confidence float64, auto bool) (core.Classification, error) {
	c := core.Classification{
		TransactionID:  transactionID,
		CategoryID:     categoryID,
		Confidence:     confidence,
		AutoClassified: auto,
	}
	if err := c.Validate(); err != nil {
		return core.Classification{}, err
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Classification{}, fmt.Errorf("begin classify: %w", err)
	}
	defer dbtx.Rollback()

	existing, err := classificationsForTransaction(ctx, dbtx, transactionID)
	if err != nil {
		return core.Classification{}, fmt.Errorf("load classifications: %w", err)
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
		if _, err := dbtx.ExecContext(ctx,
			`DELETE FROM classifications WHERE transaction_id = ?`, transactionID); err != nil {
			return core.Classification{}, fmt.Errorf("delete classification: %w", err)
		}
	}

	c.CreatedAt = time.Now().UTC()
	res, err := dbtx.ExecContext(ctx,
		`INSERT INTO classifications (transaction_id, category_id, confidence, auto_classified, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.TransactionID, c.CategoryID, c.Confidence, c.AutoClassified, c.CreatedAt.Format(timeLayout))
	if err != nil {
		return core.Classification{}, fmt.Errorf("insert classification: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return core.Classification{}, fmt.Errorf("insert classification id: %w", err)
	}

	if err := dbtx.Commit(); err != nil {
		return core.Classification{}, fmt.Errorf("commit classify: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) PrimaryCategory(ctx context.Context, transactionID int64) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT category_id FROM classifications WHERE transaction_id = ?`, transactionID)
	var categoryID int64
	if err := row.Scan(&categoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Category{}, core.ErrNotFound
		}
		return core.Category{}, fmt.Errorf("primary category: %w", err)
	}
	return r.GetCategory(ctx, categoryID)
}

func classificationsForTransaction(ctx context.Context, dbtx *sql.Tx, transactionID int64) ([]core.Classification, error) {
	rows, err := dbtx.QueryContext(ctx,
		`SELECT id, transaction_id, category_id, confidence, auto_classified, created_at
		 FROM classifications WHERE transaction_id = ?`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Classification
	for rows.Next() {
		var (
			c         core.Classification
			createdAt sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.TransactionID, &c.CategoryID,
			&c.Confidence, &c.AutoClassified, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}
