package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

// Category rows join in the parent's name so FullName works without a
// second lookup.
const categoryQuery = `SELECT c.id, c.user_id, c.name, c.color, c.parent_id, p.name, c.budget_limit_cents
	FROM categories c
	LEFT JOIN categories p ON p.id = c.parent_id`

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var (
		c           core.Category
		parentID    sql.NullInt64
		parentName  sql.NullString
		budgetLimit sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &parentID, &parentName, &budgetLimit)
	if err != nil {
		return core.Category{}, err
	}
	c.ParentID = parentID.Int64
	c.ParentName = parentName.String
	if budgetLimit.Valid {
		c.BudgetLimit = core.Money{Cents: budgetLimit.Int64}
	}
	return c, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row := r.db.QueryRowContext(ctx, categoryQuery+` WHERE c.id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, category core.Category) (core.Category, error) {
	if err := category.Validate(); err != nil {
		return core.Category{}, err
	}
	var budgetLimit any
	if !category.BudgetLimit.IsZero() {
		budgetLimit = category.BudgetLimit.Cents
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, color, parent_id, budget_limit_cents)
		 VALUES (?, ?, ?, ?, ?)`,
		category.UserID, category.Name, category.Color, nullInt64(category.ParentID), budgetLimit)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("create category id: %w", err)
	}
	return r.GetCategory(ctx, id)
}

func (r *SQLiteRepository) ListCategoriesByUser(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, categoryQuery+` WHERE c.user_id = ? ORDER BY c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, email string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO users (email) VALUES (?)`, email)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create user id: %w", err)
	}
	return id, nil
}
