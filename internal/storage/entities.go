package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"canteen/internal/core"
)

const userColumns = `id, username, email, password_hash, is_student, is_manager, is_superuser, due_amount_cents, date_joined`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (core.User, error) {
	var (
		u      core.User
		joined string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.IsStudent, &u.IsManager, &u.IsSuperuser, &u.DueAmount.Cents, &joined); err != nil {
		return core.User{}, err
	}
	t, err := parseTimestamp(joined)
	if err != nil {
		return core.User{}, err
	}
	u.DateJoined = t
	return u, nil
}

func getUser(ctx context.Context, q querier, id int64) (core.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return core.User{}, notFound(err, "user", id)
	}
	return u, nil
}

// CreateUser inserts a user with a zero due amount.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, is_student, is_manager, is_superuser, due_amount_cents, date_joined)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		u.Username, u.Email, u.PasswordHash, u.IsStudent, u.IsManager, u.IsSuperuser, formatTimestamp(u.DateJoined))
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.NewValidationError("username", "A user with that username already exists.")
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("last insert id: %w", err)
	}
	return getUser(ctx, r.db, id)
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	return getUser(ctx, r.db, id)
}

// GetUserByUsername matches case-insensitively through the column collation.
func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err != nil {
		return core.User{}, notFound(err, "user", 0)
	}
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]core.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Foods

const foodColumns = `id, name, description, price_cents, cost_price_cents, available, image`

func scanFood(row rowScanner) (core.FoodItem, error) {
	var f core.FoodItem
	err := row.Scan(&f.ID, &f.Name, &f.Description, &f.Price.Cents, &f.CostPrice.Cents, &f.Available, &f.Image)
	return f, err
}

func getFood(ctx context.Context, q querier, id int64) (core.FoodItem, error) {
	f, err := scanFood(q.QueryRowContext(ctx, `SELECT `+foodColumns+` FROM food_items WHERE id = ?`, id))
	if err != nil {
		return core.FoodItem{}, notFound(err, "food", id)
	}
	return f, nil
}

func (r *SQLiteRepository) CreateFood(ctx context.Context, f core.FoodItem) (core.FoodItem, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO food_items (name, description, price_cents, cost_price_cents, available, image)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.Name, f.Description, f.Price.Cents, f.CostPrice.Cents, f.Available, f.Image)
	if err != nil {
		return core.FoodItem{}, fmt.Errorf("insert food: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.FoodItem{}, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return f, nil
}

func (r *SQLiteRepository) GetFood(ctx context.Context, id int64) (core.FoodItem, error) {
	return getFood(ctx, r.db, id)
}

// UpdateFood overwrites the food row. Existing orders keep their totals.
func (r *SQLiteRepository) UpdateFood(ctx context.Context, f core.FoodItem) (core.FoodItem, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE food_items
		SET name = ?, description = ?, price_cents = ?, cost_price_cents = ?, available = ?, image = ?
		WHERE id = ?`,
		f.Name, f.Description, f.Price.Cents, f.CostPrice.Cents, f.Available, f.Image, f.ID)
	if err != nil {
		return core.FoodItem{}, fmt.Errorf("update food: %w", err)
	}
	if err := requireAffected(res, "food", f.ID); err != nil {
		return core.FoodItem{}, err
	}
	return f, nil
}

func (r *SQLiteRepository) ListFoods(ctx context.Context, available *bool) ([]core.FoodItem, error) {
	query := `SELECT ` + foodColumns + ` FROM food_items`
	var args []any
	if available != nil {
		query += ` WHERE available = ?`
		args = append(args, *available)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list foods: %w", err)
	}
	defer rows.Close()

	foods := make([]core.FoodItem, 0)
	for rows.Next() {
		f, err := scanFood(rows)
		if err != nil {
			return nil, fmt.Errorf("scan food: %w", err)
		}
		foods = append(foods, f)
	}
	return foods, rows.Err()
}

// Expenses

const expenseColumns = `id, title, category, amount_cents, date, notes`

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e    core.Expense
		date string
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Category, &e.Amount.Cents, &date, &e.Notes); err != nil {
		return core.Expense{}, err
	}
	d, err := parseDate(date)
	if err != nil {
		return core.Expense{}, err
	}
	e.Date = d
	return e, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (title, category, amount_cents, date, notes)
		VALUES (?, ?, ?, ?, ?)`,
		e.Title, string(e.Category), e.Amount.Cents, e.Date.String(), e.Notes)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id))
	if err != nil {
		return core.Expense{}, notFound(err, "expense", id)
	}
	return e, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET title = ?, category = ?, amount_cents = ?, date = ?, notes = ?
		WHERE id = ?`,
		e.Title, string(e.Category), e.Amount.Cents, e.Date.String(), e.Notes, e.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if err := requireAffected(res, "expense", e.ID); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireAffected(res, "expense", id)
}

// ListExpenses returns matching expenses, most recent date first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, filter core.ExpenseFilter) ([]core.Expense, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}
	if !filter.Start.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, filter.Start.String())
	}
	if !filter.End.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, filter.End.String())
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}
