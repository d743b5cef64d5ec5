package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"canteen/internal/core"
	"canteen/internal/report"
)

// Orders are always read joined with their food so the API can expand it.
const orderSelect = `
	SELECT o.id, o.student_id, o.food_id, o.quantity, o.total_price_cents, o.ordered_at, o.cleared,
	       f.id, f.name, f.description, f.price_cents, f.cost_price_cents, f.available, f.image
	FROM orders o
	JOIN food_items f ON f.id = o.food_id`

func scanOrder(row rowScanner) (core.Order, error) {
	var (
		o       core.Order
		f       core.FoodItem
		ordered string
	)
	if err := row.Scan(&o.ID, &o.StudentID, &o.FoodID, &o.Quantity, &o.TotalPrice.Cents, &ordered, &o.Cleared,
		&f.ID, &f.Name, &f.Description, &f.Price.Cents, &f.CostPrice.Cents, &f.Available, &f.Image); err != nil {
		return core.Order{}, err
	}
	t, err := parseTimestamp(ordered)
	if err != nil {
		return core.Order{}, err
	}
	o.OrderedAt = t
	o.Food = &f
	return o, nil
}

func getOrder(ctx context.Context, q querier, id int64) (core.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, orderSelect+` WHERE o.id = ?`, id))
	if err != nil {
		return core.Order{}, notFound(err, "order", id)
	}
	return o, nil
}

func (r *SQLiteRepository) GetOrder(ctx context.Context, id int64) (core.Order, error) {
	return getOrder(ctx, r.db, id)
}

// ListOrders returns matching orders, newest first.
func (r *SQLiteRepository) ListOrders(ctx context.Context, filter core.OrderFilter) ([]core.Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.StudentID != nil {
		where = append(where, "o.student_id = ?")
		args = append(args, *filter.StudentID)
	}
	if filter.FoodID != nil {
		where = append(where, "o.food_id = ?")
		args = append(args, *filter.FoodID)
	}
	if filter.Cleared != nil {
		where = append(where, "o.cleared = ?")
		args = append(args, *filter.Cleared)
	}

	query := orderSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY o.ordered_at DESC, o.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]core.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// PaidOrderLines implements report.Source. The unit cost is the food's
// current cost price.
func (r *SQLiteRepository) PaidOrderLines(ctx context.Context, from, to time.Time) ([]report.SaleLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.ordered_at, o.quantity, o.total_price_cents, f.cost_price_cents
		FROM orders o
		JOIN food_items f ON f.id = o.food_id
		WHERE o.cleared = 1 AND o.ordered_at >= ? AND o.ordered_at < ?`,
		formatTimestamp(from), formatTimestamp(to))
	if err != nil {
		return nil, fmt.Errorf("query paid orders: %w", err)
	}
	defer rows.Close()

	var lines []report.SaleLine
	for rows.Next() {
		var (
			l       report.SaleLine
			ordered string
		)
		if err := rows.Scan(&ordered, &l.Quantity, &l.Total.Cents, &l.UnitCost.Cents); err != nil {
			return nil, fmt.Errorf("scan paid order: %w", err)
		}
		if l.OrderedAt, err = parseTimestamp(ordered); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ExpenseLines implements report.Source.
func (r *SQLiteRepository) ExpenseLines(ctx context.Context, start, end core.Date) ([]report.ExpenseLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, category, amount_cents
		FROM expenses
		WHERE date >= ? AND date <= ?`,
		start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var lines []report.ExpenseLine
	for rows.Next() {
		var (
			l    report.ExpenseLine
			date string
		)
		if err := rows.Scan(&date, &l.Category, &l.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if l.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
