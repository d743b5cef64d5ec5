package storage

import (
	"context"
	"fmt"

	"canteen/internal/core"
)

// sqlTx implements ledger.Tx on top of an open transaction.
type sqlTx struct {
	q querier
}

func (t *sqlTx) FoodByID(ctx context.Context, id int64) (core.FoodItem, error) {
	return getFood(ctx, t.q, id)
}

func (t *sqlTx) UserByID(ctx context.Context, id int64) (core.User, error) {
	return getUser(ctx, t.q, id)
}

func (t *sqlTx) OrderByID(ctx context.Context, id int64) (core.Order, error) {
	return getOrder(ctx, t.q, id)
}

func (t *sqlTx) InsertOrder(ctx context.Context, o core.Order) (int64, error) {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO orders (student_id, food_id, quantity, total_price_cents, ordered_at, cleared)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.StudentID, o.FoodID, o.Quantity, o.TotalPrice.Cents, formatTimestamp(o.OrderedAt), o.Cleared)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return res.LastInsertId()
}

func (t *sqlTx) MarkOrderCleared(ctx context.Context, id int64) error {
	res, err := t.q.ExecContext(ctx, `UPDATE orders SET cleared = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear order: %w", err)
	}
	return requireAffected(res, "order", id)
}

func (t *sqlTx) DeleteOrder(ctx context.Context, id int64) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return requireAffected(res, "order", id)
}

func (t *sqlTx) OrderTotals(ctx context.Context, studentID int64) (all, cleared core.Money, err error) {
	err = t.q.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(total_price_cents), 0),
			COALESCE(SUM(CASE WHEN cleared = 1 THEN total_price_cents ELSE 0 END), 0)
		FROM orders
		WHERE student_id = ?`, studentID).Scan(&all.Cents, &cleared.Cents)
	if err != nil {
		return core.Money{}, core.Money{}, fmt.Errorf("sum orders: %w", err)
	}
	return all, cleared, nil
}

func (t *sqlTx) SetDueAmount(ctx context.Context, studentID int64, due core.Money) error {
	res, err := t.q.ExecContext(ctx, `UPDATE users SET due_amount_cents = ? WHERE id = ?`, due.Cents, studentID)
	if err != nil {
		return fmt.Errorf("update due amount: %w", err)
	}
	return requireAffected(res, "user", studentID)
}

func (t *sqlTx) DeleteFood(ctx context.Context, id int64) ([]int64, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT DISTINCT student_id FROM orders WHERE food_id = ? ORDER BY student_id`, id)
	if err != nil {
		return nil, fmt.Errorf("list students of food: %w", err)
	}
	var students []int64
	for rows.Next() {
		var sid int64
		if err := rows.Scan(&sid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan student id: %w", err)
		}
		students = append(students, sid)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// orders go with the food through ON DELETE CASCADE
	res, err := t.q.ExecContext(ctx, `DELETE FROM food_items WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("delete food: %w", err)
	}
	if err := requireAffected(res, "food", id); err != nil {
		return nil, err
	}
	return students, nil
}
