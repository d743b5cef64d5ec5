// Package ledger prices orders and keeps every student's due amount equal to
// the sum of their unpaid orders.
//
// Every write that touches an order runs inside a single store transaction
// together with the due recomputation of the affected student, so a failed
// write never leaves a stale or partial due amount behind.
package ledger

import (
	"context"
	"fmt"
	"time"

	"canteen/internal/core"
	"canteen/internal/log"
)

// Tx is the set of reads and writes the engine needs inside one transaction.
// Lookups return a *core.ReferenceError when the row does not exist.
type Tx interface {
	FoodByID(ctx context.Context, id int64) (core.FoodItem, error)
	UserByID(ctx context.Context, id int64) (core.User, error)
	OrderByID(ctx context.Context, id int64) (core.Order, error)
	InsertOrder(ctx context.Context, o core.Order) (int64, error)
	MarkOrderCleared(ctx context.Context, id int64) error
	DeleteOrder(ctx context.Context, id int64) error
	// OrderTotals returns the sum of total_price over all orders of the
	// student and over the cleared subset.
	OrderTotals(ctx context.Context, studentID int64) (all, cleared core.Money, err error)
	SetDueAmount(ctx context.Context, studentID int64, due core.Money) error
	// DeleteFood removes the food and its orders and returns the distinct
	// students that owned those orders.
	DeleteFood(ctx context.Context, id int64) ([]int64, error)
}

// Store runs fn in a transaction holding the write lock. The transaction
// commits when fn returns nil and rolls back otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// OrderCheck inspects an order loaded inside the transaction before it is
// changed. Returning an error aborts the write.
type OrderCheck func(o core.Order) error

type Engine struct {
	store  Store
	now    func() time.Time
	logger *log.Logger
}

type Option func(*Engine)

// WithClock overrides the clock used to stamp ordered_at.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		now:    time.Now,
		logger: log.NewDefault().WithComponent(log.ComponentLedger),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeOrderTotal returns food.price × quantity. A nil food is a dangling
// reference and fails instead of pricing the order at zero; a total above
// core.MaxOrderTotalCents is a validation error.
func ComputeOrderTotal(food *core.FoodItem, quantity int) (core.Money, error) {
	if food == nil {
		return core.Money{}, &core.ReferenceError{Entity: "food"}
	}
	if err := core.ValidateQuantity(quantity); err != nil {
		return core.Money{}, err
	}
	total, ok := food.Price.MulChecked(quantity)
	if !ok || total.Cents > core.MaxOrderTotalCents {
		return core.Money{}, &core.ValidationError{
			Field:   "quantity",
			Message: "Order total may not exceed 999999.99.",
		}
	}
	return total, nil
}

// PlaceOrder creates an order for the student, priced from the food's current
// price, and recomputes the student's due amount.
func (e *Engine) PlaceOrder(ctx context.Context, studentID, foodID int64, quantity int) (core.Order, error) {
	if err := core.ValidateQuantity(quantity); err != nil {
		return core.Order{}, err
	}

	var placed core.Order
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		student, err := tx.UserByID(ctx, studentID)
		if err != nil {
			return err
		}
		if !student.IsStudent {
			return core.NewPermissionError("place order")
		}

		food, err := tx.FoodByID(ctx, foodID)
		if err != nil {
			return err
		}
		if !food.Available {
			return core.NewValidationError("food_id", fmt.Sprintf("%s is not available.", food.Name))
		}

		total, err := ComputeOrderTotal(&food, quantity)
		if err != nil {
			return err
		}

		placed = core.Order{
			StudentID:  studentID,
			FoodID:     food.ID,
			Food:       &food,
			Quantity:   quantity,
			TotalPrice: total,
			OrderedAt:  e.now().UTC(),
		}
		id, err := tx.InsertOrder(ctx, placed)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		placed.ID = id

		_, err = recomputeDue(ctx, tx, studentID)
		return err
	})
	if err != nil {
		return core.Order{}, err
	}

	e.logger.Info("Order placed",
		log.FieldOrderID, placed.ID,
		log.FieldStudentID, studentID,
		log.FieldFoodID, foodID,
		log.FieldQuantity, quantity,
		log.FieldAmount, placed.TotalPrice.String())
	return placed, nil
}

// ClearOrder marks the order as paid and recomputes the owner's due amount.
// Clearing an already cleared order changes nothing and reports changed=false.
func (e *Engine) ClearOrder(ctx context.Context, orderID int64) (core.Order, bool, error) {
	var (
		order   core.Order
		changed bool
	)
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		o, err := tx.OrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		order = o
		if o.Cleared {
			return nil
		}
		if err := tx.MarkOrderCleared(ctx, orderID); err != nil {
			return fmt.Errorf("mark order cleared: %w", err)
		}
		order.Cleared = true
		changed = true

		_, err = recomputeDue(ctx, tx, o.StudentID)
		return err
	})
	if err != nil {
		return core.Order{}, false, err
	}

	if changed {
		e.logger.Info("Order cleared",
			log.FieldOrderID, orderID,
			log.FieldStudentID, order.StudentID,
			log.FieldAmount, order.TotalPrice.String())
	}
	return order, changed, nil
}

// DeleteOrder removes the order and recomputes the owner's due amount. check,
// when non-nil, runs against the stored order before anything is removed.
func (e *Engine) DeleteOrder(ctx context.Context, orderID int64, check OrderCheck) (core.Order, error) {
	var removed core.Order
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		o, err := tx.OrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(o); err != nil {
				return err
			}
		}
		if err := tx.DeleteOrder(ctx, orderID); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		removed = o

		_, err = recomputeDue(ctx, tx, o.StudentID)
		return err
	})
	if err != nil {
		return core.Order{}, err
	}

	e.logger.Info("Order deleted",
		log.FieldOrderID, orderID,
		log.FieldStudentID, removed.StudentID)
	return removed, nil
}

// RecomputeDue recomputes and persists the due amount of one student.
func (e *Engine) RecomputeDue(ctx context.Context, studentID int64) (core.Money, error) {
	var due core.Money
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		if _, err := tx.UserByID(ctx, studentID); err != nil {
			return err
		}
		var err error
		due, err = recomputeDue(ctx, tx, studentID)
		return err
	})
	return due, err
}

// RemoveFood deletes a food item together with its orders and recomputes the
// due amount of every student who had ordered it.
func (e *Engine) RemoveFood(ctx context.Context, foodID int64) ([]int64, error) {
	var affected []int64
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		if _, err := tx.FoodByID(ctx, foodID); err != nil {
			return err
		}
		var err error
		affected, err = tx.DeleteFood(ctx, foodID)
		if err != nil {
			return fmt.Errorf("delete food: %w", err)
		}
		for _, studentID := range affected {
			if _, err := recomputeDue(ctx, tx, studentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Food removed",
		log.FieldFoodID, foodID,
		log.FieldCount, len(affected))
	return affected, nil
}

func recomputeDue(ctx context.Context, tx Tx, studentID int64) (core.Money, error) {
	all, cleared, err := tx.OrderTotals(ctx, studentID)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum orders of student %d: %w", studentID, err)
	}
	due := all.Sub(cleared)
	if err := tx.SetDueAmount(ctx, studentID, due); err != nil {
		return core.Money{}, fmt.Errorf("set due amount of student %d: %w", studentID, err)
	}
	return due, nil
}
