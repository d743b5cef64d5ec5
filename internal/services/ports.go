// Package services orchestrates the canteen use cases on top of the ledger,
// the report engine and the stores, and announces ledger changes.
package services

import (
	"context"

	"canteen/internal/amqp"
	"canteen/internal/core"
)

type UserRepository interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	ListUsers(ctx context.Context) ([]core.User, error)
}

type FoodRepository interface {
	CreateFood(ctx context.Context, f core.FoodItem) (core.FoodItem, error)
	GetFood(ctx context.Context, id int64) (core.FoodItem, error)
	UpdateFood(ctx context.Context, f core.FoodItem) (core.FoodItem, error)
	ListFoods(ctx context.Context, available *bool) ([]core.FoodItem, error)
}

type OrderRepository interface {
	GetOrder(ctx context.Context, id int64) (core.Order, error)
	ListOrders(ctx context.Context, filter core.OrderFilter) ([]core.Order, error)
}

type ExpenseRepository interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	ListExpenses(ctx context.Context, filter core.ExpenseFilter) ([]core.Expense, error)
}

// EventPublisher delivers ledger events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.LedgerEvent) error
}

func requireManager(caller core.Identity, action string) error {
	if !caller.CanManage() {
		return core.NewPermissionError(action)
	}
	return nil
}
