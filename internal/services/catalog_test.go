package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen/internal/amqp"
	"canteen/internal/core"
)

func TestFoodService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.foods.Create(ctx, f.student, core.FoodItem{Name: "Soup"})
	assert.True(t, isPermission(err))

	_, err = f.foods.Create(ctx, f.manager, core.FoodItem{Name: "  "})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	soup, err := f.foods.Create(ctx, f.manager, core.FoodItem{Name: "Soup", Price: core.Money{Cents: 450}, Available: true})
	require.NoError(t, err)

	soup.Price = core.Money{Cents: 500}
	_, err = f.foods.Update(ctx, f.manager, soup)
	require.NoError(t, err)

	available := true
	foods, err := f.foods.List(ctx, &available)
	require.NoError(t, err)
	assert.Len(t, foods, 2)

	_, err = f.foods.Update(ctx, f.manager, core.FoodItem{ID: 9999, Name: "Ghost"})
	assert.True(t, core.IsNotFound(err))
}

func TestFoodService_DeleteCascadesToDues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orders.Place(ctx, f.student, f.food.ID, 3)
	require.NoError(t, err)

	require.NoError(t, f.foods.Delete(ctx, f.manager, f.food.ID))

	due, err := f.orders.Due(ctx, f.student)
	require.NoError(t, err)
	assert.True(t, due.IsZero())

	orders, err := f.orders.List(ctx, f.manager, core.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Contains(t, f.pub.types(), amqp.EventFoodDeleted)
}

func TestExpenseService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.expenses.Create(ctx, f.student, core.Expense{Title: "Rent"})
	assert.True(t, isPermission(err))

	created, err := f.expenses.Create(ctx, f.manager, core.Expense{
		Title:  "Napkins",
		Amount: core.Money{Cents: 1250},
		Date:   core.NewDate(2024, 1, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, core.CategoryMisc, created.Category)

	_, err = f.expenses.Create(ctx, f.manager, core.Expense{
		Title:    "Bad",
		Category: "Food",
		Amount:   core.Money{Cents: 100},
		Date:     core.NewDate(2024, 1, 10),
	})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "category", verr.Field)

	_, err = f.expenses.List(ctx, f.manager, core.ExpenseFilter{Category: "Food"})
	require.ErrorAs(t, err, &verr)

	list, err := f.expenses.List(ctx, f.manager, core.ExpenseFilter{Category: core.CategoryMisc})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	created.Amount = core.Money{Cents: 1500}
	updated, err := f.expenses.Update(ctx, f.manager, created)
	require.NoError(t, err)
	assert.Equal(t, "15.00", updated.Amount.String())

	require.NoError(t, f.expenses.Delete(ctx, f.manager, created.ID))
	_, err = f.expenses.Get(ctx, f.manager, created.ID)
	assert.True(t, core.IsNotFound(err))

	assert.Equal(t, []amqp.EventType{amqp.EventExpenseCreated, amqp.EventExpenseUpdated, amqp.EventExpenseDeleted}, f.pub.types())
}
