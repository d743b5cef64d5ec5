package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen/internal/core"
	"canteen/internal/ledger"
	"canteen/internal/log"
	"canteen/internal/storage/memory"
)

type fixture struct {
	store   *memory.Store
	engine  *ledger.Engine
	student core.User
	food    core.FoodItem
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	student, err := store.CreateUser(ctx, core.User{Username: "sam", IsStudent: true})
	require.NoError(t, err)
	food, err := store.CreateFood(ctx, core.FoodItem{
		Name:      "Rolex",
		Price:     core.Money{Cents: 1000},
		CostPrice: core.Money{Cents: 600},
		Available: true,
	})
	require.NoError(t, err)

	clock := func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) }
	engine := ledger.NewEngine(store, ledger.WithClock(clock), ledger.WithLogger(log.Discard()))
	return fixture{store: store, engine: engine, student: student, food: food}
}

func (f fixture) due(t *testing.T) core.Money {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), f.student.ID)
	require.NoError(t, err)
	return u.DueAmount
}

func TestComputeOrderTotal(t *testing.T) {
	food := &core.FoodItem{Price: core.Money{Cents: 1250}}

	total, err := ledger.ComputeOrderTotal(food, 3)
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: 3750}, total)

	_, err = ledger.ComputeOrderTotal(nil, 1)
	var ref *core.ReferenceError
	assert.ErrorAs(t, err, &ref)

	_, err = ledger.ComputeOrderTotal(food, 0)
	var vErr *core.ValidationError
	assert.ErrorAs(t, err, &vErr)

	// 12.50 x 8,000,000 is past 999999.99
	_, err = ledger.ComputeOrderTotal(food, 8_000_000)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "quantity", vErr.Field)

	total, err = ledger.ComputeOrderTotal(&core.FoodItem{Price: core.Money{Cents: 1}}, core.MaxOrderTotalCents)
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: core.MaxOrderTotalCents}, total)
}

func TestPlaceOrderRejectsHugeQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, qty := range []int{922337203685477581, core.MaxQuantity} {
		_, err := f.engine.PlaceOrder(ctx, f.student.ID, f.food.ID, qty)
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr, "quantity %d", qty)
		assert.Equal(t, "quantity", vErr.Field)
	}

	assert.True(t, f.due(t).IsZero())
	orders, err := f.store.ListOrders(ctx, core.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceAndClearOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.engine.PlaceOrder(ctx, f.student.ID, f.food.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: 2000}, order.TotalPrice)
	assert.Equal(t, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), order.OrderedAt)
	assert.False(t, order.Cleared)
	assert.Equal(t, core.Money{Cents: 2000}, f.due(t))

	cleared, changed, err := f.engine.ClearOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, cleared.Cleared)
	assert.Equal(t, core.Money{}, f.due(t))

	// clearing twice is a no-op
	_, changed, err = f.engine.ClearOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, core.Money{}, f.due(t))
}

func TestTotalIsFrozenAtCreation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.engine.PlaceOrder(ctx, f.student.ID, f.food.ID, 2)
	require.NoError(t, err)

	f.food.Price = core.Money{Cents: 5000}
	_, err = f.store.UpdateFood(ctx, f.food)
	require.NoError(t, err)

	stored, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: 2000}, stored.TotalPrice)

	due, err := f.engine.RecomputeDue(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: 2000}, due)
}

func TestDeleteOrderRemovesDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.PlaceOrder(ctx, f.student.ID, f.food.ID, 1)
	require.NoError(t, err)
	_, err = f.engine.PlaceOrder(ctx, f.student.ID, f.food.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: 4000}, f.due(t))

	_, err = f.engine.DeleteOrder(ctx, first.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: 3000}, f.due(t))

	_, err = f.store.GetOrder(ctx, first.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestDeleteOrderCheckAbortsWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.engine.PlaceOrder(ctx, f.student.ID, f.food.ID, 1)
	require.NoError(t, err)

	denied := core.NewPermissionError("delete order")
	_, err = f.engine.DeleteOrder(ctx, order.ID, func(core.Order) error { return denied })
	assert.ErrorIs(t, err, denied)

	_, err = f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: 1000}, f.due(t))
}

func TestPlaceOrderRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	manager, err := f.store.CreateUser(ctx, core.User{Username: "boss", IsManager: true})
	require.NoError(t, err)
	hidden, err := f.store.CreateFood(ctx, core.FoodItem{Name: "Chapati", Price: core.Money{Cents: 300}})
	require.NoError(t, err)

	tests := []struct {
		name      string
		studentID int64
		foodID    int64
		quantity  int
		check     func(t *testing.T, err error)
	}{
		{"zero quantity", f.student.ID, f.food.ID, 0, func(t *testing.T, err error) {
			var vErr *core.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, "quantity", vErr.Field)
		}},
		{"missing food", f.student.ID, 999, 1, func(t *testing.T, err error) {
			var ref *core.ReferenceError
			require.ErrorAs(t, err, &ref)
			assert.Equal(t, "food", ref.Entity)
		}},
		{"missing student", 999, f.food.ID, 1, func(t *testing.T, err error) {
			assert.True(t, core.IsNotFound(err))
		}},
		{"not a student", manager.ID, f.food.ID, 1, func(t *testing.T, err error) {
			var pErr *core.PermissionError
			assert.ErrorAs(t, err, &pErr)
		}},
		{"unavailable food", f.student.ID, hidden.ID, 1, func(t *testing.T, err error) {
			var vErr *core.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, "food_id", vErr.Field)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.PlaceOrder(ctx, tt.studentID, tt.foodID, tt.quantity)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	orders, err := f.store.ListOrders(ctx, core.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, core.Money{}, f.due(t))
}

func TestRemoveFoodCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.store.CreateUser(ctx, core.User{Username: "ann", IsStudent: true})
	require.NoError(t, err)
	tea, err := f.store.CreateFood(ctx, core.FoodItem{Name: "Tea", Price: core.Money{Cents: 200}, Available: true})
	require.NoError(t, err)

	_, err = f.engine.PlaceOrder(ctx, f.student.ID, f.food.ID, 1)
	require.NoError(t, err)
	_, err = f.engine.PlaceOrder(ctx, f.student.ID, tea.ID, 2)
	require.NoError(t, err)
	_, err = f.engine.PlaceOrder(ctx, other.ID, f.food.ID, 2)
	require.NoError(t, err)

	affected, err := f.engine.RemoveFood(ctx, f.food.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{f.student.ID, other.ID}, affected)

	assert.Equal(t, core.Money{Cents: 400}, f.due(t))
	u, err := f.store.GetUser(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Money{}, u.DueAmount)

	_, err = f.engine.RemoveFood(ctx, f.food.ID)
	assert.True(t, core.IsNotFound(err))
}

type failingStore struct {
	ledger.Store
}

func (failingStore) WithinTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return errors.New("database is locked")
}

func TestStoreErrorsPropagate(t *testing.T) {
	engine := ledger.NewEngine(failingStore{}, ledger.WithLogger(log.Discard()))
	_, err := engine.PlaceOrder(context.Background(), 1, 1, 1)
	assert.EqualError(t, err, "database is locked")
}
