package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"canteen/internal/core"
	"canteen/internal/ledger"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, _ := s.CreateUser(ctx, core.User{Username: "sam", IsStudent: true})
	f, _ := s.CreateFood(ctx, core.FoodItem{Name: "Tea", Price: core.Money{Cents: 200}, Available: true})

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.InsertOrder(ctx, core.Order{StudentID: u.ID, FoodID: f.ID, Quantity: 1, TotalPrice: f.Price}); err != nil {
			return err
		}
		if err := tx.SetDueAmount(ctx, u.ID, f.Price); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	orders, _ := s.ListOrders(ctx, core.OrderFilter{})
	if len(orders) != 0 {
		t.Fatalf("expected no orders after rollback, got %d", len(orders))
	}
	got, _ := s.GetUser(ctx, u.ID)
	if !got.DueAmount.IsZero() {
		t.Fatalf("expected due to be rolled back, got %s", got.DueAmount)
	}
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.CreateUser(ctx, core.User{Username: "Sam"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := s.CreateUser(ctx, core.User{Username: "sam"})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "username" {
		t.Fatalf("expected username validation error, got %v", err)
	}
}

func TestPaidOrderLinesUsesHalfOpenWindow(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, _ := s.CreateUser(ctx, core.User{Username: "sam", IsStudent: true})
	f, _ := s.CreateFood(ctx, core.FoodItem{Name: "Tea", Price: core.Money{Cents: 200}, CostPrice: core.Money{Cents: 50}, Available: true})

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	stamps := []time.Time{from, to.Add(-time.Second), to}

	_ = s.WithinTx(ctx, func(tx ledger.Tx) error {
		for _, ts := range stamps {
			id, err := tx.InsertOrder(ctx, core.Order{StudentID: u.ID, FoodID: f.ID, Quantity: 1, TotalPrice: f.Price, OrderedAt: ts})
			if err != nil {
				return err
			}
			if err := tx.MarkOrderCleared(ctx, id); err != nil {
				return err
			}
		}
		// uncleared orders never count
		_, err := tx.InsertOrder(ctx, core.Order{StudentID: u.ID, FoodID: f.ID, Quantity: 1, TotalPrice: f.Price, OrderedAt: from})
		return err
	})

	lines, err := s.PaidOrderLines(ctx, from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for _, l := range lines {
		if l.UnitCost.Cents != 50 {
			t.Fatalf("expected current cost price, got %s", l.UnitCost)
		}
	}
}

func TestListExpensesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, d := range []core.Date{core.NewDate(2024, 1, 5), core.NewDate(2024, 3, 1), core.NewDate(2024, 2, 10)} {
		_, _ = s.CreateExpense(ctx, core.Expense{Title: "x", Category: core.CategoryMisc, Amount: core.Money{Cents: 100}, Date: d})
	}
	out, _ := s.ListExpenses(ctx, core.ExpenseFilter{Start: core.NewDate(2024, 1, 6)})
	if len(out) != 2 {
		t.Fatalf("expected 2 expenses, got %d", len(out))
	}
	if out[0].Date.String() != "2024-03-01" || out[1].Date.String() != "2024-02-10" {
		t.Fatalf("unexpected order: %s, %s", out[0].Date, out[1].Date)
	}
}

func TestNewFromFilesSeedsMenu(t *testing.T) {
	dir := t.TempDir()
	seed := "# name;price;cost\nSamosa;1.50;0.60\nbroken line\nJuice;2\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_foods.txt"), []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFromFiles(dir)
	foods, _ := s.ListFoods(context.Background(), nil)
	if len(foods) != 2 {
		t.Fatalf("expected 2 seeded foods, got %d", len(foods))
	}
	if foods[0].Name != "Samosa" || foods[0].CostPrice.Cents != 60 || !foods[0].Available {
		t.Fatalf("unexpected first food: %+v", foods[0])
	}
	if foods[1].Price.Cents != 200 || !foods[1].CostPrice.IsZero() {
		t.Fatalf("unexpected second food: %+v", foods[1])
	}
}
