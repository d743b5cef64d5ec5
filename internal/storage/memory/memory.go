// Package memory is an in-process store for development and tests. All state
// is lost when the process exits.
package memory

import (
	"bufio"
	"context"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"canteen/internal/core"
	"canteen/internal/ledger"
	"canteen/internal/report"
)

type Store struct {
	mu       sync.RWMutex
	users    map[int64]core.User
	foods    map[int64]core.FoodItem
	orders   map[int64]core.Order
	expenses map[int64]core.Expense
	seq      int64
}

func New() *Store {
	return &Store{
		users:    map[int64]core.User{},
		foods:    map[int64]core.FoodItem{},
		orders:   map[int64]core.Order{},
		expenses: map[int64]core.Expense{},
	}
}

// NewFromFiles returns a store whose menu is seeded from base/seed_foods.txt.
// Each non-comment line is "name;price;cost_price". A missing file yields an
// empty menu.
func NewFromFiles(base string) *Store {
	s := New()
	for _, line := range readLines(filepath.Join(base, "seed_foods.txt")) {
		parts := strings.Split(line, ";")
		if len(parts) < 2 {
			continue
		}
		price, err := core.ParseMoney(parts[1])
		if err != nil {
			continue
		}
		var cost core.Money
		if len(parts) > 2 {
			if cost, err = core.ParseMoney(parts[2]); err != nil {
				continue
			}
		}
		s.seq++
		s.foods[s.seq] = core.FoodItem{
			ID:        s.seq,
			Name:      strings.TrimSpace(parts[0]),
			Price:     price,
			CostPrice: cost,
			Available: true,
		}
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// WithinTx holds the write lock for the whole of fn. If fn fails every map
// is restored to its state before the call.
func (s *Store) WithinTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, foods, orders, seq := maps.Clone(s.users), maps.Clone(s.foods), maps.Clone(s.orders), s.seq
	if err := fn(&tx{s: s}); err != nil {
		s.users, s.foods, s.orders, s.seq = users, foods, orders, seq
		return err
	}
	return nil
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// tx is only valid while WithinTx holds the lock.
type tx struct {
	s *Store
}

func (t *tx) FoodByID(_ context.Context, id int64) (core.FoodItem, error) {
	f, ok := t.s.foods[id]
	if !ok {
		return core.FoodItem{}, core.NewReferenceError("food", id)
	}
	return f, nil
}

func (t *tx) UserByID(_ context.Context, id int64) (core.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return core.User{}, core.NewReferenceError("user", id)
	}
	return u, nil
}

func (t *tx) OrderByID(_ context.Context, id int64) (core.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return core.Order{}, core.NewReferenceError("order", id)
	}
	return t.s.expand(o), nil
}

func (t *tx) InsertOrder(_ context.Context, o core.Order) (int64, error) {
	if _, ok := t.s.foods[o.FoodID]; !ok {
		return 0, core.NewReferenceError("food", o.FoodID)
	}
	if _, ok := t.s.users[o.StudentID]; !ok {
		return 0, core.NewReferenceError("user", o.StudentID)
	}
	o.ID = t.s.nextID()
	o.Food = nil
	t.s.orders[o.ID] = o
	return o.ID, nil
}

func (t *tx) MarkOrderCleared(_ context.Context, id int64) error {
	o, ok := t.s.orders[id]
	if !ok {
		return core.NewReferenceError("order", id)
	}
	o.Cleared = true
	t.s.orders[id] = o
	return nil
}

func (t *tx) DeleteOrder(_ context.Context, id int64) error {
	if _, ok := t.s.orders[id]; !ok {
		return core.NewReferenceError("order", id)
	}
	delete(t.s.orders, id)
	return nil
}

func (t *tx) OrderTotals(_ context.Context, studentID int64) (all, cleared core.Money, err error) {
	for _, o := range t.s.orders {
		if o.StudentID != studentID {
			continue
		}
		all = all.Add(o.TotalPrice)
		if o.Cleared {
			cleared = cleared.Add(o.TotalPrice)
		}
	}
	return all, cleared, nil
}

func (t *tx) SetDueAmount(_ context.Context, studentID int64, due core.Money) error {
	u, ok := t.s.users[studentID]
	if !ok {
		return core.NewReferenceError("user", studentID)
	}
	u.DueAmount = due
	t.s.users[studentID] = u
	return nil
}

func (t *tx) DeleteFood(_ context.Context, id int64) ([]int64, error) {
	if _, ok := t.s.foods[id]; !ok {
		return nil, core.NewReferenceError("food", id)
	}
	seen := map[int64]struct{}{}
	var students []int64
	for oid, o := range t.s.orders {
		if o.FoodID != id {
			continue
		}
		delete(t.s.orders, oid)
		if _, dup := seen[o.StudentID]; !dup {
			seen[o.StudentID] = struct{}{}
			students = append(students, o.StudentID)
		}
	}
	delete(t.s.foods, id)
	sort.Slice(students, func(i, j int) bool { return students[i] < students[j] })
	return students, nil
}

// expand attaches a copy of the order's food. Caller holds the lock.
func (s *Store) expand(o core.Order) core.Order {
	if f, ok := s.foods[o.FoodID]; ok {
		o.Food = &f
	}
	return o
}

// Users

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return core.User{}, core.NewValidationError("username", "A user with that username already exists.")
		}
	}
	u.ID = s.nextID()
	u.DueAmount = core.Money{}
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC()
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.NewReferenceError("user", id)
	}
	return u, nil
}

// GetUserByUsername matches case-insensitively. A miss is a ReferenceError
// with ID 0.
func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return core.User{}, core.NewReferenceError("user", 0)
}

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Foods

func (s *Store) CreateFood(_ context.Context, f core.FoodItem) (core.FoodItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = s.nextID()
	s.foods[f.ID] = f
	return f, nil
}

func (s *Store) GetFood(_ context.Context, id int64) (core.FoodItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.foods[id]
	if !ok {
		return core.FoodItem{}, core.NewReferenceError("food", id)
	}
	return f, nil
}

func (s *Store) UpdateFood(_ context.Context, f core.FoodItem) (core.FoodItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.foods[f.ID]; !ok {
		return core.FoodItem{}, core.NewReferenceError("food", f.ID)
	}
	s.foods[f.ID] = f
	return f, nil
}

func (s *Store) ListFoods(_ context.Context, available *bool) ([]core.FoodItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.FoodItem, 0, len(s.foods))
	for _, f := range s.foods {
		if available != nil && f.Available != *available {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Orders

func (s *Store) GetOrder(_ context.Context, id int64) (core.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return core.Order{}, core.NewReferenceError("order", id)
	}
	return s.expand(o), nil
}

// ListOrders returns matching orders, newest first.
func (s *Store) ListOrders(_ context.Context, filter core.OrderFilter) ([]core.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Order, 0)
	for _, o := range s.orders {
		if filter.Matches(o) {
			out = append(out, s.expand(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OrderedAt.Equal(out[j].OrderedAt) {
			return out[i].OrderedAt.After(out[j].OrderedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Expenses

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID()
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, core.NewReferenceError("expense", id)
	}
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[e.ID]; !ok {
		return core.Expense{}, core.NewReferenceError("expense", e.ID)
	}
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[id]; !ok {
		return core.NewReferenceError("expense", id)
	}
	delete(s.expenses, id)
	return nil
}

// ListExpenses returns matching expenses, most recent date first.
func (s *Store) ListExpenses(_ context.Context, filter core.ExpenseFilter) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[j].Date.Before(out[i].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Report source

func (s *Store) PaidOrderLines(_ context.Context, from, to time.Time) ([]report.SaleLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []report.SaleLine
	for _, o := range s.orders {
		if !o.Cleared || o.OrderedAt.Before(from) || !o.OrderedAt.Before(to) {
			continue
		}
		line := report.SaleLine{OrderedAt: o.OrderedAt, Quantity: o.Quantity, Total: o.TotalPrice}
		if f, ok := s.foods[o.FoodID]; ok {
			line.UnitCost = f.CostPrice
		}
		out = append(out, line)
	}
	return out, nil
}

func (s *Store) ExpenseLines(_ context.Context, start, end core.Date) ([]report.ExpenseLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []report.ExpenseLine
	for _, e := range s.expenses {
		if e.Date.Before(start) || end.Before(e.Date) {
			continue
		}
		out = append(out, report.ExpenseLine{Date: e.Date, Category: e.Category, Amount: e.Amount})
	}
	return out, nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
