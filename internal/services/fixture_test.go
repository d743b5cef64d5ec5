package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"canteen/internal/amqp"
	"canteen/internal/cache"
	"canteen/internal/core"
	"canteen/internal/ledger"
	"canteen/internal/log"
	"canteen/internal/report"
	"canteen/internal/services"
	"canteen/internal/storage/memory"
)

var fixedNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	store    *memory.Store
	pub      *recordingPublisher
	cache    *cache.LRUCache[report.Report]
	orders   *services.OrderService
	foods    *services.FoodService
	expenses *services.ExpenseService
	reports  *services.ReportService

	student core.Identity
	other   core.Identity
	manager core.Identity
	food    core.FoodItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return fixedNow }

	store := memory.New()
	engine := ledger.NewEngine(store, ledger.WithClock(clock), ledger.WithLogger(log.Discard()))
	pub := &recordingPublisher{}
	events := services.NewEvents(pub, log.Discard())
	reportCache := cache.NewLRUCache[report.Report](8, time.Minute)

	f := &fixture{
		store:    store,
		pub:      pub,
		cache:    reportCache,
		orders:   services.NewOrderService(engine, store, store, events),
		foods:    services.NewFoodService(store, engine, events),
		expenses: services.NewExpenseService(store, events),
		reports: services.NewReportService(
			report.NewEngine(store, time.UTC, report.WithClock(clock)), 90, reportCache),
	}
	f.reports.InvalidateOn(events)

	f.student = mustUser(t, store, core.User{Username: "sam", IsStudent: true})
	f.other = mustUser(t, store, core.User{Username: "kim", IsStudent: true})
	f.manager = mustUser(t, store, core.User{Username: "boss", IsManager: true})

	food, err := store.CreateFood(ctx, core.FoodItem{
		Name:      "Sandwich",
		Price:     core.Money{Cents: 1000},
		CostPrice: core.Money{Cents: 600},
		Available: true,
	})
	require.NoError(t, err)
	f.food = food
	return f
}

func mustUser(t *testing.T, store *memory.Store, u core.User) core.Identity {
	t.Helper()
	created, err := store.CreateUser(context.Background(), u)
	require.NoError(t, err)
	return created.Identity()
}

func isPermission(err error) bool {
	var perm *core.PermissionError
	return errors.As(err, &perm)
}
