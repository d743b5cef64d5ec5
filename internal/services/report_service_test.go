package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen/internal/core"
	"canteen/internal/report"
	"canteen/internal/services"
)

func TestReportService_InvalidatedByLedgerWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep, err := f.reports.Generate(ctx, f.manager, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.True(t, rep.KPIs.TotalSales.IsZero())

	_, err = f.reports.Generate(ctx, f.manager, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.cache.Stats().Hits)

	order, err := f.orders.Place(ctx, f.student, f.food.ID, 2)
	require.NoError(t, err)
	_, err = f.orders.Clear(ctx, f.manager, order.ID)
	require.NoError(t, err)

	rep, err = f.reports.Generate(ctx, f.manager, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, "20.00", rep.KPIs.TotalSales.String())
	assert.Equal(t, "12.00", rep.KPIs.TotalCOGS.String())
	assert.Equal(t, "8.00", rep.KPIs.GrossProfit.String())
	assert.Equal(t, []string{"2024-01"}, rep.Labels)
}

func TestReportService_RangeHandling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep, err := f.reports.Generate(ctx, f.manager, "invalid", "")
	require.NoError(t, err)
	assert.True(t, rep.Range.Fallback)
	assert.Equal(t, "2024-01-15", rep.Range.End.String())
	assert.Equal(t, core.NewDate(2024, 1, 15).AddDays(-90).String(), rep.Range.Start.String())

	// the cached entry must not leak the fallback flag to a well-formed request
	rep, err = f.reports.Generate(ctx, f.manager, rep.Range.Start.String(), "2024-01-15")
	require.NoError(t, err)
	assert.False(t, rep.Range.Fallback)

	_, err = f.reports.Generate(ctx, f.manager, "2024-02-01", "2024-01-01")
	assert.True(t, errors.Is(err, core.ErrInvalidRange))

	_, err = f.reports.Generate(ctx, f.student, "", "")
	assert.True(t, isPermission(err))
}

func TestReportService_Default(t *testing.T) {
	f := newFixture(t)

	_, err := f.expenses.Create(context.Background(), f.manager, core.Expense{
		Title:    "Rent",
		Category: core.CategoryRent,
		Amount:   core.Money{Cents: 5000},
		Date:     core.NewDate(2024, 1, 10),
	})
	require.NoError(t, err)

	rep, err := f.reports.Default(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "-50.00", rep.KPIs.NetProfit.String())
}

// gatedSource blocks paid-order reads until released or its context ends.
type gatedSource struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSource) PaidOrderLines(ctx context.Context, _, _ time.Time) ([]report.SaleLine, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedSource) ExpenseLines(context.Context, core.Date, core.Date) ([]report.ExpenseLine, error) {
	return nil, nil
}

func TestReportService_SharedComputationSurvivesCancelledCaller(t *testing.T) {
	src := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	clock := func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) }
	svc := services.NewReportService(report.NewEngine(src, time.UTC, report.WithClock(clock)), 90, nil)
	r := report.Range{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 1, 31)}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.ForRange(firstCtx, r)
		firstErr <- err
	}()
	<-src.entered

	secondErr := make(chan error, 1)
	go func() {
		_, err := svc.ForRange(context.Background(), r)
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(src.release)
	select {
	case err := <-secondErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never returned")
	}
}
