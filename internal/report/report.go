// Package report aggregates paid orders, cost of goods and expenses over a
// date range into headline KPIs and an aligned monthly series.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"canteen/internal/core"
)

// SaleLine is one cleared order as seen by the report. UnitCost is the
// food's cost price at the time the report runs.
type SaleLine struct {
	OrderedAt time.Time
	Quantity  int
	Total     core.Money
	UnitCost  core.Money
}

// COGS returns quantity × unit cost.
func (l SaleLine) COGS() core.Money {
	return l.UnitCost.Mul(l.Quantity)
}

type ExpenseLine struct {
	Date     core.Date
	Category core.ExpenseCategory
	Amount   core.Money
}

// Source supplies the raw rows a report is built from.
type Source interface {
	// PaidOrderLines returns cleared orders with from <= ordered_at < to.
	PaidOrderLines(ctx context.Context, from, to time.Time) ([]SaleLine, error)
	// ExpenseLines returns expenses dated within [start, end].
	ExpenseLines(ctx context.Context, start, end core.Date) ([]ExpenseLine, error)
}

// KPIs are the scalar totals of a report.
type KPIs struct {
	TotalSales    core.Money
	TotalCOGS     core.Money
	GrossProfit   core.Money
	TotalExpenses core.Money
	NetProfit     core.Money
}

// Series holds one value per label, in label order.
type Series struct {
	Sales    []core.Money
	COGS     []core.Money
	Expenses []core.Money
	Gross    []core.Money
	Net      []core.Money
}

type CategoryAmount struct {
	Category core.ExpenseCategory
	Amount   core.Money
}

type Report struct {
	Range  Range
	KPIs   KPIs
	Labels []string
	Series Series
	// ExpensesByCategory lists non-empty categories in their fixed order.
	ExpensesByCategory []CategoryAmount
	GeneratedAt        time.Time
}

type Engine struct {
	src Source
	loc *time.Location
	now func() time.Time
}

type Option func(*Engine)

// WithClock overrides the clock used for Today and GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine that buckets order timestamps by calendar
// date in loc. A nil loc means UTC.
func NewEngine(src Source, loc *time.Location, opts ...Option) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	e := &Engine{src: src, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the time zone used for date bucketing.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Today returns the current calendar date in the engine's time zone.
func (e *Engine) Today() core.Date {
	return core.DateOf(e.now(), e.loc)
}

// Generate builds the report for r. Both sources are queried concurrently.
func (e *Engine) Generate(ctx context.Context, r Range) (Report, error) {
	if err := r.Validate(); err != nil {
		return Report{}, err
	}

	from := r.Start.StartIn(e.loc)
	to := r.End.AddDays(1).StartIn(e.loc)

	var (
		sales    []SaleLine
		expenses []ExpenseLine
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lines, err := e.src.PaidOrderLines(gctx, from, to)
		if err != nil {
			return fmt.Errorf("load paid orders: %w", err)
		}
		sales = lines
		return nil
	})
	g.Go(func() error {
		lines, err := e.src.ExpenseLines(gctx, r.Start, r.End)
		if err != nil {
			return fmt.Errorf("load expenses: %w", err)
		}
		expenses = lines
		return nil
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	rep := Build(r, sales, expenses, e.loc)
	rep.GeneratedAt = e.now().UTC()
	return rep, nil
}

// Build aggregates already loaded lines. Lines outside r are ignored.
func Build(r Range, sales []SaleLine, expenses []ExpenseLine, loc *time.Location) Report {
	if loc == nil {
		loc = time.UTC
	}

	monthlySales := map[string]core.Money{}
	monthlyCOGS := map[string]core.Money{}
	monthlyExpenses := map[string]core.Money{}
	byCategory := map[core.ExpenseCategory]core.Money{}

	var k KPIs
	for _, l := range sales {
		day := core.DateOf(l.OrderedAt, loc)
		if !r.contains(day) {
			continue
		}
		month := day.MonthKey()
		k.TotalSales = k.TotalSales.Add(l.Total)
		k.TotalCOGS = k.TotalCOGS.Add(l.COGS())
		monthlySales[month] = monthlySales[month].Add(l.Total)
		monthlyCOGS[month] = monthlyCOGS[month].Add(l.COGS())
	}
	for _, l := range expenses {
		if !r.contains(l.Date) {
			continue
		}
		month := l.Date.MonthKey()
		k.TotalExpenses = k.TotalExpenses.Add(l.Amount)
		monthlyExpenses[month] = monthlyExpenses[month].Add(l.Amount)
		byCategory[l.Category] = byCategory[l.Category].Add(l.Amount)
	}
	k.GrossProfit = k.TotalSales.Sub(k.TotalCOGS)
	k.NetProfit = k.GrossProfit.Sub(k.TotalExpenses)

	labels := unionKeys(monthlySales, monthlyCOGS, monthlyExpenses)
	s := Series{
		Sales:    make([]core.Money, len(labels)),
		COGS:     make([]core.Money, len(labels)),
		Expenses: make([]core.Money, len(labels)),
		Gross:    make([]core.Money, len(labels)),
		Net:      make([]core.Money, len(labels)),
	}
	for i, m := range labels {
		s.Sales[i] = monthlySales[m]
		s.COGS[i] = monthlyCOGS[m]
		s.Expenses[i] = monthlyExpenses[m]
		s.Gross[i] = s.Sales[i].Sub(s.COGS[i])
		s.Net[i] = s.Gross[i].Sub(s.Expenses[i])
	}

	var cats []CategoryAmount
	for _, c := range core.ExpenseCategories() {
		if amount, ok := byCategory[c]; ok {
			cats = append(cats, CategoryAmount{Category: c, Amount: amount})
		}
	}

	return Report{
		Range:              r,
		KPIs:               k,
		Labels:             labels,
		Series:             s,
		ExpensesByCategory: cats,
	}
}

func (r Range) contains(d core.Date) bool {
	return !d.Before(r.Start) && !r.End.Before(d)
}

// unionKeys returns every key of the given maps, sorted. "YYYY-MM" keys sort
// chronologically because the year comes first and the month is zero padded.
func unionKeys(sets ...map[string]core.Money) []string {
	seen := map[string]struct{}{}
	for _, set := range sets {
		for k := range set {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func units(values []core.Money) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v.Units()
	}
	return out
}

type reportJSON struct {
	StartDate          string               `json:"start_date"`
	EndDate            string               `json:"end_date"`
	RangeFallback      bool                 `json:"range_fallback"`
	KPIs               map[string]float64   `json:"kpis"`
	Labels             []string             `json:"labels"`
	Series             map[string][]float64 `json:"series"`
	ExpensesByCategory []categoryJSON       `json:"expenses_by_category"`
	GeneratedAt        time.Time            `json:"generated_at"`
}

type categoryJSON struct {
	Category string  `json:"category"`
	Label    string  `json:"label"`
	Amount   float64 `json:"amount"`
}

// MarshalJSON renders amounts as plain numbers, which is what charting
// clients consume.
func (rep Report) MarshalJSON() ([]byte, error) {
	cats := make([]categoryJSON, 0, len(rep.ExpensesByCategory))
	for _, c := range rep.ExpensesByCategory {
		cats = append(cats, categoryJSON{
			Category: string(c.Category),
			Label:    c.Category.Label(),
			Amount:   c.Amount.Units(),
		})
	}
	labels := rep.Labels
	if labels == nil {
		labels = []string{}
	}
	return json.Marshal(reportJSON{
		StartDate:     rep.Range.Start.String(),
		EndDate:       rep.Range.End.String(),
		RangeFallback: rep.Range.Fallback,
		KPIs: map[string]float64{
			"total_sales":    rep.KPIs.TotalSales.Units(),
			"total_cogs":     rep.KPIs.TotalCOGS.Units(),
			"gross_profit":   rep.KPIs.GrossProfit.Units(),
			"total_expenses": rep.KPIs.TotalExpenses.Units(),
			"net_profit":     rep.KPIs.NetProfit.Units(),
		},
		Labels: labels,
		Series: map[string][]float64{
			"sales":    units(rep.Series.Sales),
			"cogs":     units(rep.Series.COGS),
			"expenses": units(rep.Series.Expenses),
			"gross":    units(rep.Series.Gross),
			"net":      units(rep.Series.Net),
		},
		ExpensesByCategory: cats,
		GeneratedAt:        rep.GeneratedAt,
	})
}
