// Package sheets defines the outbound port the export worker writes reports
// to, together with the row layout shared by every adapter.
package sheets

import (
	"context"
	"time"

	"canteen/internal/report"
)

// ReportWriter publishes a report, replacing whatever was written before.
// It returns a reference to where the report landed.
type ReportWriter interface {
	WriteReport(ctx context.Context, rep report.Report) (ref string, err error)
}

// ReportRows lays a report out as a grid: header, KPIs, the monthly series
// and the expense breakdown, separated by blank rows. Amounts are numbers so
// spreadsheets can chart them.
func ReportRows(rep report.Report) [][]any {
	rows := [][]any{
		{"Canteen report", rep.Range.Start.String(), rep.Range.End.String()},
		{"Generated at", rep.GeneratedAt.UTC().Format(time.RFC3339)},
		{},
		{"KPI", "Amount"},
		{"Total sales", rep.KPIs.TotalSales.Units()},
		{"Total COGS", rep.KPIs.TotalCOGS.Units()},
		{"Gross profit", rep.KPIs.GrossProfit.Units()},
		{"Total expenses", rep.KPIs.TotalExpenses.Units()},
		{"Net profit", rep.KPIs.NetProfit.Units()},
		{},
		{"Month", "Sales", "COGS", "Expenses", "Gross", "Net"},
	}
	s := rep.Series
	for i, label := range rep.Labels {
		rows = append(rows, []any{
			label,
			s.Sales[i].Units(),
			s.COGS[i].Units(),
			s.Expenses[i].Units(),
			s.Gross[i].Units(),
			s.Net[i].Units(),
		})
	}
	if len(rep.ExpensesByCategory) > 0 {
		rows = append(rows, []any{}, []any{"Category", "Amount"})
		for _, c := range rep.ExpensesByCategory {
			rows = append(rows, []any{c.Category.Label(), c.Amount.Units()})
		}
	}
	return rows
}
