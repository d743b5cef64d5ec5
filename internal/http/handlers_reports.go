package http

import (
	"bytes"
	"net/http"

	"canteen/internal/core"
	"canteen/internal/log"
	"canteen/internal/report"
)

func (s *Server) handleReportJSON(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	rep, ok := s.generateReport(w, r, caller)
	if !ok {
		return
	}
	NewJSONResponse().Payload(rep).Write(w)
}

// reportRow is one month of the HTML table.
type reportRow struct {
	Month    string
	Sales    string
	COGS     string
	Expenses string
	Gross    string
	Net      string
	Loss     bool
}

type categoryRow struct {
	Label  string
	Amount string
}

type reportPage struct {
	Title      string
	Start      string
	End        string
	Fallback   bool
	KPIs       []categoryRow
	Rows       []reportRow
	Categories []categoryRow
	Report     report.Report
}

func newReportPage(rep report.Report) reportPage {
	page := reportPage{
		Title:    "Canteen Business Reports",
		Start:    rep.Range.Start.String(),
		End:      rep.Range.End.String(),
		Fallback: rep.Range.Fallback,
		KPIs: []categoryRow{
			{"Total sales", formatMoney(rep.KPIs.TotalSales)},
			{"Cost of goods sold", formatMoney(rep.KPIs.TotalCOGS)},
			{"Gross profit", formatMoney(rep.KPIs.GrossProfit)},
			{"Total expenses", formatMoney(rep.KPIs.TotalExpenses)},
			{"Net profit", formatMoney(rep.KPIs.NetProfit)},
		},
		Report: rep,
	}
	for i, label := range rep.Labels {
		page.Rows = append(page.Rows, reportRow{
			Month:    label,
			Sales:    formatMoney(rep.Series.Sales[i]),
			COGS:     formatMoney(rep.Series.COGS[i]),
			Expenses: formatMoney(rep.Series.Expenses[i]),
			Gross:    formatMoney(rep.Series.Gross[i]),
			Net:      formatMoney(rep.Series.Net[i]),
			Loss:     rep.Series.Net[i].IsNegative(),
		})
	}
	for _, c := range rep.ExpensesByCategory {
		page.Categories = append(page.Categories, categoryRow{c.Category.Label(), formatMoney(c.Amount)})
	}
	return page
}

func (s *Server) handleReportPage(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	rep, ok := s.generateReport(w, r, caller)
	if !ok {
		return
	}

	// render into a buffer so a template failure can still become a 500
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "reports.html", newReportPage(rep)); err != nil {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(),
			"Template render failed", err, log.ComponentTemplate, log.OpRender, nil)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) generateReport(w http.ResponseWriter, r *http.Request, caller core.Identity) (report.Report, bool) {
	q := r.URL.Query()
	rep, err := s.deps.Reports.Generate(r.Context(), caller, q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, r, scopePath, err)
		return report.Report{}, false
	}
	s.metrics.reportsServed.Add(1)
	return rep, true
}
