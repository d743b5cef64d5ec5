// Package worker turns ledger events into spreadsheet exports of the
// default-range report.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"canteen/internal/amqp"
	"canteen/internal/log"
	"canteen/internal/report"
	"canteen/internal/sheets"
)

const DefaultInterval = 30 * time.Second

// ReportSource builds the report to export.
type ReportSource interface {
	Default(ctx context.Context) (report.Report, error)
}

// ExportWorker coalesces bursts of ledger events into at most one export per
// interval.
type ExportWorker struct {
	reports  ReportSource
	writer   sheets.ReportWriter
	interval time.Duration
	dirty    atomic.Bool
	exports  atomic.Int64
	logger   *log.Logger
}

// NewExportWorker returns a worker that exports once on its first tick and
// afterwards only when an event marked the report stale.
func NewExportWorker(reports ReportSource, writer sheets.ReportWriter, interval time.Duration) *ExportWorker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	w := &ExportWorker{
		reports:  reports,
		writer:   writer,
		interval: interval,
		logger:   log.NewDefault().WithComponent(log.ComponentWorker),
	}
	w.dirty.Store(true)
	return w
}

// HandleEvent is the AMQP consumer callback.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	w.logger.DebugContext(ctx, "Ledger event received",
		log.FieldEventType, string(ev.Type),
		"event_id", ev.ID,
		"entity_id", ev.EntityID)
	if ev.Type.AffectsReport() {
		w.dirty.Store(true)
	}
	return nil
}

// Dirty reports whether an export is pending.
func (w *ExportWorker) Dirty() bool {
	return w.dirty.Load()
}

// Exports counts successful exports.
func (w *ExportWorker) Exports() int64 {
	return w.exports.Load()
}

// ExportNow builds and writes the report regardless of pending events.
func (w *ExportWorker) ExportNow(ctx context.Context) (string, error) {
	rep, err := w.reports.Default(ctx)
	if err != nil {
		return "", fmt.Errorf("build report: %w", err)
	}
	ref, err := w.writer.WriteReport(ctx, rep)
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	w.exports.Add(1)
	w.logger.InfoContext(ctx, "Report exported",
		log.FieldSheetsRange, ref,
		log.FieldStartDate, rep.Range.Start.String(),
		log.FieldEndDate, rep.Range.End.String(),
		log.FieldOperation, log.OpExport)
	return ref, nil
}

// Tick exports if the report is stale. A failed export stays pending.
func (w *ExportWorker) Tick(ctx context.Context) error {
	if !w.dirty.Swap(false) {
		return nil
	}
	if _, err := w.ExportNow(ctx); err != nil {
		w.dirty.Store(true)
		return err
	}
	return nil
}

// Run ticks until ctx is cancelled.
func (w *ExportWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Export worker started", "interval", w.interval.String())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Export worker stopped")
			return nil
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Report export failed",
					log.FieldError, err.Error(),
					log.FieldErrorType, log.ErrorTypeNetwork)
			}
		}
	}
}
