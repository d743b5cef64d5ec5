package services

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"canteen/internal/amqp"
	"canteen/internal/cache"
	"canteen/internal/core"
	"canteen/internal/log"
	"canteen/internal/report"
)

// ReportService serves reports with a short-lived cache. Identical requests
// running at the same time share one computation.
type ReportService struct {
	engine      *report.Engine
	defaultDays int
	cache       cache.Cache[report.Report]
	group       singleflight.Group
	generation  atomic.Uint64
	logger      *log.Logger
}

// NewReportService wires the engine to an optional cache.
func NewReportService(engine *report.Engine, defaultDays int, c cache.Cache[report.Report]) *ReportService {
	if defaultDays <= 0 {
		defaultDays = report.DefaultDays
	}
	return &ReportService{
		engine:      engine,
		defaultDays: defaultDays,
		cache:       c,
		logger:      log.NewDefault().WithComponent(log.ComponentReport),
	}
}

// Generate parses the raw query bounds and builds the report for a manager.
func (s *ReportService) Generate(ctx context.Context, caller core.Identity, start, end string) (report.Report, error) {
	if err := requireManager(caller, "view reports"); err != nil {
		return report.Report{}, err
	}

	r := report.ParseRange(start, end, s.engine.Today(), s.defaultDays)
	if r.Fallback {
		s.logger.WarnContext(ctx, "Malformed report range, using default",
			"start", start,
			"end", end,
			log.FieldStartDate, r.Start.String(),
			log.FieldEndDate, r.End.String())
	}
	return s.ForRange(ctx, r)
}

// Default builds the report for the default trailing window.
func (s *ReportService) Default(ctx context.Context) (report.Report, error) {
	return s.ForRange(ctx, report.DefaultRange(s.engine.Today(), s.defaultDays))
}

// ForRange returns the report for r, from cache when possible.
func (s *ReportService) ForRange(ctx context.Context, r report.Range) (report.Report, error) {
	if err := r.Validate(); err != nil {
		return report.Report{}, err
	}

	gen := s.generation.Load()
	key := fmt.Sprintf("%d|%s|%s", gen, r.Start, r.End)

	if s.cache != nil {
		if rep, ok := s.cache.Get(key); ok {
			rep.Range = r
			return rep, nil
		}
	}

	// the computation is shared by every caller of key and outlives each of
	// them; a caller that goes away only stops waiting
	ch := s.group.DoChan(key, func() (any, error) {
		rep, err := s.engine.Generate(context.WithoutCancel(ctx), r)
		if err != nil {
			return report.Report{}, err
		}
		// a write landed while computing; the result may already be stale
		if s.cache != nil && s.generation.Load() == gen {
			s.cache.Set(key, rep)
		}
		return rep, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return report.Report{}, ctx.Err()
	}
	if res.Err != nil {
		return report.Report{}, fmt.Errorf("generate report: %w", res.Err)
	}

	rep := res.Val.(report.Report)
	rep.Range = r
	if res.Shared {
		s.logger.DebugContext(ctx, "Report computation shared", log.FieldStartDate, r.Start.String())
	}
	log.NewStructuredLogger(s.logger).LogReportGenerated(ctx,
		r.Start.String(), r.End.String(), len(rep.Labels), r.Fallback)
	return rep, nil
}

// Invalidate drops every cached report.
func (s *ReportService) Invalidate() {
	s.generation.Add(1)
	if s.cache != nil {
		s.cache.Purge()
	}
}

// InvalidateOn subscribes the cache to ledger events that change figures.
func (s *ReportService) InvalidateOn(events *Events) {
	events.Subscribe(func(ctx context.Context, ev *amqp.LedgerEvent) {
		if ev.Type.AffectsReport() {
			s.Invalidate()
		}
	})
}
