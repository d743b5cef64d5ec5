package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"canteen/internal/log"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Payload(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.started).Truncate(time.Second).String(),
	}).Write(w)
}

// handleReady checks the store and the templates.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]string{"templates": "ok", "store": "ok"}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	if s.deps.Store == nil {
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if err := s.deps.Store.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeDatabase)
		checks["store"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	NewJSONResponse().Status(code).Payload(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	limitMetrics := s.limiter.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_avg_seconds", "gauge", "Average response time", traceMetrics.AverageResponseTime.Seconds())
	metric("orders_placed_total", "counter", "Orders placed through the API", s.metrics.ordersPlaced.Load())
	metric("orders_cleared_total", "counter", "Orders cleared through the API", s.metrics.ordersCleared.Load())
	metric("reports_served_total", "counter", "Reports served as JSON or HTML", s.metrics.reportsServed.Load())
	if s.deps.ReportCache != nil {
		st := s.deps.ReportCache.Stats()
		metric("report_cache_entries", "gauge", "Cached reports", st.Size)
		metric("report_cache_hits_total", "counter", "Report cache hits", st.Hits)
		metric("report_cache_misses_total", "counter", "Report cache misses", st.Misses)
	}
	metric("rate_limit_rejected_total", "counter", "Requests rejected by the rate limiter", limitMetrics.Rejected)
	metric("rate_limit_clients", "gauge", "Clients tracked by the rate limiter", limitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Requests matching scanner probe patterns", s.detector.SuspiciousRequests())
	metric("uptime_seconds", "gauge", "Process uptime", int64(time.Since(s.metrics.started).Seconds()))
}
