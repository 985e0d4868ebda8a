// Package metrics exposes scan progress for Prometheus scraping.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ccollicutt/pgcrunch/pkg/scanner"
)

// StatsSource is anything that reports live scan counters.
type StatsSource interface {
	Stats() scanner.Stats
}

// Provider implements prometheus.Collector by reading the engine counters at
// scrape time rather than maintaining separate ones.
type Provider struct {
	source StatsSource

	lines       *prometheus.Desc
	entries     *prometheus.Desc
	records     *prometheus.Desc
	dangling    *prometheus.Desc
	overwritten *prometheus.Desc
	readErrors  *prometheus.Desc
	pending     *prometheus.Desc
}

// NewProvider creates a collector over source.
func NewProvider(source StatsSource) *Provider {
	return &Provider{
		source: source,
		lines: prometheus.NewDesc(
			"pgcrunch_lines_total",
			"Log lines read",
			nil, nil,
		),
		entries: prometheus.NewDesc(
			"pgcrunch_entries_total",
			"Lines that started a new log entry",
			nil, nil,
		),
		records: prometheus.NewDesc(
			"pgcrunch_records_total",
			"Statement/duration records written",
			nil, nil,
		),
		dangling: prometheus.NewDesc(
			"pgcrunch_dangling_durations_total",
			"Durations reported with no pending statement for their pid",
			nil, nil,
		),
		overwritten: prometheus.NewDesc(
			"pgcrunch_overwritten_statements_total",
			"Pending statements replaced by a newer statement from the same pid",
			nil, nil,
		),
		readErrors: prometheus.NewDesc(
			"pgcrunch_read_errors_total",
			"Lines or files the input could not deliver",
			nil, nil,
		),
		pending: prometheus.NewDesc(
			"pgcrunch_pending_statements",
			"Statements waiting for their duration",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (p *Provider) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.lines
	ch <- p.entries
	ch <- p.records
	ch <- p.dangling
	ch <- p.overwritten
	ch <- p.readErrors
	ch <- p.pending
}

// Collect implements prometheus.Collector.
func (p *Provider) Collect(ch chan<- prometheus.Metric) {
	s := p.source.Stats()

	ch <- prometheus.MustNewConstMetric(p.lines, prometheus.CounterValue, float64(s.Lines))
	ch <- prometheus.MustNewConstMetric(p.entries, prometheus.CounterValue, float64(s.Entries))
	ch <- prometheus.MustNewConstMetric(p.records, prometheus.CounterValue, float64(s.Records))
	ch <- prometheus.MustNewConstMetric(p.dangling, prometheus.CounterValue, float64(s.DanglingDurations))
	ch <- prometheus.MustNewConstMetric(p.overwritten, prometheus.CounterValue, float64(s.OverwrittenStatements))
	ch <- prometheus.MustNewConstMetric(p.readErrors, prometheus.CounterValue, float64(s.ReadErrors))
	ch <- prometheus.MustNewConstMetric(p.pending, prometheus.GaugeValue, float64(s.PendingStatements))
}

// Handler returns an HTTP handler serving the provider on its own registry,
// so process-global collectors never leak into the scrape.
func Handler(p *Provider) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(p); err != nil {
		return nil, fmt.Errorf("registering collector: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux, nil
}

// Server serves /metrics until its context is cancelled.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	logger     *slog.Logger
}

// Listen binds addr and prepares a server for p. Binding happens here so a
// bad address fails before the scan starts.
func Listen(addr string, p *Provider, logger *slog.Logger) (*Server, error) {
	handler, err := Handler(p)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start metrics listener: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		listener: ln,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve blocks until ctx is cancelled, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
		close(errCh)
	}()
	s.logger.Info("serving metrics", "addr", s.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down metrics server: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
