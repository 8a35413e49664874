// Package daemon bundles the scheduled-crawl ticker, OS-signal handling, and
// an optional metrics HTTP server into a single run.Group so a caller gets
// clean shutdown semantics for free (spec's scheduled discovery loop).
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// CrawlFunc runs one discovery crawl. It is supplied by the caller so this
// package stays independent of the orchestrator's AWS-client wiring.
type CrawlFunc func(ctx context.Context) error

// Config holds daemon configuration.
type Config struct {
	Interval    time.Duration
	MetricsPort int
	Crawl       CrawlFunc
	Logger      zerolog.Logger
}

// Daemon runs CrawlFunc on a ticker until its context is canceled or a
// termination signal arrives.
type Daemon struct {
	interval    time.Duration
	metricsPort int
	crawl       CrawlFunc
	logger      zerolog.Logger

	startTime    time.Time
	crawlCount   atomic.Int64
	crawlErrors  atomic.Int64
	metricsAddr  atomic.Value // string, set once the listener binds
}

// NewDaemon creates a new daemon instance.
func NewDaemon(cfg Config) (*Daemon, error) {
	if cfg.Crawl == nil {
		return nil, errors.New("daemon: Crawl function is required")
	}
	d := &Daemon{
		interval:    cfg.Interval,
		metricsPort: cfg.MetricsPort,
		crawl:       cfg.Crawl,
		logger:      cfg.Logger,
		startTime:   time.Now(),
	}
	d.metricsAddr.Store("")
	return d, nil
}

// Start runs the ticker loop, signal listener, and (if MetricsPort != 0) the
// metrics HTTP server as an oklog/run.Group: whichever actor exits first
// tears down the rest.
func (d *Daemon) Start(ctx context.Context) error {
	var g run.Group

	runCtx, cancel := context.WithCancel(ctx)
	g.Add(func() error {
		return d.tickLoop(runCtx)
	}, func(error) {
		cancel()
	})

	sigCtx, stop := signal.NotifyContext(runCtx, syscall.SIGINT, syscall.SIGTERM)
	g.Add(func() error {
		<-sigCtx.Done()
		return nil
	}, func(error) {
		stop()
	})

	if d.metricsPort != 0 {
		srv, ln, err := d.newMetricsServer()
		if err != nil {
			return fmt.Errorf("daemon: start metrics server: %w", err)
		}
		g.Add(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}, func(error) {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	return g.Run()
}

func (d *Daemon) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.runCrawl(ctx)
		}
	}
}

func (d *Daemon) runCrawl(ctx context.Context) {
	start := time.Now()
	err := d.crawl(ctx)
	d.crawlCount.Add(1)
	if err != nil {
		d.crawlErrors.Add(1)
		d.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("scheduled crawl failed")
		return
	}
	d.logger.Info().Dur("elapsed", time.Since(start)).Msg("scheduled crawl complete")
}

func (d *Daemon) newMetricsServer() (*http.Server, net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", d.metricsPort))
	if err != nil {
		return nil, nil, err
	}
	d.metricsAddr.Store(ln.Addr().String())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", d.handleHealth)
	mux.HandleFunc("/-/healthy", d.handleHealth)
	mux.HandleFunc("/-/ready", d.handleHealth)

	return &http.Server{Handler: mux}, ln, nil
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Health returns the daemon's current health snapshot.
func (d *Daemon) Health() HealthStatus {
	return HealthStatus{
		Status:      "healthy",
		Uptime:      int64(time.Since(d.startTime).Seconds()),
		CrawlCount:  d.crawlCount.Load(),
		CrawlErrors: d.crawlErrors.Load(),
	}
}

// HealthStatus represents daemon health.
type HealthStatus struct {
	Status      string
	Uptime      int64
	CrawlCount  int64
	CrawlErrors int64
}

// CrawlCount returns the total number of scheduled crawls run.
func (d *Daemon) CrawlCount() int64 {
	return d.crawlCount.Load()
}

// MetricsAddr returns the bound address of the metrics server, or "" if one
// was never started or hasn't bound yet.
func (d *Daemon) MetricsAddr() string {
	addr, _ := d.metricsAddr.Load().(string)
	return addr
}
