// Package metrics exposes operational counters over an optional Prometheus
// HTTP listener. All recording methods are nil-safe so callers don't need to
// care whether metrics are enabled.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logx "cantinabot/pkg/logx"
)

type Metrics struct {
	reg *prometheus.Registry

	fetchAttempts *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	cacheHits     *prometheus.CounterVec
	posts         *prometheus.CounterVec
	nextAutoPost  prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cantinabot_fetch_attempts_total",
			Help: "Candidate URL download attempts.",
		}, []string{"cantina"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cantinabot_fetch_failures_total",
			Help: "Candidate URL attempts that failed to download or render.",
		}, []string{"cantina"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cantinabot_cache_hits_total",
			Help: "Resolutions served from the page cache.",
		}, []string{"cantina"}),
		posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cantinabot_posts_total",
			Help: "Menu deliveries by source and outcome.",
		}, []string{"source", "outcome"}),
		nextAutoPost: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cantinabot_next_auto_post_timestamp_seconds",
			Help: "Unix time of the next scheduled autonomous attempt.",
		}),
	}
	reg.MustRegister(m.fetchAttempts, m.fetchFailures, m.cacheHits, m.posts, m.nextAutoPost)
	return m
}

func (m *Metrics) FetchAttempt(cantina string) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(cantina).Inc()
}

func (m *Metrics) FetchFailure(cantina string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(cantina).Inc()
}

func (m *Metrics) CacheHit(cantina string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(cantina).Inc()
}

func (m *Metrics) Post(source, outcome string) {
	if m == nil {
		return
	}
	m.posts.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) SetNextAutoPost(t time.Time) {
	if m == nil {
		return
	}
	m.nextAutoPost.Set(float64(t.Unix()))
}

// Serve blocks serving /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log logx.Logger) error {
	if m == nil {
		return nil
	}
	if addr == "" {
		addr = "127.0.0.1:9180"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("metrics listener started", logx.String("addr", addr))

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
