// Package metrics exposes prometheus counters for publishing activity.
//
// A [Metrics] value owns its registry so the CLI and tests never share collectors.
// All methods are safe on a nil receiver, which is how components run with metrics off.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "threadx"

// Metrics groups the collectors recorded by the client, uploader, and composer.
type Metrics struct {
	registry *prometheus.Registry

	PostsPublished  prometheus.Counter
	MediaUploaded   prometheus.Counter
	MediaBytes      prometheus.Counter
	ThreadsPosted   prometheus.Counter
	ThreadFailures  prometheus.Counter
	TokenRefreshes  prometheus.Counter
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates a [Metrics] with a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PostsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_published_total",
			Help:      "Posts created on the platform",
		}),
		MediaUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_uploaded_total",
			Help:      "Attachments uploaded and processed",
		}),
		MediaBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_uploaded_bytes_total",
			Help:      "Bytes sent in media APPEND requests",
		}),
		ThreadsPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_posted_total",
			Help:      "Threads that finished posting",
		}),
		ThreadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thread_failures_total",
			Help:      "Posting runs that ended in the failed state",
		}),
		TokenRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Access token refreshes",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "API requests by endpoint and status code",
		}, []string{"endpoint", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}

	m.registry.MustRegister(
		m.PostsPublished, m.MediaUploaded, m.MediaBytes, m.ThreadsPosted,
		m.ThreadFailures, m.TokenRefreshes, m.Requests, m.RequestDuration,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one API round trip. A status of 0 means the transport failed.
func (m *Metrics) ObserveRequest(endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.Requests.WithLabelValues(endpoint, code).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// IncPostPublished counts one created post.
func (m *Metrics) IncPostPublished() {
	if m != nil {
		m.PostsPublished.Inc()
	}
}

// IncMediaUploaded counts one processed upload of size bytes.
func (m *Metrics) IncMediaUploaded(size int) {
	if m != nil {
		m.MediaUploaded.Inc()
		m.MediaBytes.Add(float64(size))
	}
}

// IncThreadPosted counts one completed thread.
func (m *Metrics) IncThreadPosted() {
	if m != nil {
		m.ThreadsPosted.Inc()
	}
}

// IncThreadFailure counts one failed posting run.
func (m *Metrics) IncThreadFailure() {
	if m != nil {
		m.ThreadFailures.Inc()
	}
}

// IncTokenRefresh counts one access token refresh.
func (m *Metrics) IncTokenRefresh() {
	if m != nil {
		m.TokenRefreshes.Inc()
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics and /health on addr until ctx is cancelled.
// It returns once the listener is bound; an empty addr is a no-op.
func StartServer(ctx context.Context, addr string, m *Metrics, logger *log.Logger) error {
	if addr == "" || m == nil {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && logger != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if logger != nil {
		logger.Info("metrics listening", "addr", ln.Addr().String())
	}
	return nil
}
