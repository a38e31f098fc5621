// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsManager manages Prometheus metrics for the scraper. Every manager
// owns its registry, so several can live in one process.
type MetricsManager struct {
	registry *prometheus.Registry

	// Session metrics
	loginAttempts prometheus.Counter
	logins        *prometheus.CounterVec
	loginDuration prometheus.Histogram
	loggedIn      prometheus.Gauge
	evictions     prometheus.Counter
	reauth        *prometheus.CounterVec

	// Fetch metrics
	fetches        *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	tiersExtracted prometheus.Counter
	duplicateTiers prometheus.Counter

	// HTTP metrics
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	rateLimitHits    *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec

	browser *browserCollector

	namespace string
	subsystem string
}

// MetricsConfig configuration for metrics
type MetricsConfig struct {
	Namespace            string `json:"namespace"`
	Subsystem            string `json:"subsystem"`
	EnableGoMetrics      bool   `json:"enable_go_metrics"`
	EnableProcessMetrics bool   `json:"enable_process_metrics"`
}

// DefaultMetricsConfig returns the configuration used by the service.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:            "barem",
		Subsystem:            "scraper",
		EnableGoMetrics:      true,
		EnableProcessMetrics: true,
	}
}

// NewMetricsManager creates a new metrics manager
func NewMetricsManager(config MetricsConfig) *MetricsManager {
	if config.Namespace == "" {
		config.Namespace = "barem"
	}
	if config.Subsystem == "" {
		config.Subsystem = "scraper"
	}

	mm := &MetricsManager{
		registry:  prometheus.NewRegistry(),
		namespace: config.Namespace,
		subsystem: config.Subsystem,
	}

	if config.EnableGoMetrics {
		mm.registry.MustRegister(collectors.NewGoCollector())
	}
	if config.EnableProcessMetrics {
		mm.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	mm.initializeMetrics()
	mm.browser = newBrowserCollector(mm.namespace)
	mm.registry.MustRegister(mm.browser)

	return mm
}

// initializeMetrics initializes all Prometheus metrics
func (mm *MetricsManager) initializeMetrics() {
	factory := promauto.With(mm.registry)

	// Session metrics
	mm.loginAttempts = factory.NewCounter(prometheus.CounterOpts{
		Namespace: mm.namespace,
		Subsystem: mm.subsystem,
		Name:      "login_attempts_total",
		Help:      "Total number of login form submissions",
	})

	mm.logins = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "logins_total",
			Help:      "Total number of completed logins by result",
		},
		[]string{"result"},
	)

	mm.loginDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: mm.namespace,
		Subsystem: mm.subsystem,
		Name:      "login_duration_seconds",
		Help:      "Login duration in seconds, retries included",
		Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300},
	})

	mm.loggedIn = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: mm.namespace,
		Subsystem: mm.subsystem,
		Name:      "logged_in",
		Help:      "1 when the portal session is authenticated",
	})

	mm.evictions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: mm.namespace,
		Subsystem: mm.subsystem,
		Name:      "session_evictions_total",
		Help:      "Total number of close-active-sessions clicks",
	})

	mm.reauth = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "reauthentications_total",
			Help:      "Total number of logins triggered by the session check",
		},
		[]string{"reason"},
	)

	// Fetch metrics
	mm.fetches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "fetches_total",
			Help:      "Total number of item fetches by outcome",
		},
		[]string{"outcome"},
	)

	mm.fetchDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: mm.namespace,
		Subsystem: mm.subsystem,
		Name:      "fetch_duration_seconds",
		Help:      "Item fetch duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
	})

	mm.tiersExtracted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: mm.namespace,
		Subsystem: mm.subsystem,
		Name:      "tiers_extracted_total",
		Help:      "Total number of pricing tiers returned",
	})

	mm.duplicateTiers = factory.NewCounter(prometheus.CounterOpts{
		Namespace: mm.namespace,
		Subsystem: mm.subsystem,
		Name:      "duplicate_tiers_total",
		Help:      "Total number of duplicate tier rows dropped",
	})

	// HTTP metrics
	mm.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served",
		},
		[]string{"route", "method", "status_code"},
	)

	mm.requestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	mm.requestsInFlight = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: mm.namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently in flight",
	})

	mm.rateLimitHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "http",
			Name:      "rate_limit_hits_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	mm.cacheLookups = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "http",
			Name:      "cache_lookups_total",
			Help:      "Total number of result cache lookups by result",
		},
		[]string{"result"},
	)
}

// Session metrics

func (mm *MetricsManager) LoginAttempt() {
	mm.loginAttempts.Inc()
}

func (mm *MetricsManager) LoginCompleted(success bool, attempts int, duration time.Duration) {
	result := "failure"
	value := 0.0
	if success {
		result = "success"
		value = 1
	}
	mm.logins.WithLabelValues(result).Inc()
	mm.loginDuration.Observe(duration.Seconds())
	mm.loggedIn.Set(value)
}

func (mm *MetricsManager) EvictionClick() {
	mm.evictions.Inc()
}

func (mm *MetricsManager) Reauthentication(reason string) {
	mm.reauth.WithLabelValues(reason).Inc()
}

// Fetch metrics

func (mm *MetricsManager) FetchCompleted(outcome string, duration time.Duration, tiers, duplicates int) {
	mm.fetches.WithLabelValues(outcome).Inc()
	mm.fetchDuration.Observe(duration.Seconds())
	mm.tiersExtracted.Add(float64(tiers))
	mm.duplicateTiers.Add(float64(duplicates))
}

// HTTP metrics

func (mm *MetricsManager) RecordRequest(route, method string, statusCode int, duration time.Duration) {
	mm.requestsTotal.WithLabelValues(route, method, strconv.Itoa(statusCode)).Inc()
	mm.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

func (mm *MetricsManager) IncRequestsInFlight() {
	mm.requestsInFlight.Inc()
}

func (mm *MetricsManager) DecRequestsInFlight() {
	mm.requestsInFlight.Dec()
}

func (mm *MetricsManager) RecordRateLimitHit(route string) {
	mm.rateLimitHits.WithLabelValues(route).Inc()
}

func (mm *MetricsManager) RecordCacheLookup(hit bool) {
	if hit {
		mm.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	mm.cacheLookups.WithLabelValues("miss").Inc()
}

// Registry exposes the underlying registry.
func (mm *MetricsManager) Registry() *prometheus.Registry {
	return mm.registry
}

// MetricsHandler returns an HTTP handler for metrics endpoint
func (mm *MetricsManager) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{Registry: mm.registry})
}
