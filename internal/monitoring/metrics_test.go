// internal/monitoring/metrics_test.go
package monitoring

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/valpere/barem-scraper/internal/browser"
	"github.com/valpere/barem-scraper/internal/session"
)

var (
	_ session.Recorder   = (*MetricsManager)(nil)
	_ BrowserStatsSource = (*browser.ChromeClient)(nil)
)

type staticStats browser.BrowserStats

func (s staticStats) GetStats() browser.BrowserStats { return browser.BrowserStats(s) }

func counterValue(t *testing.T, mm *MetricsManager, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := mm.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := 0
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] == pair.GetValue() {
					matched++
				}
			}
			if matched != len(labels) {
				continue
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	return 0
}

func TestMetricsManager_Session(t *testing.T) {
	mm := NewMetricsManager(MetricsConfig{})

	mm.LoginAttempt()
	mm.LoginAttempt()
	mm.LoginCompleted(true, 2, 3*time.Second)
	mm.EvictionClick()
	mm.Reauthentication(session.ReasonExpired)
	mm.FetchCompleted(session.OutcomeTiers, 200*time.Millisecond, 2, 1)
	mm.FetchCompleted(session.OutcomeNotLoggedIn, time.Millisecond, 0, 0)

	checks := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"barem_scraper_login_attempts_total", nil, 2},
		{"barem_scraper_logins_total", map[string]string{"result": "success"}, 1},
		{"barem_scraper_logged_in", nil, 1},
		{"barem_scraper_session_evictions_total", nil, 1},
		{"barem_scraper_reauthentications_total", map[string]string{"reason": "expired"}, 1},
		{"barem_scraper_fetches_total", map[string]string{"outcome": "tiers"}, 1},
		{"barem_scraper_fetches_total", map[string]string{"outcome": "not_logged_in"}, 1},
		{"barem_scraper_tiers_extracted_total", nil, 2},
		{"barem_scraper_duplicate_tiers_total", nil, 1},
	}
	for _, c := range checks {
		if got := counterValue(t, mm, c.name, c.labels); got != c.want {
			t.Errorf("%s%v = %v, want %v", c.name, c.labels, got, c.want)
		}
	}

	mm.LoginCompleted(false, 3, time.Second)
	if got := counterValue(t, mm, "barem_scraper_logged_in", nil); got != 0 {
		t.Errorf("expected logged_in to drop to 0, got %v", got)
	}
}

func TestMetricsManager_Handler(t *testing.T) {
	mm := NewMetricsManager(DefaultMetricsConfig())
	mm.RecordRequest("/get-barem/{itemId}", "GET", 200, 50*time.Millisecond)
	mm.RecordRateLimitHit("/get-barem/{itemId}")
	mm.RecordCacheLookup(true)
	mm.IncRequestsInFlight()
	mm.DecRequestsInFlight()

	rec := httptest.NewRecorder()
	mm.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`barem_http_requests_total{method="GET",route="/get-barem/{itemId}",status_code="200"} 1`,
		`barem_http_rate_limit_hits_total{route="/get-barem/{itemId}"} 1`,
		`barem_http_cache_lookups_total{result="hit"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestMetricsManager_Independent(t *testing.T) {
	// Separate registries must not collide on registration.
	a := NewMetricsManager(MetricsConfig{})
	b := NewMetricsManager(MetricsConfig{})
	a.EvictionClick()

	if got := counterValue(t, b, "barem_scraper_session_evictions_total", nil); got != 0 {
		t.Errorf("expected managers to be independent, got %v", got)
	}
}

func TestMetricsManager_BrowserStats(t *testing.T) {
	mm := NewMetricsManager(MetricsConfig{})

	if got := counterValue(t, mm, "barem_browser_pages_loaded_total", nil); got != 0 {
		t.Errorf("expected no browser series before a source is attached, got %v", got)
	}

	mm.ObserveBrowser(staticStats{
		PagesLoaded:      4,
		AverageLoadTime:  1500 * time.Millisecond,
		Errors:           2,
		JavaScriptErrors: 1,
		TimeoutsOccurred: 3,
		DialogsDismissed: 5,
	})

	checks := map[string]float64{
		"barem_browser_pages_loaded_total":      4,
		"barem_browser_errors_total":            2,
		"barem_browser_javascript_errors_total": 1,
		"barem_browser_timeouts_total":          3,
		"barem_browser_dialogs_dismissed_total": 5,
		"barem_browser_average_load_seconds":    1.5,
	}
	for name, want := range checks {
		if got := counterValue(t, mm, name, nil); got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}

	mm.ObserveBrowser(staticStats{PagesLoaded: 9})
	if got := counterValue(t, mm, "barem_browser_pages_loaded_total", nil); got != 9 {
		t.Errorf("expected the replaced source to be read, got %v", got)
	}
}
