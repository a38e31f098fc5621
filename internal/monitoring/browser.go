// internal/monitoring/browser.go
package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/valpere/barem-scraper/internal/browser"
)

// BrowserStatsSource reports page statistics, as the Chrome client does.
type BrowserStatsSource interface {
	GetStats() browser.BrowserStats
}

// browserCollector reads the attached source at scrape time. It reports
// nothing until a source is attached.
type browserCollector struct {
	mu     sync.RWMutex
	source BrowserStatsSource

	pagesLoaded *prometheus.Desc
	errors      *prometheus.Desc
	jsErrors    *prometheus.Desc
	timeouts    *prometheus.Desc
	dialogs     *prometheus.Desc
	avgLoadSecs *prometheus.Desc
}

func newBrowserCollector(namespace string) *browserCollector {
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, "browser", n)
	}
	return &browserCollector{
		pagesLoaded: prometheus.NewDesc(name("pages_loaded_total"), "Total number of page navigations that completed", nil, nil),
		errors:      prometheus.NewDesc(name("errors_total"), "Total number of failed page commands", nil, nil),
		jsErrors:    prometheus.NewDesc(name("javascript_errors_total"), "Total number of uncaught page exceptions", nil, nil),
		timeouts:    prometheus.NewDesc(name("timeouts_total"), "Total number of page commands that ran out of time", nil, nil),
		dialogs:     prometheus.NewDesc(name("dialogs_dismissed_total"), "Total number of JavaScript dialogs dismissed", nil, nil),
		avgLoadSecs: prometheus.NewDesc(name("average_load_seconds"), "Average page navigation time in seconds", nil, nil),
	}
}

func (c *browserCollector) attach(src BrowserStatsSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = src
}

func (c *browserCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pagesLoaded
	ch <- c.errors
	ch <- c.jsErrors
	ch <- c.timeouts
	ch <- c.dialogs
	ch <- c.avgLoadSecs
}

func (c *browserCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	src := c.source
	c.mu.RUnlock()
	if src == nil {
		return
	}

	stats := src.GetStats()
	ch <- prometheus.MustNewConstMetric(c.pagesLoaded, prometheus.CounterValue, float64(stats.PagesLoaded))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(stats.Errors))
	ch <- prometheus.MustNewConstMetric(c.jsErrors, prometheus.CounterValue, float64(stats.JavaScriptErrors))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(stats.TimeoutsOccurred))
	ch <- prometheus.MustNewConstMetric(c.dialogs, prometheus.CounterValue, float64(stats.DialogsDismissed))
	ch <- prometheus.MustNewConstMetric(c.avgLoadSecs, prometheus.GaugeValue, stats.AverageLoadTime.Seconds())
}

// ObserveBrowser exposes src's statistics on the metrics endpoint. A later
// call replaces the source.
func (mm *MetricsManager) ObserveBrowser(src BrowserStatsSource) {
	mm.browser.attach(src)
}
