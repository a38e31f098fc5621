// internal/browser/types.go
package browser

import (
	"context"
	"time"

	"github.com/valpere/barem-scraper/internal/antidetect"
	"github.com/valpere/barem-scraper/internal/config"
)

// Locator is one element-locating strategy.
type Locator = config.Locator

// BrowserConfig defines browser automation configuration
type BrowserConfig struct {
	Headless     bool
	ExecPath     string
	Fingerprint  *antidetect.BrowserFingerprint
	StartTimeout time.Duration

	// SettleGrace is how long WaitNetworkIdle lets a triggered navigation
	// start before it trusts the idle flag.
	SettleGrace time.Duration

	// ActionTimeout bounds each page command that has no timeout of its own.
	ActionTimeout time.Duration
}

// DefaultBrowserConfig returns default browser configuration
func DefaultBrowserConfig() *BrowserConfig {
	return &BrowserConfig{
		Headless:      true,
		Fingerprint:   antidetect.DefaultFingerprint(),
		StartTimeout:  30 * time.Second,
		SettleGrace:   500 * time.Millisecond,
		ActionTimeout: 10 * time.Second,
	}
}

// ConfigFrom builds the browser settings from the service configuration.
func ConfigFrom(cfg config.BrowserConfig, timings config.Timings) *BrowserConfig {
	bc := DefaultBrowserConfig()
	bc.Headless = cfg.Headless
	bc.ExecPath = cfg.ExecPath
	bc.Fingerprint = bc.Fingerprint.WithOverrides(cfg.UserAgent, cfg.Locale, cfg.Timezone)
	if timings.Action > 0 {
		bc.ActionTimeout = timings.Action
	}
	return bc
}

// FetchResponse is the outcome of a request issued from inside the page.
// Status is 0 when the request never produced a response.
type FetchResponse struct {
	OK     bool   `json:"ok"`
	Status int    `json:"status"`
	Body   string `json:"body"`
	Error  string `json:"error"`
}

// InputInfo describes one input element for login diagnostics.
type InputInfo struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Type        string `json:"type"`
	Placeholder string `json:"placeholder"`
	Visible     bool   `json:"visible"`
}

// BrowserClient drives the single page owned by the service. Methods taking
// a Locator act on its first match.
type BrowserClient interface {
	// Navigate loads url and waits for the load event, bounded by timeout
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// URL returns the current page address
	URL(ctx context.Context) (string, error)

	// Title returns the current page title
	Title(ctx context.Context) (string, error)

	// WaitForElement waits for a CSS selector to match at least one element
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) error

	// Count returns how many elements the locator matches right now
	Count(ctx context.Context, loc Locator) (int, error)

	// Fill replaces the value of the first matching element
	Fill(ctx context.Context, loc Locator, value string) error

	// Click clicks the first matching element
	Click(ctx context.Context, loc Locator) error

	// Text returns the text content of the first matching element
	Text(ctx context.Context, loc Locator) (string, error)

	// WaitNetworkIdle waits for the page's network-idle signal
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error

	// PostJSON issues a same-origin POST from within the page, carrying its cookies
	PostJSON(ctx context.Context, url string, body interface{}, headers map[string]string, timeout time.Duration) (*FetchResponse, error)

	// DescribeInputs lists up to limit input elements on the page
	DescribeInputs(ctx context.Context, limit int) ([]InputInfo, error)

	// Screenshot takes a full-page screenshot
	Screenshot(ctx context.Context) ([]byte, error)

	// HTML returns the current page markup
	HTML(ctx context.Context) (string, error)

	// Close closes the browser
	Close() error
}

// BrowserStats contains browser automation statistics
type BrowserStats struct {
	PagesLoaded      int           `json:"pages_loaded"`
	AverageLoadTime  time.Duration `json:"average_load_time"`
	Errors           int           `json:"errors"`
	JavaScriptErrors int           `json:"javascript_errors"`
	TimeoutsOccurred int           `json:"timeouts_occurred"`
	DialogsDismissed int           `json:"dialogs_dismissed"`
}
