// internal/config/types.go

// Package config provides configuration types and loading for the barem
// scraper. It covers portal credentials and addresses, browser settings,
// timings of the login and fetch flows, selector cascades used to discover
// the login form, and the HTTP facade settings.
package config

import (
	"time"

	"github.com/valpere/barem-scraper/internal/utils"
)

// Config represents the complete service configuration.
type Config struct {
	// Credentials for the pharmacy login form
	Credentials Credentials `yaml:"credentials" json:"-"`

	// Portal addresses and markers
	Portal PortalConfig `yaml:"portal" json:"portal"`

	// Browser launch settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Timings of the login and fetch flows
	Timings Timings `yaml:"timings" json:"timings"`

	// Selectors are the ordered fallback cascades for the login form
	Selectors Selectors `yaml:"selectors" json:"selectors"`

	// Server settings for the HTTP facade
	Server ServerConfig `yaml:"server" json:"server"`

	// Log settings
	Log LogConfig `yaml:"log" json:"log"`

	// DebugDir receives screenshots and markup dumps; empty disables them
	DebugDir string `yaml:"debug_dir" json:"debug_dir"`
}

// Credentials holds the three values the login form asks for.
type Credentials struct {
	PharmacyCode string `yaml:"pharmacy_code"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
}

// Complete reports whether every credential field is set.
func (c Credentials) Complete() bool {
	return c.PharmacyCode != "" && c.Username != "" && c.Password != ""
}

// PortalConfig describes the target portal.
type PortalConfig struct {
	// BaseURL is the root address, which is also the login page
	BaseURL string `yaml:"base_url" json:"base_url"`

	// MainPagePath is the canonical authenticated application view
	MainPagePath string `yaml:"main_page_path" json:"main_page_path"`

	// ItemDetailPath is the endpoint returning the item-detail markup
	ItemDetailPath string `yaml:"item_detail_path" json:"item_detail_path"`

	// Address fragments used to classify the current page
	MainPageMarker    string `yaml:"main_page_marker" json:"main_page_marker"`
	HomeMarker        string `yaml:"home_marker" json:"home_marker"`
	QuickOrderMarker  string `yaml:"quick_order_marker" json:"quick_order_marker"`
	UniqueLoginMarker string `yaml:"unique_login_marker" json:"unique_login_marker"`

	// TableID and TableIDSubstring pick the tier table in the item markup
	TableID          string `yaml:"table_id" json:"table_id"`
	TableIDSubstring string `yaml:"table_id_substring" json:"table_id_substring"`

	// MaxEvictionClicks bounds the "close active sessions" loop
	MaxEvictionClicks int `yaml:"max_eviction_clicks" json:"max_eviction_clicks"`

	// LoginAttempts is the total number of login attempts per run
	LoginAttempts int `yaml:"login_attempts" json:"login_attempts"`
}

// MainPageURL returns the absolute address of the main application view.
func (p PortalConfig) MainPageURL() string {
	return utils.JoinURL(p.BaseURL, p.MainPagePath)
}

// ItemDetailURL returns the absolute address of the item-detail endpoint.
func (p PortalConfig) ItemDetailURL() string {
	return utils.JoinURL(p.BaseURL, p.ItemDetailPath)
}

// BrowserConfig defines browser automation settings.
type BrowserConfig struct {
	// Headless mode
	Headless bool `yaml:"headless" json:"headless"`

	// ExecPath overrides the Chrome binary lookup
	ExecPath string `yaml:"exec_path,omitempty" json:"exec_path,omitempty"`

	// UserAgent overrides the fingerprint default
	UserAgent string `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`

	// Locale and Timezone override the fingerprint defaults
	Locale   string `yaml:"locale,omitempty" json:"locale,omitempty"`
	Timezone string `yaml:"timezone,omitempty" json:"timezone,omitempty"`
}

// Timings are the bounded waits and fixed pauses of the login and fetch flows.
type Timings struct {
	Navigation       time.Duration `yaml:"navigation" json:"navigation"`
	RenderWait       time.Duration `yaml:"render_wait" json:"render_wait"`
	PostRenderPause  time.Duration `yaml:"post_render_pause" json:"post_render_pause"`
	TabClickPause    time.Duration `yaml:"tab_click_pause" json:"tab_click_pause"`
	PreSubmitPause   time.Duration `yaml:"pre_submit_pause" json:"pre_submit_pause"`
	Settle           time.Duration `yaml:"settle" json:"settle"`
	SettleFallback   time.Duration `yaml:"settle_fallback" json:"settle_fallback"`
	EvictionSettle   time.Duration `yaml:"eviction_settle" json:"eviction_settle"`
	EvictionPause    time.Duration `yaml:"eviction_pause" json:"eviction_pause"`
	RetryBackoff     time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
	MainPageNavigate time.Duration `yaml:"main_page_navigate" json:"main_page_navigate"`
	PostNavigate     time.Duration `yaml:"post_navigate" json:"post_navigate"`
	Fetch            time.Duration `yaml:"fetch" json:"fetch"`

	// Action bounds every single page command (query, click, fill, read).
	Action time.Duration `yaml:"action" json:"action"`
}

// Locator is one element-locating strategy. XPath queries are used for
// text matches that CSS cannot express.
type Locator struct {
	Query string `yaml:"query" json:"query"`
	XPath bool   `yaml:"xpath,omitempty" json:"xpath,omitempty"`
}

// Selectors are ordered cascades; the first locator matching at least one
// element wins.
type Selectors struct {
	PharmacyTab   []Locator `yaml:"pharmacy_tab" json:"pharmacy_tab"`
	PharmacyCode  []Locator `yaml:"pharmacy_code" json:"pharmacy_code"`
	Username      []Locator `yaml:"username" json:"username"`
	Password      []Locator `yaml:"password" json:"password"`
	Submit        []Locator `yaml:"submit" json:"submit"`
	CloseSessions []Locator `yaml:"close_sessions" json:"close_sessions"`
	ErrorBanner   []Locator `yaml:"error_banner" json:"error_banner"`
}

// ServerConfig defines the HTTP facade settings.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr" json:"listen_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// RateLimitRPS of zero or less disables rate limiting
	RateLimitRPS   float64 `yaml:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst" json:"rate_limit_burst"`

	// CacheTTL of zero disables the per-item result cache
	CacheTTL  time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	CacheSize int           `yaml:"cache_size" json:"cache_size"`
}

// LogConfig defines log output settings.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}
