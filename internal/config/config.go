// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/valpere/barem-scraper/internal/utils"
)

// Environment keys.
const (
	EnvConfigFile     = "BAREM_CONFIG"
	EnvPharmacyCode   = "ALLIANCE_PHARMACY_CODE"
	EnvUsername       = "ALLIANCE_USERNAME"
	EnvPassword       = "ALLIANCE_PASSWORD"
	EnvBaseURL        = "ALLIANCE_BASE_URL"
	EnvListenAddr     = "LISTEN_ADDR"
	EnvDebugDir       = "DEBUG_DIR"
	EnvHeadless       = "BROWSER_HEADLESS"
	EnvChromePath     = "CHROME_PATH"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
	EnvRateLimitRPS   = "RATE_LIMIT_RPS"
	EnvRateLimitBurst = "RATE_LIMIT_BURST"
	EnvCacheTTL       = "CACHE_TTL"
	EnvCacheSize      = "CACHE_SIZE"
)

// DefaultBaseURL is the portal root, which doubles as its login page.
const DefaultBaseURL = "https://esiparisv2.alliance-healthcare.com.tr"

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Portal: PortalConfig{
			BaseURL:           DefaultBaseURL,
			MainPagePath:      "/Home/MainPage",
			ItemDetailPath:    "/Sales/ItemDetailv3",
			MainPageMarker:    "MainPage",
			HomeMarker:        "Home",
			QuickOrderMarker:  "QuickOrder",
			UniqueLoginMarker: "UniqueLogin",
			TableID:           "popup_tblKampanyalar",
			TableIDSubstring:  "kampanya",
			MaxEvictionClicks: 5,
			LoginAttempts:     3,
		},
		Browser: BrowserConfig{
			Headless: true,
		},
		Timings:   DefaultTimings(),
		Selectors: DefaultSelectors(),
		Server: ServerConfig{
			ListenAddr:      ":8000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    10 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			RateLimitRPS:    0,
			RateLimitBurst:  10,
			CacheTTL:        0,
			CacheSize:       512,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		DebugDir: "debug",
	}
}

// DefaultTimings returns the waits observed to work against the portal.
func DefaultTimings() Timings {
	return Timings{
		Navigation:       60 * time.Second,
		RenderWait:       15 * time.Second,
		PostRenderPause:  3 * time.Second,
		TabClickPause:    1 * time.Second,
		PreSubmitPause:   1 * time.Second,
		Settle:           30 * time.Second,
		SettleFallback:   5 * time.Second,
		EvictionSettle:   10 * time.Second,
		EvictionPause:    2 * time.Second,
		RetryBackoff:     5 * time.Second,
		MainPageNavigate: 30 * time.Second,
		PostNavigate:     1 * time.Second,
		Fetch:            60 * time.Second,
		Action:           10 * time.Second,
	}
}

// DefaultSelectors returns the login form cascades for the portal.
func DefaultSelectors() Selectors {
	return Selectors{
		PharmacyTab: []Locator{
			{Query: `//a[contains(normalize-space(.), "Eczane Girişi")]`, XPath: true},
			{Query: `//*[@data-toggle="tab"][contains(normalize-space(.), "Eczane")]`, XPath: true},
		},
		PharmacyCode: []Locator{
			{Query: `input[name="EczaneKodu"]`},
			{Query: `input#EczaneKodu`},
			{Query: `input[placeholder*="Eczane"]`},
			{Query: `#pharmacyLoginForm input[type="text"]:first-of-type`},
		},
		Username: []Locator{
			{Query: `input[name="KullaniciAdi"]`},
			{Query: `input#KullaniciAdi`},
			{Query: `input[placeholder*="Kullanıcı"]`},
			{Query: `#pharmacyLoginForm input[type="text"]:nth-of-type(2)`},
		},
		Password: []Locator{
			{Query: `input[name="Sifre"]`},
			{Query: `input#Sifre`},
			{Query: `input[type="password"]`},
		},
		Submit: []Locator{
			{Query: `button[type="submit"]`},
			{Query: `input[type="submit"]`},
			{Query: `#pharmacyLoginForm button`},
			{Query: `//button[contains(normalize-space(.), "Giriş")]`, XPath: true},
			{Query: `.btn-login`},
		},
		CloseSessions: []Locator{
			{Query: `//button[contains(normalize-space(.), "Aktif Oturumları Kapat")]`, XPath: true},
			{Query: `//a[contains(normalize-space(.), "Aktif Oturumları Kapat")]`, XPath: true},
			{Query: `//*[contains(concat(" ", normalize-space(@class), " "), " btn ")][contains(normalize-space(.), "Aktif Oturumları Kapat")]`, XPath: true},
		},
		ErrorBanner: []Locator{
			{Query: `.alert-danger, .error-message, .validation-summary-errors, .text-danger`},
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and finally the process environment. An empty
// configFile falls back to $BAREM_CONFIG; a missing envFile is ignored.
func Load(configFile, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if configFile == "" {
		configFile = os.Getenv(EnvConfigFile)
	}

	cfg := Default()
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
		if cfg, err = decodeYAML(data); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromBytes decodes YAML over the defaults and validates the result.
// The process environment is only consulted for ${VAR} expansion.
func LoadFromBytes(data []byte) (*Config, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("configuration data cannot be empty")
	}

	cfg, err := decodeYAML(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func decodeYAML(data []byte) (*Config, error) {
	cfg := Default()
	expanded := expandEnvironmentVariables(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}
	return cfg, nil
}

// expandEnvironmentVariables substitutes ${VAR} and $VAR references.
func expandEnvironmentVariables(content string) string {
	return os.ExpandEnv(content)
}

// applyEnv overlays environment values onto cfg. Unset keys leave the
// current value alone; malformed numbers and durations are errors.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	// Credentials and the debug dir may be set to empty on purpose.
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	nonEmpty := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvPharmacyCode, &cfg.Credentials.PharmacyCode)
	str(EnvUsername, &cfg.Credentials.Username)
	str(EnvPassword, &cfg.Credentials.Password)
	str(EnvDebugDir, &cfg.DebugDir)
	nonEmpty(EnvBaseURL, &cfg.Portal.BaseURL)
	nonEmpty(EnvListenAddr, &cfg.Server.ListenAddr)
	nonEmpty(EnvChromePath, &cfg.Browser.ExecPath)
	nonEmpty(EnvLogLevel, &cfg.Log.Level)
	nonEmpty(EnvLogFormat, &cfg.Log.Format)

	var errs []error
	if v, ok := lookup(EnvHeadless); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, ValidationError{Path: EnvHeadless, Message: err.Error()})
		} else {
			cfg.Browser.Headless = b
		}
	}
	if v, ok := lookup(EnvRateLimitRPS); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, ValidationError{Path: EnvRateLimitRPS, Message: err.Error()})
		} else {
			cfg.Server.RateLimitRPS = f
		}
	}
	if v, ok := lookup(EnvRateLimitBurst); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, ValidationError{Path: EnvRateLimitBurst, Message: err.Error()})
		} else {
			cfg.Server.RateLimitBurst = n
		}
	}
	if v, ok := lookup(EnvCacheTTL); ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			errs = append(errs, ValidationError{Path: EnvCacheTTL, Message: err.Error()})
		} else {
			cfg.Server.CacheTTL = d
		}
	}
	if v, ok := lookup(EnvCacheSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, ValidationError{Path: EnvCacheSize, Message: err.Error()})
		} else {
			cfg.Server.CacheSize = n
		}
	}

	return errors.Join(errs...)
}

// parseDuration accepts Go durations and bare integers as seconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Path, ve.Message)
}

// Validate checks the configuration for values the flows cannot run with.
// Missing credentials are not an error: they only suppress login.
func (c *Config) Validate() error {
	var errs []error
	add := func(path, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if !utils.IsValidURL(c.Portal.BaseURL) {
		add("portal.base_url", "must be an absolute http(s) URL, got %q", c.Portal.BaseURL)
	}
	if c.Portal.MainPagePath == "" {
		add("portal.main_page_path", "is required")
	}
	if c.Portal.ItemDetailPath == "" {
		add("portal.item_detail_path", "is required")
	}
	if c.Portal.UniqueLoginMarker == "" || c.Portal.MainPageMarker == "" || c.Portal.HomeMarker == "" {
		add("portal", "address markers are required")
	}
	if c.Portal.LoginAttempts < 1 {
		add("portal.login_attempts", "must be at least 1")
	}
	if c.Portal.MaxEvictionClicks < 0 {
		add("portal.max_eviction_clicks", "cannot be negative")
	}

	waits := map[string]time.Duration{
		"timings.navigation":         c.Timings.Navigation,
		"timings.render_wait":        c.Timings.RenderWait,
		"timings.settle":             c.Timings.Settle,
		"timings.eviction_settle":    c.Timings.EvictionSettle,
		"timings.main_page_navigate": c.Timings.MainPageNavigate,
		"timings.fetch":              c.Timings.Fetch,
		"timings.action":             c.Timings.Action,
	}
	for path, d := range waits {
		if d <= 0 {
			add(path, "must be positive")
		}
	}
	pauses := map[string]time.Duration{
		"timings.post_render_pause": c.Timings.PostRenderPause,
		"timings.tab_click_pause":   c.Timings.TabClickPause,
		"timings.pre_submit_pause":  c.Timings.PreSubmitPause,
		"timings.settle_fallback":   c.Timings.SettleFallback,
		"timings.eviction_pause":    c.Timings.EvictionPause,
		"timings.retry_backoff":     c.Timings.RetryBackoff,
		"timings.post_navigate":     c.Timings.PostNavigate,
	}
	for path, d := range pauses {
		if d < 0 {
			add(path, "cannot be negative")
		}
	}

	cascades := map[string][]Locator{
		"selectors.pharmacy_code":  c.Selectors.PharmacyCode,
		"selectors.username":       c.Selectors.Username,
		"selectors.password":       c.Selectors.Password,
		"selectors.submit":         c.Selectors.Submit,
		"selectors.close_sessions": c.Selectors.CloseSessions,
	}
	for path, locators := range cascades {
		if len(locators) == 0 {
			add(path, "needs at least one locator")
		}
		for i, l := range locators {
			if strings.TrimSpace(l.Query) == "" {
				add(fmt.Sprintf("%s[%d]", path, i), "query is empty")
			}
		}
	}

	if c.Server.ListenAddr == "" {
		add("server.listen_addr", "is required")
	}
	if c.Server.CacheTTL < 0 {
		add("server.cache_ttl", "cannot be negative")
	}
	if c.Server.CacheTTL > 0 && c.Server.CacheSize < 1 {
		add("server.cache_size", "must be at least 1 when the cache is enabled")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		add("log.format", "must be text or json, got %q", c.Log.Format)
	}

	return errors.Join(errs...)
}
