// Package session owns the single browser page used to talk to the portal.
// It authenticates, decides when a session has expired, and fetches
// pricing tiers for items, never letting two operations drive the page at
// the same time.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/valpere/barem-scraper/internal/barem"
	"github.com/valpere/barem-scraper/internal/browser"
	"github.com/valpere/barem-scraper/internal/config"
	apperrors "github.com/valpere/barem-scraper/internal/errors"
	"github.com/valpere/barem-scraper/internal/utils"
)

// State is a snapshot of the authentication state for health reporting.
type State struct {
	BrowserReady bool
	LoggedIn     bool
	LastLoginAt  *time.Time
}

// Recorder receives session events. monitoring.Metrics implements it.
type Recorder interface {
	LoginAttempt()
	LoginCompleted(success bool, attempts int, d time.Duration)
	EvictionClick()
	Reauthentication(reason string)
	FetchCompleted(outcome string, d time.Duration, tiers, duplicates int)
}

type nopRecorder struct{}

func (nopRecorder) LoginAttempt()                                  {}
func (nopRecorder) LoginCompleted(bool, int, time.Duration)        {}
func (nopRecorder) EvictionClick()                                 {}
func (nopRecorder) Reauthentication(string)                        {}
func (nopRecorder) FetchCompleted(string, time.Duration, int, int) {}

// Reauthentication reasons.
const (
	ReasonNotAuthenticated = "not_authenticated"
	ReasonNoPage           = "no_page"
	ReasonExpired          = "expired"
	ReasonProbeFailed      = "probe_failed"
)

// Manager owns the browser page and the authentication state. All page
// driving operations run under one lock; state reads use their own lock so
// health checks never wait on an in-flight login.
type Manager struct {
	creds     config.Credentials
	portal    config.PortalConfig
	selectors config.Selectors
	timings   config.Timings

	log       utils.Logger
	metrics   Recorder
	extractor *barem.Extractor
	debug     *artifacts
	retry     *apperrors.Service

	// lock serializes Authenticate and FetchPricingTiers bodies.
	lock sync.Locker

	stateMu       sync.RWMutex
	page          browser.BrowserClient
	authenticated bool
	lastAuthAt    time.Time
	closed        bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithBrowser attaches the page at construction time.
func WithBrowser(page browser.BrowserClient) Option {
	return func(m *Manager) { m.page = page }
}

// WithLogger sets the logger.
func WithLogger(log utils.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithRecorder sets the event recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.metrics = r
		}
	}
}

// WithLocker replaces the session lock.
func WithLocker(l sync.Locker) Option {
	return func(m *Manager) {
		if l != nil {
			m.lock = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSleeper replaces the fixed pauses and the retry backoff wait.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Manager) {
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// NewManager creates a session manager for cfg. The page may be attached
// later with SetBrowser.
func NewManager(cfg *config.Config, opts ...Option) *Manager {
	if cfg == nil {
		cfg = config.Default()
	}

	m := &Manager{
		creds:     cfg.Credentials,
		portal:    cfg.Portal,
		selectors: cfg.Selectors,
		timings:   cfg.Timings,
		log:       utils.NewNopLogger(),
		metrics:   nopRecorder{},
		lock:      &sync.Mutex{},
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.extractor = barem.NewExtractor(
		barem.WithTableID(cfg.Portal.TableID),
		barem.WithTableIDSubstring(cfg.Portal.TableIDSubstring),
		barem.WithLogger(m.log.WithField("component", "extractor")),
	)
	m.debug = newArtifacts(cfg.DebugDir, m.log)

	retries := cfg.Portal.LoginAttempts - 1
	m.retry = apperrors.NewServiceWithConfig(apperrors.FixedRetryConfig(retries, cfg.Timings.RetryBackoff)).
		WithSleeper(m.sleep).
		OnRetry(func(attempt int, err error, delay time.Duration) {
			m.log.Infof("waiting %s before login retry", delay)
		})

	return m
}

// SetBrowser attaches the page once the browser has started. After Close the
// page is closed instead of attached.
func (m *Manager) SetBrowser(page browser.BrowserClient) {
	m.stateMu.Lock()
	if m.closed && page != nil {
		m.stateMu.Unlock()
		if err := page.Close(); err != nil {
			m.log.Warnf("closing late browser: %v", err)
		}
		return
	}
	defer m.stateMu.Unlock()
	m.page = page
}

// BrowserReady reports whether a page is attached.
func (m *Manager) BrowserReady() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.page != nil
}

// State returns a snapshot of the authentication state.
func (m *Manager) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	s := State{
		BrowserReady: m.page != nil,
		LoggedIn:     m.authenticated,
	}
	if !m.lastAuthAt.IsZero() {
		at := m.lastAuthAt
		s.LastLoginAt = &at
	}
	return s
}

// Close waits for any in-flight operation, detaches the page and closes it.
// When ctx ends first the page is closed underneath the running operation,
// which then fails on its next page command and releases the lock.
func (m *Manager) Close(ctx context.Context) error {
	locked := make(chan struct{})
	go func() {
		m.lock.Lock()
		close(locked)
	}()

	waited := true
	select {
	case <-locked:
	case <-ctx.Done():
		waited = false
		m.log.Warnf("in-flight operation did not finish before shutdown, closing browser anyway: %v", ctx.Err())
		go func() {
			<-locked
			m.lock.Unlock()
		}()
	}

	err := m.detach()
	if waited {
		m.lock.Unlock()
	}
	return err
}

func (m *Manager) detach() error {
	m.stateMu.Lock()
	page := m.page
	m.page = nil
	m.authenticated = false
	m.closed = true
	m.stateMu.Unlock()

	if page == nil {
		return nil
	}
	m.log.Info("closing browser")
	return page.Close()
}

func (m *Manager) snapshot() (browser.BrowserClient, bool) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.page, m.authenticated
}

func (m *Manager) setAuthenticated(ok bool) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.authenticated = ok
	if ok {
		m.lastAuthAt = m.now()
	}
}

// pause waits d unless ctx ends first.
func (m *Manager) pause(ctx context.Context, d time.Duration) {
	if err := m.sleep(ctx, d); err != nil {
		m.log.Debugf("pause interrupted: %v", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
