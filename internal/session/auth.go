package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/valpere/barem-scraper/internal/browser"
	apperrors "github.com/valpere/barem-scraper/internal/errors"
	"github.com/valpere/barem-scraper/internal/utils"
)

const inputProbeLimit = 10

// Authenticate logs in to the portal, retrying a fixed number of times. It
// never returns an error: the outcome is the boolean and the stored state.
// Missing credentials return false before the page is touched.
func (m *Manager) Authenticate(ctx context.Context) bool {
	if !m.creds.Complete() {
		m.log.Warn("portal credentials are not configured, skipping login")
		m.setAuthenticated(false)
		return false
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	page, _ := m.snapshot()
	if page == nil {
		m.log.Warn("browser is not ready, skipping login")
		m.setAuthenticated(false)
		return false
	}

	start := m.now()
	attempts := 0
	err := m.retry.ExecuteWithRetry(ctx, func() error {
		attempts++
		m.metrics.LoginAttempt()
		err := m.attempt(ctx, page, attempts)
		if err == nil {
			return nil
		}
		m.log.Errorf("login attempt %d failed: %v", attempts, err)
		if ctx.Err() != nil {
			return apperrors.Permanent(err)
		}
		if cur, _ := m.snapshot(); cur != page {
			return apperrors.Permanent(fmt.Errorf("browser detached during login: %w", err))
		}
		return err
	}, "login")

	ok := err == nil
	m.setAuthenticated(ok)
	m.metrics.LoginCompleted(ok, attempts, m.now().Sub(start))
	if ok {
		m.log.Infof("logged in after %d attempt(s)", attempts)
	} else {
		m.log.Errorf("login failed: %v", err)
	}
	return ok
}

// attempt runs one pass of the login form. A panic inside counts as a
// failed attempt.
func (m *Manager) attempt(ctx context.Context, page browser.BrowserClient, n int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("login attempt panicked: %v", r)
		}
	}()

	log := m.log.WithField("attempt", n)
	log.Infof("opening login page %s", m.portal.BaseURL)
	if err := page.Navigate(ctx, m.portal.BaseURL, m.timings.Navigation); err != nil {
		return err
	}

	if title, err := page.Title(ctx); err == nil {
		log.Infof("page title: %s", title)
	}
	if addr, err := page.URL(ctx); err == nil {
		log.Infof("page address: %s", addr)
	}

	if err := page.WaitForElement(ctx, "input", m.timings.RenderWait); err != nil {
		log.Warnf("form inputs did not render in time, continuing: %v", err)
	}
	m.pause(ctx, m.timings.PostRenderPause)

	if n == 1 {
		m.dumpLoginPage(ctx, page)
	}
	m.logInputs(ctx, page, log)

	if loc, ok := m.firstMatch(ctx, page, m.selectors.PharmacyTab); ok {
		if err := page.Click(ctx, loc); err != nil {
			log.Warnf("pharmacy login tab: %v", err)
		} else {
			log.Infof("switched to pharmacy login using %s", describe(loc))
			m.pause(ctx, m.timings.TabClickPause)
		}
	}

	fields := []struct {
		name  string
		value string
		loc   []browser.Locator
	}{
		{"pharmacy code", m.creds.PharmacyCode, m.selectors.PharmacyCode},
		{"username", m.creds.Username, m.selectors.Username},
		{"password", m.creds.Password, m.selectors.Password},
	}
	for _, f := range fields {
		if err := m.fillField(ctx, page, f.name, f.loc, f.value); err != nil {
			log.Warnf("%s: %v", f.name, err)
		}
	}

	m.pause(ctx, m.timings.PreSubmitPause)
	if loc, ok := m.firstMatch(ctx, page, m.selectors.Submit); ok {
		if err := page.Click(ctx, loc); err != nil {
			log.Warnf("submit: %v", err)
		} else {
			log.Infof("submitted using %s", describe(loc))
		}
	} else {
		log.Warn("no submit control found")
	}

	if err := page.WaitNetworkIdle(ctx, m.timings.Settle); err != nil {
		log.Warnf("page did not settle, waiting %s: %v", m.timings.SettleFallback, err)
		m.pause(ctx, m.timings.SettleFallback)
	}

	addr, err := page.URL(ctx)
	if err != nil {
		return err
	}
	log.Infof("landed on %s", addr)

	if strings.Contains(addr, m.portal.UniqueLoginMarker) {
		log.Info("another session is active, closing it")
		if m.evictSessions(ctx, page, log) {
			return nil
		}
	}
	if m.isAuthenticatedLanding(addr) {
		return nil
	}

	m.logErrorBanner(ctx, page, log)
	return utils.NewError(utils.ErrCodeAuthFailed, "login did not reach an authenticated page").
		WithContext("url", addr).
		WithContext("attempt", n).
		WithRetryable(true).
		Build()
}

// evictSessions clicks the close-sessions control until the page reaches
// home, leaves the session page, or the click budget runs out.
func (m *Manager) evictSessions(ctx context.Context, page browser.BrowserClient, log utils.Logger) bool {
	for i := 1; i <= m.portal.MaxEvictionClicks; i++ {
		loc, ok := m.firstMatch(ctx, page, m.selectors.CloseSessions)
		if !ok {
			log.Warn("no close-sessions control found")
			return false
		}
		if err := page.Click(ctx, loc); err != nil {
			log.Warnf("close sessions: %v", err)
			return false
		}
		m.metrics.EvictionClick()
		m.pause(ctx, m.timings.EvictionPause)
		if err := page.WaitNetworkIdle(ctx, m.timings.EvictionSettle); err != nil {
			log.Debugf("page did not settle after close-sessions click: %v", err)
		}

		addr, err := page.URL(ctx)
		if err != nil {
			log.Warnf("reading address after close-sessions click: %v", err)
			return false
		}
		log.Infof("close-sessions click %d landed on %s", i, addr)
		if m.isHome(addr) {
			return true
		}
		if !strings.Contains(addr, m.portal.UniqueLoginMarker) {
			return false
		}
	}
	return false
}

// isHome reports whether addr is one of the application home pages.
func (m *Manager) isHome(addr string) bool {
	if strings.Contains(addr, m.portal.MainPageMarker) {
		return true
	}
	return strings.Contains(addr, m.portal.HomeMarker) && !strings.Contains(addr, m.portal.UniqueLoginMarker)
}

// isAuthenticatedLanding accepts a home page, or any address other than the
// login page that is not the active-session page.
func (m *Manager) isAuthenticatedLanding(addr string) bool {
	if m.isHome(addr) {
		return true
	}
	return !utils.SameURL(addr, m.portal.BaseURL) && !strings.Contains(addr, m.portal.UniqueLoginMarker)
}

func (m *Manager) logInputs(ctx context.Context, page browser.BrowserClient, log utils.Logger) {
	inputs, err := page.DescribeInputs(ctx, inputProbeLimit)
	if err != nil {
		log.Debugf("listing inputs: %v", err)
		return
	}
	log.Infof("found %d input(s)", len(inputs))
	for i, in := range inputs {
		log.Debugf("input %d: name=%q id=%q type=%q placeholder=%q visible=%t",
			i, in.Name, in.ID, in.Type, in.Placeholder, in.Visible)
	}
}

func (m *Manager) logErrorBanner(ctx context.Context, page browser.BrowserClient, log utils.Logger) {
	loc, ok := m.firstMatch(ctx, page, m.selectors.ErrorBanner)
	if !ok {
		return
	}
	text, err := page.Text(ctx, loc)
	if err != nil || strings.TrimSpace(text) == "" {
		return
	}
	log.Warnf("portal reported: %s", strings.TrimSpace(text))
}
