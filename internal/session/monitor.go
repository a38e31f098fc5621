package session

import (
	"context"

	"github.com/valpere/barem-scraper/internal/utils"
)

// EnsureAuthenticated returns true when the current session looks valid and
// logs in again otherwise. The probe itself takes no lock; the portal sends
// expired sessions back to the login page, so landing there means expiry.
func (m *Manager) EnsureAuthenticated(ctx context.Context) bool {
	page, authenticated := m.snapshot()
	switch {
	case !authenticated:
		return m.reauthenticate(ctx, ReasonNotAuthenticated)
	case page == nil:
		return m.reauthenticate(ctx, ReasonNoPage)
	}

	addr, err := page.URL(ctx)
	if err != nil {
		m.log.Warnf("could not read page address, assuming the session expired: %v", err)
		return m.reauthenticate(ctx, ReasonProbeFailed)
	}
	if utils.SameURL(addr, m.portal.BaseURL) {
		m.log.Info("session expired, logging in again")
		return m.reauthenticate(ctx, ReasonExpired)
	}
	return true
}

func (m *Manager) reauthenticate(ctx context.Context, reason string) bool {
	m.metrics.Reauthentication(reason)
	return m.Authenticate(ctx)
}
