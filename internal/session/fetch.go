package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/valpere/barem-scraper/internal/barem"
	"github.com/valpere/barem-scraper/internal/browser"
	"github.com/valpere/barem-scraper/internal/utils"
)

// ErrNotLoggedIn is the error message of a fetch made without a session.
const ErrNotLoggedIn = "Not logged in"

// Fetch outcomes reported to the Recorder.
const (
	OutcomeTiers         = "tiers"
	OutcomeEmpty         = "empty"
	OutcomeEndpointError = "endpoint_error"
	OutcomeNotLoggedIn   = "not_logged_in"
	OutcomePanic         = "panic"
)

var itemDetailHeaders = map[string]string{
	"Content-Type":     "application/json; charset=utf-8",
	"X-Requested-With": "XMLHttpRequest",
	"Accept":           "*/*",
}

// FetchPricingTiers returns the pricing tiers of itemID. It always returns
// a result: only a missing session fails it, and an endpoint failure yields
// a successful result with no tiers.
func (m *Manager) FetchPricingTiers(ctx context.Context, itemID int) (result *barem.FetchResult) {
	start := m.now()
	result = barem.NewFetchResult(itemID, start)
	log := m.log.WithField("item_id", itemID)

	if !m.EnsureAuthenticated(ctx) {
		result.ErrorMessage = ErrNotLoggedIn
		m.metrics.FetchCompleted(OutcomeNotLoggedIn, m.now().Sub(start), 0, 0)
		return result
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	outcome := OutcomeEmpty
	duplicates := 0
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("fetch panicked: %v", r)
			result.Success = false
			result.Tiers = []barem.Tier{}
			result.ErrorMessage = fmt.Sprint(r)
			outcome = OutcomePanic
		}
		m.metrics.FetchCompleted(outcome, m.now().Sub(start), len(result.Tiers), duplicates)
	}()

	page, _ := m.snapshot()
	if page == nil {
		result.ErrorMessage = ErrNotLoggedIn
		outcome = OutcomeNotLoggedIn
		return result
	}

	m.ensureAppPage(ctx, page, log)

	resp, err := page.PostJSON(ctx, m.portal.ItemDetailURL(), map[string]int{"itemId": itemID}, itemDetailHeaders, m.timings.Fetch)
	switch {
	case err != nil:
		log.Errorf("item detail request failed: %v", err)
		outcome = OutcomeEndpointError
	case !resp.OK:
		log.Warnf("item detail request failed: %s", resp.Error)
		outcome = OutcomeEndpointError
	default:
		log.Infof("received item detail markup (%s)", utils.FormatBytes(len(resp.Body)))
		m.debug.save(ItemDetailFile, func() ([]byte, error) {
			return []byte(resp.Body), nil
		})

		tiers, stats := m.extractor.ExtractWithStats(resp.Body)
		result.Tiers = tiers
		duplicates = stats.Duplicates
		if len(tiers) > 0 {
			outcome = OutcomeTiers
		}
		log.Infof("extracted %d tier(s)", len(tiers))
	}

	result.Success = true
	return result
}

// ensureAppPage moves the page to the main application view unless it is
// already on one of the post-login views. Failures are logged only; the
// request is still attempted.
func (m *Manager) ensureAppPage(ctx context.Context, page browser.BrowserClient, log utils.Logger) {
	addr, err := page.URL(ctx)
	if err == nil && (strings.Contains(addr, m.portal.MainPageMarker) || strings.Contains(addr, m.portal.QuickOrderMarker)) {
		return
	}

	target := m.portal.MainPageURL()
	log.Infof("navigating to %s", target)
	if err := page.Navigate(ctx, target, m.timings.MainPageNavigate); err != nil {
		log.Warnf("main page navigation failed: %v", err)
		return
	}
	if err := page.WaitNetworkIdle(ctx, m.timings.MainPageNavigate); err != nil {
		log.Debugf("main page did not settle: %v", err)
	}
	m.pause(ctx, m.timings.PostNavigate)
}
