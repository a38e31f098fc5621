package session

import (
	"context"

	"github.com/valpere/barem-scraper/internal/browser"
	"github.com/valpere/barem-scraper/internal/config"
	"github.com/valpere/barem-scraper/internal/utils"
)

// firstMatch walks cascade in order and returns the first locator that
// matches at least one element on the page. Lookup errors count as no match.
func (m *Manager) firstMatch(ctx context.Context, page browser.BrowserClient, cascade []config.Locator) (config.Locator, bool) {
	for _, loc := range cascade {
		n, err := page.Count(ctx, loc)
		if err != nil {
			m.log.Debugf("selector %s failed: %v", describe(loc), err)
			continue
		}
		if n > 0 {
			return loc, true
		}
	}
	return config.Locator{}, false
}

// fillField fills the first element of cascade that exists on the page.
func (m *Manager) fillField(ctx context.Context, page browser.BrowserClient, field string, cascade []config.Locator, value string) error {
	loc, ok := m.firstMatch(ctx, page, cascade)
	if !ok {
		return utils.NewError(utils.ErrCodeSelectorNotFound, "no selector matched the "+field+" field").
			WithContext("field", field).
			Build()
	}
	if err := page.Fill(ctx, loc, value); err != nil {
		return err
	}
	m.log.Infof("filled %s using %s", field, describe(loc))
	return nil
}

func describe(loc config.Locator) string {
	if loc.XPath {
		return "xpath " + loc.Query
	}
	return loc.Query
}
