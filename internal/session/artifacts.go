package session

import (
	"context"
	"os"
	"path/filepath"

	"github.com/valpere/barem-scraper/internal/antidetect"
	"github.com/valpere/barem-scraper/internal/browser"
	"github.com/valpere/barem-scraper/internal/utils"
)

// Debug artifact names.
const (
	LoginScreenshotFile = "debug_login.png"
	LoginPageFile       = "debug_page.html"
	ItemDetailFile      = "debug_barem.html"

	markupPreviewLen = 500
)

// artifacts writes debugging dumps. Every failure, panics included, is
// logged and swallowed.
type artifacts struct {
	dir string
	log utils.Logger
}

func newArtifacts(dir string, log utils.Logger) *artifacts {
	return &artifacts{dir: dir, log: log}
}

func (a *artifacts) enabled() bool {
	return a != nil && a.dir != ""
}

func (a *artifacts) save(name string, produce func() ([]byte, error)) {
	if !a.enabled() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.log.Warnf("debug artifact %s: %v", name, r)
		}
	}()

	data, err := produce()
	if err != nil {
		a.log.Warnf("debug artifact %s: %v", name, err)
		return
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		a.log.Warnf("debug artifact %s: %v", name, err)
		return
	}
	path := filepath.Join(a.dir, utils.CleanFileName(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		a.log.Warnf("debug artifact %s: %v", name, err)
		return
	}
	a.log.Debugf("saved %s (%s)", path, utils.FormatBytes(len(data)))
}

// dumpLoginPage captures a screenshot and the markup of the login page.
func (m *Manager) dumpLoginPage(ctx context.Context, page browser.BrowserClient) {
	m.debug.save(LoginScreenshotFile, func() ([]byte, error) {
		return page.Screenshot(ctx)
	})
	m.debug.save(LoginPageFile, func() ([]byte, error) {
		html, err := page.HTML(ctx)
		if err != nil {
			return nil, err
		}
		m.log.Infof("login page markup (%s): %s", utils.FormatBytes(len(html)), preview(html, markupPreviewLen))
		if kind, found := antidetect.DetectCaptcha(html); found {
			m.log.Warnf("login page carries a %s challenge", kind)
		}
		return []byte(html), nil
	})
}

// preview returns at most n runes of s.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
