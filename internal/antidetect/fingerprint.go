// internal/antidetect/fingerprint.go

// Package antidetect describes how the automated browser presents itself:
// window size, locale, timezone, user agent, request headers, launch flags
// and the script that hides automation markers from page code.
package antidetect

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultUserAgent is a desktop Chrome on Windows.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Viewport represents screen dimensions
type Viewport struct {
	Width  int
	Height int
}

// BrowserFingerprint represents the identity a browser session presents.
type BrowserFingerprint struct {
	UserAgent string
	Viewport  Viewport
	Locale    string
	Languages []string
	Platform  string
	Timezone  string
	Plugins   int
}

// Flag is a Chrome command-line switch. Value is either a bool or a string.
type Flag struct {
	Name  string
	Value interface{}
}

// DefaultFingerprint returns the Turkish desktop profile the portal expects
// from a pharmacy workstation.
func DefaultFingerprint() *BrowserFingerprint {
	return &BrowserFingerprint{
		UserAgent: DefaultUserAgent,
		Viewport:  Viewport{Width: 1920, Height: 1080},
		Locale:    "tr-TR",
		Languages: []string{"tr-TR", "tr", "en-US", "en"},
		Platform:  "Win32",
		Timezone:  "Europe/Istanbul",
		Plugins:   5,
	}
}

// WithOverrides returns a copy with any non-empty value replacing the
// profile's. A new locale leads the language list.
func (f *BrowserFingerprint) WithOverrides(userAgent, locale, timezone string) *BrowserFingerprint {
	c := *f
	c.Languages = append([]string(nil), f.Languages...)
	if userAgent != "" {
		c.UserAgent = userAgent
	}
	if timezone != "" {
		c.Timezone = timezone
	}
	if locale != "" && locale != f.Locale {
		c.Locale = locale
		langs := []string{locale}
		if base, _, ok := strings.Cut(locale, "-"); ok {
			langs = append(langs, base)
		}
		for _, l := range f.Languages {
			if !containsString(langs, l) {
				langs = append(langs, l)
			}
		}
		c.Languages = langs
	}
	return &c
}

// AcceptLanguage renders Languages with descending quality values.
func (f *BrowserFingerprint) AcceptLanguage() string {
	parts := make([]string, 0, len(f.Languages))
	for i, lang := range f.Languages {
		if i == 0 {
			parts = append(parts, lang)
			continue
		}
		q := 1.0 - 0.1*float64(i)
		if q < 0.1 {
			q = 0.1
		}
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", lang, q))
	}
	return strings.Join(parts, ",")
}

// Headers returns the extra headers sent with every browser request.
func (f *BrowserFingerprint) Headers() map[string]string {
	return map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           f.AcceptLanguage(),
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
	}
}

// LaunchFlags returns the Chrome switches for this profile.
func (f *BrowserFingerprint) LaunchFlags(headless bool) []Flag {
	return []Flag{
		{"headless", headless},
		{"no-sandbox", true},
		{"disable-dev-shm-usage", true},
		{"disable-blink-features", "AutomationControlled"},
		{"disable-features", "IsolateOrigins,site-per-process"},
		{"disable-web-security", true},
		{"allow-running-insecure-content", true},
		{"enable-automation", false},
		{"lang", f.Locale},
		{"window-size", fmt.Sprintf("%d,%d", f.Viewport.Width, f.Viewport.Height)},
	}
}

// InitScript returns the script evaluated before any page script runs.
func (f *BrowserFingerprint) InitScript() string {
	langs, _ := json.Marshal(f.Languages)
	plugins := make([]int, f.Plugins)
	for i := range plugins {
		plugins[i] = i + 1
	}
	pluginList, _ := json.Marshal(plugins)
	platform, _ := json.Marshal(f.Platform)

	return fmt.Sprintf(`(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'plugins', { get: () => %s });
	Object.defineProperty(navigator, 'languages', { get: () => %s });
	Object.defineProperty(navigator, 'platform', { get: () => %s });
	window.chrome = { runtime: {} };
})();`, pluginList, langs, platform)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
