// internal/browser/browser_test.go
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/page"

	"github.com/valpere/barem-scraper/internal/config"
	"github.com/valpere/barem-scraper/internal/utils"
)

func TestDefaultBrowserConfig(t *testing.T) {
	cfg := DefaultBrowserConfig()

	if cfg == nil {
		t.Fatal("Expected non-nil config")
	}

	if !cfg.Headless {
		t.Error("Expected headless mode by default")
	}

	if cfg.Fingerprint == nil {
		t.Fatal("Expected a default fingerprint")
	}

	if cfg.Fingerprint.Viewport.Width != 1920 || cfg.Fingerprint.Viewport.Height != 1080 {
		t.Errorf("Expected viewport 1920x1080, got %+v", cfg.Fingerprint.Viewport)
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.BrowserConfig{
		Headless: false,
		ExecPath: "/usr/bin/chromium",
		Timezone: "UTC",
	}, config.Timings{Action: 3 * time.Second})

	if cfg.Headless {
		t.Error("Expected headless to follow the service configuration")
	}
	if cfg.ExecPath != "/usr/bin/chromium" {
		t.Errorf("Expected exec path to be kept, got %q", cfg.ExecPath)
	}
	if cfg.Fingerprint.Timezone != "UTC" {
		t.Errorf("Expected timezone override, got %q", cfg.Fingerprint.Timezone)
	}
	if cfg.Fingerprint.Locale != "tr-TR" {
		t.Errorf("Expected default locale, got %q", cfg.Fingerprint.Locale)
	}
	if cfg.ActionTimeout != 3*time.Second {
		t.Errorf("Expected action timeout from timings, got %v", cfg.ActionTimeout)
	}

	if d := ConfigFrom(config.BrowserConfig{}, config.Timings{}).ActionTimeout; d != 10*time.Second {
		t.Errorf("Expected default action timeout, got %v", d)
	}
}

// eventClient is a ChromeClient without a browser, enough to exercise event
// handling and context scoping.
func eventClient(cfg *BrowserConfig) *ChromeClient {
	return &ChromeClient{
		ctx:       context.Background(),
		config:    cfg,
		log:       utils.NewNopLogger(),
		mainFrame: "main",
	}
}

func TestScopedHasDeadlineWithoutCaller(t *testing.T) {
	c := eventClient(&BrowserConfig{ActionTimeout: 30 * time.Millisecond})

	req, hangUp := context.WithCancel(context.Background())
	runCtx, cancel := c.scoped(context.WithoutCancel(req), c.actionTimeout())
	defer cancel()
	hangUp()

	if _, ok := runCtx.Deadline(); !ok {
		t.Fatal("Expected page commands to carry a deadline")
	}
	select {
	case <-runCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("Expected the command context to end after the action timeout")
	}
	if !errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		t.Errorf("Expected a deadline error, got %v", runCtx.Err())
	}
}

func TestScopedZeroTimeoutUsesActionTimeout(t *testing.T) {
	c := eventClient(&BrowserConfig{ActionTimeout: time.Minute})

	runCtx, cancel := c.scoped(context.Background(), 0)
	defer cancel()

	deadline, ok := runCtx.Deadline()
	if !ok || time.Until(deadline) > time.Minute {
		t.Errorf("Expected the action timeout to apply, got %v (%v)", deadline, ok)
	}
}

func TestScopedFollowsCaller(t *testing.T) {
	c := eventClient(&BrowserConfig{ActionTimeout: time.Minute})

	caller, cancelCaller := context.WithCancel(context.Background())
	runCtx, cancel := c.scoped(caller, 0)
	defer cancel()
	cancelCaller()

	select {
	case <-runCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("Expected the command context to end with its caller")
	}
}

func TestDialogsAreDismissed(t *testing.T) {
	c := eventClient(&BrowserConfig{ActionTimeout: time.Second})
	dismissed := make(chan bool, 1)
	c.dismissDialog = func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		dismissed <- ok
		return nil
	}

	c.onTargetEvent(&page.EventJavascriptDialogOpening{Type: page.DialogTypeAlert, Message: "Hatalı şifre"})

	select {
	case bounded := <-dismissed:
		if !bounded {
			t.Error("Expected the dismissal to carry a deadline")
		}
	case <-time.After(time.Second):
		t.Fatal("Expected the dialog to be dismissed")
	}
	if n := c.GetStats().DialogsDismissed; n != 1 {
		t.Errorf("Expected 1 dismissed dialog, got %d", n)
	}
}

func TestWaitNetworkIdleAfterNavigationStarts(t *testing.T) {
	ctx := context.Background()
	wait := 50 * time.Millisecond

	tests := []struct {
		name   string
		events []interface{}
		idle   bool
	}{
		{"settled page", []interface{}{
			&page.EventLifecycleEvent{FrameID: "main", Name: "networkIdle"},
		}, true},
		{"navigation requested", []interface{}{
			&page.EventLifecycleEvent{FrameID: "main", Name: "networkIdle"},
			&page.EventFrameRequestedNavigation{FrameID: "main"},
		}, false},
		{"navigation loading", []interface{}{
			&page.EventLifecycleEvent{FrameID: "main", Name: "networkIdle"},
			&page.EventFrameStartedLoading{FrameID: "main"},
		}, false},
		{"new document committed", []interface{}{
			&page.EventLifecycleEvent{FrameID: "main", Name: "networkIdle"},
			&page.EventFrameStartedLoading{FrameID: "main"},
			&page.EventLifecycleEvent{FrameID: "main", Name: "init"},
			&page.EventFrameStoppedLoading{FrameID: "main"},
		}, false},
		{"new document settled", []interface{}{
			&page.EventFrameStartedLoading{FrameID: "main"},
			&page.EventLifecycleEvent{FrameID: "main", Name: "init"},
			&page.EventLifecycleEvent{FrameID: "main", Name: "networkIdle"},
		}, true},
		{"navigation cancelled", []interface{}{
			&page.EventLifecycleEvent{FrameID: "main", Name: "networkIdle"},
			&page.EventFrameStartedLoading{FrameID: "main"},
			&page.EventFrameStoppedLoading{FrameID: "main"},
		}, true},
		{"same-document navigation", []interface{}{
			&page.EventLifecycleEvent{FrameID: "main", Name: "networkIdle"},
			&page.EventFrameRequestedNavigation{FrameID: "main"},
			&page.EventNavigatedWithinDocument{FrameID: "main"},
		}, true},
		{"child frame navigation", []interface{}{
			&page.EventLifecycleEvent{FrameID: "main", Name: "networkIdle"},
			&page.EventFrameStartedLoading{FrameID: "ad"},
			&page.EventLifecycleEvent{FrameID: "ad", Name: "init"},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := eventClient(&BrowserConfig{})
			for _, ev := range tt.events {
				c.onTargetEvent(ev)
			}

			err := c.WaitNetworkIdle(ctx, wait)
			if tt.idle && err != nil {
				t.Errorf("Expected the page to be idle, got %v", err)
			}
			if !tt.idle && err == nil {
				t.Error("Expected WaitNetworkIdle to time out while the navigation is pending")
			}
		})
	}
}

const loginPage = `<!DOCTYPE html>
<html><head><title>Giriş</title></head><body>
<form id="pharmacyLoginForm" onsubmit="return false">
	<input type="text" name="EczaneKodu" placeholder="Eczane Kodu">
	<input type="text" name="KullaniciAdi" placeholder="Kullanıcı Adı">
	<input type="password" name="Sifre">
	<input type="hidden" name="token" value="x">
	<button type="submit" onclick="document.getElementById('out').textContent = document.querySelector('[name=KullaniciAdi]').value">Giriş Yap</button>
</form>
<div id="out" class="alert-danger"></div>
</body></html>`

// newTestClient starts Chrome or skips the test when it is unavailable.
func newTestClient(t *testing.T) *ChromeClient {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}

	client, err := NewChromeClient(DefaultBrowserConfig(), nil)
	if err != nil {
		t.Skipf("Skipping browser test - Chrome may not be available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestChromeClient_LoginForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, loginPage)
	}))
	defer srv.Close()

	client := newTestClient(t)
	ctx := context.Background()

	if err := client.Navigate(ctx, srv.URL, 10*time.Second); err != nil {
		t.Fatalf("Failed to navigate: %v", err)
	}
	if err := client.WaitForElement(ctx, "input", 5*time.Second); err != nil {
		t.Fatalf("Expected inputs to render: %v", err)
	}

	title, err := client.Title(ctx)
	if err != nil || title != "Giriş" {
		t.Errorf("Expected title Giriş, got %q (%v)", title, err)
	}

	n, err := client.Count(ctx, Locator{Query: `input[type="text"]`})
	if err != nil || n != 2 {
		t.Errorf("Expected 2 text inputs, got %d (%v)", n, err)
	}
	n, err = client.Count(ctx, Locator{Query: `input[name="Missing"]`})
	if err != nil || n != 0 {
		t.Errorf("Expected no matches, got %d (%v)", n, err)
	}
	n, err = client.Count(ctx, Locator{Query: `//button[contains(., "Giriş")]`, XPath: true})
	if err != nil || n != 1 {
		t.Errorf("Expected the XPath locator to match the button, got %d (%v)", n, err)
	}

	if err := client.Fill(ctx, Locator{Query: `input[name="KullaniciAdi"]`}, "eczane01"); err != nil {
		t.Fatalf("Failed to fill: %v", err)
	}
	if err := client.Click(ctx, Locator{Query: `//button[contains(., "Giriş")]`, XPath: true}); err != nil {
		t.Fatalf("Failed to click: %v", err)
	}

	text, err := client.Text(ctx, Locator{Query: ".alert-danger"})
	if err != nil || text != "eczane01" {
		t.Errorf("Expected the click handler to copy the username, got %q (%v)", text, err)
	}

	if err := client.Click(ctx, Locator{Query: "#nothing"}); err == nil {
		t.Error("Expected an error when clicking a missing element")
	}

	inputs, err := client.DescribeInputs(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to describe inputs: %v", err)
	}
	if len(inputs) != 4 {
		t.Fatalf("Expected 4 inputs, got %d", len(inputs))
	}
	if inputs[0].Name != "EczaneKodu" || !inputs[0].Visible {
		t.Errorf("Unexpected first input: %+v", inputs[0])
	}
	if inputs[3].Visible {
		t.Errorf("Expected the hidden input to be reported invisible: %+v", inputs[3])
	}

	html, err := client.HTML(ctx)
	if err != nil || !strings.Contains(html, "pharmacyLoginForm") {
		t.Errorf("Expected page markup, got error %v", err)
	}

	if stats := client.GetStats(); stats.PagesLoaded != 1 {
		t.Errorf("Expected 1 page loaded, got %d", stats.PagesLoaded)
	}
}

func TestChromeClient_PostJSON(t *testing.T) {
	var gotBody map[string]interface{}
	var gotHeader string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html><body>home</body></html>")
	})
	mux.HandleFunc("/Sales/ItemDetailv3", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		gotHeader = r.Header.Get("X-Requested-With")
		json.NewDecoder(r.Body).Decode(&gotBody)
		io.WriteString(w, `<table id="popup_tblKampanyalar"></table>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t)
	ctx := context.Background()

	if err := client.Navigate(ctx, srv.URL, 10*time.Second); err != nil {
		t.Fatalf("Failed to navigate: %v", err)
	}
	if err := client.WaitNetworkIdle(ctx, 10*time.Second); err != nil {
		t.Logf("Network idle not observed: %v", err)
	}

	headers := map[string]string{"X-Requested-With": "XMLHttpRequest"}
	resp, err := client.PostJSON(ctx, srv.URL+"/Sales/ItemDetailv3", map[string]int{"itemId": 42}, headers, 10*time.Second)
	if err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
	if !resp.OK || resp.Status != http.StatusOK {
		t.Fatalf("Expected 200 OK, got %+v", resp)
	}
	if !strings.Contains(resp.Body, "popup_tblKampanyalar") {
		t.Errorf("Unexpected body: %q", resp.Body)
	}
	if gotHeader != "XMLHttpRequest" {
		t.Errorf("Expected header to be forwarded, got %q", gotHeader)
	}
	if gotBody["itemId"] != float64(42) {
		t.Errorf("Expected itemId 42 in body, got %v", gotBody)
	}

	resp, err = client.PostJSON(ctx, srv.URL+"/broken", map[string]int{"itemId": 1}, nil, 10*time.Second)
	if err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
	if resp.OK || resp.Status != http.StatusInternalServerError || resp.Error != "HTTP 500" {
		t.Errorf("Expected an HTTP 500 response, got %+v", resp)
	}
}
