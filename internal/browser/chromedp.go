// internal/browser/chromedp.go
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/valpere/barem-scraper/internal/utils"
)

const (
	idlePollInterval     = 100 * time.Millisecond
	defaultActionTimeout = 10 * time.Second
)

// ChromeClient implements BrowserClient using chromedp. It owns one browser
// process and one tab for its whole lifetime.
type ChromeClient struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	config      *BrowserConfig
	log         utils.Logger

	mu        sync.Mutex
	stats     BrowserStats
	mainFrame cdp.FrameID
	idle      bool

	// navPending is set between a main-frame navigation starting and its
	// document committing.
	navPending bool

	dismissDialog func(ctx context.Context) error
}

// NewChromeClient launches Chrome with the configured fingerprint and opens
// the tab every later call drives.
func NewChromeClient(config *BrowserConfig, log utils.Logger) (*ChromeClient, error) {
	if config == nil {
		config = DefaultBrowserConfig()
	}
	if config.Fingerprint == nil {
		config.Fingerprint = DefaultBrowserConfig().Fingerprint
	}
	if log == nil {
		log = utils.NewNopLogger()
	}
	fp := config.Fingerprint

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.UserAgent(fp.UserAgent),
	}
	for _, f := range fp.LaunchFlags(config.Headless) {
		opts = append(opts, chromedp.Flag(f.Name, f.Value))
	}
	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}

	// The allocator lives until Close; cancelling it kills the browser.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	client := &ChromeClient{
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		config:      config,
		log:         log,
	}
	client.dismissDialog = func(ctx context.Context) error {
		return chromedp.Run(ctx, page.HandleJavaScriptDialog(false))
	}

	chromedp.ListenTarget(ctx, client.onTargetEvent)

	// The first Run starts the browser and must not carry a deadline.
	if err := chromedp.Run(ctx); err != nil {
		client.Close()
		return nil, utils.NewError(utils.ErrCodeBrowserFailed, "failed to start browser").
			WithCause(err).
			Build()
	}

	if err := client.initialize(); err != nil {
		client.Close()
		return nil, utils.NewError(utils.ErrCodeBrowserFailed, "failed to initialize browser").
			WithCause(err).
			Build()
	}

	log.Infof("browser started (headless=%v, locale=%s, timezone=%s)", config.Headless, fp.Locale, fp.Timezone)
	return client, nil
}

// initialize applies the fingerprint to the tab and records its main frame.
func (c *ChromeClient) initialize() error {
	fp := c.config.Fingerprint

	timeout := c.config.StartTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	headers := network.Headers{}
	for k, v := range fp.Headers() {
		headers[k] = v
	}

	return chromedp.Run(ctx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		emulation.SetUserAgentOverride(fp.UserAgent).
			WithAcceptLanguage(fp.AcceptLanguage()).
			WithPlatform(fp.Platform),
		emulation.SetLocaleOverride().WithLocale(fp.Locale),
		emulation.SetTimezoneOverride(fp.Timezone),
		chromedp.EmulateViewport(int64(fp.Viewport.Width), int64(fp.Viewport.Height)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if _, err := page.AddScriptToEvaluateOnNewDocument(fp.InitScript()).Do(ctx); err != nil {
				return fmt.Errorf("add init script: %w", err)
			}
			if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
				return fmt.Errorf("enable lifecycle events: %w", err)
			}
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("get frame tree: %w", err)
			}
			c.mu.Lock()
			c.mainFrame = tree.Frame.ID
			c.mu.Unlock()
			return nil
		}),
	)
}

// onTargetEvent tracks the main frame's network-idle state and dismisses
// JavaScript dialogs, which would otherwise block every later command.
func (c *ChromeClient) onTargetEvent(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventJavascriptDialogOpening:
		c.mu.Lock()
		c.stats.DialogsDismissed++
		c.mu.Unlock()
		c.log.Warnf("dismissing %s dialog: %s", e.Type, e.Message)
		// Listeners must not block; the command goes out from its own goroutine.
		go c.handleDialog()
	case *page.EventFrameRequestedNavigation:
		c.navigationStarted(e.FrameID)
	case *page.EventFrameStartedLoading:
		c.navigationStarted(e.FrameID)
	case *page.EventFrameStoppedLoading:
		c.navigationAbandoned(e.FrameID)
	case *page.EventNavigatedWithinDocument:
		c.navigationAbandoned(e.FrameID)
	case *page.EventLifecycleEvent:
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.isMainFrame(e.FrameID) {
			return
		}
		switch e.Name {
		case "init":
			c.idle = false
			c.navPending = false
		case "networkIdle":
			c.idle = true
		}
	}
}

// navigationStarted clears the idle flag as soon as the main frame begins
// to navigate, before the new document commits.
func (c *ChromeClient) navigationStarted(frame cdp.FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isMainFrame(frame) {
		return
	}
	c.idle = false
	c.navPending = true
}

// navigationAbandoned restores the idle flag when a pending navigation ends
// without committing a new document (cancelled, or same-document).
func (c *ChromeClient) navigationAbandoned(frame cdp.FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isMainFrame(frame) || !c.navPending {
		return
	}
	c.idle = true
	c.navPending = false
}

// isMainFrame must be called with mu held.
func (c *ChromeClient) isMainFrame(frame cdp.FrameID) bool {
	return c.mainFrame == "" || frame == c.mainFrame
}

func (c *ChromeClient) handleDialog() {
	ctx, cancel := context.WithTimeout(c.ctx, c.actionTimeout())
	defer cancel()
	if err := c.dismissDialog(ctx); err != nil {
		c.log.Warnf("failed to dismiss dialog: %v", err)
	}
}

func (c *ChromeClient) actionTimeout() time.Duration {
	if c.config != nil && c.config.ActionTimeout > 0 {
		return c.config.ActionTimeout
	}
	return defaultActionTimeout
}

func (c *ChromeClient) isIdle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idle
}

// scoped derives a context from the tab that ends when ctx does or when
// timeout elapses. A non-positive timeout means the action timeout, so no
// page command runs unbounded.
func (c *ChromeClient) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = c.actionTimeout()
	}
	runCtx, cancel := context.WithTimeout(c.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// Navigate navigates to a URL and waits for page load
func (c *ChromeClient) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	runCtx, cancel := c.scoped(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := chromedp.Run(runCtx, chromedp.Navigate(url))
	loadTime := time.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.stats.Errors++
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			c.stats.TimeoutsOccurred++
		}
		return utils.NewError(utils.ErrCodeNavigationFailed, "navigation failed").
			WithCause(err).
			WithContext("url", url).
			WithRetryable(true).
			Build()
	}

	c.stats.PagesLoaded++
	if c.stats.PagesLoaded == 1 {
		c.stats.AverageLoadTime = loadTime
	} else {
		c.stats.AverageLoadTime = (c.stats.AverageLoadTime + loadTime) / 2
	}
	return nil
}

// URL returns the current page address
func (c *ChromeClient) URL(ctx context.Context) (string, error) {
	runCtx, cancel := c.scoped(ctx, c.actionTimeout())
	defer cancel()

	var location string
	if err := chromedp.Run(runCtx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return location, nil
}

// Title returns the current page title
func (c *ChromeClient) Title(ctx context.Context) (string, error) {
	runCtx, cancel := c.scoped(ctx, c.actionTimeout())
	defer cancel()

	var title string
	if err := chromedp.Run(runCtx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

// WaitForElement waits for an element to appear
func (c *ChromeClient) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	runCtx, cancel := c.scoped(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		c.mu.Lock()
		c.stats.TimeoutsOccurred++
		c.mu.Unlock()
		return utils.NewError(utils.ErrCodeNetworkTimeout, "element wait timeout").
			WithCause(err).
			WithContext("selector", selector).
			Build()
	}
	return nil
}

// nodes returns every element the locator currently matches without waiting.
func (c *ChromeClient) nodes(ctx context.Context, loc Locator) ([]*cdp.Node, error) {
	runCtx, cancel := c.scoped(ctx, c.actionTimeout())
	defer cancel()

	by := chromedp.ByQueryAll
	if loc.XPath {
		by = chromedp.BySearch
	}

	var nodes []*cdp.Node
	if err := chromedp.Run(runCtx, chromedp.Nodes(loc.Query, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query %q: %w", loc.Query, err)
	}
	return nodes, nil
}

func (c *ChromeClient) first(ctx context.Context, loc Locator) (*cdp.Node, error) {
	nodes, err := c.nodes(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, utils.NewError(utils.ErrCodeSelectorNotFound, "no element matches locator").
			WithContext("query", loc.Query).
			Build()
	}
	return nodes[0], nil
}

// Count returns how many elements the locator matches
func (c *ChromeClient) Count(ctx context.Context, loc Locator) (int, error) {
	nodes, err := c.nodes(ctx, loc)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

// Fill focuses the first match, clears it and types value
func (c *ChromeClient) Fill(ctx context.Context, loc Locator, value string) error {
	node, err := c.first(ctx, loc)
	if err != nil {
		return err
	}

	runCtx, cancel := c.scoped(ctx, c.actionTimeout())
	defer cancel()

	ids := []cdp.NodeID{node.NodeID}
	err = chromedp.Run(runCtx,
		chromedp.Focus(ids, chromedp.ByNodeID),
		chromedp.Clear(ids, chromedp.ByNodeID),
		chromedp.SendKeys(ids, value, chromedp.ByNodeID),
	)
	if err != nil {
		return fmt.Errorf("fill %q: %w", loc.Query, err)
	}
	return nil
}

// Click clicks the first match, falling back to a script click when the
// element has no clickable box.
func (c *ChromeClient) Click(ctx context.Context, loc Locator) error {
	node, err := c.first(ctx, loc)
	if err != nil {
		return err
	}

	runCtx, cancel := c.scoped(ctx, c.actionTimeout())
	defer cancel()

	err = chromedp.Run(runCtx, chromedp.MouseClickNode(node))
	if err == nil {
		return nil
	}
	if runCtx.Err() != nil {
		// The click may have been delivered; clicking again could submit twice.
		return fmt.Errorf("click %q: %w", loc.Query, err)
	}
	c.log.Debugf("mouse click on %q failed, using script click: %v", loc.Query, err)

	scriptCtx, cancelScript := c.scoped(ctx, c.actionTimeout())
	defer cancelScript()
	err = chromedp.Run(scriptCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		_, exc, err := runtime.CallFunctionOn("function() { this.click(); }").
			WithObjectID(obj.ObjectID).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("click %q: %w", loc.Query, err)
	}
	return nil
}

// Text returns the text content of the first match
func (c *ChromeClient) Text(ctx context.Context, loc Locator) (string, error) {
	node, err := c.first(ctx, loc)
	if err != nil {
		return "", err
	}

	runCtx, cancel := c.scoped(ctx, c.actionTimeout())
	defer cancel()

	var text string
	if err := chromedp.Run(runCtx, chromedp.TextContent([]cdp.NodeID{node.NodeID}, &text, chromedp.ByNodeID)); err != nil {
		return "", fmt.Errorf("text of %q: %w", loc.Query, err)
	}
	return text, nil
}

// WaitNetworkIdle gives a triggered navigation SettleGrace to start, then
// waits for the main frame's networkIdle lifecycle event.
func (c *ChromeClient) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	if c.config.SettleGrace > 0 {
		grace := time.NewTimer(c.config.SettleGrace)
		select {
		case <-grace.C:
		case <-deadline.C:
			return c.idleTimeout(timeout)
		case <-ctx.Done():
			grace.Stop()
			return ctx.Err()
		}
	}

	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for {
		if c.isIdle() {
			return nil
		}
		select {
		case <-ticker.C:
		case <-deadline.C:
			return c.idleTimeout(timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *ChromeClient) idleTimeout(timeout time.Duration) error {
	c.mu.Lock()
	c.stats.TimeoutsOccurred++
	c.mu.Unlock()
	return utils.NewError(utils.ErrCodeNetworkTimeout, "page did not reach network idle").
		WithContext("timeout", timeout.String()).
		Build()
}

// Evaluate runs script in the page, awaiting a returned promise, and decodes
// its value into res.
func (c *ChromeClient) Evaluate(ctx context.Context, script string, res interface{}, timeout time.Duration) error {
	runCtx, cancel := c.scoped(ctx, timeout)
	defer cancel()

	err := chromedp.Run(runCtx, chromedp.Evaluate(script, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		c.mu.Lock()
		c.stats.JavaScriptErrors++
		c.mu.Unlock()
		return fmt.Errorf("script execution failed: %w", err)
	}
	return nil
}

const postJSONScript = `(async () => {
	try {
		const response = await fetch(%s, {
			method: "POST",
			credentials: "include",
			headers: %s,
			body: JSON.stringify(%s)
		});
		const body = await response.text();
		return {ok: response.ok, status: response.status, body: body, error: response.ok ? "" : "HTTP " + response.status};
	} catch (e) {
		return {ok: false, status: 0, body: "", error: String((e && e.message) || e)};
	}
})()`

// PostJSON issues a POST from within the page so the session cookies go
// along. Transport failures inside the page are reported in the response,
// not as an error.
func (c *ChromeClient) PostJSON(ctx context.Context, url string, body interface{}, headers map[string]string, timeout time.Duration) (*FetchResponse, error) {
	urlJSON, err := json.Marshal(url)
	if err != nil {
		return nil, err
	}
	if headers == nil {
		headers = map[string]string{}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return nil, err
	}
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	var resp FetchResponse
	script := fmt.Sprintf(postJSONScript, urlJSON, headersJSON, bodyJSON)
	if err := c.Evaluate(ctx, script, &resp, timeout); err != nil {
		return nil, err
	}
	return &resp, nil
}

const describeInputsScript = `Array.from(document.querySelectorAll("input")).slice(0, %d).map(el => ({
	name: el.name || "",
	id: el.id || "",
	type: el.type || "",
	placeholder: el.placeholder || "",
	visible: !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length)
}))`

// DescribeInputs lists input elements for login diagnostics
func (c *ChromeClient) DescribeInputs(ctx context.Context, limit int) ([]InputInfo, error) {
	var inputs []InputInfo
	if err := c.Evaluate(ctx, fmt.Sprintf(describeInputsScript, limit), &inputs, c.actionTimeout()); err != nil {
		return nil, err
	}
	return inputs, nil
}

// Screenshot takes a screenshot of the page
func (c *ChromeClient) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := c.scoped(ctx, c.actionTimeout())
	defer cancel()

	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		c.mu.Lock()
		c.stats.Errors++
		c.mu.Unlock()
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// HTML returns the current page HTML
func (c *ChromeClient) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := c.scoped(ctx, c.actionTimeout())
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		c.mu.Lock()
		c.stats.Errors++
		c.mu.Unlock()
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

// GetStats returns a copy of the browser statistics
func (c *ChromeClient) GetStats() BrowserStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close closes the tab, then the browser process
func (c *ChromeClient) Close() error {
	var err error
	if c.ctx != nil {
		err = chromedp.Cancel(c.ctx)
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return err
}
