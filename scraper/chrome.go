package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"lead-harvester/utils"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/605.1.15",
}

// ChromeOptions configures the headless browser process.
type ChromeOptions struct {
	Headless  bool
	ChromeBin string
}

// ChromeBrowser is a chromedp-backed Browser. One Chrome process serves many
// tabs; each Page is its own tab.
type ChromeBrowser struct {
	logger *utils.Logger

	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancelBrow  context.CancelFunc
}

// NewChromeBrowser launches Chrome and returns a ready browser.
func NewChromeBrowser(opts ChromeOptions, logger *utils.Logger) (*ChromeBrowser, error) {
	chromeBin := opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1280, 800),
		chromedp.UserAgent(userAgents[rand.Intn(len(userAgents))]),
	)
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	// Suppress chromedp log noise
	browserCtx, cancelBrow := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrow()
		cancelAlloc()
		return nil, fmt.Errorf("%w: launch: %v", ErrBrowserUnavailable, err)
	}

	return &ChromeBrowser{
		logger:      logger,
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		browserCtx:  browserCtx,
		cancelBrow:  cancelBrow,
	}, nil
}

// NewPage opens a new tab.
func (b *ChromeBrowser) NewPage() (Page, error) {
	if err := b.browserCtx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: open tab: %v", ErrBrowserUnavailable, err)
	}
	return &chromePage{ctx: tabCtx, cancel: cancel}, nil
}

// Close shuts the browser down. Safe to call more than once.
func (b *ChromeBrowser) Close() error {
	if b.browserCtx.Err() == nil {
		if err := chromedp.Cancel(b.browserCtx); err != nil {
			b.logger.Warn("[browser] graceful close failed: %v", err)
		}
	}
	b.cancelBrow()
	b.cancelAlloc()
	return nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *chromePage) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func (p *chromePage) Goto(url string, timeout time.Duration) error {
	// Navigate returns on the load event; persistent background traffic on
	// feed pages would keep a network-idle wait open indefinitely.
	err := p.run(timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if p.ctx.Err() != nil {
			return fmt.Errorf("%w: goto %s: %v", ErrBrowserUnavailable, url, err)
		}
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) URL() string {
	var loc string
	if err := p.run(5*time.Second, chromedp.Location(&loc)); err != nil {
		return ""
	}
	return loc
}

func (p *chromePage) Evaluate(script string, out any) error {
	if out == nil {
		var discard any
		out = &discard
	}
	return p.run(30*time.Second, chromedp.Evaluate(script, out,
		func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithAwaitPromise(true)
		}))
}

const querySelectorAllJS = `(function(sel) {
	return Array.from(document.querySelectorAll(sel)).map(function(el) {
		var attrs = {};
		for (var i = 0; i < el.attributes.length; i++) {
			attrs[el.attributes[i].name] = el.attributes[i].value;
		}
		return {text: el.innerText || el.textContent || '', html: el.outerHTML, attrs: attrs};
	});
})(%s)`

type nodeJSON struct {
	Text  string            `json:"text"`
	HTML  string            `json:"html"`
	Attrs map[string]string `json:"attrs"`
}

func (p *chromePage) QuerySelectorAll(selector string) ([]Element, error) {
	arg, _ := json.Marshal(selector)
	var nodes []nodeJSON
	if err := p.Evaluate(fmt.Sprintf(querySelectorAllJS, arg), &nodes); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	out := make([]Element, len(nodes))
	for i, n := range nodes {
		out[i] = NewElement(n.Text, n.HTML, n.Attrs)
	}
	return out, nil
}

func (p *chromePage) MouseMove(x, y float64) error {
	return p.run(5*time.Second, chromedp.MouseEvent(input.MouseMoved, x, y))
}

func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
