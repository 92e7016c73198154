// internal/browser/capturer.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// enumerateScript lists visible interactable elements in document order along with
// the center of each one's bounding box in CSS pixels.
const enumerateScript = `(() => {
  const selector = 'a, button, input, textarea, select, [role="button"], [onclick]';
  const out = [];
  for (const el of document.querySelectorAll(selector)) {
    if (el.getAttribute('aria-hidden') === 'true') continue;
    const rect = el.getBoundingClientRect();
    if (rect.width <= 0 || rect.height <= 0) continue;
    const style = window.getComputedStyle(el);
    if (style.visibility === 'hidden' || style.display === 'none' || style.opacity === '0') continue;
    if (el.tagName.toLowerCase() === 'input' && (el.getAttribute('type') || '').toLowerCase() === 'hidden') continue;
    out.push({
      tag: el.tagName,
      href: el.href ? String(el.href) : '',
      x: rect.left + rect.width / 2,
      y: rect.top + rect.height / 2,
    });
  }
  return out;
})()`

// rawElement is one entry returned by enumerateScript.
type rawElement struct {
	Tag  string  `json:"tag"`
	Href string  `json:"href"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Capturer drives a single headless browser and takes page snapshots in fresh tabs.
type Capturer struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc

	startOnce sync.Once
	startErr  error

	mu     sync.Mutex
	closed bool
}

var _ schemas.PageCapturer = (*Capturer)(nil)

// NewCapturer prepares the allocator. Chrome is launched lazily on the first Capture.
func NewCapturer(cfg config.BrowserConfig, logger *zap.Logger) *Capturer {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("browser.capturer")

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(cfg)...)
	browserCtx, browserStop := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(log.Sugar().Errorf),
		chromedp.WithDebugf(log.Sugar().Debugf),
	)

	return &Capturer{
		cfg:         cfg,
		logger:      log,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		browserStop: browserStop,
	}
}

// AllocatorOptions turns the browser section of the config into chromedp exec options.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	flags := allocatorFlags(cfg)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]chromedp.ExecAllocatorOption, 0, len(names)+1)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight))
	}
	return opts
}

// allocatorFlags returns the command line flags Chrome is started with.
func allocatorFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"no-sandbox":                    true,
		"no-first-run":                  true,
		"no-default-browser-check":      true,
		"disable-dev-shm-usage":         true,
		"disable-extensions":            true,
		"disable-background-networking": true,
		"mute-audio":                    true,
		"hide-scrollbars":               true,
	}
	if cfg.Headless {
		flags["headless"] = true
	}
	if cfg.DisableGPU {
		flags["disable-gpu"] = true
	}
	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		// key=value arguments such as user-agent keep their value.
		if key, value, found := strings.Cut(arg, "="); found {
			flags[key] = value
		} else {
			flags[arg] = true
		}
	}
	return flags
}

// start launches the browser once.
func (c *Capturer) start() error {
	c.startOnce.Do(func() {
		c.logger.Debug("Launching browser.", zap.Bool("headless", c.cfg.Headless))
		if err := chromedp.Run(c.browserCtx); err != nil {
			c.startErr = fmt.Errorf("failed to launch browser: %w", err)
		}
	})
	return c.startErr
}

// Capture loads url in a new tab and returns its screenshot, interactable elements and final URL.
func (c *Capturer) Capture(ctx context.Context, url string) (*schemas.PageSnapshot, error) {
	if strings.TrimSpace(url) == "" {
		return nil, schemas.NewFieldError(schemas.ErrKindRequestValidation, "url", "must not be empty")
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, errors.New("capturer is closed")
	}

	if err := c.start(); err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(c.browserCtx)
	defer cancelTab()
	// The tab is parented to the browser, so caller cancellation is forwarded by hand.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	if c.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithTimeout(tabCtx, c.cfg.NavigationTimeout)
		defer cancel()
	}

	start := time.Now()
	var (
		screenshot []byte
		raw        []rawElement
		finalURL   string
		title      string
	)
	tasks := chromedp.Tasks{
		emulation.SetDeviceMetricsOverride(int64(c.viewportWidth()), int64(c.viewportHeight()), 1, false),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(actx context.Context) error {
			if c.cfg.PostLoadWait <= 0 {
				return nil
			}
			c.logger.Debug("Waiting for post-load stabilization.", zap.Duration("duration", c.cfg.PostLoadWait))
			select {
			case <-time.After(c.cfg.PostLoadWait):
				return nil
			case <-actx.Done():
				return actx.Err()
			}
		}),
		chromedp.CaptureScreenshot(&screenshot),
		chromedp.Evaluate(enumerateScript, &raw),
		chromedp.Location(&finalURL),
		chromedp.Title(&title),
	}

	if err := chromedp.Run(tabCtx, tasks); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("page capture cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("page capture failed for %s: %w", url, err)
	}

	elements := toElementMap(raw)
	c.logger.Info("Page captured",
		zap.String("url", url),
		zap.String("final_url", finalURL),
		zap.Int("elements", len(elements)),
		zap.Int("screenshot_bytes", len(screenshot)),
		zap.Duration("duration", time.Since(start)))

	return &schemas.PageSnapshot{
		CurrentURL: finalURL,
		Title:      title,
		Screenshot: screenshot,
		Elements:   elements,
	}, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (c *Capturer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := chromedp.Cancel(c.browserCtx)
	c.browserStop()
	c.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

func (c *Capturer) viewportWidth() int {
	if c.cfg.ViewportWidth > 0 {
		return c.cfg.ViewportWidth
	}
	return 1280
}

func (c *Capturer) viewportHeight() int {
	if c.cfg.ViewportHeight > 0 {
		return c.cfg.ViewportHeight
	}
	return 800
}

// toElementMap numbers the enumerated elements 1..n in the order the page listed them.
// Entries without a tag are dropped before numbering.
func toElementMap(raw []rawElement) schemas.ElementMap {
	elements := make(schemas.ElementMap, len(raw))
	next := schemas.ElementID(1)
	for _, r := range raw {
		tag := strings.ToLower(strings.TrimSpace(r.Tag))
		if tag == "" {
			continue
		}
		elements[next] = schemas.ElementDescriptor{
			Tag:  tag,
			Link: strings.TrimSpace(r.Href),
			X:    r.X,
			Y:    r.Y,
		}
		next++
	}
	return elements
}
