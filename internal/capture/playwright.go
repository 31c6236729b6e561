package capture

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/playwright-community/playwright-go"
	"golang.org/x/xerrors"

	"visual-regression/internal/viewport"
)

type PlaywrightConfig struct {
	FullPage bool
	Format   string
	Quality  int

	Timeout time.Duration
	// NavigationDelay is waited after the network goes idle.
	NavigationDelay time.Duration
	// SettleDelay is waited after every viewport resize.
	SettleDelay time.Duration

	// ScrollStep and ScrollInterval drive the scroll pass that triggers lazy
	// loaded content. A zero step disables it.
	ScrollStep     int
	ScrollInterval time.Duration

	// CookieButtonText is the accessible name of the consent button clicked
	// when visible. Empty disables it.
	CookieButtonText string

	UserAgent                 string
	Headless                  bool
	ChromeDevtoolsProtocolURL string
}

func DefaultPlaywrightConfig() PlaywrightConfig {
	return PlaywrightConfig{
		FullPage:         true,
		Format:           "png",
		Quality:          85,
		Timeout:          30 * time.Second,
		NavigationDelay:  2 * time.Second,
		SettleDelay:      1 * time.Second,
		ScrollStep:       500,
		ScrollInterval:   100 * time.Millisecond,
		CookieButtonText: "Accept All",
		Headless:         true,
	}
}

type playwrightCapturer struct {
	config PlaywrightConfig
	logger logr.Logger
}

func NewPlaywrightCapturer(ctx context.Context, p PlaywrightConfig, logger logr.Logger) (Capturer, error) {
	if p.Format != "png" && p.Format != "jpeg" {
		return nil, xerrors.Errorf("unsupported screenshot format: %s", p.Format)
	}

	return &playwrightCapturer{
		config: p,
		logger: logger,
	}, nil
}

func (c *playwrightCapturer) Capture(ctx context.Context, url string, captureOptions CaptureOptions) ([]*CaptureResult, error) {
	viewports := captureOptions.Viewports
	if len(viewports) == 0 {
		viewports = []viewport.Viewport{viewport.Desktop}
	}

	p, err := playwright.Run()
	if err != nil {
		return nil, xerrors.Errorf("failed to start playwright: %w", err)
	}
	defer p.Stop()

	var browser playwright.Browser

	if c.config.ChromeDevtoolsProtocolURL == "" {
		browser, err = p.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(c.config.Headless),
		})
		if err != nil {
			return nil, xerrors.Errorf("failed to launch browser: %w", err)
		}
		defer browser.Close()
	} else {
		browser, err = p.Chromium.ConnectOverCDP(c.config.ChromeDevtoolsProtocolURL)
		if err != nil {
			return nil, xerrors.Errorf("failed to connect to browser via CDP at %s: %w", c.config.ChromeDevtoolsProtocolURL, err)
		}
	}

	pageOptions := playwright.BrowserNewPageOptions{}
	if c.config.UserAgent != "" {
		pageOptions.UserAgent = playwright.String(c.config.UserAgent)
	}
	page, err := browser.NewPage(pageOptions)
	if err != nil {
		return nil, xerrors.Errorf("failed to create new page: %w", err)
	}
	defer page.Close()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			page.Close()
		case <-done:
		}
	}()
	defer close(done)

	if err := page.SetViewportSize(viewports[0].Width, viewports[0].Height); err != nil {
		return nil, xerrors.Errorf("failed to set viewport size: %w", err)
	}

	if len(captureOptions.Headers) > 0 {
		if err := page.SetExtraHTTPHeaders(captureOptions.Headers); err != nil {
			return nil, xerrors.Errorf("failed to set HTTP headers: %w", err)
		}
	}

	logger := c.logger.WithValues("url", url)

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(c.config.Timeout.Milliseconds())),
	}); err != nil {
		return nil, xerrors.Errorf("failed to navigate to %s: %w", url, err)
	}

	if err := sleep(ctx, c.config.NavigationDelay); err != nil {
		return nil, err
	}

	if c.config.CookieButtonText != "" {
		c.acceptCookies(page, logger)
	}

	if len(captureOptions.MaskSelectors) > 0 {
		script, err := maskScript()
		if err != nil {
			return nil, err
		}
		if _, err := page.Evaluate(script, captureOptions.MaskSelectors); err != nil {
			return nil, xerrors.Errorf("failed to mask selectors: %w", err)
		}
	}

	results := make([]*CaptureResult, 0, len(viewports))
	for _, v := range viewports {
		screenshot, err := c.screenshot(ctx, page, v)
		if err != nil {
			return nil, xerrors.Errorf("failed to capture %s viewport: %w", v.Name, err)
		}
		logger.V(1).Info("captured screenshot", "viewport", v.Name, "bytes", len(screenshot))

		results = append(results, &CaptureResult{
			URL:        url,
			Viewport:   v,
			Screenshot: screenshot,
		})
	}

	return results, nil
}

func (c *playwrightCapturer) screenshot(ctx context.Context, page playwright.Page, v viewport.Viewport) ([]byte, error) {
	if err := page.SetViewportSize(v.Width, v.Height); err != nil {
		return nil, xerrors.Errorf("failed to set viewport size: %w", err)
	}

	if err := sleep(ctx, c.config.SettleDelay); err != nil {
		return nil, err
	}

	if c.config.ScrollStep > 0 {
		if _, err := page.Evaluate(scrollScript, []int{c.config.ScrollStep, int(c.config.ScrollInterval.Milliseconds())}); err != nil {
			return nil, xerrors.Errorf("failed to scroll page: %w", err)
		}
	}

	screenshotBytes, err := page.Screenshot(c.screenshotOptions())
	if err != nil {
		return nil, xerrors.Errorf("failed to take screenshot: %w", err)
	}

	return screenshotBytes, nil
}

func (c *playwrightCapturer) screenshotOptions() playwright.PageScreenshotOptions {
	options := playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(c.config.FullPage),
	}

	switch c.config.Format {
	case "jpeg":
		options.Type = playwright.ScreenshotTypeJpeg
		if c.config.Quality > 0 {
			options.Quality = playwright.Int(c.config.Quality)
		}
	default:
		options.Type = playwright.ScreenshotTypePng
	}

	return options
}

// acceptCookies clicks the consent button if one is showing. A banner that
// cannot be found or clicked does not fail the capture.
func (c *playwrightCapturer) acceptCookies(page playwright.Page, logger logr.Logger) {
	button := page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
		Name: c.config.CookieButtonText,
	}).First()

	visible, err := button.IsVisible()
	if err != nil || !visible {
		return
	}

	if err := button.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(c.config.Timeout.Milliseconds())),
	}); err != nil {
		logger.Error(err, "failed to accept cookies")
		return
	}
	logger.V(1).Info("accepted cookies")
}

const scrollScript = `async ([step, interval]) => {
	for (let y = 0; y < document.body.scrollHeight; y += step) {
		window.scrollTo(0, y);
		await new Promise(resolve => setTimeout(resolve, interval));
	}
	window.scrollTo(0, 0);
}`

func maskScript() (string, error) {
	unique := make([]byte, 8)
	if _, err := rand.Read(unique); err != nil {
		return "", xerrors.Errorf("failed to generate unique identifier: %w", err)
	}
	maskClassName := fmt.Sprintf("mask-%s", hex.EncodeToString(unique))

	maskCSS := fmt.Sprintf(`
.%s {
  position: relative !important;
}
.%s::after {
  content: "" !important;
  position: absolute !important;
  top: 0 !important;
  left: 0 !important;
  right: 0 !important;
  bottom: 0 !important;
  background-color: black !important;
  z-index: 2147483646 !important;
  pointer-events: none !important;
}
`, maskClassName, maskClassName)

	return fmt.Sprintf(`(selectors) => {
			const style = document.createElement('style');
			style.textContent = %q;
			document.head.appendChild(style);

			selectors.forEach(selector => {
				const elements = document.querySelectorAll(selector);
				elements.forEach(element => {
					const computedStyle = window.getComputedStyle(element);
					if (computedStyle.position === 'static') {
						element.style.position = 'relative';
					}
					element.classList.add(%q);
				});
			});
		}`, maskCSS, maskClassName), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
