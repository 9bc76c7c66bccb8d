// Package browser drives Chrome through go-rod for scenario steps.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/shibukawa/snape2e"
	"github.com/shibukawa/snape2e/ui"
	"go.uber.org/zap"
)

// Session is one browser with one page. It implements ui.Driver.
type Session struct {
	browser  *rod.Browser
	page     *rod.Page
	launched *launcher.Launcher
	timeout  time.Duration
	logger   *zap.Logger
}

var _ ui.Driver = (*Session)(nil)

// Launch connects to cfg.ControlURL, or starts a browser when it is empty,
// and opens a blank page with the configured viewport
func Launch(ctx context.Context, cfg snape2e.BrowserConfig, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{timeout: cfg.Timeout, logger: logger}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(cfg.IsHeadless())
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}

		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}

		s.launched = l
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		s.cleanupLauncher()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	s.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	s.page = page

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.Viewport.Width,
		Height:            cfg.Viewport.Height,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logger.Warn("failed to set viewport", zap.Error(err))
	}

	logger.Debug("browser session started", zap.String("control_url", controlURL), zap.Bool("headless", cfg.IsHeadless()))

	return s, nil
}

func (s *Session) pageFor(ctx context.Context) *rod.Page {
	page := s.page.Context(ctx)
	if s.timeout > 0 {
		page = page.Timeout(s.timeout)
	}

	return page
}

// Navigate opens url and waits for the load event
func (s *Session) Navigate(ctx context.Context, url string) error {
	page := s.pageFor(ctx)

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}

	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s: %w", url, err)
	}

	return nil
}

// Click waits for selector and clicks it
func (s *Session) Click(ctx context.Context, selector string) error {
	el, err := s.pageFor(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", snape2e.ErrElementNotFound, selector, err)
	}

	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Fill replaces the value of the input matched by selector
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	el, err := s.pageFor(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", snape2e.ErrElementNotFound, selector, err)
	}

	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select %s: %w", selector, err)
	}

	return el.Input(value)
}

// VisibleElements waits for selector and returns its visible matches
func (s *Session) VisibleElements(ctx context.Context, selector string) ([]ui.Element, error) {
	page := s.pageFor(ctx)

	if _, err := page.Element(selector); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", snape2e.ErrElementNotFound, selector, err)
	}

	matches, err := page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}

	elements := make([]ui.Element, 0, len(matches))

	for _, el := range matches {
		visible, err := el.Visible()
		if err != nil {
			return nil, fmt.Errorf("check visibility of %s: %w", selector, err)
		}

		if visible {
			elements = append(elements, &element{el: el})
		}
	}

	return elements, nil
}

// Screenshot writes a PNG of the viewport to path
func (s *Session) Screenshot(ctx context.Context, path string) error {
	data, err := s.pageFor(ctx).Screenshot(false, nil)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create screenshot directory: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Close closes the page and the browser, and stops a launched process
func (s *Session) Close() error {
	var err error

	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}

	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}

	s.cleanupLauncher()

	return err
}

func (s *Session) cleanupLauncher() {
	if s.launched != nil {
		s.launched.Cleanup()
		s.launched = nil
	}
}

type element struct {
	el *rod.Element
}

func (e *element) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *element) InputValue(ctx context.Context) (string, error) {
	return e.eval(ctx, `() => this.value === undefined || this.value === null ? "" : String(this.value)`)
}

func (e *element) TagName(ctx context.Context) (string, error) {
	return e.eval(ctx, `() => this.tagName`)
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	value, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}

	if value == nil {
		return "", false, nil
	}

	return *value, true, nil
}

func (e *element) eval(ctx context.Context, js string) (string, error) {
	res, err := e.el.Context(ctx).Eval(js)
	if err != nil {
		return "", err
	}

	return res.Value.Str(), nil
}
