// Package rodriver implements the driver interfaces over the Chrome
// DevTools Protocol using go-rod. One Manager owns one browser process and
// hands out sessions backed by individual pages.
package rodriver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"github.com/browserflow/browserflow/pkg/driver"
)

// Config holds browser configuration.
type Config struct {
	// DebuggerURL attaches to an already-running browser instead of
	// launching one.
	DebuggerURL string `json:"debugger_url,omitempty" yaml:"debugger_url,omitempty"`

	Headless          bool `json:"headless" yaml:"headless"`
	ViewportWidth     int  `json:"viewport_width,omitempty" yaml:"viewport_width,omitempty"`
	ViewportHeight    int  `json:"viewport_height,omitempty" yaml:"viewport_height,omitempty"`
	NavigationTimeout int  `json:"navigation_timeout_seconds,omitempty" yaml:"navigation_timeout_seconds,omitempty"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		ViewportWidth:     1280,
		ViewportHeight:    800,
		NavigationTimeout: 30,
	}
}

func (c Config) navigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeout) * time.Second
}

// Manager implements driver.Registry over a shared browser process.
// The browser is launched lazily on first session creation.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	browser  *rod.Browser
	sessions map[string]*session
	info     map[string]driver.SessionInfo
}

// NewManager creates a manager with the given configuration.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*session),
		info:     make(map[string]driver.SessionInfo),
	}
}

// ensureBrowserLocked connects to or launches the browser. Caller holds
// the lock.
func (m *Manager) ensureBrowserLocked(ctx context.Context) error {
	if m.browser != nil {
		return nil
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		url, err := launcher.New().Headless(m.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	m.browser = browser
	return nil
}

// Create implements driver.Registry. It opens a fresh page in the shared
// browser.
func (m *Manager) Create(ctx context.Context) (driver.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureBrowserLocked(ctx); err != nil {
		return nil, err
	}

	page, err := m.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if m.cfg.ViewportWidth > 0 && m.cfg.ViewportHeight > 0 {
		if err := (proto.EmulationSetDeviceMetricsOverride{
			Width:             m.cfg.ViewportWidth,
			Height:            m.cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		}).Call(page); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	s := &session{
		id:         uuid.New().String(),
		page:       page,
		navTimeout: m.cfg.navigationTimeout(),
	}

	now := time.Now()
	m.sessions[s.id] = s
	m.info[s.id] = driver.SessionInfo{ID: s.id, CreatedAt: now, LastUsedAt: now}

	return s, nil
}

// Get implements driver.Registry and refreshes the session's lastUsedAt.
func (m *Manager) Get(sessionID string) (driver.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}

	info := m.info[sessionID]
	info.LastUsedAt = time.Now()
	m.info[sessionID] = info

	return s, true
}

// Close implements driver.Registry.
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
		delete(m.info, sessionID)
	}
	m.mu.Unlock()

	if !ok {
		return driver.ErrSessionNotFound
	}
	if err := s.page.Close(); err != nil {
		return fmt.Errorf("failed to close page: %w", err)
	}
	return nil
}

// List implements driver.Registry.
func (m *Manager) List() []driver.SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]driver.SessionInfo, 0, len(m.info))
	for id, info := range m.info {
		if sess, ok := m.sessions[id]; ok {
			if pageInfo, err := sess.page.Info(); err == nil {
				info.URL = pageInfo.URL
			}
		}
		out = append(out, info)
	}
	return out
}

// Shutdown closes every session and the browser process.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for id, s := range m.sessions {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", id, err))
		}
		delete(m.sessions, id)
		delete(m.info, id)
	}

	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		m.browser = nil
	}

	return errors.Join(errs...)
}

// session implements driver.Session and driver.Driver over one rod page.
type session struct {
	id         string
	page       *rod.Page
	navTimeout time.Duration
}

// ID implements driver.Session.
func (s *session) ID() string { return s.id }

// Driver implements driver.Session.
func (s *session) Driver() driver.Driver { return s }

// element locates an element using the recorded strategy. CSS is the
// default; id and name are translated into attribute selectors.
func (s *session) element(ctx context.Context, selector, by string) (*rod.Element, error) {
	page := s.page.Context(ctx)

	switch strings.ToLower(by) {
	case "", "css", "css selector":
		return page.Element(selector)
	case "xpath":
		return page.ElementX(selector)
	case "id":
		return page.Element(fmt.Sprintf("[id=%q]", selector))
	case "name":
		return page.Element(fmt.Sprintf("[name=%q]", selector))
	default:
		return nil, fmt.Errorf("unsupported locator strategy: %s", by)
	}
}

// Navigate implements driver.Driver.
func (s *session) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx).Timeout(s.navTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for load: %w", err)
	}
	return nil
}

// Click implements driver.Driver.
func (s *session) Click(ctx context.Context, selector, by string) error {
	el, err := s.element(ctx, selector, by)
	if err != nil {
		return fmt.Errorf("locate %s: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Type implements driver.Driver.
func (s *session) Type(ctx context.Context, selector, by, text string) error {
	el, err := s.element(ctx, selector, by)
	if err != nil {
		return fmt.Errorf("locate %s: %w", selector, err)
	}
	return el.Input(text)
}

// RunScript implements driver.Driver. Bare statement scripts are wrapped
// into a function body; scripts that already look like functions run as-is
// with the given arguments.
func (s *session) RunScript(ctx context.Context, script string, args []interface{}) (interface{}, error) {
	js := script
	trimmed := strings.TrimSpace(script)
	if !strings.HasPrefix(trimmed, "(") && !strings.HasPrefix(trimmed, "function") && !strings.HasPrefix(trimmed, "async") {
		js = fmt.Sprintf("(...args) => { %s }", script)
	}

	res, err := s.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if res == nil || res.Value.Nil() {
		return nil, nil
	}
	return res.Value.Val(), nil
}

// Screenshot implements driver.Driver.
func (s *session) Screenshot(ctx context.Context) ([]byte, error) {
	png, err := s.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return png, nil
}

// SelectOption implements driver.Driver. Text selection uses rod's option
// matching; value and index selection run through the DOM directly so the
// change event still fires.
func (s *session) SelectOption(ctx context.Context, selector, by string, option driver.OptionSelector) error {
	el, err := s.element(ctx, selector, by)
	if err != nil {
		return fmt.Errorf("locate %s: %w", selector, err)
	}

	switch option.Strategy {
	case "text":
		return el.Select([]string{option.Text}, true, rod.SelectorTypeText)
	case "value":
		_, err := el.Eval(`(value) => {
			this.value = value;
			this.dispatchEvent(new Event('change', { bubbles: true }));
		}`, option.Value)
		return err
	case "index":
		_, err := el.Eval(`(index) => {
			this.selectedIndex = index;
			this.dispatchEvent(new Event('change', { bubbles: true }));
		}`, option.Index)
		return err
	default:
		return fmt.Errorf("unsupported option strategy: %s", option.Strategy)
	}
}

// CurrentURL implements driver.Driver.
func (s *session) CurrentURL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}
