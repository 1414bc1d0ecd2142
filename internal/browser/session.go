package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"logincheck/internal/flow"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Session is a single Chrome process with one page, owned by one flow run.
type Session struct {
	launcher   *launcher.Launcher
	browser    *rod.Browser
	page       *rod.Page
	navTimeout time.Duration
	logger     *zap.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

var _ flow.Session = (*Session)(nil)

func newSession(l *launcher.Launcher, b *rod.Browser, page *rod.Page, navTimeout time.Duration, logger *zap.Logger) *Session {
	return &Session{
		launcher:   l,
		browser:    b,
		page:       page,
		navTimeout: navTimeout,
		logger:     logger,
	}
}

var errSessionClosed = errors.New("browser session is closed")

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.Closed() {
		return errSessionClosed
	}
	navCtx, cancel := context.WithTimeout(ctx, s.navTimeout)
	defer cancel()

	page := s.page.Context(navCtx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

// WaitElement polls for selector until present or timeout elapses.
func (s *Session) WaitElement(ctx context.Context, selector string, timeout time.Duration) (flow.Element, error) {
	if s.Closed() {
		return nil, errSessionClosed
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := s.page.Context(waitCtx).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("wait for %q: %w", selector, err)
	}
	// Rebind to the caller's context so later actions outlive the wait.
	return &element{el: el.Context(ctx)}, nil
}

// WaitURLContains polls location.href until it contains fragment.
func (s *Session) WaitURLContains(ctx context.Context, fragment string, timeout time.Duration) error {
	if s.Closed() {
		return errSessionClosed
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.page.Context(waitCtx).Wait(rod.Eval(`(fragment) => window.location.href.includes(fragment)`, fragment))
	if err != nil {
		return fmt.Errorf("wait for url containing %q: %w", fragment, err)
	}
	return nil
}

// CurrentURL returns the page URL as reported by the target.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	if s.Closed() {
		return "", errSessionClosed
	}
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// Screenshot captures the full page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	if s.Closed() {
		return nil, errSessionClosed
	}
	return s.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Close closes the page and browser, then kills the process and removes
// its temporary profile. Only the first call does any work. CDP close
// errors are logged, not returned: the process kill is what terminates
// the session.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.page != nil {
			if err := s.page.Context(context.Background()).Close(); err != nil {
				s.logger.Debug("Page close failed", zap.Error(err))
			}
		}
		if s.browser != nil {
			if err := s.browser.Context(context.Background()).Close(); err != nil {
				s.logger.Debug("Browser close failed", zap.Error(err))
			}
		}
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.logger.Info("Browser session released")
	})
	return nil
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

type element struct {
	el *rod.Element
}

func (e *element) Input(text string) error {
	return e.el.Input(text)
}

func (e *element) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *element) Visible() (bool, error) {
	return e.el.Visible()
}
