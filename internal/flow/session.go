package flow

import (
	"context"
	"time"
)

// Session is a live, exclusively owned browser handle.
type Session interface {
	// Navigate loads url and blocks until the page has loaded.
	Navigate(ctx context.Context, url string) error
	// WaitElement polls for selector until it is present or timeout elapses.
	WaitElement(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	// WaitURLContains polls the current URL until it contains fragment or timeout elapses.
	WaitURLContains(ctx context.Context, fragment string, timeout time.Duration) error
	CurrentURL(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	// Close terminates the browser. Calling it more than once is a no-op.
	Close() error
	Closed() bool
}

// Element is a located DOM node.
type Element interface {
	Input(text string) error
	Click() error
	Visible() (bool, error)
}

// SessionProvider launches browser sessions.
type SessionProvider interface {
	Acquire(ctx context.Context, headless bool) (Session, error)
}
