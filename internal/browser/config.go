package browser

import "time"

// Config holds browser provisioning configuration.
type Config struct {
	// ExecutablePath pins the Chrome binary. When empty the launcher's own
	// lookup is used.
	ExecutablePath      string   `json:"executable_path"`
	NoSandbox           bool     `json:"no_sandbox"`
	DisableDevShm       bool     `json:"disable_dev_shm"`
	StartMaximized      bool     `json:"start_maximized"`
	ViewportWidth       int      `json:"viewport_width"`
	ViewportHeight      int      `json:"viewport_height"`
	NavigationTimeoutMs int      `json:"navigation_timeout_ms"`
	ExtraFlags          []string `json:"extra_flags"`
}

// DefaultConfig returns the hardened defaults used for CI and containers.
func DefaultConfig() Config {
	return Config{
		NoSandbox:           true,
		DisableDevShm:       true,
		StartMaximized:      true,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}
