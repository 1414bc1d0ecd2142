package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"logincheck/internal/browser"
	"logincheck/internal/flow"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file when --config is not given.
const DefaultPath = ".logincheck/config.yaml"

// Config holds all logincheck configuration.
type Config struct {
	// Site under test
	Target TargetConfig `yaml:"target"`

	// Login credentials
	Credentials CredentialsConfig `yaml:"credentials"`

	// CSS selectors for the login form and the post-login page
	Selectors SelectorsConfig `yaml:"selectors"`

	// Chrome launch settings
	Browser BrowserConfig `yaml:"browser"`

	// Run history database
	History HistoryConfig `yaml:"history"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// TargetConfig describes the login page and what success looks like.
type TargetConfig struct {
	URL                string `yaml:"url"`
	SuccessURLFragment string `yaml:"success_url_fragment"`
	Timeout            string `yaml:"timeout"` // per-wait bound, e.g. "10s"
	AssertionMessage   string `yaml:"assertion_message"`
}

// CredentialsConfig holds the login credentials.
type CredentialsConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SelectorsConfig holds the CSS selectors the flow interacts with.
type SelectorsConfig struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Submit    string `yaml:"submit"`
	Container string `yaml:"container"`
}

// BrowserConfig configures the Chrome process.
type BrowserConfig struct {
	Headless          bool     `yaml:"headless"`
	ExecutablePath    string   `yaml:"executable_path"`
	NoSandbox         bool     `yaml:"no_sandbox"`
	DisableDevShm     bool     `yaml:"disable_dev_shm"`
	StartMaximized    bool     `yaml:"start_maximized"`
	ViewportWidth     int      `yaml:"viewport_width"`
	ViewportHeight    int      `yaml:"viewport_height"`
	NavigationTimeout string   `yaml:"navigation_timeout"`
	ExtraFlags        []string `yaml:"extra_flags"`
	ArtifactsDir      string   `yaml:"artifacts_dir"` // failure screenshots; empty disables
}

// HistoryConfig configures the run history store.
type HistoryConfig struct {
	DatabasePath string `yaml:"database_path"` // empty disables history
}

// DefaultConfig returns the default configuration: the saucedemo scenario
// in a visible, hardened Chrome window.
func DefaultConfig() *Config {
	sel := flow.DefaultSelectors()
	bc := browser.DefaultConfig()

	return &Config{
		Target: TargetConfig{
			URL:                flow.DefaultTargetURL,
			SuccessURLFragment: flow.DefaultSuccessURLFragment,
			Timeout:            flow.DefaultTimeout.String(),
			AssertionMessage:   flow.DefaultAssertionMessage,
		},

		Credentials: CredentialsConfig{
			Username: flow.DefaultUsername,
			Password: flow.DefaultPassword,
		},

		Selectors: SelectorsConfig{
			Username:  sel.Username,
			Password:  sel.Password,
			Submit:    sel.Submit,
			Container: sel.Container,
		},

		Browser: BrowserConfig{
			Headless:          false,
			NoSandbox:         bc.NoSandbox,
			DisableDevShm:     bc.DisableDevShm,
			StartMaximized:    bc.StartMaximized,
			ViewportWidth:     bc.ViewportWidth,
			ViewportHeight:    bc.ViewportHeight,
			NavigationTimeout: bc.NavigationTimeout().String(),
			ArtifactsDir:      ".logincheck/artifacts",
		},

		History: HistoryConfig{
			DatabasePath: ".logincheck/history.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Credentials live in this file.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. Unparseable
// boolean values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LOGINCHECK_URL"); v != "" {
		c.Target.URL = v
	}
	if v := os.Getenv("LOGINCHECK_USERNAME"); v != "" {
		c.Credentials.Username = v
	}
	if v := os.Getenv("LOGINCHECK_PASSWORD"); v != "" {
		c.Credentials.Password = v
	}
	if v := os.Getenv("LOGINCHECK_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("LOGINCHECK_TIMEOUT"); v != "" {
		c.Target.Timeout = v
	}
	if v := os.Getenv("LOGINCHECK_CHROME_BIN"); v != "" {
		c.Browser.ExecutablePath = v
	}
	if v := os.Getenv("LOGINCHECK_HISTORY_DB"); v != "" {
		c.History.DatabasePath = v
	}
}

// GetTimeout returns the per-wait timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Target.Timeout)
	if err != nil || d <= 0 {
		return flow.DefaultTimeout
	}
	return d
}

// GetNavigationTimeout returns the page load timeout as a duration.
func (c *Config) GetNavigationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Browser.NavigationTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Target.URL)
	if err != nil {
		return fmt.Errorf("invalid target url %q: %w", c.Target.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid target url %q: scheme must be http or https", c.Target.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid target url %q: missing host", c.Target.URL)
	}

	if strings.TrimSpace(c.Target.SuccessURLFragment) == "" {
		return fmt.Errorf("target success_url_fragment is empty")
	}

	if c.Credentials.Username == "" || c.Credentials.Password == "" {
		return fmt.Errorf("credentials not configured (set credentials.username/password or LOGINCHECK_USERNAME/LOGINCHECK_PASSWORD)")
	}

	selectors := map[string]string{
		"username":  c.Selectors.Username,
		"password":  c.Selectors.Password,
		"submit":    c.Selectors.Submit,
		"container": c.Selectors.Container,
	}
	for name, sel := range selectors {
		if sel == "" {
			return fmt.Errorf("selector %q is empty", name)
		}
	}

	if c.Target.Timeout != "" {
		d, err := time.ParseDuration(c.Target.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", c.Target.Timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid timeout %q: must be positive", c.Target.Timeout)
		}
	}

	return nil
}

// FlowConfig projects the configuration onto the flow package.
func (c *Config) FlowConfig() flow.Config {
	return flow.Config{
		TargetURL:          c.Target.URL,
		Username:           c.Credentials.Username,
		Password:           c.Credentials.Password,
		Headless:           c.Browser.Headless,
		Timeout:            c.GetTimeout(),
		SuccessURLFragment: c.Target.SuccessURLFragment,
		Selectors: flow.Selectors{
			Username:  c.Selectors.Username,
			Password:  c.Selectors.Password,
			Submit:    c.Selectors.Submit,
			Container: c.Selectors.Container,
		},
		AssertionMessage: c.Target.AssertionMessage,
	}
}

// BrowserConfig projects the configuration onto the browser package.
func (c *Config) BrowserConfig() browser.Config {
	return browser.Config{
		ExecutablePath:      c.Browser.ExecutablePath,
		NoSandbox:           c.Browser.NoSandbox,
		DisableDevShm:       c.Browser.DisableDevShm,
		StartMaximized:      c.Browser.StartMaximized,
		ViewportWidth:       c.Browser.ViewportWidth,
		ViewportHeight:      c.Browser.ViewportHeight,
		NavigationTimeoutMs: int(c.GetNavigationTimeout() / time.Millisecond),
		ExtraFlags:          c.Browser.ExtraFlags,
	}
}
