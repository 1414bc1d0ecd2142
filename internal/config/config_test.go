package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"logincheck/internal/flow"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// UNIFIED CONFIG TESTS
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LOGINCHECK_URL", "LOGINCHECK_USERNAME", "LOGINCHECK_PASSWORD",
		"LOGINCHECK_HEADLESS", "LOGINCHECK_TIMEOUT", "LOGINCHECK_CHROME_BIN",
		"LOGINCHECK_HISTORY_DB",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Target.URL != "https://www.saucedemo.com/v1/" {
		t.Errorf("expected saucedemo URL, got %s", cfg.Target.URL)
	}
	if cfg.Credentials.Username != "standard_user" {
		t.Errorf("expected Username=standard_user, got %s", cfg.Credentials.Username)
	}
	if cfg.Browser.Headless {
		t.Error("expected a visible browser by default")
	}
	if cfg.GetTimeout() != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", cfg.GetTimeout())
	}
	require.NoError(t, cfg.Validate())
}

func TestDefaultConfig_FlowProjection(t *testing.T) {
	got := DefaultConfig().FlowConfig()
	if diff := cmp.Diff(flow.DefaultConfig(), got); diff != "" {
		t.Errorf("FlowConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_BrowserProjection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Browser.ExecutablePath = "/opt/chrome"
	cfg.Browser.NavigationTimeout = "45s"
	cfg.Browser.ExtraFlags = []string{"--lang=en-US"}

	bc := cfg.BrowserConfig()
	assert.Equal(t, "/opt/chrome", bc.ExecutablePath)
	assert.Equal(t, 45000, bc.NavigationTimeoutMs)
	assert.Equal(t, 45*time.Second, bc.NavigationTimeout())
	assert.True(t, bc.NoSandbox)
	assert.True(t, bc.DisableDevShm)
	assert.Equal(t, []string{"--lang=en-US"}, bc.ExtraFlags)
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Target.URL = "http://localhost:8080/login"
	cfg.Credentials.Username = "alice"
	cfg.Browser.Headless = true
	cfg.Logging.Categories = map[string]bool{"store": false}

	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)

	if diff := cmp.Diff(cfg, loaded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("credentials:\n  password: hunter2\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Credentials.Password)
	assert.Equal(t, "standard_user", cfg.Credentials.Username)
	assert.Equal(t, "#login-button", cfg.Selectors.Submit)
}

func TestLoad_ExplicitEmptySuccessFragmentFailsValidation(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target:\n  success_url_fragment: \"\"\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Target.SuccessURLFragment)
	assert.ErrorContains(t, cfg.Validate(), "success_url_fragment is empty")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target: [unclosed\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad scheme", func(c *Config) { c.Target.URL = "ftp://example.com" }, "scheme must be http or https"},
		{"no host", func(c *Config) { c.Target.URL = "https:///login" }, "missing host"},
		{"empty username", func(c *Config) { c.Credentials.Username = "" }, "credentials not configured"},
		{"empty password", func(c *Config) { c.Credentials.Password = "" }, "credentials not configured"},
		{"empty success fragment", func(c *Config) { c.Target.SuccessURLFragment = "" }, "success_url_fragment is empty"},
		{"blank success fragment", func(c *Config) { c.Target.SuccessURLFragment = "  " }, "success_url_fragment is empty"},
		{"empty container selector", func(c *Config) { c.Selectors.Container = "" }, `selector "container" is empty`},
		{"unparseable timeout", func(c *Config) { c.Target.Timeout = "soon" }, "invalid timeout"},
		{"negative timeout", func(c *Config) { c.Target.Timeout = "-1s" }, "must be positive"},
		{"empty timeout falls back", func(c *Config) { c.Target.Timeout = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_GetTimeoutFallback(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 10*time.Second, cfg.GetTimeout())

	cfg.Target.Timeout = "0s"
	assert.Equal(t, 10*time.Second, cfg.GetTimeout())

	cfg.Target.Timeout = "2500ms"
	assert.Equal(t, 2500*time.Millisecond, cfg.GetTimeout())
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	lc := LoggingConfig{}
	assert.True(t, lc.IsCategoryEnabled("flow"))

	lc.Categories = map[string]bool{"browser": false, "flow": true}
	assert.True(t, lc.IsCategoryEnabled("flow"))
	assert.False(t, lc.IsCategoryEnabled("browser"))
	assert.True(t, lc.IsCategoryEnabled("store"))
}
