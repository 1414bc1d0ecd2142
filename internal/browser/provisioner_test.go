package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"logincheck/internal/flow"

	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveExecutable(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "chrome")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	tests := []struct {
		name     string
		path     string
		lookPath func() (string, bool)
		want     string
		wantErr  bool
	}{
		{name: "configured path exists", path: bin, want: bin},
		{name: "configured path missing", path: filepath.Join(dir, "missing", "chrome"), wantErr: true},
		{name: "configured path is a directory", path: dir, wantErr: true},
		{
			name:     "lookup finds a browser",
			lookPath: func() (string, bool) { return "/usr/bin/chromium", true },
			want:     "/usr/bin/chromium",
		},
		{
			name:     "lookup finds nothing",
			lookPath: func() (string, bool) { return "", false },
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ExecutablePath = tt.path
			p := NewProvisioner(cfg, nil)
			if tt.lookPath != nil {
				p.lookPath = tt.lookPath
			} else {
				p.lookPath = func() (string, bool) {
					t.Fatal("lookup must not run when a path is configured")
					return "", false
				}
			}

			got, err := p.ResolveExecutable()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, flow.ErrDriverNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAcquire_DriverNotFoundBeforeLaunch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExecutablePath = filepath.Join(t.TempDir(), "no-such-chrome")
	p := NewProvisioner(cfg, nil)

	session, err := p.Acquire(context.Background(), true)
	require.Error(t, err)
	assert.Nil(t, session)
	assert.ErrorIs(t, err, flow.ErrDriverNotFound)
	assert.Contains(t, err.Error(), "no-such-chrome")
}

// acquireWithin fails the test when Acquire does not return within limit.
func acquireWithin(t *testing.T, p *Provisioner, limit time.Duration) (flow.Session, error) {
	t.Helper()
	type outcome struct {
		session flow.Session
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		s, err := p.Acquire(context.Background(), true)
		done <- outcome{s, err}
	}()
	select {
	case o := <-done:
		return o.session, o.err
	case <-time.After(limit):
		t.Fatalf("Acquire did not return within %s", limit)
		return nil, nil
	}
}

func TestAcquire_LaunchFailureReturnsPromptly(t *testing.T) {
	tests := []struct {
		name    string
		content string
		mode    os.FileMode
	}{
		{name: "not executable", content: "not a browser", mode: 0o644},
		{name: "exits immediately", content: "#!/bin/sh\nexit 1\n", mode: 0o755},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			bin := filepath.Join(dir, "chrome")
			require.NoError(t, os.WriteFile(bin, []byte(tt.content), tt.mode))

			cfg := DefaultConfig()
			cfg.ExecutablePath = bin
			p := NewProvisioner(cfg, nil)

			session, err := acquireWithin(t, p, 20*time.Second)
			require.Error(t, err)
			assert.Nil(t, session)
			assert.Contains(t, err.Error(), "launch chrome")
			assert.NotErrorIs(t, err, flow.ErrDriverNotFound)
		})
	}
}

func TestAbandonLaunch_RemovesUserDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profile")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	p := NewProvisioner(DefaultConfig(), nil)
	l := p.Launcher("/usr/bin/chromium", true).UserDataDir(dir)

	done := make(chan struct{})
	go func() {
		abandonLaunch(l)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("abandonLaunch blocked on a launcher that never started")
	}
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "user data dir should be removed")
}

func TestLauncher_HardeningFlags(t *testing.T) {
	p := NewProvisioner(DefaultConfig(), nil)

	l := p.Launcher("/usr/bin/chromium", true)
	assert.True(t, l.Has(flags.NoSandbox))
	assert.True(t, l.Has(flags.Flag("disable-dev-shm-usage")))
	assert.True(t, l.Has(flags.Flag("start-maximized")))
	assert.Equal(t, "new", l.Get(flags.Headless))
	assert.Equal(t, "1920,1080", l.Get(flags.Flag("window-size")))
}

func TestLauncher_HeadedMode(t *testing.T) {
	p := NewProvisioner(DefaultConfig(), nil)

	l := p.Launcher("/usr/bin/chromium", false)
	assert.False(t, l.Has(flags.Headless))
	assert.True(t, l.Has(flags.Flag("start-maximized")))
}

func TestLauncher_OptionalFlagsOff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DisableDevShm = false
	cfg.StartMaximized = false
	p := NewProvisioner(cfg, nil)

	l := p.Launcher("/usr/bin/chromium", false)
	assert.False(t, l.Has(flags.Flag("disable-dev-shm-usage")))
	assert.False(t, l.Has(flags.Flag("start-maximized")))
}

func TestLauncher_ExtraFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExtraFlags = []string{"--lang=en-US", "--mute-audio", "--"}
	p := NewProvisioner(cfg, nil)

	l := p.Launcher("/usr/bin/chromium", true)
	assert.Equal(t, "en-US", l.Get(flags.Flag("lang")))
	assert.True(t, l.Has(flags.Flag("mute-audio")))
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	assert.Equal(t, 1920, cfg.GetViewportWidth())
	assert.Equal(t, 1080, cfg.GetViewportHeight())
	assert.Equal(t, "30s", cfg.NavigationTimeout().String())

	cfg.NavigationTimeoutMs = 1500
	assert.Equal(t, "1.5s", cfg.NavigationTimeout().String())
}
