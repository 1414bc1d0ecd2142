// Package browser provisions Chrome sessions over the DevTools protocol for
// the login verification flow.
package browser

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"logincheck/internal/flow"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Provisioner launches a fresh Chrome process per session.
type Provisioner struct {
	cfg      Config
	logger   *zap.Logger
	lookPath func() (string, bool)
}

// NewProvisioner creates a provisioner. A nil logger discards output.
func NewProvisioner(cfg Config, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{
		cfg:      cfg,
		logger:   logger,
		lookPath: launcher.LookPath,
	}
}

// ResolveExecutable returns the Chrome binary to launch. An explicitly
// configured path must exist; otherwise the launcher lookup is consulted.
// Either miss is reported as flow.ErrDriverNotFound, before anything starts.
func (p *Provisioner) ResolveExecutable() (string, error) {
	if p.cfg.ExecutablePath != "" {
		info, err := os.Stat(p.cfg.ExecutablePath)
		if err != nil {
			return "", fmt.Errorf("%w: %s", flow.ErrDriverNotFound, p.cfg.ExecutablePath)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%w: %s is a directory", flow.ErrDriverNotFound, p.cfg.ExecutablePath)
		}
		return p.cfg.ExecutablePath, nil
	}
	if bin, ok := p.lookPath(); ok {
		return bin, nil
	}
	return "", fmt.Errorf("%w: no Chrome or Chromium installation found", flow.ErrDriverNotFound)
}

// Launcher builds the launcher for bin with the hardening flags applied.
func (p *Provisioner) Launcher(bin string, headless bool) *launcher.Launcher {
	l := launcher.New().Bin(bin).HeadlessNew(headless)
	if p.cfg.NoSandbox {
		l = l.NoSandbox(true)
	}
	if p.cfg.DisableDevShm {
		l = l.Set(flags.Flag("disable-dev-shm-usage"))
	} else {
		l = l.Delete(flags.Flag("disable-dev-shm-usage"))
	}
	if p.cfg.StartMaximized {
		l = l.Set(flags.Flag("start-maximized"))
	}
	if headless {
		size := strconv.Itoa(p.cfg.GetViewportWidth()) + "," + strconv.Itoa(p.cfg.GetViewportHeight())
		l = l.Set(flags.Flag("window-size"), size)
	}
	for _, rawFlag := range p.cfg.ExtraFlags {
		flagStr := strings.TrimLeft(rawFlag, "-")
		name, val, hasVal := strings.Cut(flagStr, "=")
		if name == "" {
			continue
		}
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

// Acquire launches Chrome, connects to it and opens a blank page.
// On any failure the browser process, if one started, is killed before returning.
func (p *Provisioner) Acquire(ctx context.Context, headless bool) (flow.Session, error) {
	bin, err := p.ResolveExecutable()
	if err != nil {
		return nil, err
	}

	l := p.Launcher(bin, headless).Context(ctx)
	p.logger.Debug("Launching browser", zap.String("bin", bin), zap.Strings("args", l.FormatArgs()))

	controlURL, err := l.Launch()
	if err != nil {
		abandonLaunch(l)
		return nil, fmt.Errorf("launch chrome %s: %w", bin, err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("create page: %w", err)
	}

	if headless {
		if err := (proto.EmulationSetDeviceMetricsOverride{
			Width:             p.cfg.GetViewportWidth(),
			Height:            p.cfg.GetViewportHeight(),
			DeviceScaleFactor: 1.0,
			Mobile:            false,
		}).Call(page); err != nil {
			p.logger.Warn("Failed to set viewport", zap.Error(err))
		}
	}

	p.logger.Info("Browser session acquired",
		zap.String("bin", bin),
		zap.Bool("headless", headless),
		zap.Int("pid", l.PID()))

	return newSession(l, b, page, p.cfg.NavigationTimeout(), p.logger), nil
}

// abandonLaunch releases what a failed Launch left behind. Cleanup is not
// usable here: it waits for the process exit signal, which is never sent
// when the process could not be started.
func abandonLaunch(l *launcher.Launcher) {
	if l.PID() != 0 {
		l.Kill()
	}
	if dir := l.Get(flags.UserDataDir); dir != "" {
		_ = os.RemoveAll(dir)
	}
}
