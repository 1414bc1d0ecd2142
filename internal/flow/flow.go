// Package flow implements the login verification run: acquire a browser,
// log into the target site and assert that the post-login page rendered.
package flow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// cleanupTimeout bounds the work done after a failure or cancellation
// (screenshot, final URL lookup) so release is never starved.
const cleanupTimeout = 5 * time.Second

// Flow runs the login verification against sessions from a SessionProvider.
// A Flow holds no per-run state and may be Run repeatedly.
type Flow struct {
	cfg          Config
	provider     SessionProvider
	logger       *zap.Logger
	artifactsDir string
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithArtifactsDir enables failure screenshots written to dir.
func WithArtifactsDir(dir string) Option {
	return func(f *Flow) {
		f.artifactsDir = dir
	}
}

// New creates a Flow.
func New(cfg Config, provider SessionProvider, opts ...Option) *Flow {
	f := &Flow{
		cfg:      cfg,
		provider: provider,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Config returns the run configuration.
func (f *Flow) Config() Config {
	return f.cfg
}

// Run executes the flow once. The returned Result is never nil and its Err
// field always equals the returned error. A session acquired by Run is
// closed before Run returns, on every path. A panic during a step is
// recorded as an unexpected failure of that step and then re-raised.
func (f *Flow) Run(ctx context.Context) (res *Result, err error) {
	res = &Result{
		ID:        uuid.NewString(),
		TargetURL: f.cfg.TargetURL,
		Username:  f.cfg.Username,
		Headless:  f.cfg.Headless,
		StartedAt: time.Now(),
	}
	log := f.logger.With(zap.String("run_id", res.ID))
	log.Info("Login verification started",
		zap.String("url", f.cfg.TargetURL),
		zap.String("username", f.cfg.Username),
		zap.Bool("headless", f.cfg.Headless),
		zap.Duration("timeout", f.cfg.timeout()))

	defer func() {
		r := recover()
		if r != nil && err == nil {
			err = panicError(res, r)
		}
		res.FinishedAt = time.Now()
		res.Err = err
		if err != nil {
			log.Error("Login verification failed",
				zap.String("kind", KindOf(err)),
				zap.Duration("elapsed", res.Duration()),
				zap.Error(err))
		} else {
			log.Info("Login verification passed",
				zap.String("final_url", res.FinalURL),
				zap.Duration("elapsed", res.Duration()))
		}
		if r != nil {
			panic(r)
		}
	}()

	var session Session
	err = f.step(log, res, StepAcquire, func() error {
		s, acquireErr := f.provider.Acquire(ctx, f.cfg.Headless)
		if acquireErr != nil {
			var kind error
			if errors.Is(acquireErr, ErrDriverNotFound) {
				kind = ErrDriverNotFound
			}
			return f.fail(ctx, StepAcquire, "", kind, acquireErr)
		}
		session = s
		return nil
	})
	if err != nil {
		return res, err
	}

	defer func() {
		r := recover()
		if r != nil {
			err = panicError(res, r)
		}
		f.finish(ctx, log, res, session, err)
		if closeErr := f.step(log, res, StepRelease, session.Close); closeErr != nil && err == nil {
			err = &StepError{Step: StepRelease, Err: closeErr}
		}
		if r != nil {
			panic(r)
		}
	}()

	err = f.step(log, res, StepNavigate, func() error {
		if navErr := session.Navigate(ctx, f.cfg.TargetURL); navErr != nil {
			return f.fail(ctx, StepNavigate, "", nil, navErr)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	sel := f.cfg.Selectors
	var username, password, submit Element
	err = f.step(log, res, StepLocate, func() error {
		var locateErr error
		if username, locateErr = f.locate(ctx, session, StepLocate, sel.Username); locateErr != nil {
			return locateErr
		}
		if password, locateErr = f.locate(ctx, session, StepLocate, sel.Password); locateErr != nil {
			return locateErr
		}
		submit, locateErr = f.locate(ctx, session, StepLocate, sel.Submit)
		return locateErr
	})
	if err != nil {
		return res, err
	}

	err = f.step(log, res, StepSubmit, func() error {
		if inputErr := username.Input(f.cfg.Username); inputErr != nil {
			return f.fail(ctx, StepSubmit, sel.Username, nil, inputErr)
		}
		if inputErr := password.Input(f.cfg.Password); inputErr != nil {
			return f.fail(ctx, StepSubmit, sel.Password, nil, inputErr)
		}
		if clickErr := submit.Click(); clickErr != nil {
			return f.fail(ctx, StepSubmit, sel.Submit, nil, clickErr)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	err = f.step(log, res, StepVerifyNav, func() error {
		if waitErr := session.WaitURLContains(ctx, f.cfg.SuccessURLFragment, f.cfg.timeout()); waitErr != nil {
			return f.fail(ctx, StepVerifyNav, f.cfg.SuccessURLFragment, ErrNavigationTimeout, waitErr)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	err = f.step(log, res, StepVerifyPage, func() error {
		return f.verifyVisible(ctx, session, sel.Container)
	})
	return res, err
}

// locate waits for selector with the run timeout. Every element gets the
// same bounded wait.
func (f *Flow) locate(ctx context.Context, session Session, step, selector string) (Element, error) {
	el, err := session.WaitElement(ctx, selector, f.cfg.timeout())
	if err != nil {
		return nil, f.fail(ctx, step, selector, ErrElementNotFound, err)
	}
	return el, nil
}

func (f *Flow) verifyVisible(ctx context.Context, session Session, selector string) error {
	msg := f.cfg.assertionMessage()
	el, err := session.WaitElement(ctx, selector, f.cfg.timeout())
	if err != nil {
		return f.fail(ctx, StepVerifyPage, selector, ErrAssertionFailed, fmt.Errorf("%s: %w", msg, err))
	}
	visible, err := el.Visible()
	if err != nil {
		return f.fail(ctx, StepVerifyPage, selector, ErrAssertionFailed, fmt.Errorf("%s: %w", msg, err))
	}
	if !visible {
		return f.fail(ctx, StepVerifyPage, selector, ErrAssertionFailed, errors.New(msg))
	}
	return nil
}

// fail builds the StepError for a failed step. A cancelled caller context
// takes precedence over the step's own failure kind.
func (f *Flow) fail(ctx context.Context, step, selector string, kind, cause error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		kind = nil
		if !errors.Is(cause, ctxErr) {
			cause = errors.Join(ctxErr, cause)
		}
	}
	return &StepError{Step: step, Selector: selector, Kind: kind, Err: cause}
}

// panicError classifies a panic as an unexpected failure of the step that
// was running when it happened.
func panicError(res *Result, r any) error {
	var step string
	if n := len(res.Steps); n > 0 {
		step = res.Steps[n-1].Name
	}
	return &StepError{Step: step, Err: fmt.Errorf("panic: %v", r)}
}

func (f *Flow) step(log *zap.Logger, res *Result, name string, fn func() error) error {
	log.Debug("Step started", zap.String("step", name))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Steps = append(res.Steps, StepRecord{
				Name:     name,
				Duration: time.Since(start),
				Error:    fmt.Sprintf("panic: %v", r),
			})
			panic(r)
		}
	}()
	err := fn()
	rec := StepRecord{Name: name, Duration: time.Since(start)}
	if err != nil {
		rec.Error = err.Error()
		log.Warn("Step failed", zap.String("step", name), zap.Duration("duration", rec.Duration), zap.Error(err))
	} else {
		log.Debug("Step completed", zap.String("step", name), zap.Duration("duration", rec.Duration))
	}
	res.Steps = append(res.Steps, rec)
	return err
}

// finish records the final URL and, for failed runs, a screenshot. It runs
// on a context detached from cancellation so Ctrl+C still leaves evidence.
func (f *Flow) finish(ctx context.Context, log *zap.Logger, res *Result, session Session, runErr error) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if url, err := session.CurrentURL(cleanupCtx); err == nil {
		res.FinalURL = url
	} else {
		log.Debug("Could not read final URL", zap.Error(err))
	}

	if runErr == nil || f.artifactsDir == "" {
		return
	}
	data, err := session.Screenshot(cleanupCtx)
	if err != nil {
		log.Warn("Failure screenshot skipped", zap.Error(err))
		return
	}
	if err := os.MkdirAll(f.artifactsDir, 0o755); err != nil {
		log.Warn("Failed to create artifacts directory", zap.String("dir", f.artifactsDir), zap.Error(err))
		return
	}
	path := filepath.Join(f.artifactsDir, res.ID+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn("Failed to write failure screenshot", zap.String("path", path), zap.Error(err))
		return
	}
	res.Screenshot = path
	log.Info("Failure screenshot saved", zap.String("path", path))
}
