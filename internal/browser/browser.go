// Package browser wraps rod: one Chromium process per run and one isolated
// incognito Session per scenario.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// ErrNoBrowser is returned by Launch when no Chromium binary can be found.
var ErrNoBrowser = errors.New("no chromium binary found (set browser.bin)")

// Options configures the browser and every session opened from it.
type Options struct {
	Bin        string
	Headless   bool
	Width      int
	Height     int
	ProfileDir string // Chrome/Chromium profile directory; left in place on Close

	// ActionTimeout bounds every wait a session performs.
	ActionTimeout time.Duration

	// Record captures a frame after each session action.
	Record bool

	// Flags are extra Chromium command-line switches, without the leading dashes.
	Flags map[string]string

	Logger *zap.Logger
}

func (o *Options) defaults() {
	if o.Width == 0 {
		o.Width = 1280
	}
	if o.Height == 0 {
		o.Height = 720
	}
	if o.ActionTimeout == 0 {
		o.ActionTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Browser is a launched Chromium process.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     Options
}

// Launch starts Chromium and connects to it.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	opts.defaults()

	path := opts.Bin
	if path == "" {
		found, ok := launcher.LookPath()
		if !ok {
			return nil, ErrNoBrowser
		}
		path = found
	}

	l := launcher.New().Context(ctx).Bin(path).Headless(opts.Headless)
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}
	for name, value := range opts.Flags {
		if value == "" {
			l = l.Set(flags.Flag(name))
		} else {
			l = l.Set(flags.Flag(name), value)
		}
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chromium: %w", err)
	}

	opts.Logger.Debug("browser launched", zap.String("bin", path), zap.Bool("headless", opts.Headless))
	return &Browser{browser: b, launcher: l, opts: opts}, nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	if b.browser != nil {
		_ = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
		if b.opts.ProfileDir == "" {
			b.launcher.Cleanup()
		}
	}
}

// NewSession opens a fresh incognito context with a single page. Nothing is
// shared with other sessions: cookies, storage and dialog state are per
// session. The session is bound to ctx; cancelling ctx aborts any pending wait.
func (b *Browser) NewSession(ctx context.Context, name string) (*Session, error) {
	incognito, err := b.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	sctx, cancel := context.WithCancel(ctx)
	incognito = incognito.Context(sctx)

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		cancel()
		_ = incognito.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.opts.Width,
		Height:            b.opts.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		cancel()
		_ = incognito.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	s := newSession(sctx, cancel, incognito, page, b.opts, b.opts.Logger.Named("session").With(zap.String("scenario", name)))
	return s, nil
}
