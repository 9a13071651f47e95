package apptest

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/v0xg/bookcheck/internal/browser"
	"go.uber.org/zap"
)

// ActionTimeout keeps browser-backed tests fast when a wait is expected to fail.
const ActionTimeout = 3 * time.Second

// LaunchBrowser starts a headless Chromium for the test and closes it on
// cleanup. The test is skipped when no binary is available.
func LaunchBrowser(t testing.TB, record bool) *browser.Browser {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests skipped in short mode")
	}

	b, err := browser.Launch(context.Background(), browser.Options{
		Bin:           os.Getenv("BOOKCHECK_BROWSER_BIN"),
		Headless:      true,
		ActionTimeout: ActionTimeout,
		Record:        record,
		Logger:        zap.NewNop(),
		// Keep covers pointing at example.com from stalling the load event.
		Flags: map[string]string{"host-resolver-rules": "MAP * ~NOTFOUND , EXCLUDE 127.0.0.1"},
	})
	if errors.Is(err, browser.ErrNoBrowser) {
		t.Skip("chromium not installed")
	}
	if err != nil {
		t.Fatalf("launch browser: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

// NewSession opens a session named after the test and closes it on cleanup.
func NewSession(t testing.TB, b *browser.Browser) *browser.Session {
	t.Helper()
	s, err := b.NewSession(context.Background(), t.Name())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// Start runs an App for the duration of the test.
func Start(t testing.TB, opts Options) *App {
	t.Helper()
	app := New(opts)
	t.Cleanup(app.Close)
	return app
}
