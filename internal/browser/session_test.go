package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/bookcheck/internal/apptest"
	"github.com/v0xg/bookcheck/internal/browser"
	"github.com/v0xg/bookcheck/internal/failure"
)

func TestSession_NavigateAndInspect(t *testing.T) {
	b := apptest.LaunchBrowser(t, false)
	app := apptest.Start(t, apptest.Options{})
	s := apptest.NewSession(t, b)

	assert.Equal(t, browser.StateStart, s.State())
	require.NoError(t, s.Navigate(app.URL))
	assert.Equal(t, browser.StateNavigating, s.State())

	v, err := s.Inspect(`a[href="/login"]`)
	require.NoError(t, err)
	assert.True(t, v.Visible)
	assert.Greater(t, v.Width, 0.0)
	assert.Greater(t, v.Height, 0.0)

	url, err := s.URL()
	require.NoError(t, err)
	assert.Equal(t, app.URL+"/", url)
}

func TestSession_WaitElementTimesOut(t *testing.T) {
	b := apptest.LaunchBrowser(t, false)
	app := apptest.Start(t, apptest.Options{})
	s := apptest.NewSession(t, b)

	require.NoError(t, s.Navigate(app.URL))

	start := time.Now()
	_, err := s.WaitElement("#does-not-exist")
	require.Error(t, err)
	assert.True(t, failure.IsDeadline(err), "got %v", err)
	assert.Less(t, time.Since(start), 2*apptest.ActionTimeout)
}

func TestSession_ExpectedDialogIsAccepted(t *testing.T) {
	b := apptest.LaunchBrowser(t, false)
	app := apptest.Start(t, apptest.Options{})
	s := apptest.NewSession(t, b)

	require.NoError(t, s.Navigate(app.URL+"/login"))
	require.NoError(t, s.Fill(`input[name=email]`, ""))
	assert.Equal(t, browser.StateFormFilled, s.State())

	exp := s.ExpectDialog()
	require.NoError(t, s.Submit(`input[type="submit"]`))
	assert.Equal(t, browser.StateSubmitted, s.State())

	d, err := exp.Wait()
	require.NoError(t, err)
	assert.Equal(t, "alert", d.Type)
	assert.Equal(t, "All fields are required!", d.Message)

	require.NoError(t, exp.Accept())
	assert.ErrorIs(t, exp.Accept(), browser.ErrDialogHandled)

	url, err := s.URL()
	require.NoError(t, err)
	assert.Equal(t, app.URL+"/login", url)
	assert.Nil(t, s.UnexpectedDialog())
}

func TestSession_ExpectationTimesOutWithoutDialog(t *testing.T) {
	b := apptest.LaunchBrowser(t, false)
	app := apptest.Start(t, apptest.Options{})
	s := apptest.NewSession(t, b)

	require.NoError(t, s.Navigate(app.URL))

	exp := s.ExpectDialog()
	_, err := exp.Wait()
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The result is cached.
	_, again := exp.Wait()
	assert.Equal(t, err, again)
}

func TestSession_UnexpectedDialogIsSurfaced(t *testing.T) {
	b := apptest.LaunchBrowser(t, false)
	app := apptest.Start(t, apptest.Options{AlertOnCatalog: true})
	s := apptest.NewSession(t, b)

	_ = s.Navigate(app.URL + "/catalog")
	require.Eventually(t, func() bool { return s.UnexpectedDialog() != nil }, apptest.ActionTimeout, 20*time.Millisecond)

	d := s.UnexpectedDialog()
	assert.Equal(t, "alert", d.Type)
	assert.Equal(t, "Catalog is under maintenance", d.Message)

	_, err := s.Inspect(".dashboard h1")
	var unexpected *failure.UnexpectedDialog
	require.True(t, errors.As(err, &unexpected), "got %v", err)
	assert.Equal(t, "Catalog is under maintenance", unexpected.Message)
}

func TestSession_WaitURLFollowsRedirect(t *testing.T) {
	b := apptest.LaunchBrowser(t, false)
	app := apptest.Start(t, apptest.Options{})
	s := apptest.NewSession(t, b)

	require.NoError(t, s.Navigate(app.URL+"/login"))
	require.NoError(t, s.Fill(`input[name=email]`, apptest.SeedEmail))
	require.NoError(t, s.Fill(`input[name="password"]`, apptest.SeedPassword))
	require.NoError(t, s.Submit(`input[type="submit"]`))

	url, err := s.WaitURL(app.URL + "/catalog")
	require.NoError(t, err)
	assert.Equal(t, app.URL+"/catalog", url)

	url, err = s.WaitURL(app.URL + "/nowhere")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, app.URL+"/catalog", url)
}

func TestSession_SnapshotAndRecording(t *testing.T) {
	b := apptest.LaunchBrowser(t, true)
	app := apptest.Start(t, apptest.Options{})
	s := apptest.NewSession(t, b)

	require.NoError(t, s.Navigate(app.URL+"/register"))
	require.NoError(t, s.Fill(`input[name="confirm-pass"]`, "secret"))

	pm, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, app.URL+"/register", pm.URL)
	assert.Equal(t, "Register", pm.Title)

	names := map[string]bool{}
	for _, el := range pm.Elements {
		names[el.Name] = true
	}
	assert.True(t, names["email"])
	assert.True(t, names["confirm-pass"])
	assert.NotEmpty(t, pm.Navigation)
	assert.Contains(t, pm.Summary(), "Register")

	frames := s.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, browser.CursorText, frames[1].Cursor.State)
	assert.NotNil(t, frames[0].Image)
}

func TestSession_NilIsSafe(t *testing.T) {
	var s *browser.Session
	assert.NotPanics(t, s.Close)
	assert.Equal(t, browser.StateStart, s.State())
}
