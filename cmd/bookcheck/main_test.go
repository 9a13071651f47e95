package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/bookcheck/internal/apptest"
	"github.com/v0xg/bookcheck/internal/preflight"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestList(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "home\n  Verify \"All Books\" link is visible\n")
	assert.Contains(t, out, "\n24 scenarios\n")

	out, err = execute(t, "list", "--group", "register", "--run", "different")
	require.NoError(t, err)
	assert.Equal(t, "register\n  Submit register form with different passwords\n1 scenarios\n", out)
}

func TestList_BadSelection(t *testing.T) {
	_, err := execute(t, "list", "--group", "admin")
	assert.ErrorContains(t, err, `unknown group "admin"`)

	_, err = execute(t, "list", "--run", "(")
	assert.ErrorContains(t, err, "invalid --run pattern")
}

func TestConfigValidationFailsBeforeRunning(t *testing.T) {
	_, err := execute(t, "list", "--base-url", "ftp://example.com")
	assert.ErrorContains(t, err, "base_url must be http or https")

	_, err = execute(t, "run", "--parallel=-1")
	assert.ErrorContains(t, err, "parallel must be a positive integer")
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("BOOKCHECK_PARALLEL", "0")
	_, err := execute(t, "list")
	assert.ErrorContains(t, err, "parallel must be a positive integer")

	// A flag beats the environment.
	_, err = execute(t, "run", "--parallel", "2", "--skip-preflight", "--run", "nothing matches")
	assert.ErrorContains(t, err, "no scenarios selected")
}

func TestProbe(t *testing.T) {
	app := apptest.Start(t, apptest.Options{})

	for _, base := range []string{app.URL, app.URL + "/"} {
		out, err := execute(t, "probe", "--base-url", base)
		require.NoError(t, err, base)
		assert.Contains(t, out, "→ Probing "+app.URL+"... done (HTTP 200", base)
	}
}

func TestRun_StopsWhenPreflightFails(t *testing.T) {
	out, err := execute(t, "run", "--base-url", "http://127.0.0.1:1", "--group", "home")
	assert.ErrorIs(t, err, preflight.ErrUnreachable)
	assert.Contains(t, out, "failed")
	assert.NotContains(t, out, "Launching browser")
}
