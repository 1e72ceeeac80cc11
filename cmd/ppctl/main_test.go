package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"patchpilot/backend/config"
	"patchpilot/backend/initialize"
	"patchpilot/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) string {
	t.Helper()
	cfg := config.Config{
		DB:            config.DB{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "ppctl.db")},
		CommandSecret: "secret",
		Admin:         config.Admin{Username: "admin", Password: "pw"},
		Settings: config.Settings{
			AutoApproveDevices:      false,
			SweepIntervalSeconds:    30,
			DefaultActionTTLSeconds: 3600,
			MaxActionTTLSeconds:     7200,
			ActionPollingEnabled:    true,
		},
	}
	cfg.JWT.Secret = "jwt"
	cfg.JWT.Issuer = "patchpilot"
	cfg.JWT.ExpMin = 5
	app, err := initialize.BuildWith(cfg)
	require.NoError(t, err)
	srv := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		srv.Close()
		_ = app.Close()
	})
	return srv.URL
}

func run(t *testing.T, server, tokenFile string, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--server", server, "--token-file", tokenFile}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCLIFlow(t *testing.T) {
	server := newServer(t)
	tokenFile := filepath.Join(t.TempDir(), "token")

	_, err := run(t, server, tokenFile, "devices", "list")
	require.Error(t, err)

	_, err = run(t, server, tokenFile, "login", "-u", "admin", "-p", "pw")
	require.NoError(t, err)
	assert.FileExists(t, tokenFile)

	agent := network.NewClient(server, 5*time.Second)
	st, err := agent.Register(context.Background(), network.DeviceReport{SystemInfo: network.SystemInfo{Hostname: "web-1"}})
	require.NoError(t, err)
	require.False(t, st.Adopted)

	out, err := run(t, server, tokenFile, "devices", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "web-1")
	assert.Contains(t, out, "pending")

	_, err = run(t, server, tokenFile, "devices", "approve", st.DeviceID)
	require.NoError(t, err)

	out, err = run(t, server, tokenFile, "--json", "actions", "submit", "uptime", "-d", st.DeviceID, "--ttl", "600")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "queued"`)

	out, err = run(t, server, tokenFile, "actions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "uptime")

	out, err = run(t, server, tokenFile, "ttl", "get", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "action 1")

	out, err = run(t, server, tokenFile, "actions", "targets", "1")
	require.NoError(t, err)
	assert.Contains(t, out, st.DeviceID)

	_, err = run(t, server, tokenFile, "actions", "cancel", "1")
	require.NoError(t, err)

	out, err = run(t, server, tokenFile, "settings", "set", "sweep_interval_seconds=15")
	require.NoError(t, err)
	assert.Contains(t, out, "15")

	out, err = run(t, server, tokenFile, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "admin")
}

func TestParseAssignments(t *testing.T) {
	patch, err := parseAssignments([]string{"action_polling_enabled=false", "long_poll_seconds=20", "x=y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"action_polling_enabled": false, "long_poll_seconds": int64(20), "x": "y"}, patch)

	_, err = parseAssignments([]string{"novalue"})
	assert.Error(t, err)
}
