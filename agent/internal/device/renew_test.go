package device

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"patchpilot/agent/internal/state"
	jwtutil "patchpilot/backend/app/jwt"
	"patchpilot/backend/config"
	"patchpilot/backend/initialize"
	"patchpilot/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentKeepsPollingAfterTokenExpiry(t *testing.T) {
	cfg := config.Config{
		DB:    config.DB{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "renew.db")},
		Admin: config.Admin{Username: "admin", Password: "pw"},
		Settings: config.Settings{
			AutoApproveDevices:      true,
			SweepIntervalSeconds:    1,
			DefaultActionTTLSeconds: 3600,
			MaxActionTTLSeconds:     7200,
			ActionPollingEnabled:    true,
			RequireDeviceToken:      true,
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

	client := network.NewClient(srv.URL, 5*time.Second)
	client.Token = state.GetToken
	dir := t.TempDir()
	e := &Enroller{
		Client:    client,
		IDPath:    filepath.Join(dir, "device_id"),
		TokenPath: filepath.Join(dir, "device_token"),
		Report:    func(id string) network.DeviceReport { return network.DeviceReport{DeviceID: id} },
		Retry:     time.Millisecond,
		Interval:  time.Millisecond,
	}
	state.SetToken("")
	ctx := context.Background()
	st, err := e.Register(ctx)
	require.NoError(t, err)
	require.True(t, st.Adopted)

	expired, err := (&jwtutil.Signer{Secret: []byte("jwt"), Issuer: "patchpilot", ExpMin: -1}).SignDevice(st.DeviceID)
	require.NoError(t, err)
	state.SetToken(expired)
	_, err = client.PollCommands(ctx, st.DeviceID, 2*time.Second)
	require.True(t, network.IsStatus(err, http.StatusUnauthorized))

	_, err = e.Heartbeat(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, expired, state.GetToken())
	cmds, err := client.PollCommands(ctx, st.DeviceID, 2*time.Second)
	require.NoError(t, err)
	assert.Empty(t, cmds)

	// a restart with only an expired token on disk re-registers cleanly
	require.NoError(t, SaveToken(e.TokenPath, expired))
	state.SetToken("")
	again, err := e.Register(ctx)
	require.NoError(t, err)
	assert.Equal(t, st.DeviceID, again.DeviceID)
	_, err = client.PollCommands(ctx, st.DeviceID, 2*time.Second)
	require.NoError(t, err)
}
