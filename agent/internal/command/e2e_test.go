//go:build unix

package command

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"patchpilot/backend/app/dto"
	"patchpilot/backend/config"
	"patchpilot/backend/initialize"
	"patchpilot/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndToEndEchoCompletesTarget(t *testing.T) {
	cfg := config.Config{
		DB:            config.DB{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "e2e.db")},
		CommandSecret: string(secret),
		Admin:         config.Admin{Username: "admin", Password: "pw"},
		Settings: config.Settings{
			AutoApproveDevices:      true,
			SweepIntervalSeconds:    1,
			DefaultActionTTLSeconds: 3600,
			MaxActionTTLSeconds:     7200,
			ActionPollingEnabled:    true,
			LongPollSeconds:         1,
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
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st, err := client.Register(ctx, network.DeviceReport{SystemInfo: network.SystemInfo{Hostname: "d"}})
	require.NoError(t, err)
	require.True(t, st.Adopted)
	client.Token = func() string { return st.Token }

	ttl := int64(60)
	action, err := app.Actions.Submit(dto.SubmitActionRequest{Command: "echo hi", TargetDeviceID: st.DeviceID, TTLSeconds: &ttl}, "admin")
	require.NoError(t, err)

	policy := &Policy{Secret: secret, ScriptsDir: t.TempDir(), AllowShell: true}
	d := NewDispatcher(client, policy, NewEngine(NewLauncher(), 2), func() string { return st.DeviceID })
	d.LongPoll = 3 * time.Second
	d.Interval = 10 * time.Millisecond
	d.Backoff = 10 * time.Millisecond
	go d.Run(ctx)
	defer func() {
		d.Stop()
		cancel()
		d.Wait()
	}()

	var target dto.TargetResponse
	require.Eventually(t, func() bool {
		targets, err := app.Actions.Targets(action.ID)
		if err != nil || len(targets) != 1 {
			return false
		}
		target = targets[0]
		return target.Status != "pending"
	}, 15*time.Second, 20*time.Millisecond)

	assert.Equal(t, "completed", target.Status)
	assert.Equal(t, "ok", target.ResultStatus)
	require.NotNil(t, target.ExitCode)
	assert.Equal(t, 0, *target.ExitCode)
	assert.Equal(t, "hi\n", target.Stdout)
}
