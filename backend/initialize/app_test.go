package initialize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"patchpilot/backend/app/dto"
	jwtutil "patchpilot/backend/app/jwt"
	"patchpilot/backend/config"
	"patchpilot/network"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAdmin    = "admin"
	testPassword = "s3cret"
	testSecret   = "command-secret"
)

func testConfig(t *testing.T) config.Config {
	cfg := config.Config{
		DB:            config.DB{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "app.db")},
		CommandSecret: testSecret,
		Admin:         config.Admin{Username: testAdmin, Password: testPassword},
		Settings: config.Settings{
			AutoApproveDevices:      true,
			SweepIntervalSeconds:    1,
			DefaultActionTTLSeconds: 3600,
			MaxActionTTLSeconds:     7200,
			ActionPollingEnabled:    true,
			LongPollSeconds:         0,
		},
	}
	cfg.JWT.Secret = "jwt-secret"
	cfg.JWT.Issuer = "patchpilot"
	cfg.JWT.ExpMin = 5
	return cfg
}

func newTestServer(t *testing.T) (*App, *httptest.Server) {
	t.Helper()
	app, err := BuildWith(testConfig(t))
	require.NoError(t, err)
	srv := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		srv.Close()
		_ = app.Close()
	})
	return app, srv
}

func call(t *testing.T, method, url, token string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func login(t *testing.T, base string) string {
	t.Helper()
	var tok dto.TokenResponse
	code := call(t, http.MethodPost, base+"/api/login", "", dto.LoginRequest{Username: testAdmin, Password: testPassword}, &tok)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

func TestLoginRejectsBadPassword(t *testing.T) {
	_, srv := newTestServer(t)
	code := call(t, http.MethodPost, srv.URL+"/api/login", "", dto.LoginRequest{Username: testAdmin, Password: "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code = call(t, http.MethodPost, srv.URL+"/api/login", "", dto.LoginRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCommandRoundTripOverHTTP(t *testing.T) {
	_, srv := newTestServer(t)
	admin := login(t, srv.URL)
	client := network.NewClient(srv.URL, 5*time.Second)
	ctx := context.Background()

	st, err := client.Register(ctx, network.DeviceReport{SystemInfo: network.SystemInfo{Hostname: "box"}})
	require.NoError(t, err)
	require.True(t, st.Adopted)
	client.Token = func() string { return st.Token }

	var sub dto.SubmitActionResponse
	code := call(t, http.MethodPost, srv.URL+"/api/actions/submit", admin,
		dto.SubmitActionRequest{Command: "echo hi", TargetDeviceID: st.DeviceID}, &sub)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "queued", sub.Status)
	assert.Equal(t, 1, sub.Targets)

	cmds, err := client.PollCommands(ctx, st.DeviceID, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.True(t, network.VerifySignature(cmds[0], []byte(testSecret)))

	zero := 0
	err = client.PostResult(ctx, st.DeviceID, network.CommandResult{ID: cmds[0].ID, Status: network.StatusOK, ExitCode: &zero, Stdout: "hi\n"})
	require.NoError(t, err)

	err = client.PostResult(ctx, st.DeviceID, network.CommandResult{ID: cmds[0].ID, Status: network.StatusOK})
	require.Error(t, err)
	assert.True(t, network.IsStatus(err, http.StatusConflict))

	var targets []dto.TargetResponse
	code = call(t, http.MethodGet, fmt.Sprintf("%s/api/actions/%d/targets", srv.URL, sub.ActionID), admin, nil, &targets)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, targets, 1)
	assert.Equal(t, "completed", targets[0].Status)
	assert.Equal(t, "hi\n", targets[0].Stdout)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	_, srv := newTestServer(t)
	client := network.NewClient(srv.URL, 5*time.Second)
	st, err := client.Register(context.Background(), network.DeviceReport{})
	require.NoError(t, err)

	code := call(t, http.MethodPost, srv.URL+"/api/actions/submit", "", dto.SubmitActionRequest{Command: "x", TargetDeviceID: st.DeviceID}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code = call(t, http.MethodPost, srv.URL+"/api/actions/submit", st.Token, dto.SubmitActionRequest{Command: "x", TargetDeviceID: st.DeviceID}, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code = call(t, http.MethodGet, srv.URL+"/api/devices", st.Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestTTLAndCancelEndpoints(t *testing.T) {
	app, srv := newTestServer(t)
	admin := login(t, srv.URL)
	client := network.NewClient(srv.URL, 5*time.Second)
	st, err := client.Register(context.Background(), network.DeviceReport{})
	require.NoError(t, err)

	ttl := int64(60)
	var sub dto.SubmitActionResponse
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, srv.URL+"/api/actions/submit", admin,
		dto.SubmitActionRequest{Command: "sleep 1", TargetDeviceID: st.DeviceID, TTLSeconds: &ttl}, &sub))
	base := fmt.Sprintf("%s/api/actions/%d", srv.URL, sub.ActionID)

	var info dto.TTLResponse
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, base+"/ttl", admin, nil, &info))
	assert.InDelta(t, 60, info.RemainingSeconds, 2)

	require.Equal(t, http.StatusOK, call(t, http.MethodPost, base+"/ttl", admin, dto.TTLRequest{TTLSeconds: 1_000_000}, &info))
	assert.InDelta(t, 7200, info.RemainingSeconds, 2)

	assert.Equal(t, http.StatusBadRequest, call(t, http.MethodPost, base+"/ttl", admin, dto.TTLRequest{TTLSeconds: 0}, nil))
	assert.Equal(t, http.StatusNotFound, call(t, http.MethodGet, srv.URL+"/api/actions/999/ttl", admin, nil, nil))

	require.Equal(t, http.StatusOK, call(t, http.MethodPost, base+"/cancel", admin, nil, nil))
	app.Sweeper.Tick()
	assert.Equal(t, http.StatusConflict, call(t, http.MethodPost, base+"/ttl", admin, dto.TTLRequest{TTLSeconds: 10}, nil))
	assert.Equal(t, http.StatusConflict, call(t, http.MethodPost, base+"/cancel", admin, nil, nil))

	var history []dto.LogResponse
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, srv.URL+"/api/history", admin, nil, &history))
	events := map[string]bool{}
	for _, h := range history {
		events[h.Event] = true
	}
	assert.True(t, events["action.submit"])
	assert.True(t, events["action.ttl"])
	assert.True(t, events["action.cancel"])
	assert.True(t, events["action.expired"])
}

func TestRequireDeviceTokenSetting(t *testing.T) {
	_, srv := newTestServer(t)
	admin := login(t, srv.URL)
	client := network.NewClient(srv.URL, 5*time.Second)
	ctx := context.Background()
	a, err := client.Register(ctx, network.DeviceReport{})
	require.NoError(t, err)
	b, err := client.Register(ctx, network.DeviceReport{})
	require.NoError(t, err)

	var applied config.Settings
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, srv.URL+"/api/settings", admin,
		map[string]any{"require_device_token": true}, &applied))
	assert.True(t, applied.RequireDeviceToken)
	assert.Equal(t, 3600, applied.DefaultActionTTLSeconds)

	_, err = client.PollCommands(ctx, a.DeviceID, 5*time.Second)
	assert.True(t, network.IsStatus(err, http.StatusUnauthorized))

	client.Token = func() string { return b.Token }
	_, err = client.PollCommands(ctx, a.DeviceID, 5*time.Second)
	assert.True(t, network.IsStatus(err, http.StatusForbidden))

	client.Token = func() string { return a.Token }
	cmds, err := client.PollCommands(ctx, a.DeviceID, 5*time.Second)
	require.NoError(t, err)
	assert.Empty(t, cmds)
}

func TestDeviceApprovalFlow(t *testing.T) {
	app, srv := newTestServer(t)
	s := app.Settings.Snapshot()
	s.AutoApproveDevices = false
	app.Settings.Apply(s)
	admin := login(t, srv.URL)
	client := network.NewClient(srv.URL, 5*time.Second)
	ctx := context.Background()

	st, err := client.Register(ctx, network.DeviceReport{})
	require.NoError(t, err)
	assert.False(t, st.Adopted)
	_, err = client.PollCommands(ctx, st.DeviceID, 5*time.Second)
	assert.True(t, network.IsStatus(err, http.StatusForbidden))

	require.Equal(t, http.StatusOK, call(t, http.MethodPost, srv.URL+"/api/devices/"+st.DeviceID+"/approve", admin, nil, nil))
	hb, err := client.Heartbeat(ctx, network.DeviceReport{DeviceID: st.DeviceID})
	require.NoError(t, err)
	assert.True(t, hb.Adopted)

	var devices []dto.DeviceResponse
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, srv.URL+"/api/devices", admin, nil, &devices))
	require.Len(t, devices, 1)
	assert.True(t, devices[0].Approved)
}

func TestDeviceDetailAndUpdate(t *testing.T) {
	_, srv := newTestServer(t)
	admin := login(t, srv.URL)
	client := network.NewClient(srv.URL, 5*time.Second)
	ctx := context.Background()
	st, err := client.Register(ctx, network.DeviceReport{SystemInfo: network.SystemInfo{Hostname: "before"}})
	require.NoError(t, err)
	client.Token = func() string { return st.Token }

	up, err := client.UpdateDevice(ctx, network.DeviceReport{DeviceID: st.DeviceID, AgentVersion: "1.2.3",
		SystemInfo: network.SystemInfo{Hostname: "after", CPUCount: 8}})
	require.NoError(t, err)
	assert.NotEmpty(t, up.Token)

	var d dto.DeviceResponse
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, srv.URL+"/api/devices/"+st.DeviceID, admin, nil, &d))
	assert.Equal(t, st.DeviceID, d.DeviceID)
	assert.Equal(t, "after", d.Hostname)
	assert.Equal(t, "1.2.3", d.AgentVersion)
	assert.Equal(t, 8, d.CPUCount)
	assert.NotNil(t, d.LastCheckin)

	assert.Equal(t, http.StatusNotFound, call(t, http.MethodGet, srv.URL+"/api/devices/"+uuid.NewString(), admin, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, http.MethodGet, srv.URL+"/api/devices/"+st.DeviceID, "", nil, nil))
	assert.Equal(t, http.StatusForbidden, call(t, http.MethodGet, srv.URL+"/api/devices/"+st.DeviceID, st.Token, nil, nil))
}

func TestExpiredDeviceTokenIsRenewed(t *testing.T) {
	app, srv := newTestServer(t)
	client := network.NewClient(srv.URL, 5*time.Second)
	ctx := context.Background()
	st, err := client.Register(ctx, network.DeviceReport{})
	require.NoError(t, err)

	cfg := app.Cfg.JWT
	expired, err := (&jwtutil.Signer{Secret: []byte(cfg.Secret), Issuer: cfg.Issuer, ExpMin: -1}).SignDevice(st.DeviceID)
	require.NoError(t, err)
	token := expired
	client.Token = func() string { return token }

	_, err = client.PollCommands(ctx, st.DeviceID, 5*time.Second)
	require.True(t, network.IsStatus(err, http.StatusUnauthorized))

	hb, err := client.Heartbeat(ctx, network.DeviceReport{DeviceID: st.DeviceID})
	require.NoError(t, err)
	require.NotEmpty(t, hb.Token)
	token = hb.Token

	cmds, err := client.PollCommands(ctx, st.DeviceID, 5*time.Second)
	require.NoError(t, err)
	assert.Empty(t, cmds)
}

func TestPublicEndpoints(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
