package services

import (
	"testing"

	jwtutil "patchpilot/backend/app/jwt"
	"patchpilot/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAssignsID(t *testing.T) {
	st := testSettings()
	st.AutoApproveDevices = false
	f := newFixture(t, st)

	status, err := f.devices.Register(network.DeviceReport{SystemInfo: network.SystemInfo{Hostname: "h1"}}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, status.DeviceID)
	assert.False(t, status.Adopted)
	assert.Equal(t, "pending", status.Status)
	assert.NotEmpty(t, status.Token)

	// re-registering keeps the id and does not approve
	again, err := f.devices.Register(network.DeviceReport{DeviceID: status.DeviceID}, status.Token)
	require.NoError(t, err)
	assert.Equal(t, status.DeviceID, again.DeviceID)
	assert.False(t, again.Adopted)
	assert.NotEmpty(t, again.Token)
}

func TestRegisterRejectsMalformedID(t *testing.T) {
	f := newFixture(t, testSettings())
	_, err := f.devices.Register(network.DeviceReport{DeviceID: "../etc"}, "")
	assert.ErrorIs(t, err, ErrInvalidDeviceID)
}

func TestHeartbeatAfterApproval(t *testing.T) {
	st := testSettings()
	st.AutoApproveDevices = false
	f := newFixture(t, st)
	dev := f.register(t)

	hb, err := f.devices.Heartbeat(network.DeviceReport{DeviceID: dev, SystemInfo: network.SystemInfo{Hostname: "renamed", CPUCount: 4}}, "")
	require.NoError(t, err)
	assert.False(t, hb.Adopted)

	require.NoError(t, f.devices.Approve(dev, "admin"))
	require.NoError(t, f.devices.Approve(dev, "admin"))
	hb, err = f.devices.Heartbeat(network.DeviceReport{DeviceID: dev}, "")
	require.NoError(t, err)
	assert.True(t, hb.Adopted)
	assert.Equal(t, "adopted", hb.Status)

	d, err := f.devices.Get(dev)
	require.NoError(t, err)
	assert.NotNil(t, d.LastCheckin)

	_, err = f.devices.Heartbeat(network.DeviceReport{DeviceID: "00000000-0000-0000-0000-000000000001"}, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.devices.Approve("nope", "admin"), ErrNotFound)
}

func TestTokenOnlyForCreatorOrHolder(t *testing.T) {
	f := newFixture(t, testSettings())
	first, err := f.devices.Register(network.DeviceReport{SystemInfo: network.SystemInfo{Hostname: "h"}}, "")
	require.NoError(t, err)
	require.NotEmpty(t, first.Token)
	id := first.DeviceID

	// knowing the id is not enough
	stranger, err := f.devices.Register(network.DeviceReport{DeviceID: id}, "")
	require.NoError(t, err)
	assert.Empty(t, stranger.Token)
	hb, err := f.devices.Heartbeat(network.DeviceReport{DeviceID: id}, "")
	require.NoError(t, err)
	assert.Empty(t, hb.Token)

	// a token for another device does not count
	other, err := f.devices.Register(network.DeviceReport{SystemInfo: network.SystemInfo{Hostname: "o"}}, "")
	require.NoError(t, err)
	hb, err = f.devices.Heartbeat(network.DeviceReport{DeviceID: id}, other.Token)
	require.NoError(t, err)
	assert.Empty(t, hb.Token)

	// an expired token issued to the device renews it
	expired, err := (&jwtutil.Signer{Secret: []byte("jwt"), Issuer: "patchpilot", ExpMin: -1}).SignDevice(id)
	require.NoError(t, err)
	hb, err = f.devices.Heartbeat(network.DeviceReport{DeviceID: id}, expired)
	require.NoError(t, err)
	require.NotEmpty(t, hb.Token)
	claims, err := f.signer.Parse(hb.Token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.DeviceID)

	// a forged token is ignored
	forged, err := (&jwtutil.Signer{Secret: []byte("other"), Issuer: "patchpilot", ExpMin: 5}).SignDevice(id)
	require.NoError(t, err)
	re, err := f.devices.Register(network.DeviceReport{DeviceID: id}, forged)
	require.NoError(t, err)
	assert.Empty(t, re.Token)
}

func TestReRegisterRefusedWhenTokensRequired(t *testing.T) {
	st := testSettings()
	st.RequireDeviceToken = true
	f := newFixture(t, st)
	first, err := f.devices.Register(network.DeviceReport{SystemInfo: network.SystemInfo{Hostname: "h"}}, "")
	require.NoError(t, err)

	_, err = f.devices.Register(network.DeviceReport{DeviceID: first.DeviceID}, "")
	assert.ErrorIs(t, err, ErrDeviceTokenNeeded)

	again, err := f.devices.Register(network.DeviceReport{DeviceID: first.DeviceID}, first.Token)
	require.NoError(t, err)
	assert.NotEmpty(t, again.Token)
}

func TestListMarksOnlineDevices(t *testing.T) {
	f := newFixture(t, testSettings())
	d1, d2 := f.register(t), f.register(t)
	_, release := f.hub.Wait(d1)
	defer release()

	list, err := f.devices.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	online := map[string]bool{}
	for _, d := range list {
		online[d.DeviceID] = d.Online
	}
	assert.True(t, online[d1])
	assert.False(t, online[d2])
}
