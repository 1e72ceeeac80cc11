package jwtutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignParseRoundTrip(t *testing.T) {
	s := &Signer{Secret: []byte("k"), Issuer: "patchpilot", ExpMin: 5}
	tok, err := s.Sign(7, "root", RoleAdmin)
	require.NoError(t, err)
	c, err := s.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, uint(7), c.UserID)
	assert.Equal(t, RoleAdmin, c.Role)

	tok, err = s.SignDevice("dev-1")
	require.NoError(t, err)
	c, err = s.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, RoleDevice, c.Role)
	assert.Equal(t, "dev-1", c.DeviceID)
}

func TestParseRejectsForeignKey(t *testing.T) {
	a := &Signer{Secret: []byte("a"), Issuer: "patchpilot", ExpMin: 5}
	b := &Signer{Secret: []byte("b"), Issuer: "patchpilot", ExpMin: 5}
	tok, err := a.Sign(1, "x", RoleAdmin)
	require.NoError(t, err)
	_, err = b.Parse(tok)
	require.Error(t, err)
}
