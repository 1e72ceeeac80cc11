package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitNotify(t *testing.T) {
	h := NewHub()
	ch, release := h.Wait("dev-1")
	defer release()

	require.True(t, h.IsOnline("dev-1"))
	assert.Equal(t, []string{"dev-1"}, h.OnlineDevices())

	h.Notify("dev-2")
	select {
	case <-ch:
		t.Fatal("woken by another device")
	default:
	}

	h.Notify("dev-1")
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("waiter not woken")
	}
}

func TestReleaseDropsDevice(t *testing.T) {
	h := NewHub()
	_, r1 := h.Wait("dev-1")
	_, r2 := h.Wait("dev-1")
	r1()
	assert.True(t, h.IsOnline("dev-1"))
	r2()
	assert.False(t, h.IsOnline("dev-1"))
	assert.Empty(t, h.OnlineDevices())
}
