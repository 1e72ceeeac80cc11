package sysinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectFillsBasics(t *testing.T) {
	si := Collect()
	assert.NotEmpty(t, si.OSName)
	assert.NotEmpty(t, si.Architecture)
	assert.GreaterOrEqual(t, si.CPUCount, 1)
}

func TestReportCarriesIdentity(t *testing.T) {
	r := Report("dev-1", "v1.2.3")
	assert.Equal(t, "dev-1", r.DeviceID)
	assert.Equal(t, "v1.2.3", r.AgentVersion)
	if runtime.GOOS == "linux" {
		assert.Equal(t, "server", r.DeviceType)
	}
}
