package sysinfo

import (
	"runtime"
	"time"

	"patchpilot/network"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Collect gathers the host summary sent with register and heartbeat calls.
// Probes that fail leave their fields zero.
func Collect() network.SystemInfo {
	si := network.SystemInfo{
		Architecture: runtime.GOARCH,
		OSName:       runtime.GOOS,
		CPUCount:     runtime.NumCPU(),
	}
	if h, err := host.Info(); err == nil {
		si.Hostname = h.Hostname
		if h.Platform != "" {
			si.OSName = h.Platform
		}
		si.OSVersion = h.PlatformVersion
		si.Uptime = h.Uptime
		if h.KernelArch != "" {
			si.Architecture = h.KernelArch
		}
	}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		si.CPUCount = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		si.RAMTotal = vm.Total
		si.RAMUsed = vm.Used
	}
	if pct, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(pct) > 0 {
		si.CPUUsage = pct[0]
	}
	return si
}

// DeviceType is a coarse classification shown in device listings.
func DeviceType() string {
	switch runtime.GOOS {
	case "windows", "darwin":
		return "workstation"
	default:
		return "server"
	}
}

// Report builds a DeviceReport for deviceID with freshly collected facts.
func Report(deviceID, version string) network.DeviceReport {
	si := Collect()
	return network.DeviceReport{
		DeviceID:     deviceID,
		AgentVersion: version,
		DeviceType:   DeviceType(),
		DeviceModel:  si.Architecture,
		SystemInfo:   si,
	}
}
