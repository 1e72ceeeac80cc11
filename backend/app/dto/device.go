package dto

import "time"

type DeviceResponse struct {
	DeviceID     string     `json:"device_id"`
	Name         string     `json:"name,omitempty"`
	Hostname     string     `json:"hostname"`
	OSName       string     `json:"os_name"`
	OSVersion    string     `json:"os_version"`
	Arch         string     `json:"arch"`
	AgentVersion string     `json:"agent_version,omitempty"`
	Approved     bool       `json:"approved"`
	Online       bool       `json:"online"`
	LastCheckin  *time.Time `json:"last_checkin,omitempty"`
	CPUCount     int        `json:"cpu_count"`
	RAMTotal     uint64     `json:"ram_total"`
	RAMUsed      uint64     `json:"ram_used"`
	CPUUsage     float64    `json:"cpu_usage"`
	Uptime       uint64     `json:"uptime"`
}
