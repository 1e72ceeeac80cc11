package network

import "time"

// CommandKind selects how an agent turns a RemoteCommand into a process.
type CommandKind string

const (
	KindShell  CommandKind = "shell"
	KindScript CommandKind = "script"
	KindExec   CommandKind = "exec"
)

// ResultStatus is the outcome an agent reports for one RemoteCommand.
type ResultStatus string

const (
	StatusOK       ResultStatus = "ok"
	StatusFailed   ResultStatus = "failed"
	StatusRejected ResultStatus = "rejected"
	StatusTimeout  ResultStatus = "timeout"
)

// RemoteCommand is the signed unit of work the server hands to an agent.
// Field order matters: the canonical payload is the JSON encoding of this
// struct with Signature cleared.
type RemoteCommand struct {
	ID          string      `json:"id"`
	Kind        CommandKind `json:"kind"`
	Name        string      `json:"name"`
	Args        []string    `json:"args,omitempty"`
	TimeoutSecs *uint64     `json:"timeout_secs,omitempty"`
	Signature   string      `json:"signature"`
}

// MaxTimeoutSecs bounds a command's timeout_secs. The server refuses larger
// values and the agent clamps them.
const MaxTimeoutSecs = 7 * 24 * 60 * 60

// Timeout returns the command-supplied timeout, or def when none was given.
func (c RemoteCommand) Timeout(def time.Duration) time.Duration {
	if c.TimeoutSecs == nil || *c.TimeoutSecs == 0 {
		return def
	}
	secs := *c.TimeoutSecs
	if secs > MaxTimeoutSecs {
		secs = MaxTimeoutSecs
	}
	return time.Duration(secs) * time.Second
}

// CommandResult is posted back exactly once per RemoteCommand.
type CommandResult struct {
	ID         string       `json:"id"`
	Status     ResultStatus `json:"status"`
	ExitCode   *int         `json:"exit_code"`
	Stdout     string       `json:"stdout"`
	Stderr     string       `json:"stderr"`
	StartedAt  string       `json:"started_at"`
	FinishedAt string       `json:"finished_at"`
}

// SystemInfo is the host summary an agent attaches to register/heartbeat.
type SystemInfo struct {
	Hostname     string  `json:"hostname"`
	OSName       string  `json:"os_name"`
	OSVersion    string  `json:"os_version"`
	Architecture string  `json:"architecture"`
	CPUCount     int     `json:"cpu_count"`
	RAMTotal     uint64  `json:"ram_total"`
	RAMUsed      uint64  `json:"ram_used"`
	Uptime       uint64  `json:"uptime"`
	CPUUsage     float64 `json:"cpu_usage"`
}

// DeviceReport is the body of register, heartbeat and device update calls.
type DeviceReport struct {
	DeviceID     string     `json:"device_id"`
	AgentVersion string     `json:"agent_version,omitempty"`
	DeviceType   string     `json:"device_type,omitempty"`
	DeviceModel  string     `json:"device_model,omitempty"`
	SystemInfo   SystemInfo `json:"system_info"`
}

// DeviceStatus is the server's answer to a DeviceReport.
type DeviceStatus struct {
	DeviceID string `json:"device_id"`
	Adopted  bool   `json:"adopted"`
	Status   string `json:"status,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Timestamp formats t the way CommandResult timestamps are encoded.
func Timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }
