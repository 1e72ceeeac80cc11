package dto

import "time"

// SubmitActionRequest accepts either a single target_device_id or a list.
type SubmitActionRequest struct {
	Command         string   `json:"command"`
	Kind            string   `json:"kind,omitempty"`
	Args            []string `json:"args,omitempty"`
	TimeoutSecs     *uint64  `json:"timeout_secs,omitempty"`
	TargetDeviceID  string   `json:"target_device_id,omitempty"`
	TargetDeviceIDs []string `json:"target_device_ids,omitempty"`
	TTLSeconds      *int64   `json:"ttl_seconds,omitempty"`
}

type SubmitActionResponse struct {
	ActionID  uint      `json:"action_id"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	Targets   int       `json:"targets"`
}

type TTLRequest struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}

type TTLResponse struct {
	ActionID         uint      `json:"action_id"`
	ExpiresAt        time.Time `json:"expires_at"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	Canceled         bool      `json:"canceled"`
}

type ActionResponse struct {
	ID          uint      `json:"id"`
	Kind        string    `json:"kind"`
	Command     string    `json:"command"`
	Args        []string  `json:"args,omitempty"`
	TimeoutSecs *uint64   `json:"timeout_secs,omitempty"`
	Author      string    `json:"author"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Canceled    bool      `json:"canceled"`
}

type TargetResponse struct {
	ID           uint       `json:"id"`
	ActionID     uint       `json:"action_id"`
	DeviceID     string     `json:"device_id"`
	Status       string     `json:"status"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	ResultStatus string     `json:"result_status,omitempty"`
	ExitCode     *int       `json:"exit_code,omitempty"`
	Stdout       string     `json:"stdout,omitempty"`
	Stderr       string     `json:"stderr,omitempty"`
	StartedAt    string     `json:"started_at,omitempty"`
	FinishedAt   string     `json:"finished_at,omitempty"`
	LastUpdate   time.Time  `json:"last_update"`
}

type LogResponse struct {
	ID        uint      `json:"id"`
	ActionID  *uint     `json:"action_id,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
	Actor     string    `json:"actor"`
	Event     string    `json:"event"`
	Target    string    `json:"target,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
