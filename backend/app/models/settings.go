package models

import "time"

// ServerSettings is a single-row table (ID 1) holding operator overrides.
type ServerSettings struct {
	ID                      uint `gorm:"primaryKey"`
	AutoApproveDevices      bool
	SweepIntervalSeconds    int
	DefaultActionTTLSeconds int
	MaxActionTTLSeconds     int
	ActionPollingEnabled    bool
	LongPollSeconds         int
	RequireDeviceToken      bool
	UpdatedAt               time.Time
}
