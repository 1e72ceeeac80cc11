package models

import "time"

// Target statuses. pending is the only non-terminal one.
const (
	TargetPending   = "pending"
	TargetCompleted = "completed"
	TargetExpired   = "expired"
	TargetRejected  = "rejected"
)

// Action is one submitted unit of work. Rows are never deleted.
type Action struct {
	ID          uint   `gorm:"primaryKey"`
	Kind        string `gorm:"size:16;not null"`
	Command     string `gorm:"type:text;not null"`
	Args        string `gorm:"type:text"` // JSON array
	TimeoutSecs *uint64
	Author      string `gorm:"size:191"`
	CreatedAt   time.Time
	ExpiresAt   time.Time `gorm:"index"`
	Canceled    bool      `gorm:"index;not null;default:false"`
}

// ActionTarget is the per-device instance of an Action.
type ActionTarget struct {
	ID           uint       `gorm:"primaryKey"`
	ActionID     uint       `gorm:"index;not null"`
	DeviceID     string     `gorm:"size:191;index;not null"`
	Status       string     `gorm:"size:16;index;not null"`
	DeliveredAt  *time.Time `gorm:"index"`
	ResultStatus string     `gorm:"size:16"`
	ExitCode     *int
	Stdout       string `gorm:"type:text"`
	Stderr       string `gorm:"type:text"`
	StartedAt    string `gorm:"size:64"`
	FinishedAt   string `gorm:"size:64"`
	LastUpdate   time.Time
	CreatedAt    time.Time
}
