package models

import "time"

// AuditLog records who changed what, for operators.
type AuditLog struct {
	ID        uint   `gorm:"primaryKey"`
	Actor     string `gorm:"size:191;index"`
	Event     string `gorm:"size:64;index"`
	Target    string `gorm:"size:191;index"`
	Detail    string `gorm:"type:text"`
	CreatedAt time.Time
}

// HistoryLog is the per-action/per-device timeline.
type HistoryLog struct {
	ID        uint   `gorm:"primaryKey"`
	ActionID  *uint  `gorm:"index"`
	DeviceID  string `gorm:"size:191;index"`
	Actor     string `gorm:"size:191"`
	Event     string `gorm:"size:64"`
	Detail    string `gorm:"type:text"`
	CreatedAt time.Time
}
