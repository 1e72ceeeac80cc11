package models

import "time"

type Device struct {
	ID           uint   `gorm:"primaryKey"`
	UUID         string `gorm:"uniqueIndex;size:191;not null"`
	Name         string `gorm:"size:255"`
	OSName       string `gorm:"size:128"`
	OSVersion    string `gorm:"size:128"`
	Hostname     string `gorm:"size:255"`
	Arch         string `gorm:"size:64"`
	AgentVersion string `gorm:"size:64"`
	DeviceType   string `gorm:"size:64"`
	DeviceModel  string `gorm:"size:128"`
	CPUCount     int
	RAMTotal     uint64
	RAMUsed      uint64
	Uptime       uint64
	CPUUsage     float64
	Approved     bool `gorm:"index;not null;default:false"`
	LastCheckin  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
