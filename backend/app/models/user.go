package models

import "time"

// User is an operator account. Only the bootstrap admin is created by the
// server; accounts are otherwise managed out of band.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:191;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Role         string `gorm:"size:32;not null;default:user"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
