package repo

import (
	"time"

	"patchpilot/backend/app/models"

	"gorm.io/gorm"
)

// Entry is one state change. It is written to both the audit log and the
// history log in the same transaction as the change itself.
type Entry struct {
	Actor    string
	Event    string
	Target   string
	Detail   string
	ActionID *uint
	DeviceID string
}

func writeEntry(tx *gorm.DB, e Entry, at time.Time) error {
	audit := models.AuditLog{Actor: e.Actor, Event: e.Event, Target: e.Target, Detail: e.Detail, CreatedAt: at}
	if err := tx.Create(&audit).Error; err != nil {
		return err
	}
	hist := models.HistoryLog{ActionID: e.ActionID, DeviceID: e.DeviceID, Actor: e.Actor, Event: e.Event, Detail: e.Detail, CreatedAt: at}
	return tx.Create(&hist).Error
}

type LogRepository struct{ db *gorm.DB }

func NewLogRepository(db *gorm.DB) *LogRepository { return &LogRepository{db: db} }

func (r *LogRepository) Record(e Entry, at time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error { return writeEntry(tx, e, at) })
}

func (r *LogRepository) ListAudit(limit int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	return out, r.db.Order("id desc").Limit(limit).Find(&out).Error
}

func (r *LogRepository) ListHistory(limit int) ([]models.HistoryLog, error) {
	var out []models.HistoryLog
	return out, r.db.Order("id desc").Limit(limit).Find(&out).Error
}

func (r *LogRepository) HistoryForAction(actionID uint) ([]models.HistoryLog, error) {
	var out []models.HistoryLog
	return out, r.db.Where("action_id = ?", actionID).Order("id asc").Find(&out).Error
}
