package repo

import (
	"time"

	"patchpilot/backend/app/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const settingsRowID = 1

type SettingsRepository struct{ db *gorm.DB }

func NewSettingsRepository(db *gorm.DB) *SettingsRepository { return &SettingsRepository{db: db} }

// Load returns the persisted overrides, or ErrNotFound if none were saved.
func (r *SettingsRepository) Load() (*models.ServerSettings, error) {
	var s models.ServerSettings
	if err := r.db.First(&s, settingsRowID).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// Save writes the settings row and e in one transaction.
func (r *SettingsRepository) Save(s models.ServerSettings, e Entry, at time.Time) error {
	s.ID = settingsRowID
	s.UpdatedAt = at
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&s).Error; err != nil {
			return err
		}
		return writeEntry(tx, e, at)
	})
}
