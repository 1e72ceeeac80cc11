package repo

import (
	"errors"
	"time"

	"patchpilot/backend/app/models"

	"gorm.io/gorm"
)

type DeviceRepository struct{ db *gorm.DB }

func NewDeviceRepository(db *gorm.DB) *DeviceRepository { return &DeviceRepository{db: db} }

func (r *DeviceRepository) FindByUUID(uuid string) (*models.Device, error) {
	var d models.Device
	if err := r.db.Where("uuid = ?", uuid).First(&d).Error; err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// Upsert creates d or refreshes the reported facts of an existing row. The
// approved flag of an existing device is never touched here.
func (r *DeviceRepository) Upsert(d *models.Device) (created bool, err error) {
	var existing models.Device
	err = r.db.Where("uuid = ?", d.UUID).First(&existing).Error
	if err == nil {
		d.ID = existing.ID
		d.Approved = existing.Approved
		d.CreatedAt = existing.CreatedAt
		if d.Name == "" {
			d.Name = existing.Name
		}
		return false, r.db.Model(&existing).Select(
			"name", "os_name", "os_version", "hostname", "arch", "agent_version", "device_type",
			"device_model", "cpu_count", "ram_total", "ram_used", "uptime", "cpu_usage", "last_checkin",
		).Updates(d).Error
	}
	if err = notFound(err); !errors.Is(err, ErrNotFound) {
		return false, err
	}
	return true, r.db.Create(d).Error
}

func (r *DeviceRepository) Touch(uuid string, at time.Time) error {
	res := r.db.Model(&models.Device{}).Where("uuid = ?", uuid).Update("last_checkin", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Approve flips approved to true and records e. It reports whether the row
// changed.
func (r *DeviceRepository) Approve(uuid string, e Entry, at time.Time) (bool, error) {
	changed := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var d models.Device
		if err := tx.Where("uuid = ?", uuid).First(&d).Error; err != nil {
			return notFound(err)
		}
		res := tx.Model(&models.Device{}).Where("uuid = ? AND approved = ?", uuid, false).Update("approved", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		return writeEntry(tx, e, at)
	})
	return changed, err
}

func (r *DeviceRepository) ListAll() ([]models.Device, error) {
	var out []models.Device
	return out, r.db.Order("id asc").Find(&out).Error
}

// CountExisting returns how many of uuids are registered devices.
func (r *DeviceRepository) CountExisting(uuids []string) (int64, error) {
	var n int64
	return n, r.db.Model(&models.Device{}).Where("uuid IN ?", uuids).Count(&n).Error
}
