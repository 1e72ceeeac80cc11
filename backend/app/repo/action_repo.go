package repo

import (
	"fmt"
	"time"

	"patchpilot/backend/app/models"

	"gorm.io/gorm"
)

type ActionRepository struct{ db *gorm.DB }

func NewActionRepository(db *gorm.DB) *ActionRepository { return &ActionRepository{db: db} }

// Claimed is a target handed to a device together with its action.
type Claimed struct {
	Target models.ActionTarget
	Action models.Action
}

// Create inserts the action, one pending target per device and one log entry
// per target, all in one transaction. An action is never visible without its
// targets.
func (r *ActionRepository) Create(a *models.Action, deviceIDs []string, e Entry) ([]models.ActionTarget, error) {
	targets := make([]models.ActionTarget, 0, len(deviceIDs))
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(a).Error; err != nil {
			return err
		}
		for _, id := range deviceIDs {
			targets = append(targets, models.ActionTarget{
				ActionID:   a.ID,
				DeviceID:   id,
				Status:     models.TargetPending,
				LastUpdate: a.CreatedAt,
				CreatedAt:  a.CreatedAt,
			})
		}
		if err := tx.Create(&targets).Error; err != nil {
			return err
		}
		for _, t := range targets {
			le := e
			le.ActionID = &a.ID
			le.DeviceID = t.DeviceID
			if le.Target == "" {
				le.Target = fmt.Sprintf("action:%d device:%s", a.ID, t.DeviceID)
			}
			if err := writeEntry(tx, le, a.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return targets, nil
}

func (r *ActionRepository) Get(id uint) (*models.Action, error) {
	var a models.Action
	if err := r.db.First(&a, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *ActionRepository) List(limit int) ([]models.Action, error) {
	var out []models.Action
	return out, r.db.Order("id desc").Limit(limit).Find(&out).Error
}

func (r *ActionRepository) Targets(actionID uint) ([]models.ActionTarget, error) {
	var out []models.ActionTarget
	return out, r.db.Where("action_id = ?", actionID).Order("id asc").Find(&out).Error
}

func (r *ActionRepository) GetTarget(id uint) (*models.ActionTarget, error) {
	var t models.ActionTarget
	if err := r.db.First(&t, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// SetExpiresAt moves the deadline of a live action and records e. It returns
// false when the action is already canceled.
func (r *ActionRepository) SetExpiresAt(id uint, expiresAt time.Time, e Entry, at time.Time) (bool, error) {
	ok := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Action{}).Where("id = ? AND canceled = ?", id, false).Update("expires_at", expiresAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		ok = true
		e.ActionID = &id
		return writeEntry(tx, e, at)
	})
	return ok, err
}

// Due lists live actions whose deadline is at or before now.
func (r *ActionRepository) Due(now time.Time) ([]models.Action, error) {
	var out []models.Action
	return out, r.db.Where("expires_at <= ? AND canceled = ?", now, false).Order("id asc").Find(&out).Error
}

// Expire cancels one action and moves its still-pending targets to expired.
// Both writes are scoped by current state, so racing a device's result post
// or another sweeper leaves exactly one winner. canceled is false when some
// other writer got there first.
func (r *ActionRepository) Expire(id uint, now time.Time, e Entry) (canceled bool, expired int64, err error) {
	err = r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Action{}).Where("id = ? AND canceled = ?", id, false).Update("canceled", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		canceled = true
		res = tx.Model(&models.ActionTarget{}).
			Where("action_id = ? AND status = ?", id, models.TargetPending).
			Updates(map[string]any{"status": models.TargetExpired, "last_update": now})
		if res.Error != nil {
			return res.Error
		}
		expired = res.RowsAffected
		e.ActionID = &id
		if e.Detail == "" {
			e.Detail = fmt.Sprintf("%d pending target(s) expired", expired)
		}
		return writeEntry(tx, e, now)
	})
	return canceled, expired, err
}

// ClaimPending marks the device's deliverable targets as delivered and
// returns them. A target is deliverable while it is pending, undelivered and
// its action is live.
func (r *ActionRepository) ClaimPending(deviceID string, now time.Time) ([]Claimed, error) {
	var candidates []models.ActionTarget
	err := r.db.Model(&models.ActionTarget{}).
		Joins("JOIN actions ON actions.id = action_targets.action_id").
		Where("action_targets.device_id = ? AND action_targets.status = ? AND action_targets.delivered_at IS NULL", deviceID, models.TargetPending).
		Where("actions.canceled = ? AND actions.expires_at > ?", false, now).
		Order("action_targets.id asc").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	var out []Claimed
	for _, t := range candidates {
		res := r.db.Model(&models.ActionTarget{}).
			Where("id = ? AND status = ? AND delivered_at IS NULL", t.ID, models.TargetPending).
			Update("delivered_at", now)
		if res.Error != nil {
			return out, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		var a models.Action
		if err := r.db.First(&a, t.ActionID).Error; err != nil {
			return out, err
		}
		t.DeliveredAt = &now
		out = append(out, Claimed{Target: t, Action: a})
	}
	return out, nil
}

// Result is what a device reported for one target.
type Result struct {
	Status       string
	ResultStatus string
	ExitCode     *int
	Stdout       string
	Stderr       string
	StartedAt    string
	FinishedAt   string
}

// Finish moves a pending target to a terminal status and records e. It
// returns false when the target already left pending.
func (r *ActionRepository) Finish(targetID uint, res Result, e Entry, now time.Time) (bool, error) {
	ok := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var t models.ActionTarget
		if err := tx.First(&t, targetID).Error; err != nil {
			return notFound(err)
		}
		q := tx.Model(&models.ActionTarget{}).
			Where("id = ? AND status = ?", targetID, models.TargetPending).
			Updates(map[string]any{
				"status":        res.Status,
				"result_status": res.ResultStatus,
				"exit_code":     res.ExitCode,
				"stdout":        res.Stdout,
				"stderr":        res.Stderr,
				"started_at":    res.StartedAt,
				"finished_at":   res.FinishedAt,
				"last_update":   now,
			})
		if q.Error != nil {
			return q.Error
		}
		if q.RowsAffected == 0 {
			return nil
		}
		ok = true
		e.ActionID = &t.ActionID
		e.DeviceID = t.DeviceID
		return writeEntry(tx, e, now)
	})
	return ok, err
}
