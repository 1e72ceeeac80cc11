package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"patchpilot/backend/app/models"
	"patchpilot/backend/app/repo"
	"patchpilot/backend/config"
	"patchpilot/backend/global"
)

const maxLongPollSeconds = 120

// SettingsStore is the live, concurrently read copy of config.Settings.
// Readers take a Snapshot per operation and never hold the lock.
type SettingsStore struct {
	mu   sync.RWMutex
	cur  config.Settings
	repo *repo.SettingsRepository
	Now  func() time.Time
}

func NewSettingsStore(initial config.Settings, r *repo.SettingsRepository) *SettingsStore {
	return &SettingsStore{cur: normalize(initial), repo: r, Now: time.Now}
}

func (s *SettingsStore) Snapshot() config.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Apply replaces the live settings without persisting them.
func (s *SettingsStore) Apply(next config.Settings) config.Settings {
	next = normalize(next)
	s.mu.Lock()
	s.cur = next
	s.mu.Unlock()
	return next
}

// Load applies the persisted overrides, if any.
func (s *SettingsStore) Load() error {
	if s.repo == nil {
		return nil
	}
	row, err := s.repo.Load()
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	applied := s.Apply(fromRow(*row))
	global.Logger.Info().Interface("settings", applied).Msg("loaded persisted settings")
	return nil
}

// Update validates next, persists it with an audit entry and makes it live.
func (s *SettingsStore) Update(next config.Settings, actor string) (config.Settings, error) {
	return s.save(next, actor, "settings.update", "")
}

// Reload applies an edit of the config file. Only the keys that differ
// between the previous and the new file contents are changed, so values an
// admin set through the API survive an unrelated edit. The change is
// persisted and audited like an API update. It reports the changed keys.
func (s *SettingsStore) Reload(prevFile, nextFile config.Settings) (config.Settings, []string, error) {
	cur := s.Snapshot()
	merged, keys := mergeChanged(cur, prevFile, nextFile)
	if len(keys) == 0 {
		return cur, nil, nil
	}
	applied, err := s.save(merged, "config-file", "settings.reload", "keys="+strings.Join(keys, ","))
	if err != nil {
		return config.Settings{}, nil, err
	}
	return applied, keys, nil
}

func (s *SettingsStore) save(next config.Settings, actor, event, detail string) (config.Settings, error) {
	if err := validate(next); err != nil {
		return config.Settings{}, err
	}
	next = normalize(next)
	if s.repo != nil {
		if detail == "" {
			detail = fmt.Sprintf("%+v", next)
		} else {
			detail = fmt.Sprintf("%s %+v", detail, next)
		}
		e := repo.Entry{Actor: actor, Event: event, Target: "settings", Detail: detail}
		if err := s.repo.Save(toRow(next), e, s.Now().UTC()); err != nil {
			return config.Settings{}, err
		}
	}
	return s.Apply(next), nil
}

// mergeChanged copies onto cur every field that changed from prev to next.
func mergeChanged(cur, prev, next config.Settings) (config.Settings, []string) {
	var keys []string
	if prev.AutoApproveDevices != next.AutoApproveDevices {
		cur.AutoApproveDevices = next.AutoApproveDevices
		keys = append(keys, "auto_approve_devices")
	}
	if prev.SweepIntervalSeconds != next.SweepIntervalSeconds {
		cur.SweepIntervalSeconds = next.SweepIntervalSeconds
		keys = append(keys, "sweep_interval_seconds")
	}
	if prev.DefaultActionTTLSeconds != next.DefaultActionTTLSeconds {
		cur.DefaultActionTTLSeconds = next.DefaultActionTTLSeconds
		keys = append(keys, "default_action_ttl_seconds")
	}
	if prev.MaxActionTTLSeconds != next.MaxActionTTLSeconds {
		cur.MaxActionTTLSeconds = next.MaxActionTTLSeconds
		keys = append(keys, "max_action_ttl_seconds")
	}
	if prev.ActionPollingEnabled != next.ActionPollingEnabled {
		cur.ActionPollingEnabled = next.ActionPollingEnabled
		keys = append(keys, "action_polling_enabled")
	}
	if prev.LongPollSeconds != next.LongPollSeconds {
		cur.LongPollSeconds = next.LongPollSeconds
		keys = append(keys, "long_poll_seconds")
	}
	if prev.RequireDeviceToken != next.RequireDeviceToken {
		cur.RequireDeviceToken = next.RequireDeviceToken
		keys = append(keys, "require_device_token")
	}
	return cur, keys
}

func validate(v config.Settings) error {
	switch {
	case v.SweepIntervalSeconds < 0, v.DefaultActionTTLSeconds < 0, v.MaxActionTTLSeconds < 0, v.LongPollSeconds < 0:
		return fmt.Errorf("%w: negative value", ErrInvalidSettings)
	case v.LongPollSeconds > maxLongPollSeconds:
		return fmt.Errorf("%w: long_poll_seconds above %d", ErrInvalidSettings, maxLongPollSeconds)
	}
	return nil
}

func normalize(v config.Settings) config.Settings {
	if v.SweepIntervalSeconds <= 0 {
		v.SweepIntervalSeconds = 30
	}
	if v.MaxActionTTLSeconds <= 0 {
		v.MaxActionTTLSeconds = 86400
	}
	if v.DefaultActionTTLSeconds <= 0 {
		v.DefaultActionTTLSeconds = 3600
	}
	if v.DefaultActionTTLSeconds > v.MaxActionTTLSeconds {
		v.DefaultActionTTLSeconds = v.MaxActionTTLSeconds
	}
	if v.LongPollSeconds < 0 {
		v.LongPollSeconds = 0
	}
	if v.LongPollSeconds > maxLongPollSeconds {
		v.LongPollSeconds = maxLongPollSeconds
	}
	return v
}

func fromRow(r models.ServerSettings) config.Settings {
	return config.Settings{
		AutoApproveDevices:      r.AutoApproveDevices,
		SweepIntervalSeconds:    r.SweepIntervalSeconds,
		DefaultActionTTLSeconds: r.DefaultActionTTLSeconds,
		MaxActionTTLSeconds:     r.MaxActionTTLSeconds,
		ActionPollingEnabled:    r.ActionPollingEnabled,
		LongPollSeconds:         r.LongPollSeconds,
		RequireDeviceToken:      r.RequireDeviceToken,
	}
}

func toRow(v config.Settings) models.ServerSettings {
	return models.ServerSettings{
		AutoApproveDevices:      v.AutoApproveDevices,
		SweepIntervalSeconds:    v.SweepIntervalSeconds,
		DefaultActionTTLSeconds: v.DefaultActionTTLSeconds,
		MaxActionTTLSeconds:     v.MaxActionTTLSeconds,
		ActionPollingEnabled:    v.ActionPollingEnabled,
		LongPollSeconds:         v.LongPollSeconds,
		RequireDeviceToken:      v.RequireDeviceToken,
	}
}
