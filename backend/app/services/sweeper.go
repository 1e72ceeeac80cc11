package services

import (
	"context"
	"time"

	"patchpilot/backend/global"
)

// Sweeper runs ActionService.Sweep on the live sweep interval. One per
// server process.
type Sweeper struct {
	actions  *ActionService
	settings *SettingsStore
}

func NewSweeper(actions *ActionService, settings *SettingsStore) *Sweeper {
	return &Sweeper{actions: actions, settings: settings}
}

// Run blocks until ctx is done. The interval is re-read before every tick so
// settings changes apply without a restart.
func (s *Sweeper) Run(ctx context.Context) {
	global.Logger.Info().Msg("sweeper started")
	for {
		interval := time.Duration(s.settings.Snapshot().SweepIntervalSeconds) * time.Second
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			global.Logger.Info().Msg("sweeper stopped")
			return
		case <-timer.C:
		}
		s.Tick()
	}
}

// Tick performs one sweep unless action polling is switched off.
func (s *Sweeper) Tick() {
	if !s.settings.Snapshot().ActionPollingEnabled {
		global.Logger.Debug().Msg("action polling disabled, sweep skipped")
		return
	}
	n, err := s.actions.Sweep()
	if err != nil {
		global.Logger.Error().Err(err).Int("canceled", n).Msg("sweep failed")
		return
	}
	if n > 0 {
		global.Logger.Info().Int("canceled", n).Msg("sweep done")
	}
}
