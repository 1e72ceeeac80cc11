package services

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"patchpilot/backend/app/db"
	"patchpilot/backend/app/hub"
	jwtutil "patchpilot/backend/app/jwt"
	"patchpilot/backend/app/metrics"
	"patchpilot/backend/app/repo"
	"patchpilot/backend/config"
	"patchpilot/network"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	db       *gorm.DB
	clock    *fakeClock
	settings *SettingsStore
	hub      *hub.Hub
	actions  *ActionService
	devices  *DeviceService
	logs     *repo.LogRepository
	signer   *jwtutil.Signer
	sweeper  *Sweeper
}

const testSecret = "test-command-secret"

func testSettings() config.Settings {
	return config.Settings{
		AutoApproveDevices:      true,
		SweepIntervalSeconds:    1,
		DefaultActionTTLSeconds: 3600,
		MaxActionTTLSeconds:     86400,
		ActionPollingEnabled:    true,
		LongPollSeconds:         0,
	}
}

func newFixture(t *testing.T, st config.Settings) *fixture {
	t.Helper()
	gdb, err := db.Connect(db.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	logs := repo.NewLogRepository(gdb)
	settings := NewSettingsStore(st, repo.NewSettingsRepository(gdb))
	settings.Now = clock.Now
	h := hub.NewHub()
	signer := &jwtutil.Signer{Secret: []byte("jwt"), Issuer: "patchpilot", ExpMin: 5}
	devices := NewDeviceService(repo.NewDeviceRepository(gdb), logs, settings, signer, h)
	devices.Now = clock.Now
	actions := NewActionService(repo.NewActionRepository(gdb), repo.NewDeviceRepository(gdb), settings, h, h, metrics.New(), testSecret)
	actions.Now = clock.Now
	return &fixture{
		db:       gdb,
		clock:    clock,
		settings: settings,
		hub:      h,
		actions:  actions,
		devices:  devices,
		logs:     logs,
		signer:   signer,
		sweeper:  NewSweeper(actions, settings),
	}
}

func (f *fixture) register(t *testing.T) string {
	t.Helper()
	st, err := f.devices.Register(network.DeviceReport{
		DeviceID:   uuid.NewString(),
		SystemInfo: network.SystemInfo{Hostname: "host", OSName: "linux"},
	}, "")
	require.NoError(t, err)
	return st.DeviceID
}

func int64p(v int64) *int64 { return &v }
