package services

import (
	"sync"
	"testing"

	"patchpilot/backend/app/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsUpdatePersistsAndAudits(t *testing.T) {
	f := newFixture(t, testSettings())
	next := f.settings.Snapshot()
	next.SweepIntervalSeconds = 15
	next.MaxActionTTLSeconds = 600

	applied, err := f.settings.Update(next, "admin")
	require.NoError(t, err)
	assert.Equal(t, 15, applied.SweepIntervalSeconds)
	// default follows the lowered maximum
	assert.Equal(t, 600, applied.DefaultActionTTLSeconds)
	assert.Equal(t, applied, f.settings.Snapshot())

	fresh := NewSettingsStore(testSettings(), repo.NewSettingsRepository(f.db))
	require.NoError(t, fresh.Load())
	assert.Equal(t, applied, fresh.Snapshot())

	audit, err := f.logs.ListAudit(10)
	require.NoError(t, err)
	require.NotEmpty(t, audit)
	assert.Equal(t, "settings.update", audit[0].Event)
}

func TestSettingsRejectsInvalid(t *testing.T) {
	f := newFixture(t, testSettings())
	bad := f.settings.Snapshot()
	bad.SweepIntervalSeconds = -1
	_, err := f.settings.Update(bad, "admin")
	assert.ErrorIs(t, err, ErrInvalidSettings)

	bad = f.settings.Snapshot()
	bad.LongPollSeconds = 1000
	_, err = f.settings.Update(bad, "admin")
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestSettingsLoadWithoutRow(t *testing.T) {
	f := newFixture(t, testSettings())
	before := f.settings.Snapshot()
	require.NoError(t, f.settings.Load())
	assert.Equal(t, before, f.settings.Snapshot())
}

func TestSettingsSnapshotConcurrent(t *testing.T) {
	s := NewSettingsStore(testSettings(), nil)
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			v := s.Snapshot()
			v.SweepIntervalSeconds = n
			s.Apply(v)
		}(i)
		go func() {
			defer wg.Done()
			assert.Positive(t, s.Snapshot().SweepIntervalSeconds)
		}()
	}
	wg.Wait()
}

func TestReloadAppliesOnlyChangedFileKeys(t *testing.T) {
	file := testSettings()
	f := newFixture(t, file)

	// admin override through the API
	admin := f.settings.Snapshot()
	admin.AutoApproveDevices = false
	admin.MaxActionTTLSeconds = 600
	_, err := f.settings.Update(admin, "admin")
	require.NoError(t, err)

	// unrelated file edit
	edited := file
	edited.LongPollSeconds = 30
	applied, keys, err := f.settings.Reload(file, edited)
	require.NoError(t, err)
	assert.Equal(t, []string{"long_poll_seconds"}, keys)
	assert.Equal(t, 30, applied.LongPollSeconds)
	assert.False(t, applied.AutoApproveDevices)
	assert.Equal(t, 600, applied.MaxActionTTLSeconds)

	// survives a restart
	fresh := NewSettingsStore(file, repo.NewSettingsRepository(f.db))
	require.NoError(t, fresh.Load())
	assert.Equal(t, applied, fresh.Snapshot())

	audit, err := f.logs.ListAudit(10)
	require.NoError(t, err)
	require.NotEmpty(t, audit)
	assert.Equal(t, "settings.reload", audit[0].Event)
	assert.Equal(t, "config-file", audit[0].Actor)
	assert.Contains(t, audit[0].Detail, "long_poll_seconds")
}

func TestReloadWithoutChangesIsNoop(t *testing.T) {
	f := newFixture(t, testSettings())
	before := f.settings.Snapshot()
	_, keys, err := f.settings.Reload(testSettings(), testSettings())
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, before, f.settings.Snapshot())

	audit, err := f.logs.ListAudit(10)
	require.NoError(t, err)
	for _, e := range audit {
		assert.NotEqual(t, "settings.reload", e.Event)
	}

	bad := testSettings()
	bad.LongPollSeconds = 1000
	_, _, err = f.settings.Reload(testSettings(), bad)
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Equal(t, before, f.settings.Snapshot())
}
