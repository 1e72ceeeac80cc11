package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"patchpilot/agent/internal/selfupdate"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSwapper(relaunched *[]string) *selfupdate.Swapper {
	s := selfupdate.NewSwapper(zerolog.Nop())
	s.Attempts = 2
	s.Sleep = func(time.Duration) {}
	s.Relaunch = func(path string) error {
		*relaunched = append(*relaunched, path)
		return nil
	}
	return s
}

func TestRunArgs(t *testing.T) {
	var relaunched []string
	s := testSwapper(&relaunched)
	assert.Equal(t, 1, run(nil, s, zerolog.Nop()))
	assert.Equal(t, 1, run([]string{"only-one"}, s, zerolog.Nop()))
	assert.Equal(t, 1, run([]string{"a", "b", "c"}, s, zerolog.Nop()))
	assert.Empty(t, relaunched)
}

func TestRunSwapsAndRelaunches(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "agent")
	newPath := filepath.Join(dir, "agent.new")
	require.NoError(t, os.WriteFile(oldPath, []byte("v1"), 0o755))
	require.NoError(t, os.WriteFile(newPath, []byte("v2"), 0o755))

	var relaunched []string
	assert.Equal(t, 0, run([]string{oldPath, newPath}, testSwapper(&relaunched), zerolog.Nop()))
	b, err := os.ReadFile(oldPath)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(b))
	assert.Equal(t, []string{oldPath}, relaunched)
}

func TestRunKeepsOldBinaryOnFailure(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "agent")
	require.NoError(t, os.WriteFile(oldPath, []byte("v1"), 0o755))

	var relaunched []string
	assert.Equal(t, 1, run([]string{oldPath, filepath.Join(dir, "missing")}, testSwapper(&relaunched), zerolog.Nop()))
	b, err := os.ReadFile(oldPath)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(b))
	assert.Empty(t, relaunched)
}
