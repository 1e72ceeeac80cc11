package selfupdate

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Swapper is the helper side of the handoff: it moves the downloaded build
// over the old binary and starts it again.
type Swapper struct {
	InitialDelay time.Duration
	RetryDelay   time.Duration
	Attempts     int

	Rename   func(from, to string) error
	Relaunch func(path string) error
	Sleep    func(time.Duration)
	Log      zerolog.Logger
}

func NewSwapper(log zerolog.Logger) *Swapper {
	return &Swapper{
		InitialDelay: 2 * time.Second,
		RetryDelay:   time.Second,
		Attempts:     5,
		Rename:       os.Rename,
		Relaunch:     func(path string) error { return startDetached(path) },
		Sleep:        time.Sleep,
		Log:          log,
	}
}

// Swap renames newPath over oldPath, retrying while the old file is still
// held by the exiting agent, then relaunches oldPath. On failure the old
// binary is left untouched.
func (s *Swapper) Swap(oldPath, newPath string) error {
	s.Sleep(s.InitialDelay)
	var err error
	for attempt := 1; attempt <= s.Attempts; attempt++ {
		if err = s.Rename(newPath, oldPath); err == nil {
			s.Log.Info().Str("path", oldPath).Int("attempt", attempt).Msg("binary replaced")
			if err := s.Relaunch(oldPath); err != nil {
				return fmt.Errorf("relaunch %s: %w", oldPath, err)
			}
			return nil
		}
		s.Log.Warn().Err(err).Int("attempt", attempt).Msg("rename failed")
		if attempt < s.Attempts {
			s.Sleep(s.RetryDelay)
		}
	}
	return fmt.Errorf("replace %s after %d attempts: %w", oldPath, s.Attempts, err)
}
