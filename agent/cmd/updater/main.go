// Command patchpilot-updater swaps a downloaded agent build into place.
//
//	patchpilot-updater <old_exe_path> <new_exe_path>
//
// It exits 0 once the new build is in place and relaunched, 1 otherwise.
package main

import (
	"os"

	"patchpilot/agent/internal/selfupdate"

	"github.com/rs/zerolog"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	os.Exit(run(os.Args[1:], selfupdate.NewSwapper(log), log))
}

func run(args []string, s *selfupdate.Swapper, log zerolog.Logger) int {
	if len(args) != 2 {
		log.Error().Msg("usage: patchpilot-updater <old_exe_path> <new_exe_path>")
		return 1
	}
	oldPath, newPath := args[0], args[1]
	if err := s.Swap(oldPath, newPath); err != nil {
		log.Error().Err(err).Msg("update failed, keeping the current binary")
		return 1
	}
	log.Info().Str("path", oldPath).Msg("update applied")
	return 0
}
