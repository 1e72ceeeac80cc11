package initialize

import (
	"os"
	"time"

	"patchpilot/backend/global"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	// basic zerolog setup: console writer to stdout
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	global.Logger = log.Output(cw)
}

// SetLevel applies a textual level such as "debug"; unknown values keep info.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	global.Logger = global.Logger.Level(lvl)
}
