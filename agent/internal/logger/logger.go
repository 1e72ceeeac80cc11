package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var L = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

// Init sends log output to stdout and, when path is set, to a size-rotated
// file beside it.
func Init(path string) {
	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stdout}
	if path != "" {
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // MB
			MaxBackups: 3,
		}
		w = zerolog.MultiLevelWriter(w, rotator)
	}
	L = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel parses lvl ("debug", "info", ...) and falls back to info.
func SetLevel(lvl string) {
	l, err := zerolog.ParseLevel(lvl)
	if err != nil || lvl == "" {
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
}

func Info(v ...interface{})             { L.Info().Msgf("%v", v...) }
func Warn(v ...interface{})             { L.Warn().Msgf("%v", v...) }
func Error(v ...interface{})            { L.Error().Msgf("%v", v...) }
func Infof(f string, v ...interface{})  { L.Info().Msgf(f, v...) }
func Warnf(f string, v ...interface{})  { L.Warn().Msgf(f, v...) }
func Errorf(f string, v ...interface{}) { L.Error().Msgf(f, v...) }
