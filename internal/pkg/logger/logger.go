package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/doeshing/afcover/internal/ports"
)

// ZeroLogger adapts zerolog to ports.Logger.
type ZeroLogger struct {
	log zerolog.Logger
}

// New creates a console logger on stderr. Verbose enables debug output;
// otherwise only warnings and errors are shown so stdout stays clean for results.
func New(verbose bool) *ZeroLogger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, level)
}

// NewWithWriter builds a logger writing to w at the given level.
func NewWithWriter(w io.Writer, level zerolog.Level) *ZeroLogger {
	return &ZeroLogger{
		log: zerolog.New(w).Level(level).With().Timestamp().Logger(),
	}
}

// Discard returns a logger that drops everything.
func Discard() *ZeroLogger {
	return &ZeroLogger{log: zerolog.New(io.Discard)}
}

func (l *ZeroLogger) Debug(msg string, fields map[string]interface{}) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZeroLogger) Info(msg string, fields map[string]interface{}) {
	l.log.Info().Fields(fields).Msg(msg)
}

func (l *ZeroLogger) Warn(msg string, fields map[string]interface{}) {
	l.log.Warn().Fields(fields).Msg(msg)
}

func (l *ZeroLogger) Error(msg string, err error, fields map[string]interface{}) {
	l.log.Error().Err(err).Fields(fields).Msg(msg)
}

var _ ports.Logger = (*ZeroLogger)(nil)
