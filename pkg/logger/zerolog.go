package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// ZerologHandler adapts a zerolog.Logger to Logger.
type ZerologHandler struct {
	logger zerolog.Logger
}

var _ Logger = (*ZerologHandler)(nil)

func NewZerolog(l zerolog.Logger) *ZerologHandler {
	return &ZerologHandler{logger: l}
}

// NewConsole builds a human readable zerolog logger on w, or os.Stderr when w is nil.
func NewConsole(w io.Writer, debug bool) *ZerologHandler {
	if w == nil {
		w = os.Stderr
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	l := zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Logger()
	return NewZerolog(l)
}

func (z *ZerologHandler) Error(msg string, args ...any) {
	z.logger.Error().Fields(args).Msg(msg)
}

func (z *ZerologHandler) Warn(msg string, args ...any) {
	z.logger.Warn().Fields(args).Msg(msg)
}

func (z *ZerologHandler) Info(msg string, args ...any) {
	z.logger.Info().Fields(args).Msg(msg)
}

func (z *ZerologHandler) Debug(msg string, args ...any) {
	z.logger.Debug().Fields(args).Msg(msg)
}
