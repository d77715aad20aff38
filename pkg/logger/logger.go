// Package logger builds the zerolog logger shared by every component and
// adapts it to the print style functions the components receive.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

func New(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// Print returns a function that logs its arguments as a single message.
// Messages containing an error are logged with error level.
func Print(l zerolog.Logger) func(v ...interface{}) {
	return func(v ...interface{}) {
		evt := l.Info()
		for _, x := range v {
			if err, ok := x.(error); ok {
				evt = l.Error().Err(err)
				break
			}
		}
		evt.Msg(strings.TrimSpace(fmt.Sprintln(v...)))
	}
}

// Tee returns a function that calls every non nil print function.
func Tee(prints ...func(v ...interface{})) func(v ...interface{}) {
	return func(v ...interface{}) {
		for _, p := range prints {
			if p != nil {
				p(v...)
			}
		}
	}
}
