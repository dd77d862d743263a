package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"echoprobe/internal/shared/types"
)

var (
	timestampOnce sync.Once
	current       atomic.Pointer[zerolog.Logger]
)

func init() {
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	current.Store(&l)
}

// Init configures the global logger used by every package.
// Output goes to stderr so stdout stays reserved for probe results.
func Init(cfg types.LogConf) error {
	return InitWithWriter(cfg, os.Stderr)
}

// InitWithWriter is Init with an explicit destination. It may be called
// again while other goroutines are logging: loggers already handed out by
// WithComponent keep their destination, later ones get the new one.
func InitWithWriter(cfg types.LogConf, out io.Writer) error {
	level := parseLevel(cfg.Level)

	timestampOnce.Do(func() {
		zerolog.TimestampFunc = func() time.Time {
			return time.Now().UTC()
		}
	})

	consoleWriter := zerolog.ConsoleWriter{
		Out:        zerolog.SyncWriter(out),
		TimeFormat: "2006-01-02 15:04:05",
	}

	l := zerolog.New(consoleWriter).
		Level(level).
		With().
		Timestamp().
		Logger()
	current.Store(&l)

	Debug().Msgf("Logger initialized with level: %s", level.String())
	return nil
}

func parseLevel(s string) zerolog.Level {
	levelStr := strings.ToLower(strings.TrimSpace(s))
	if levelStr == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unknown log level '%s', defaulting to 'info'\n", levelStr)
		return zerolog.InfoLevel
	}
	return level
}

// WithComponent returns a child logger tagged with the component name,
// e.g. "EchoProbe" or "EchoServer".
func WithComponent(name string) zerolog.Logger {
	return current.Load().With().Str("component", name).Logger()
}

// Event is a wrapper for a zerolog event.
type Event struct {
	*zerolog.Event
}

// Debug starts a new message with debug level.
func Debug() *Event {
	return &Event{current.Load().Debug()}
}

// Error starts a new message with error level.
func Error() *Event {
	return &Event{current.Load().Error()}
}

// Fatal starts a new message with fatal level. The program will exit.
func Fatal() *Event {
	return &Event{current.Load().Fatal()}
}

// Str adds a string field to the event.
func (e *Event) Str(key, value string) *Event {
	e.Event = e.Event.Str(key, value)
	return e
}

// Err adds an error field to the event.
func (e *Event) Err(err error) *Event {
	e.Event = e.Event.Err(err)
	return e
}

// Msgf sends the event with a formatted message.
func (e *Event) Msgf(format string, v ...interface{}) {
	e.Event.Msgf(format, v...)
}
