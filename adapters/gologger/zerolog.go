package gologger

import (
	"context"
	"io"
	"os"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/rs/zerolog"
)

// ZerologLogger writes glog calls as structured zerolog events. Variadic
// arguments are read as key/value pairs.
type ZerologLogger struct {
	logger zerolog.Logger
}

func NewZerologLogger(out io.Writer, service string, level zerolog.Level) *ZerologLogger {
	if out == nil {
		out = os.Stdout
	}
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if service != "" {
		logger = logger.With().Str("service", service).Logger()
	}
	return &ZerologLogger{logger: logger}
}

// FromZerolog wraps an already configured zerolog logger.
func FromZerolog(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

func (l *ZerologLogger) Trace(msg string, args ...any) { l.write(zerolog.TraceLevel, msg, args) }
func (l *ZerologLogger) Debug(msg string, args ...any) { l.write(zerolog.DebugLevel, msg, args) }
func (l *ZerologLogger) Info(msg string, args ...any)  { l.write(zerolog.InfoLevel, msg, args) }
func (l *ZerologLogger) Warn(msg string, args ...any)  { l.write(zerolog.WarnLevel, msg, args) }
func (l *ZerologLogger) Error(msg string, args ...any) { l.write(zerolog.ErrorLevel, msg, args) }

// Fatal logs at fatal level without exiting the process.
func (l *ZerologLogger) Fatal(msg string, args ...any) { l.write(zerolog.FatalLevel, msg, args) }

// WithContext prefers a logger stored in ctx by zerolog's WithContext.
func (l *ZerologLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx != nil {
		if scoped := zerolog.Ctx(ctx); scoped != nil && scoped.GetLevel() != zerolog.Disabled {
			return &ZerologLogger{logger: *scoped}
		}
	}
	return l
}

func (l *ZerologLogger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	return &ZerologLogger{logger: l.logger.With().Fields(fields).Logger()}
}

// GetLogger satisfies glog.LoggerProvider with a child tagged by name.
func (l *ZerologLogger) GetLogger(name string) glog.Logger {
	if name == "" {
		return l
	}
	return &ZerologLogger{logger: l.logger.With().Str("logger", name).Logger()}
}

func (l *ZerologLogger) write(level zerolog.Level, msg string, args []any) {
	event := l.logger.WithLevel(level)
	if event == nil {
		return
	}
	if len(args) > 0 {
		event = event.Fields(args)
	}
	event.Msg(msg)
}

var (
	_ glog.Logger         = (*ZerologLogger)(nil)
	_ glog.FieldsLogger   = (*ZerologLogger)(nil)
	_ glog.LoggerProvider = (*ZerologLogger)(nil)
)
