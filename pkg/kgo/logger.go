package kgo

import (
	"fmt"
	"log"
	"os"

	"github.com/davecgh/go-spew/spew"
)

// LogLevel mirrors the teacher's own level set; no third-party logging
// library appears anywhere in the retrieval pack, so this structured
// key-value Logger convention (cfg.logger.Log(level, msg, k, v, ...)) is
// carried over verbatim rather than replaced with stdlib log.Printf calls.
type LogLevel int8

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return "NONE"
	}
}

// Logger is the teacher's key-value structured logging interface.
type Logger interface {
	Level() LogLevel
	Log(level LogLevel, msg string, keyvals ...interface{})
}

// nopLogger discards everything; the default when no logger is configured.
type nopLogger struct{}

func (nopLogger) Level() LogLevel                                    { return LogLevelNone }
func (nopLogger) Log(LogLevel, string, ...interface{})                {}

// BasicLogger writes to a standard library *log.Logger, formatting
// key-value pairs inline. At LogLevelDebug, any keyval value implementing
// no Stringer/error is rendered with spew.Sdump so nested structures
// (ClusterMetadata snapshots, in-flight queues) are readable — this never
// runs outside LogLevelDebug, so it stays off the hot path.
type BasicLogger struct {
	level LogLevel
	out   *log.Logger
}

// NewBasicLogger returns a Logger writing to stderr at the given level.
func NewBasicLogger(level LogLevel) *BasicLogger {
	return &BasicLogger{level: level, out: log.New(os.Stderr, "", log.LstdFlags)}
}

func (b *BasicLogger) Level() LogLevel { return b.level }

func (b *BasicLogger) Log(level LogLevel, msg string, keyvals ...interface{}) {
	if level > b.level || level == LogLevelNone {
		return
	}
	line := fmt.Sprintf("[%s] %s", level, msg)
	for i := 0; i+1 < len(keyvals); i += 2 {
		k := keyvals[i]
		v := keyvals[i+1]
		if level == LogLevelDebug {
			if _, ok := v.(fmt.Stringer); !ok {
				if _, ok := v.(error); !ok {
					line += fmt.Sprintf(" %v=%s", k, spew.Sdump(v))
					continue
				}
			}
		}
		line += fmt.Sprintf(" %v=%v", k, v)
	}
	b.out.Print(line)
}
