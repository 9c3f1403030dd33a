package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"imagenamer/internal/errors"
)

var (
	isDebug = false
	logger  = NewLogger()
)

// Field is a single structured key/value pair attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

// F builds a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger wraps a logrus entry so fields can be accumulated with With.
type Logger struct {
	entry *logrus.Entry
	file  *os.File
}

type options struct {
	out   io.Writer
	json  bool
	file  string
	level logrus.Level
}

// Option configures a Logger.
type Option func(*options)

// WithOutput sends log lines to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithJSON switches to one JSON object per line.
func WithJSON() Option {
	return func(o *options) { o.json = true }
}

// WithFile tees log lines into the file at path (appending).
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// WithLevel sets the minimum level; unknown names keep the default.
func WithLevel(level string) Option {
	return func(o *options) {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			o.level = lvl
		}
	}
}

func NewLogger(opts ...Option) *Logger {
	o := &options{out: os.Stdout, level: logrus.TraceLevel}
	for _, opt := range opts {
		opt(o)
	}

	l := &Logger{}
	out := o.out
	if o.file != "" {
		f, err := os.OpenFile(o.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			l.file = f
			out = io.MultiWriter(o.out, f)
		} else {
			fmt.Fprintf(os.Stderr, "log: cannot open %s: %v\n", o.file, err)
		}
	}

	base := logrus.New()
	base.SetOutput(out)
	base.SetLevel(o.level)
	base.SetFormatter(&formatter{json: o.json})

	l.entry = logrus.NewEntry(base)
	return l
}

// Configure replaces the package logger used by the top-level functions.
func Configure(opts ...Option) {
	logger = NewLogger(opts...)
}

func SetDebug(debug bool) {
	isDebug = debug
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...Field) *Logger {
	data := logrus.Fields{}
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	return &Logger{entry: l.entry.WithFields(data), file: l.file}
}

// WithContext attaches ctx to the entry. Nothing reads it yet.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{entry: l.entry.WithContext(ctx), file: l.file}
}

// WithError attaches err and whatever typed detail it carries.
func (l *Logger) WithError(err error) *Logger {
	return l.With(errorFields(err)...)
}

func (l *Logger) Info(msg string)  { l.log(logrus.InfoLevel, msg) }
func (l *Logger) Warn(msg string)  { l.log(logrus.WarnLevel, msg) }
func (l *Logger) Error(msg string) { l.log(logrus.ErrorLevel, msg) }

func (l *Logger) Debug(msg string) {
	if isDebug {
		l.log(logrus.DebugLevel, msg)
	}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(logrus.WarnLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if isDebug {
		l.log(logrus.DebugLevel, fmt.Sprintf(format, args...))
	}
}

func (l *Logger) log(level logrus.Level, msg string) {
	l.entry.WithField("caller", caller()).Log(level, msg)
}

// Info logs an informational message on the package logger.
func Info(msg string) { logger.Info(msg) }

// Infof logs a formatted informational message.
func Infof(format string, args ...interface{}) { logger.Infof(format, args...) }

// Warn logs a warning.
func Warn(msg string) { logger.Warn(msg) }

// Warnf logs a formatted warning.
func Warnf(format string, args ...interface{}) { logger.Warnf(format, args...) }

// Error logs an error message.
func Error(msg string) { logger.Error(msg) }

// Errorf logs a formatted error message.
func Errorf(format string, args ...interface{}) { logger.Errorf(format, args...) }

// Debug logs a message when debug output is enabled.
func Debug(msg string) { logger.Debug(msg) }

// Debugf logs a formatted message when debug output is enabled.
func Debugf(format string, args ...interface{}) { logger.Debugf(format, args...) }

// LogWithFields returns the package logger with fields attached.
func LogWithFields(fields ...Field) *Logger {
	return logger.With(fields...)
}

// LogWithError returns the package logger with err's details attached.
func LogWithError(err error) *Logger {
	return logger.WithError(err)
}

// LogError logs err at error level with msg.
func LogError(err error, msg string) {
	logger.WithError(err).Error(msg)
}

// ErrorWithStack logs err together with the current goroutine stack.
func ErrorWithStack(err error, msg string) {
	logger.WithError(err).With(F("stack", string(debug.Stack()))).Error(msg)
}

func errorFields(err error) []Field {
	if err == nil {
		return []Field{F("error", "<nil>")}
	}
	fields := []Field{F("error", err.Error())}

	var kinded interface{ Kind() errors.ErrorKind }
	if errors.As(err, &kinded) {
		fields = append(fields, F("error_kind", int(errors.KindOf(err))))
	}
	var fileErr *errors.FileError
	if errors.As(err, &fileErr) && fileErr.Path() != "" {
		fields = append(fields, F("path", fileErr.Path()))
	}
	var configErr *errors.ConfigError
	if errors.As(err, &configErr) && configErr.Param() != "" {
		fields = append(fields, F("param", configErr.Param()))
	}
	var refErr *errors.ReferenceError
	if errors.As(err, &refErr) && refErr.Document() != "" {
		fields = append(fields, F("document", refErr.Document()), F("line", refErr.Line()))
	}
	var provErr *errors.ProviderError
	if errors.As(err, &provErr) && provErr.Provider() != "" {
		fields = append(fields, F("provider", provErr.Provider()), F("model", provErr.Model()))
	}
	return fields
}

// caller reports the first frame outside this file.
func caller() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.HasSuffix(frame.File, "/internal/log/logger.go") && !strings.Contains(frame.File, "sirupsen/logrus") {
			return fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
		}
		if !more {
			return "unknown"
		}
	}
}

type formatter struct {
	json bool
}

func (f *formatter) Format(e *logrus.Entry) ([]byte, error) {
	level := strings.ToUpper(e.Level.String())
	if level == "WARNING" {
		level = "WARN"
	}
	ts := e.Time.Format(time.RFC3339)

	if f.json {
		data := make(map[string]interface{}, len(e.Data)+3)
		for k, v := range e.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			data[k] = v
		}
		data["level"] = level
		data["message"] = e.Message
		data["timestamp"] = ts
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	}

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k != "caller" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b bytes.Buffer
	fmt.Fprintf(&b, "[%s] %-5s %s", ts, level, e.Message)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	if c, ok := e.Data["caller"]; ok {
		fmt.Fprintf(&b, " caller=%v", c)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
