package logger

import (
	"io"
	"os"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	emailRegex  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	bearerRegex = regexp.MustCompile(`(?i)bearer\s+[^\s"]+`)
	tokenRegex  = regexp.MustCompile(`eyJ[^\s"]+`)
	cookieRegex = regexp.MustCompile(`access-token=[^\s;"]+`)
)

// Fields are extra key/value pairs attached to a log entry.
type Fields map[string]any

// Logger is a centralized structured logger. Every entry carries the module
// that produced it.
type Logger struct {
	out    *logrus.Logger
	fields Fields
}

// New creates a Logger writing JSON lines to stdout.
func New() *Logger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a Logger writing JSON lines to w.
func NewWithWriter(w io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	return &Logger{out: l}
}

// SetLevel changes the minimum level. Unknown names leave the level unchanged.
func (l *Logger) SetLevel(name string) {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return
	}
	l.out.SetLevel(lvl)
}

// With returns a child logger that always includes the given fields.
func (l *Logger) With(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{out: l.out, fields: merged}
}

// Anonymize replaces sensitive information in logs (emails, tokens,
// bearer headers and the credential cookie).
func Anonymize(s string) string {
	s = emailRegex.ReplaceAllString(s, "[REDACTED_EMAIL]")
	s = bearerRegex.ReplaceAllString(s, "Bearer [REDACTED_TOKEN]")
	s = cookieRegex.ReplaceAllString(s, "access-token=[REDACTED_TOKEN]")
	s = tokenRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")
	return s
}

func (l *Logger) entry(module string) *logrus.Entry {
	e := l.out.WithField("module", module)
	for k, v := range l.fields {
		if str, ok := v.(string); ok {
			v = Anonymize(str)
		}
		e = e.WithField(k, v)
	}
	return e
}

func (l *Logger) Info(module, msg string) {
	l.entry(module).Info(Anonymize(msg))
}

func (l *Logger) Debug(module, msg string) {
	l.entry(module).Debug(Anonymize(msg))
}

func (l *Logger) Warn(module, msg string) {
	l.entry(module).Warn(Anonymize(msg))
}

func (l *Logger) Error(module, msg string, err error) {
	e := l.entry(module)
	if err != nil {
		e = e.WithField("error", Anonymize(err.Error()))
	}
	e.Error(Anonymize(msg))
}
