// Package authlog is the logging collaborator (spec.md §6): level plus a
// format string, and nothing that could leak passwords, keys, verifiers,
// or derived secrets. Grounded on the `github.com/op/go-logging` usage
// throughout katzenpost (e.g. `var log = logging.MustGetLogger("wire_server")`
// in wire/server/server.go).
package authlog

import (
	"os"

	"github.com/op/go-logging"
)

// Logger is the interface the authenticator and its collaborators log
// through. No method ever takes a raw secret; callers are responsible for
// only passing state names, error categories, and counts.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// goLogger adapts github.com/op/go-logging's *logging.Logger to Logger.
type goLogger struct {
	l *logging.Logger
}

func (g goLogger) Debugf(format string, args ...interface{}) { g.l.Debugf(format, args...) }
func (g goLogger) Infof(format string, args ...interface{})  { g.l.Infof(format, args...) }
func (g goLogger) Warnf(format string, args ...interface{})  { g.l.Warningf(format, args...) }
func (g goLogger) Errorf(format string, args ...interface{}) { g.l.Errorf(format, args...) }

// New returns a Logger for the named subsystem (e.g. "authenticator"),
// formatted the way katzenpost's wire server logs: level, module, message.
func New(module string) Logger {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatter := logging.MustStringFormatter(
		`%{time:2006-01-02 15:04:05.000} %{level:.4s} %{module}: %{message}`,
	)
	formatted := logging.NewBackendFormatter(backend, formatter)
	logging.SetBackend(formatted)
	return goLogger{l: logging.MustGetLogger(module)}
}

// nopLogger discards everything. Used as the default when the embedder
// does not install a Logger, and in tests.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// Nop returns a Logger that discards every message.
func Nop() Logger { return nopLogger{} }
