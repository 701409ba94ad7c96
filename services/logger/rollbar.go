package logsvc

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/identity"
)

// RollbarLogger prints to a std logger and reports to rollbar when enabled.
type RollbarLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*RollbarLogger)(nil) // interface compliance check

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.Debug)
	return &RollbarLogger{std: std, debug: conf.Debug}
}

// New returns a RollbarLogger printing to stdout with prefix.
func New(prefix string, flags int, conf *core.Config) *RollbarLogger {
	return NewRollbarLogger(log.New(os.Stdout, prefix, flags), conf)
}

// prepare builds rollbar args; expected fmt: msg | error, map[string]interface{}, identity.Identity.
// The first identity becomes the person of this item only, through a context arg; its ID is never printed.
func (l *RollbarLogger) prepare(msg string, args []interface{}) (rbArgs, printed []interface{}) {
	var idSet bool
	rbArgs = make([]interface{}, 0, len(args)+2)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		if id, ok := arg.(identity.Identity); ok {
			if !idSet {
				person := &rollbar.Person{Id: id.ID, Username: string(id.Role)}
				rbArgs = append(rbArgs, rollbar.NewPersonContext(context.Background(), person))
				idSet = true
			}
			printed = append(printed, "role="+string(id.Role))
			continue
		}
		rbArgs = append(rbArgs, arg)
		printed = append(printed, arg)
	}
	return rbArgs, printed
}

func (l *RollbarLogger) print(level, msg string, args []interface{}) {
	line := level + ": " + msg
	for _, arg := range args {
		line += fmt.Sprintf(" | %+v", arg)
	}
	_ = l.std.Output(3, line)
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	rbArgs, printed := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	l.print("DEBUG", msg, printed)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, printed := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	l.print("INFO", msg, printed)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, printed := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	l.print("WARN", msg, printed)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, printed := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	l.print("ERROR", msg, printed)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, printed := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	rollbar.Wait()
	l.print("FATAL", msg, printed)
	l.std.Fatal(msg)
}
