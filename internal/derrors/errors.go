// Package derrors defines the typed error kinds used across the runtime.
//
// Each kind carries an operation tag, a human message, and an optional
// wrapped cause. The orchestrator boundary maps any of these to a generic
// user-visible reply while logging the full detail.
package derrors

import "fmt"

// Kind distinguishes the error families of the runtime.
type Kind string

const (
	KindCLI       Kind = "cli"
	KindSession   Kind = "session"
	KindScheduler Kind = "scheduler"
	KindStream    Kind = "stream"
	KindSecurity  Kind = "security"
	KindWebhook   Kind = "webhook"
	KindInfra     Kind = "infra"
)

// Error is the shared shape of all typed runtime errors.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a typed error without a cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds a typed error around a cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// CLI reports a subprocess spawn/exit/parse/timeout failure.
func CLI(op, msg string) *Error { return New(KindCLI, op, msg) }

// Session reports corrupt session state or persistence failure.
func Session(op, msg string) *Error { return New(KindSession, op, msg) }

// Scheduler reports bad schedules, missing task folders, lock failures.
func Scheduler(op, msg string) *Error { return New(KindScheduler, op, msg) }

// Stream reports premature stream end or a missing result event.
func Stream(op, msg string) *Error { return New(KindStream, op, msg) }

// Security reports path traversal or control characters in paths.
func Security(op, msg string) *Error { return New(KindSecurity, op, msg) }

// Webhook reports render/dispatch failures on the webhook path.
func Webhook(op, msg string) *Error { return New(KindWebhook, op, msg) }

// Infra reports PID lock collisions and atomic-write failures.
func Infra(op, msg string) *Error { return New(KindInfra, op, msg) }
