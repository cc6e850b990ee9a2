// Package tlog defines the logging surface used across Tether.
package tlog

//go:generate mockgen -destination=logmock/logger.go -package=logmock github.com/QYUbit/Tether/pkg/tlog Logger

type Logger interface {
	Info(s string, keyValues ...any)
	Error(s string, keyValues ...any)
	Debug(s string, keyValues ...any)
	Warn(s string, keyValues ...any)
}

type nop struct{}

func (nop) Info(string, ...any)  {}
func (nop) Error(string, ...any) {}
func (nop) Debug(string, ...any) {}
func (nop) Warn(string, ...any)  {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nop{}
}

// OrNop returns l, or a Nop logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return nop{}
	}
	return l
}
