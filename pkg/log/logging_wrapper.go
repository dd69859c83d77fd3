package log

import "github.com/tacusci/logging/v2"

var Debug = func(format string, a ...interface{}) {
	logging.Debug(format, a...) //nolint
}

var Info = func(format string, a ...interface{}) {
	logging.Info(format, a...) //nolint
}

var Warn = func(format string, a ...interface{}) {
	logging.Warn(format, a...) //nolint
}

var Error = func(format string, a ...interface{}) {
	logging.Error(format, a...) //nolint
}

var Fatal = func(format string, a ...interface{}) {
	logging.Fatal(format, a...) //nolint
}

// Camera scopes every message to a bracketed camera title. The
// package level funcs are resolved at call time so overloads apply.
type Camera string

func (c Camera) Debug(format string, a ...interface{}) {
	Debug("[%s] "+format, c.prepend(a)...)
}

func (c Camera) Info(format string, a ...interface{}) {
	Info("[%s] "+format, c.prepend(a)...)
}

func (c Camera) Warn(format string, a ...interface{}) {
	Warn("[%s] "+format, c.prepend(a)...)
}

func (c Camera) Error(format string, a ...interface{}) {
	Error("[%s] "+format, c.prepend(a)...)
}

func (c Camera) prepend(a []interface{}) []interface{} {
	return append([]interface{}{string(c)}, a...)
}
