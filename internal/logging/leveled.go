package logging

import "context"

// Leveled adapts a Logger to the context-free leveled method set used by
// third-party clients such as go-retryablehttp.
type Leveled struct {
	L Logger
}

func (l Leveled) Error(msg string, keysAndValues ...interface{}) {
	l.L.Error(context.Background(), msg, keysAndValues...)
}

func (l Leveled) Info(msg string, keysAndValues ...interface{}) {
	l.L.Info(context.Background(), msg, keysAndValues...)
}

func (l Leveled) Debug(msg string, keysAndValues ...interface{}) {
	l.L.Debug(context.Background(), msg, keysAndValues...)
}

func (l Leveled) Warn(msg string, keysAndValues ...interface{}) {
	l.L.Warn(context.Background(), msg, keysAndValues...)
}
