package sandbox

import "github.com/qorzen/kernel/pkg/logging"

// pluginLogger tags every entry with the owning plugin's id as the
// subsystem, so log aggregation can filter per-plugin without plugins
// needing to know the kernel's logging package exists.
type pluginLogger struct {
	pluginID string
}

func (l *pluginLogger) subsystem() string { return "plugin." + l.pluginID }

func (l *pluginLogger) Debug(msg string, args ...any) { logging.Debug(l.subsystem(), msg, args...) }
func (l *pluginLogger) Info(msg string, args ...any)  { logging.Info(l.subsystem(), msg, args...) }
func (l *pluginLogger) Warn(msg string, args ...any)  { logging.Warn(l.subsystem(), msg, args...) }
func (l *pluginLogger) Error(err error, msg string, args ...any) {
	logging.Error(l.subsystem(), err, msg, args...)
}
