package plugin

import "context"

// Context is the PluginContext contract handed to a plugin's Factory
// (spec.md §6). The concrete, capability-enforcing implementation lives in
// internal/sandbox — this package only declares the contract so plugin and
// sandbox don't form an import cycle (sandbox imports plugin for Manifest/
// Context, never the reverse).
type Context interface {
	PluginID() string
	Config() map[string]any

	APIClient() APIClient
	EventBus() EventBusClient
	Database() (PluginDatabase, bool)
	FileSystem() ScopedFileSystem
	Logger() Logger
}

// APIClient is the mediated surface a plugin uses to call back into the
// kernel API (spec.md §4.6): every call is checked against the plugin's
// declared required_permissions before being forwarded.
type APIClient interface {
	Call(ctx context.Context, method, path string, body any) (status int, respBody []byte, err error)
}

// EventBusClient is the mediated event bus surface handed to a plugin: its
// publishes are tagged with the plugin's id and subject to rate limiting.
type EventBusClient interface {
	Publish(eventType string, body any) error
	Subscribe(filterTypes []string, handler func(eventType, source string, body any)) (unsubscribe func())
}

// PluginDatabase is a plugin's view over platform.Database. Statements run
// against the shared database as written; no per-plugin schema or other
// namespace is applied. Of the manifest-declared DatabasePermissions only
// can_create/can_alter/can_drop are enforced; max_tables and max_storage
// are not checked.
type PluginDatabase interface {
	Execute(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (rows Rows, err error)
}

// Rows mirrors platform.Rows without importing the platform package
// directly from plugin's public contract surface.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}

// ScopedFileSystem is a plugin's view of the filesystem, rooted at
// <plugins_root>/<plugin_id>/ with path-escape rejection.
type ScopedFileSystem interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, dir string) ([]string, error)
}

// Logger is the always-available logging surface (spec.md §4.6).
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(err error, msg string, args ...any)
}
