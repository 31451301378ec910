package platform

import (
	"context"
	"io"
	"time"
)

// FileMetadata describes a file or directory entry (spec.md §6).
type FileMetadata struct {
	Name    string
	Size    int64
	IsDir   bool
	ModTime time.Time
}

// FileSystem is the platform's file storage contract.
type FileSystem interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, dir string) ([]FileMetadata, error)
	Mkdir(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	Metadata(ctx context.Context, path string) (FileMetadata, error)
}

// Storage is the platform's key/value contract.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	Clear(ctx context.Context, prefix string) error
}

// Migration is a single schema migration step, applied in strictly
// increasing Version order, one transaction per migration (spec.md §4.5
// stage 4).
type Migration struct {
	Version uint
	Name    string
	Up      string // SQL
}

// Row is the minimal cursor surface Query returns, narrowed from
// pgx.Rows so callers outside this package don't need a pgx import.
type Row interface {
	Scan(dest ...any) error
}

// Rows iterates a query result set.
type Rows interface {
	Next() bool
	Row
	Close()
	Err() error
}

// Tx is a database transaction handed to Database.Transaction's closure.
type Tx interface {
	Execute(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// Database is the platform's relational database contract.
type Database interface {
	Execute(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Transaction(ctx context.Context, fn func(Tx) error) error
	Migrate(ctx context.Context, schema string, migrations []Migration) error
}

// HTTPRequest is a transport-agnostic outbound request description.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    io.Reader
	Timeout time.Duration
}

// HTTPResponse is the result of Network.Request.
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Network is the platform's outbound HTTP contract.
type Network interface {
	Request(ctx context.Context, req HTTPRequest) (HTTPResponse, error)
}

// Capabilities describes what a PlatformProvider instance actually
// supports (spec.md §6) — e.g. a browser-hosted kernel reports
// HasDatabase=false and the plugin loader's migration stage is skipped
// rather than failing outright for plugins with no schema.
type Capabilities struct {
	HasFilesystem      bool
	HasDatabase        bool
	HasBackgroundTasks bool
	MaxFileSize        int64 // 0 means unbounded
}

// Provider bundles the four collaborators a kernel instance is built from
// (spec.md §2: "the orchestrator constructs the platform provider...").
// Database/Storage may be nil on constrained platforms; callers must
// consult Capabilities before using them.
type Provider struct {
	FS           FileSystem
	KV           Storage
	DB           Database
	Net          Network
	Capabilities Capabilities
}
