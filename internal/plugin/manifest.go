package plugin

import (
	"context"
	"encoding/json"

	"github.com/Masterminds/semver/v3"
)

// DependencyRef is one entry of PluginManifest.dependencies (spec.md §3).
type DependencyRef struct {
	ID         string `json:"id"`
	VersionReq string `json:"version_req"`
	Optional   bool   `json:"optional"`
}

// ResourceLimits bounds what a loaded plugin may consume (spec.md §3),
// enforced by internal/sandbox's periodic sampler.
type ResourceLimits struct {
	MemoryBytes            int64 `json:"memory_bytes"`
	CPUTimeMS               int64 `json:"cpu_time_ms"`
	OpenFileHandles         int   `json:"open_file_handles"`
	NetworkRequestsPerMinute int  `json:"network_requests_per_minute"`
	DBQueriesPerMinute       int  `json:"db_queries_per_minute"`
}

// DatabasePermissions declares what a plugin's isolated database namespace
// may do (spec.md §4.6's PluginDatabase permission set).
type DatabasePermissions struct {
	CanCreate  bool  `json:"can_create"`
	CanDrop    bool  `json:"can_drop"`
	CanAlter   bool  `json:"can_alter"`
	MaxTables  int   `json:"max_tables"`
	MaxStorage int64 `json:"max_storage_bytes"`
}

// RouteSpec is a declared API route a plugin registers at load time
// (spec.md §3's api_routes, §4.7).
type RouteSpec struct {
	Method              string   `json:"method"`
	Path                string   `json:"path"`
	RequiredPermissions []string `json:"required_permissions"`
}

// MenuItem and UIComponent are opaque descriptors the UI layer (out of
// scope per spec.md §1) reads after load; the core only tracks their ids
// for uniqueness and unload bookkeeping.
type MenuItem struct {
	ID string `json:"id"`
}

type UIComponent struct {
	ID string `json:"id"`
}

// Manifest is spec.md §3's PluginManifest, parsed from a plugin.json
// (encoding/json is the one concrete format the core reads directly for
// manifests — they are kernel-native, unlike the externally-delegated
// config file format).
type Manifest struct {
	ID                string                 `json:"id"`
	Version           *semver.Version        `json:"-"`
	VersionRaw        string                 `json:"version"`
	MinKernelVersion  string                 `json:"min_kernel_version"`
	SupportedPlatforms []string              `json:"supported_platforms"`
	Dependencies      []DependencyRef        `json:"dependencies"`
	RequiredPermissions []string             `json:"required_permissions"`
	UIComponents      []UIComponent          `json:"ui_components"`
	MenuItems         []MenuItem             `json:"menu_items"`
	APIRoutes         []RouteSpec            `json:"api_routes"`
	SettingsSchema    json.RawMessage        `json:"settings_schema,omitempty"`
	Assets            []string               `json:"assets,omitempty"`
	ResourceLimits    *ResourceLimits        `json:"resource_limits,omitempty"`
	Migrations        []MigrationSpec        `json:"migrations,omitempty"`
	DatabasePerms     *DatabasePermissions    `json:"database_permissions,omitempty"`
	RequiresSignature bool                   `json:"requires_signature,omitempty"`
	Signature         string                 `json:"signature,omitempty"`
}

// MigrationSpec mirrors platform.Migration in manifest-JSON form.
type MigrationSpec struct {
	Version uint   `json:"version"`
	Name    string `json:"name"`
	Up      string `json:"up"`
}

// ParseManifest decodes a plugin.json document and resolves its semver
// fields, failing loudly (not silently dropping the candidate) — the
// caller (Discover) is responsible for logging and skipping on error per
// spec.md §4.5 ("malformed... candidates are logged and skipped").
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	v, err := semver.NewVersion(m.VersionRaw)
	if err != nil {
		return nil, err
	}
	m.Version = v
	return &m, nil
}

// Factory constructs a plugin's runtime object given its PluginContext
// (spec.md §4.5 stage 5). Registered by the embedding host at program
// build time — this kernel has no dynamic native-code loading (see
// DESIGN.md's resolution of the sandboxing-vs-hot-reload open question).
type Factory func(ctx Context) (Instance, error)

// Instance is the runtime object a loaded plugin exposes to the registry.
type Instance interface {
	Shutdown(ctx context.Context) error
}

// RouteHandler is an optional Instance capability for serving declared
// api_routes. The kernel's route registration does not call HandleRoute:
// every registered plugin route is answered with 501, whether or not the
// Instance implements this interface.
type RouteHandler interface {
	HandleRoute(ctx context.Context, route RouteSpec, params map[string]string, body []byte) (status int, respBody []byte, err error)
}
