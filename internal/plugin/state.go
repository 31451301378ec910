package plugin

import "time"

// State is a loaded plugin's lifecycle state (spec.md §3).
type State string

const (
	StateLoading   State = "Loading"
	StateActive    State = "Active"
	StatePaused    State = "Paused"
	StateError     State = "Error"
	StateUnloading State = "Unloading"
	StateUnloaded  State = "Unloaded"
)

// Active reports whether a plugin in this state counts as "in a
// non-Unloaded state" for the at-most-one-record invariant (spec.md §3).
func (s State) Active() bool {
	return s != StateUnloaded
}

// ResourceUsage is a point-in-time sample of a loaded plugin's consumption
// (spec.md §3), compared against its ResourceLimits by internal/sandbox.
type ResourceUsage struct {
	MemoryBytes             int64
	CPUTimeMS               int64
	OpenFileHandles         int
	NetworkRequestsPerMinute int
	DBQueriesPerMinute       int
}

// Loaded is spec.md §3's LoadedPlugin. The registry exclusively owns
// Loaded records; external holders see only a Manifest.ID.
type Loaded struct {
	Manifest     *Manifest
	State        State
	LoadedAt     time.Time
	LastActivity time.Time
	Usage        ResourceUsage
	Instance     Instance

	registeredRoutes []string
	registeredMenus  []string
}
