package plugin

import (
	"context"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/require"

	"github.com/qorzen/kernel/internal/dependency"
	"github.com/qorzen/kernel/internal/kernelerr"
)

func mustVersion(t *testing.T, raw string) *semver.Version {
	t.Helper()
	v, err := semver.NewVersion(raw)
	require.NoError(t, err)
	return v
}

func manifestOf(t *testing.T, id string, deps ...DependencyRef) *Manifest {
	return &Manifest{ID: id, Version: mustVersion(t, "1.0.0"), VersionRaw: "1.0.0", Dependencies: deps}
}

type noopInstance struct{ shutdownCalled bool }

func (n *noopInstance) Shutdown(ctx context.Context) error {
	n.shutdownCalled = true
	return nil
}

func TestRegistry_ResolveDependencies_Cycle(t *testing.T) {
	r := New(Config{})
	r.AddCandidate(manifestOf(t, "p1", DependencyRef{ID: "p2", VersionReq: ">=1.0.0"}), nil)
	r.AddCandidate(manifestOf(t, "p2", DependencyRef{ID: "p3", VersionReq: ">=1.0.0"}), nil)
	r.AddCandidate(manifestOf(t, "p3", DependencyRef{ID: "p1", VersionReq: ">=1.0.0"}), nil)

	_, err := r.ResolveDependencies()
	require.Error(t, err)

	var kerr *kernelerr.Error
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, kernelerr.KindDependency, kerr.Kind())
	require.Contains(t, kerr.Error(), "p1")
	require.Contains(t, kerr.Error(), "p2")
	require.Contains(t, kerr.Error(), "p3")
}

func TestRegistry_ResolveDependencies_OptionalDoesNotCycle(t *testing.T) {
	r := New(Config{})
	r.AddCandidate(manifestOf(t, "p1", DependencyRef{ID: "p2", VersionReq: ">=1.0.0", Optional: true}), nil)
	r.AddCandidate(manifestOf(t, "p2", DependencyRef{ID: "p1", VersionReq: ">=1.0.0", Optional: true}), nil)

	order, err := r.ResolveDependencies()
	require.NoError(t, err)
	require.Len(t, order, 2)
}

func TestRegistry_LoadRespectsMandatoryDependencyOrder(t *testing.T) {
	base := manifestOf(t, "base")
	dependent := manifestOf(t, "dependent", DependencyRef{ID: "base", VersionReq: ">=1.0.0"})

	r := New(Config{})
	r.AddCandidate(base, func(ctx Context) (Instance, error) { return &noopInstance{}, nil })
	r.AddCandidate(dependent, func(ctx Context) (Instance, error) { return &noopInstance{}, nil })

	// Loading the dependent before its mandatory dependency is Active fails.
	err := r.Load(context.Background(), "dependent")
	require.Error(t, err)
	var kerr *kernelerr.Error
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, kernelerr.KindDependency, kerr.Kind())

	require.NoError(t, r.Load(context.Background(), "base"))
	require.NoError(t, r.Load(context.Background(), "dependent"))

	status, ok := r.Status("dependent")
	require.True(t, ok)
	require.Equal(t, StateActive, status.State)
}

func TestRegistry_UnloadRefusesWhileMandatoryDependentActive(t *testing.T) {
	base := manifestOf(t, "base")
	dependent := manifestOf(t, "dependent", DependencyRef{ID: "base", VersionReq: ">=1.0.0"})

	r := New(Config{})
	r.AddCandidate(base, func(ctx Context) (Instance, error) { return &noopInstance{}, nil })
	r.AddCandidate(dependent, func(ctx Context) (Instance, error) { return &noopInstance{}, nil })

	require.NoError(t, r.Load(context.Background(), "base"))
	require.NoError(t, r.Load(context.Background(), "dependent"))

	err := r.Unload(context.Background(), "base")
	require.Error(t, err)
	var kerr *kernelerr.Error
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, kernelerr.KindConflict, kerr.Kind())

	require.NoError(t, r.Unload(context.Background(), "dependent"))
	require.NoError(t, r.Unload(context.Background(), "base"))
}

func TestRegistry_UnloadIsIdempotent(t *testing.T) {
	r := New(Config{})
	require.NoError(t, r.Unload(context.Background(), "never-loaded"))
}

func TestRegistry_ReloadPausesAndResumesDependents(t *testing.T) {
	base := manifestOf(t, "base")
	dependent := manifestOf(t, "dependent", DependencyRef{ID: "base", VersionReq: ">=1.0.0"})

	r := New(Config{ReloadPause: 1})
	r.AddCandidate(base, func(ctx Context) (Instance, error) { return &noopInstance{}, nil })
	r.AddCandidate(dependent, func(ctx Context) (Instance, error) { return &noopInstance{}, nil })

	require.NoError(t, r.Load(context.Background(), "base"))
	require.NoError(t, r.Load(context.Background(), "dependent"))

	require.NoError(t, r.Reload(context.Background(), "base"))

	baseStatus, ok := r.Status("base")
	require.True(t, ok)
	require.Equal(t, StateActive, baseStatus.State)

	dependentStatus, ok := r.Status("dependent")
	require.True(t, ok)
	require.Equal(t, StateActive, dependentStatus.State)
}

func TestRegistry_LoadFailsSecurityStageMarksError(t *testing.T) {
	m := manifestOf(t, "needs-admin")
	m.RequiredPermissions = []string{"admin:all"}

	r := New(Config{
		Permissions: func(required []string) error {
			return kernelerr.Permission("test", "admin:all", "")
		},
	})
	r.AddCandidate(m, func(ctx Context) (Instance, error) { return &noopInstance{}, nil })

	err := r.Load(context.Background(), "needs-admin")
	require.Error(t, err)

	status, ok := r.Status("needs-admin")
	require.True(t, ok)
	require.Equal(t, StateError, status.State)
}

func TestRegistry_DependencyGraphSharedWithDependencyPackage(t *testing.T) {
	// Sanity check that plugin.Registry builds on the same graph type the
	// manager supervisor uses, rather than a second bespoke implementation.
	r := New(Config{})
	require.IsType(t, &dependency.Graph{}, r.graph)
}
