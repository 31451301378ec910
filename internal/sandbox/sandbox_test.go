package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qorzen/kernel/internal/account"
	"github.com/qorzen/kernel/internal/plugin"
)

func TestScopedFileSystem_RejectsPathEscape(t *testing.T) {
	fs := newScopedFileSystem("demo", nil)

	_, err := fs.resolve("../../etc/passwd")
	require.Error(t, err)

	_, err = fs.resolve("/etc/passwd")
	require.Error(t, err)

	full, err := fs.resolve("data/settings.json")
	require.NoError(t, err)
	require.Equal(t, "plugins/demo/data/settings.json", full)
}

func TestAPIClient_RejectsUndeclaredPermission(t *testing.T) {
	m := &plugin.Manifest{ID: "demo", RequiredPermissions: []string{"api:read"}}
	c := &apiClient{pluginID: "demo", manifest: m}

	_, _, err := c.Call(context.Background(), "POST", "/v1/widgets", nil)
	require.Error(t, err)
}

func TestAPIClient_AllowsDeclaredPermission(t *testing.T) {
	m := &plugin.Manifest{ID: "demo", RequiredPermissions: []string{"api:read"}}
	c := &apiClient{pluginID: "demo", manifest: m, dispatcher: fakeDispatcher{}}

	status, body, err := c.Call(context.Background(), "GET", "/v1/widgets", nil)
	require.NoError(t, err)
	require.Equal(t, 200, status)
	require.Equal(t, []byte("ok"), body)
}

type fakeDispatcher struct{}

func (fakeDispatcher) DispatchRaw(method, path string, body []byte, headers map[string]string) (int, []byte, error) {
	return 200, []byte("ok"), nil
}

func TestExceedsLimits(t *testing.T) {
	limits := &plugin.ResourceLimits{MemoryBytes: 100}
	require.True(t, exceedsLimits(plugin.ResourceUsage{MemoryBytes: 200}, limits))
	require.False(t, exceedsLimits(plugin.ResourceUsage{MemoryBytes: 50}, limits))
	require.False(t, exceedsLimits(plugin.ResourceUsage{MemoryBytes: 200}, nil))
}

func TestParsePermission(t *testing.T) {
	p, ok := account.ParsePermission("plugins:install")
	require.True(t, ok)
	require.Equal(t, "plugins", p.Resource)
	require.Equal(t, "install", p.Action)

	_, ok = account.ParsePermission("malformed")
	require.False(t, ok)
}
