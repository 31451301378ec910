package sandbox

import (
	"context"
	"strings"

	"github.com/qorzen/kernel/internal/kernelerr"
	"github.com/qorzen/kernel/internal/plugin"
)

// apiClient mediates a plugin's outbound calls back into the kernel API
// (spec.md §4.6): every call is checked against the plugin's declared
// required_permissions before being forwarded to the router.
type apiClient struct {
	pluginID   string
	manifest   *plugin.Manifest
	dispatcher APIDispatcher
}

// requiredPermissionFor maps an outbound HTTP verb to the manifest
// permission string a plugin must have declared to use it: "api:read" for
// GET/HEAD, "api:write" for everything else. Declaring "api:*" covers both.
func requiredPermissionFor(method string) string {
	switch strings.ToUpper(method) {
	case "GET", "HEAD":
		return "api:read"
	default:
		return "api:write"
	}
}

func (c *apiClient) hasPermission(want string) bool {
	for _, p := range c.manifest.RequiredPermissions {
		if p == want || p == "api:*" {
			return true
		}
	}
	return false
}

func (c *apiClient) Call(ctx context.Context, method, path string, body any) (int, []byte, error) {
	want := requiredPermissionFor(method)
	if !c.hasPermission(want) {
		return 0, nil, kernelerr.Permission("sandbox.api_client", want, "").WithMetadata("plugin_id", c.pluginID)
	}
	if c.dispatcher == nil {
		return 0, nil, kernelerr.New(kernelerr.KindPlatform, kernelerr.SeverityMedium, "sandbox.api_client", "no router configured for this deployment")
	}

	var encoded []byte
	if body != nil {
		if b, ok := body.([]byte); ok {
			encoded = b
		}
	}

	headers := map[string]string{"X-Plugin-Id": c.pluginID}
	status, respBody, err := c.dispatcher.DispatchRaw(method, path, encoded, headers)
	if err != nil {
		return status, nil, kernelerr.Wrap(kernelerr.KindInternal, kernelerr.SeverityMedium, "sandbox.api_client", "dispatch failed", err)
	}
	return status, respBody, nil
}
