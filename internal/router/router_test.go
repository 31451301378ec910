package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qorzen/kernel/internal/account"
	"github.com/qorzen/kernel/internal/kernelerr"
)

func okHandler(req Request) (Response, error) {
	return Response{Status: 200, Body: []byte("ok")}, nil
}

func TestTable_MatchLiteralBeatsParam(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(Route{Method: "GET", Path: "/users/{id}", Handler: okHandler}))
	require.NoError(t, tbl.Register(Route{Method: "GET", Path: "/users/me", Handler: okHandler}))

	_, params, ok := tbl.Match("GET", "/users/me")
	require.True(t, ok)
	require.Empty(t, params)

	_, params, ok = tbl.Match("GET", "/users/42")
	require.True(t, ok)
	require.Equal(t, "42", params["id"])
}

func TestTable_RegisterRejectsCollision(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(Route{Method: "GET", Path: "/widgets/{id}", Handler: okHandler}))
	err := tbl.Register(Route{Method: "GET", Path: "/widgets/{other}", Handler: okHandler})
	require.Error(t, err)
	var kerr *kernelerr.Error
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, kernelerr.KindConflict, kerr.Kind())
}

func TestTable_MatchReturnsFalseOn404(t *testing.T) {
	tbl := NewTable()
	_, _, ok := tbl.Match("GET", "/nope")
	require.False(t, ok)
}

func TestTable_DeregisterRemovesOnlyOwnedRoutes(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(Route{Method: "GET", Path: "/a", Handler: okHandler, OwnerPluginID: "p1"}))
	require.NoError(t, tbl.Register(Route{Method: "GET", Path: "/b", Handler: okHandler, OwnerPluginID: "p2"}))

	tbl.Deregister("p1")

	_, _, ok := tbl.Match("GET", "/a")
	require.False(t, ok)
	_, _, ok = tbl.Match("GET", "/b")
	require.True(t, ok)
}

func TestDispatcher_404WhenUnmatched(t *testing.T) {
	d := NewDispatcher(NewTable(), nil)
	resp := d.Dispatch(context.Background(), Request{Method: "GET", Path: "/missing"})
	require.Equal(t, 404, resp.Status)
}

func TestDispatcher_PermissionDominanceScenario(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(Route{
		Method: "GET",
		Path:   "/api/products",
		Handler: okHandler,
		RequiredPermissions: []RequiredPermission{
			{Resource: "products", Action: "read", Scope: account.ScopeGlobal},
		},
	}))

	d := NewDispatcher(tbl, nil)

	// No gate wired (nil): a request without a session is rejected before
	// any permission evaluation happens.
	resp := d.Dispatch(context.Background(), Request{Method: "GET", Path: "/api/products"})
	require.Equal(t, 401, resp.Status)

	// A pre-authenticated request (transport already validated the
	// session) with a nil gate skips permission checks entirely — the
	// kernel wiring is responsible for always supplying a gate when any
	// route declares required_permissions.
	resp = d.Dispatch(context.Background(), Request{
		Method: "GET",
		Path:   "/api/products",
		User:   &account.Claims{UserID: "u1"},
	})
	require.Equal(t, 200, resp.Status)
}

func TestDispatcher_HandlerErrorMapsToStatus(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(Route{
		Method: "GET",
		Path:   "/boom",
		Handler: func(req Request) (Response, error) {
			return Response{}, kernelerr.Validation("test", "bad input")
		},
	}))
	d := NewDispatcher(tbl, nil)
	resp := d.Dispatch(context.Background(), Request{Method: "GET", Path: "/boom"})
	require.Equal(t, 400, resp.Status)
}

func TestDispatcher_RateLimitExhaustion(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register(Route{
		Method:  "GET",
		Path:    "/limited",
		Handler: okHandler,
		RateLimit: &RateLimit{Scope: ScopeGlobal, BurstLimit: 1, RequestsPerMinute: 60},
	}))
	d := NewDispatcher(tbl, nil)

	resp := d.Dispatch(context.Background(), Request{Method: "GET", Path: "/limited"})
	require.Equal(t, 200, resp.Status)

	resp = d.Dispatch(context.Background(), Request{Method: "GET", Path: "/limited"})
	require.Equal(t, 429, resp.Status)
}
