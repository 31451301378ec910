package router

import (
	"context"
	"strings"

	"github.com/qorzen/kernel/internal/account"
	"github.com/qorzen/kernel/internal/kernelerr"
)

// Dispatcher is the kernel's API router core (spec.md §4.7): it resolves a
// route, enforces authentication/authorization, applies rate limits, and
// dispatches to the route's handler.
type Dispatcher struct {
	table    *Table
	gate     *account.Gate
	limiters *limiterSet
}

// NewDispatcher constructs a Dispatcher over table, authorizing via gate
// (nil gate means routes may never declare required_permissions).
func NewDispatcher(table *Table, gate *account.Gate) *Dispatcher {
	return &Dispatcher{table: table, gate: gate, limiters: newLimiterSet()}
}

// Dispatch runs the full chain described in spec.md §4.7.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	route, params, ok := d.table.Match(req.Method, req.Path)
	if !ok {
		return Response{Status: 404, ContentType: "text/plain", Body: []byte("not found")}
	}

	if req.Query == nil {
		req.Query = map[string]string{}
	}
	for k, v := range params {
		req.Query[k] = v
	}

	if len(route.RequiredPermissions) > 0 {
		if resp, failed := d.authorize(ctx, &req, route); failed {
			return resp
		}
	}

	if route.RateLimit != nil {
		key := identityKey(route.RateLimit.Scope, req) + ":" + route.Method + route.Path
		if !d.limiters.allow(key, *route.RateLimit) {
			return errorResponse(kernelerr.RateLimited("router.dispatch", "rate limit exceeded"))
		}
	}

	resp, err := route.Handler(req)
	if err != nil {
		return errorResponse(err)
	}
	return resp
}

// authorize resolves the caller's session and checks dominance for every
// RequiredPermission the route declares; returns (response, true) if the
// request must stop here.
func (d *Dispatcher) authorize(ctx context.Context, req *Request, route Route) (Response, bool) {
	token := bearerToken(req.Headers)
	if token == "" {
		if req.User == nil {
			return errorResponse(kernelerr.New(kernelerr.KindAuth, kernelerr.SeverityMedium, "router.dispatch", "auth.invalid: no session")), true
		}
	} else if d.gate != nil {
		claims, err := d.gate.ValidateToken(token)
		if err != nil {
			return errorResponse(err), true
		}
		req.User = &claims
	}

	if req.User == nil {
		return errorResponse(kernelerr.New(kernelerr.KindAuth, kernelerr.SeverityMedium, "router.dispatch", "auth.invalid: no session")), true
	}

	if d.gate == nil {
		return Response{}, false
	}

	for _, rp := range route.RequiredPermissions {
		perm := account.Permission{Resource: rp.Resource, Action: rp.Action, Scope: rp.Scope}
		ok, err := d.gate.Check(ctx, req.User.UserID, perm)
		if err != nil {
			return errorResponse(err), true
		}
		if !ok {
			return errorResponse(kernelerr.Permission("router.dispatch", perm.String(), "")), true
		}
	}
	return Response{}, false
}

// DispatchRaw implements internal/sandbox's APIDispatcher, letting a
// plugin's mediated APIClient proxy call straight back into this router
// without sandbox importing router directly.
func (d *Dispatcher) DispatchRaw(method, path string, body []byte, headers map[string]string) (int, []byte, error) {
	resp := d.Dispatch(context.Background(), Request{Method: method, Path: path, Body: body, Headers: headers})
	return resp.Status, resp.Body, nil
}

func bearerToken(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "Authorization") {
			return strings.TrimPrefix(v, "Bearer ")
		}
	}
	return ""
}
