// Package router implements the kernel's transport-agnostic API router
// core (spec.md §4.7): route resolution with path parameters, session
// authentication and permission enforcement via internal/account,
// per-scope rate limiting, and dispatch to a registered handler.
//
// There is no teacher equivalent — muster's internal/api is a service
// locator for MCP tool calls, not an HTTP-shaped router. Grounded instead
// in the pack's wisbric-nightowl rbac/middleware chain shape (auth, then
// rate-limit, then handler), translated from net/http middleware into the
// plain Dispatch(Request) Response entry point spec.md requires, since the
// HTTP transport itself is explicitly out of scope.
package router
