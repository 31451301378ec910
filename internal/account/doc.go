// Package account implements the kernel's identity, session, and
// authorization gate (spec.md §4.4): authenticate principals via a
// pluggable AuthProvider, issue/refresh JWT session tokens, and answer
// permission dominance queries behind a bounded, version-invalidated
// cache.
//
// The teacher (giantswarm-muster) carries no account/session logic at all
// — pkg/auth there is two structs describing OAuth status strings for an
// MCP aggregator. This package is instead grounded in the rest of the
// retrieval pack's auth-shaped repo (rbac/session/ratelimit package shape)
// for the provider/session/RBAC structure, using golang-jwt/jwt/v5 for
// sessions, golang.org/x/crypto/bcrypt for local password hashing,
// golang.org/x/oauth2 for the oauth2 provider, and
// golang.org/x/sync/singleflight to collapse concurrent permission-cache
// misses for the same (user, permission, role_version) key into one
// evaluation.
package account
