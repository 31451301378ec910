// Package platform defines the PlatformProvider contract spec.md §6
// describes as "consumed, not implemented by the core" — FileSystem,
// Storage, Database, Network, and a Capabilities descriptor — plus the
// concrete implementations this kernel ships: an OS filesystem, an
// in-memory and a Redis-backed Storage, a Postgres Database via pgx and
// golang-migrate, and a net/http-backed Network.
//
// No teacher file grounds this package directly (muster has no storage
// abstraction of its own, only Kubernetes/MCP-specific clients); the
// concrete implementations are grounded in the pack's wisbric-nightowl
// repo (pgx pooling, Redis client usage) and solaius-kf-reg /
// r3e-network-service_layer (golang-migrate migration pipelines).
package platform
