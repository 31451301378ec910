// Package kernelerr implements the kernel's closed error taxonomy: a single
// concrete error type carrying a kind, a severity, a source component, and
// an optional cause, chained via the standard errors.Unwrap protocol.
//
// Grounded on the teacher's own error style (internal/config/errors.go and
// internal/api/errors.go in giantswarm-muster each define a small
// ValidationError/NotFoundError with an Error() string and helper
// constructors); this package promotes that shape to a single shared type
// used across every kernel component instead of one ad hoc error struct per
// package.
package kernelerr
