// Package logging provides the kernel's structured logging, shared by every
// component through plain subsystem-tagged calls (Debug/Info/Warn/Error)
// rather than threading a logger value through every constructor.
//
// Grounded on giantswarm-muster's pkg/logging: a slog-backed logger with a
// second "channel mode" for hosts that want to consume log entries
// themselves (the teacher uses this for its terminal UI; here it serves an
// embedding host's own UI, since spec.md puts "the UI framework and
// component tree" out of scope for this module). The teacher's bridge into
// sigs.k8s.io/controller-runtime's logr sink is dropped — this kernel has
// no Kubernetes controller to hand a logr.Logger to — but the underlying
// logr.Logger adapter (go-logr/logr) is kept as Logr(). Nothing in this
// module calls it: internal/sandbox hands plugins a logger built on the
// package-level Debug/Info/Warn/Error calls instead.
package logging
