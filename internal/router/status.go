package router

import (
	"errors"

	"github.com/qorzen/kernel/internal/kernelerr"
)

// statusFor maps a kernelerr.Kind to its user-visible HTTP status (spec.md
// §7): "permission -> 403, auth -> 401, validation|config -> 400,
// conflict -> 409, rate_limited -> 429, timeout|cancelled -> 504, anything
// else -> 500 with no internal detail leaked."
func statusFor(err error) int {
	var kerr *kernelerr.Error
	if !errors.As(err, &kerr) {
		return 500
	}
	switch kerr.Kind() {
	case kernelerr.KindPermission:
		return 403
	case kernelerr.KindAuth:
		return 401
	case kernelerr.KindValidation, kernelerr.KindConfig:
		return 400
	case kernelerr.KindConflict:
		return 409
	case kernelerr.KindRateLimited:
		return 429
	case kernelerr.KindTimeout, kernelerr.KindCancelled:
		return 504
	default:
		return 500
	}
}

// errorResponse builds a Response for a failed request, leaking no
// internal detail for unclassified (500) errors.
func errorResponse(err error) Response {
	status := statusFor(err)
	body := err.Error()
	if status == 500 {
		body = "internal error"
	}
	return Response{Status: status, ContentType: "text/plain", Body: []byte(body)}
}
