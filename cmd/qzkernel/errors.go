package main

import (
	"errors"
	"fmt"

	"github.com/qorzen/kernel/internal/kernelerr"
)

// configValidationError marks a failure that maps onto exit code 2.
type configValidationError struct {
	cause error
}

func (e *configValidationError) Error() string { return fmt.Sprintf("config invalid: %v", e.cause) }
func (e *configValidationError) Unwrap() error { return e.cause }

// shutdownTimeoutError marks a failure that maps onto exit code 3.
type shutdownTimeoutError struct {
	cause error
}

func (e *shutdownTimeoutError) Error() string { return fmt.Sprintf("shutdown timed out: %v", e.cause) }
func (e *shutdownTimeoutError) Unwrap() error { return e.cause }

// asShutdownTimeout reports whether err (a plain error or a
// *kernelerr.Aggregate from manager.Supervisor.ShutdownAll) contains a
// kernelerr.KindTimeout entry, i.e. some manager's shutdown exceeded its
// deadline slice.
func asShutdownTimeout(err error) bool {
	var kerr *kernelerr.Error
	if errors.As(err, &kerr) {
		return kerr.Kind() == kernelerr.KindTimeout
	}
	var agg *kernelerr.Aggregate
	if errors.As(err, &agg) {
		for _, e := range agg.Errors {
			if e.Kind() == kernelerr.KindTimeout {
				return true
			}
		}
	}
	return false
}
