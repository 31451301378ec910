package kernelerr

import "strings"

// Aggregate collects multiple component errors into one error value, used
// by manager.Supervisor.InitializeAll and similar fan-out operations that
// must report every failure, not just the first (spec.md §4.1 scenario 1:
// "initialize_all returns aggregated error listing B root and C
// propagated").
type Aggregate struct {
	Errors []*Error
}

func (a *Aggregate) Error() string {
	if len(a.Errors) == 0 {
		return "no errors"
	}
	parts := make([]string, 0, len(a.Errors))
	for _, e := range a.Errors {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

// Add appends an error to the aggregate, ignoring nils.
func (a *Aggregate) Add(err *Error) {
	if err == nil {
		return
	}
	a.Errors = append(a.Errors, err)
}

// HasErrors reports whether any errors were collected.
func (a *Aggregate) HasErrors() bool { return len(a.Errors) > 0 }

// ErrOrNil returns a itself as an error if it holds any errors, else nil —
// the standard pattern for building up an aggregate across a loop and
// returning it uniformly.
func (a *Aggregate) ErrOrNil() error {
	if !a.HasErrors() {
		return nil
	}
	return a
}
