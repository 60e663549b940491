// Package fault implements the class-2 "programming / integrity error"
// half of the filesystem's error model: conditions that indicate internal
// invariant breakage and justify unconditional abort, as opposed to
// class-1 user errors which are returned as ordinary Go errors.
//
// This mirrors the C original's fatal_error()/assert() split: a violated
// invariant panics here rather than returning an error, since by
// definition the caller cannot sensibly continue or recover from it.
package fault

import "fmt"

// Violation is the panic value raised by Check when an invariant is
// violated. It is never expected to be recovered by library code; only
// tests that specifically assert a given operation is fatal should recover
// it.
type Violation struct {
	Message string
}

func (v *Violation) Error() string { return v.Message }

// Check panics with a *Violation if cond is false. format/args describe
// the invariant that was broken.
func Check(cond bool, format string, args ...any) {
	if !cond {
		panic(&Violation{Message: fmt.Sprintf(format, args...)})
	}
}
