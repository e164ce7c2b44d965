package ir

import (
	"fmt"

	"tlog.app/go/loc"
)

type (
	// InvariantError is a compiler-internal bug: a driver misused the
	// code generator. It is raised by panic and never returned.
	InvariantError struct {
		Msg string
		PC  loc.PC
	}
)

func (e InvariantError) Error() string {
	return fmt.Sprintf("%v: invariant violated: %s", e.PC, e.Msg)
}

// Assert panics with InvariantError pointing to the caller if !ok.
func Assert(ok bool, format string, args ...any) {
	if ok {
		return
	}

	panic(InvariantError{
		Msg: fmt.Sprintf(format, args...),
		PC:  loc.Caller(1),
	})
}
