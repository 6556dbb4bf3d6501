package cli

import (
	"errors"
	"fmt"
)

type invalidIDError struct {
	kind  string
	value string
}

func (e invalidIDError) Error() string {
	return fmt.Sprintf("invalid %s id: %q", e.kind, e.value)
}

type invalidArgError struct {
	name   string
	value  string
	expect string
}

func (e invalidArgError) Error() string {
	return fmt.Sprintf("invalid %s: %q (want %s)", e.name, e.value, e.expect)
}

// reportedError marks an error that has already been shown on stderr.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// Reported tells whether err was already printed by the command that returned it.
func Reported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}
