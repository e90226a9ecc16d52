package cli

import "errors"

// ErrUsage marks errors the user fixes by changing flags, arguments or
// configuration. main exits with status 2 for them.
var ErrUsage = errors.New("cli usage error")

type usageError struct {
	msg   string
	cause error
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

// asUsageError keeps err reachable through errors.Is and errors.As.
func asUsageError(err error) error {
	return usageError{msg: err.Error(), cause: err}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Unwrap() error {
	return e.cause
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}
