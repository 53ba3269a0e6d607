package convert

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotLegacyProject indicates the source tree lacks pyproject.toml or poetry.lock
	ErrNotLegacyProject = errors.New("not a legacy (Poetry) project")

	// ErrMissingLegacyConfig indicates pyproject.toml has no usable [tool.poetry] table
	ErrMissingLegacyConfig = errors.New("missing [tool.poetry] configuration")

	// ErrLockMissing indicates the lock tool exited cleanly but left no uv.lock behind
	ErrLockMissing = errors.New("lock tool did not produce uv.lock")
)

// LockError reports a failed lock step during migration. The legacy lock
// file is left in place whenever this error is returned.
type LockError struct {
	// Tool is the lock tool that ran (e.g., "uv")
	Tool string

	// ExitCode is the tool's exit status, or -1 when it could not be started
	ExitCode int

	// Stderr holds the tool's trimmed standard error
	Stderr string

	// Err is the underlying cause, if any
	Err error
}

func (e *LockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s lock failed", e.Tool)
	if e.ExitCode > 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, ": %s", e.Stderr)
	}
	return b.String()
}

func (e *LockError) Unwrap() error {
	return e.Err
}

// IsLockError checks if an error is a lock error
func IsLockError(err error) bool {
	var lockErr *LockError
	return errors.As(err, &lockErr)
}
