package cmd

import (
	"context"
	"errors"
	"io/fs"

	"github.com/fulmenhq/mcpenv/pkg/builder"
	"github.com/fulmenhq/mcpenv/pkg/convert"
	"github.com/fulmenhq/mcpenv/pkg/exitcode"
	"github.com/fulmenhq/mcpenv/pkg/tools"
)

// codedError carries an explicit exit code through cobra.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

// exitCodeFor maps an error to a process exit code. Explicit codes win,
// then the most specific known error in the chain.
func exitCodeFor(err error) int {
	if err == nil {
		return exitcode.Success
	}
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return exitcode.TimeoutError
	case errors.Is(err, tools.ErrToolNotFound):
		return exitcode.ToolNotFound
	case errors.Is(err, convert.ErrNotLegacyProject),
		errors.Is(err, convert.ErrMissingLegacyConfig),
		convert.IsLockError(err):
		return exitcode.ConversionError
	}
	var be *builder.BuildError
	if errors.As(err, &be) {
		return exitcode.BuildError
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrExist) || errors.Is(err, fs.ErrPermission) {
		return exitcode.FileSystemError
	}
	return exitcode.GeneralError
}
