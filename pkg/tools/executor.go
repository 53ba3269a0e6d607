/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package tools

import (
	"context"
	"errors"
	"io"
)

// ErrToolNotFound is returned when an executor cannot locate the requested tool.
var ErrToolNotFound = errors.New("tool not found")

// ExecuteOptions configures tool execution
type ExecuteOptions struct {
	// Tool name (e.g., "uv")
	Tool string

	// Args to pass to the tool
	Args []string

	// WorkDir is the working directory (defaults to current directory)
	WorkDir string

	// Stdin to pipe to the tool (optional)
	Stdin io.Reader

	// Env contains additional environment variables
	Env map[string]string
}

// ExecuteResult contains the output of tool execution
type ExecuteResult struct {
	// ExitCode from the tool
	ExitCode int

	// Stdout contains standard output
	Stdout []byte

	// Stderr contains standard error
	Stderr []byte

	// Executor indicates which executor was used
	Executor string
}

// ToolExecutor executes external tools
type ToolExecutor interface {
	// Execute runs a tool with the given options. A non-zero exit is reported
	// through ExecuteResult.ExitCode, not as an error.
	Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error)

	// IsAvailable checks if this executor can run the specified tool
	IsAvailable(tool string) bool

	// Name returns the executor name for logging
	Name() string
}

// NewExecutor returns the executor used for real runs.
func NewExecutor() ToolExecutor {
	return NewLocalExecutor()
}
