/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package tools

import (
	"context"
	"sync"
)

// ScriptedExecutor is a ToolExecutor driven by a handler function. It records
// every call and is safe for concurrent use; tests across packages use it in
// place of a real uv binary.
type ScriptedExecutor struct {
	// Handler produces the result for a call. A nil Handler returns exit 0.
	Handler func(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error)
	// Missing lists tools reported as unavailable.
	Missing []string

	mu    sync.Mutex
	calls []ExecuteOptions
}

// Name returns the executor name
func (s *ScriptedExecutor) Name() string { return "scripted" }

// IsAvailable reports false only for tools listed in Missing.
func (s *ScriptedExecutor) IsAvailable(tool string) bool {
	for _, m := range s.Missing {
		if m == tool {
			return false
		}
	}
	return true
}

// Execute records the call and delegates to Handler.
func (s *ScriptedExecutor) Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, opts)
	s.mu.Unlock()

	if s.Handler == nil {
		return &ExecuteResult{Executor: s.Name()}, nil
	}
	res, err := s.Handler(ctx, opts)
	if res != nil && res.Executor == "" {
		res.Executor = s.Name()
	}
	return res, err
}

// Calls returns a copy of the recorded calls in order.
func (s *ScriptedExecutor) Calls() []ExecuteOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ExecuteOptions(nil), s.calls...)
}
