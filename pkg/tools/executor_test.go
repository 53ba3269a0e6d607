/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExecutor(t *testing.T) {
	assert.Equal(t, "local", NewExecutor().Name())
}

func TestLocalExecutorMissingTool(t *testing.T) {
	e := &LocalExecutor{}
	_, err := e.Execute(context.Background(), ExecuteOptions{Tool: "mcpenv-definitely-missing-tool"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolNotFound))
	assert.False(t, e.IsAvailable("mcpenv-definitely-missing-tool"))
}

func TestLocalExecutorExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	e := &LocalExecutor{}
	if !e.IsAvailable("sh") {
		t.Skip("sh not available")
	}

	res, err := e.Execute(context.Background(), ExecuteOptions{
		Tool: "sh",
		Args: []string{"-c", "echo out; echo err >&2; exit 3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
	assert.Equal(t, "local", res.Executor)
}

func TestLocalExecutorEnvAndWorkDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	e := &LocalExecutor{}
	if !e.IsAvailable("sh") {
		t.Skip("sh not available")
	}
	dir := t.TempDir()

	res, err := e.Execute(context.Background(), ExecuteOptions{
		Tool:    "sh",
		Args:    []string{"-c", "printf '%s' \"$MCPENV_TEST_VALUE\"; pwd > where"},
		WorkDir: dir,
		Env:     map[string]string{"MCPENV_TEST_VALUE": "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res.Stdout))
	_, err = os.Stat(filepath.Join(dir, "where"))
	assert.NoError(t, err)
}

func TestLocalExecutorShimDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shim lookup uses .exe suffix on windows")
	}
	shim := t.TempDir()
	tool := filepath.Join(shim, "mcpenv-shim-only")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o755))

	e := &LocalExecutor{shimDirs: []string{"", shim}}
	assert.Equal(t, tool, e.FindToolPath("mcpenv-shim-only"))
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/bin", "UV_CACHE_DIR=/old", "HOME=/root"}
	got := mergeEnv(base, map[string]string{"UV_CACHE_DIR": "/new", "A": "1"})
	assert.Equal(t, []string{"PATH=/bin", "HOME=/root", "A=1", "UV_CACHE_DIR=/new"}, got)
	assert.Equal(t, base, mergeEnv(base, nil))
}

func TestScriptedExecutor(t *testing.T) {
	s := &ScriptedExecutor{
		Missing: []string{"poetry"},
		Handler: func(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error) {
			if opts.Args[0] == "fail" {
				return &ExecuteResult{ExitCode: 2, Stderr: []byte("nope")}, nil
			}
			return &ExecuteResult{}, nil
		},
	}
	assert.True(t, s.IsAvailable("uv"))
	assert.False(t, s.IsAvailable("poetry"))

	res, err := s.Execute(context.Background(), ExecuteOptions{Tool: "uv", Args: []string{"lock"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "scripted", res.Executor)

	res, err = s.Execute(context.Background(), ExecuteOptions{Tool: "uv", Args: []string{"fail"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitCode)

	calls := s.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"lock"}, calls[0].Args)
}
