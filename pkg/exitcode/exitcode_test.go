/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package exitcode

import (
	"testing"
)

func TestExitCodesAreDistinct(t *testing.T) {
	codes := []int{
		Success, GeneralError, ConfigError, ValidationError, FileSystemError,
		ConversionError, BuildError, TimeoutError, BatchFailure, ToolNotFound,
	}
	seen := make(map[int]bool, len(codes))
	for _, c := range codes {
		if seen[c] {
			t.Errorf("exit code %d defined twice", c)
		}
		seen[c] = true
	}
	if Success != 0 {
		t.Errorf("Success = %d, expected 0", Success)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "Success"},
		{ConversionError, "Manifest conversion error"},
		{BuildError, "Environment build error"},
		{BatchFailure, "One or more batch entries failed"},
		{ToolNotFound, "Tool not found"},
		{42, "Unknown error"},
	}
	for _, tt := range tests {
		if got := String(tt.code); got != tt.expected {
			t.Errorf("String(%d) = %q, expected %q", tt.code, got, tt.expected)
		}
	}
}
