// Package exitcode provides standardized exit codes for mcpenv
package exitcode

// Exit codes for the mcpenv CLI
const (
	Success         = 0
	GeneralError    = 1
	ConfigError     = 2
	ValidationError = 3
	FileSystemError = 4
	ConversionError = 5
	BuildError      = 6
	TimeoutError    = 7
	BatchFailure    = 8
	ToolNotFound    = 9
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case ValidationError:
		return "Validation error"
	case FileSystemError:
		return "File system error"
	case ConversionError:
		return "Manifest conversion error"
	case BuildError:
		return "Environment build error"
	case TimeoutError:
		return "Timeout error"
	case BatchFailure:
		return "One or more batch entries failed"
	case ToolNotFound:
		return "Tool not found"
	default:
		return "Unknown error"
	}
}
