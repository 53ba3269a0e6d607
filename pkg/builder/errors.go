package builder

import (
	"errors"
	"fmt"
)

var (
	// ErrInstallFailed indicates the installer could not materialize an environment
	ErrInstallFailed = errors.New("install failed")

	// ErrInvalidRequest indicates a build request that cannot be attempted
	ErrInvalidRequest = errors.New("invalid build request")
)

// Phase names the build step an error came from.
type Phase string

const (
	PhaseLoad        Phase = "load"
	PhasePlan        Phase = "plan"
	PhaseInstall     Phase = "install"
	PhaseEntryPoints Phase = "entry-points"
	PhaseMetadata    Phase = "metadata"
	PhaseActivate    Phase = "activate"
	PhaseMigrate     Phase = "migrate"
)

// BuildError is a build failure for one project.
type BuildError struct {
	Project string
	Phase   Phase
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s: %s: %v", e.Project, e.Phase, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// PhaseOf returns the phase of a BuildError in err's chain, or "".
func PhaseOf(err error) Phase {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Phase
	}
	return ""
}
