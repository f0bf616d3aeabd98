// Package preflight checks load-time requirements before any watcher or
// server is started.
package preflight

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrMissingDependency is matched by every *MissingDependencyError.
var ErrMissingDependency = errors.New("missing dependency")

// MissingDependencyError reports an executable that could not be found,
// together with the instruction that installs it.
type MissingDependencyError struct {
	Name    string
	Install string
	Err     error
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s not found on PATH", e.Name)
}

func (e *MissingDependencyError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrMissingDependency) match.
func (e *MissingDependencyError) Is(target error) bool {
	return target == ErrMissingDependency
}

// Instructions is the user-facing message printed before exiting.
func (e *MissingDependencyError) Instructions() string {
	if e.Install == "" {
		return fmt.Sprintf("%s is required but could not be found on PATH.", e.Name)
	}

	return fmt.Sprintf(`%s is required but could not be found on PATH. Ensure you run:

    $ %s
`, e.Name, e.Install)
}

// RequireExecutable resolves name on PATH and returns its full path.
func RequireExecutable(name, install string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", &MissingDependencyError{Name: name, Install: install, Err: err}
	}

	return path, nil
}
