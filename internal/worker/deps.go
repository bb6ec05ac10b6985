package worker

import (
	"fmt"
	"os/exec"
)

// CheckDependencies verifies that everything a run needs is resolvable on
// PATH before the loop starts: the worker executable itself and git (used
// by the branch bookkeeping around the run). A failure here is reported
// immediately; the loop is never entered.
func CheckDependencies(def Definition) error {
	if _, err := exec.LookPath(def.Executable); err != nil {
		return fmt.Errorf("worker executable %q not found on PATH: %w", def.Executable, err)
	}
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git not found on PATH: %w", err)
	}
	return nil
}
