package installer

import (
	"context"
	"os/exec"
)

// Runner executes external processes. The single seam between the engine
// and the host; tests swap in a scripted fake.
type Runner interface {
	// Run executes name with args, returning combined stdout/stderr. A
	// non-zero exit is returned as an error alongside whatever output was
	// captured. Context cancellation kills the child process.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// SystemRunner runs real commands via os/exec.
type SystemRunner struct{}

// Run implements Runner.
func (SystemRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}
