package media

import (
	"context"
	"os/exec"
	"time"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	// ffmpeg may ignore SIGKILL's pipes briefly; don't hang on them.
	cmd.WaitDelay = 5 * time.Second
	return cmd.CombinedOutput()
}
