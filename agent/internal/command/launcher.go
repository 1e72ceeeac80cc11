package command

import (
	"context"
	"os/exec"
)

// Launcher turns a Plan into a process for the host OS and knows how to kill
// the whole process tree it started.
type Launcher interface {
	Command(ctx context.Context, p Plan) *exec.Cmd
	Kill(cmd *exec.Cmd) error
}

// NewLauncher returns the launcher for the running platform.
func NewLauncher() Launcher { return newPlatformLauncher() }
