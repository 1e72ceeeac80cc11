//go:build unix

package command

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"patchpilot/network"

	"golang.org/x/sys/unix"
)

type unixLauncher struct {
	shell string
}

func newPlatformLauncher() Launcher { return unixLauncher{shell: "/bin/sh"} }

func (l unixLauncher) Command(ctx context.Context, p Plan) *exec.Cmd {
	var cmd *exec.Cmd
	switch {
	case p.Kind == network.KindShell:
		cmd = exec.CommandContext(ctx, l.shell, "-c", p.Shell)
	case p.Kind == network.KindScript && strings.EqualFold(filepath.Ext(p.Path), ".sh"):
		cmd = exec.CommandContext(ctx, l.shell, append([]string{p.Path}, p.Args...)...)
	default:
		cmd = exec.CommandContext(ctx, p.Path, p.Args...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// Kill signals the process group so children of the shell die too.
func (unixLauncher) Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
