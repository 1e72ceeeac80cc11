//go:build windows

package command

import (
	"context"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"patchpilot/network"

	"golang.org/x/sys/windows"
)

type windowsLauncher struct{}

func newPlatformLauncher() Launcher { return windowsLauncher{} }

func (windowsLauncher) Command(ctx context.Context, p Plan) *exec.Cmd {
	var cmd *exec.Cmd
	ext := strings.ToLower(filepath.Ext(p.Path))
	switch {
	case p.Kind == network.KindShell:
		cmd = exec.CommandContext(ctx, "cmd", "/C", p.Shell)
	case p.Kind == network.KindScript && ext == ".ps1":
		args := append([]string{"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-File", p.Path}, p.Args...)
		cmd = exec.CommandContext(ctx, "powershell", args...)
	case p.Kind == network.KindScript && (ext == ".bat" || ext == ".cmd"):
		cmd = exec.CommandContext(ctx, "cmd", append([]string{"/C", p.Path}, p.Args...)...)
	default:
		cmd = exec.CommandContext(ctx, p.Path, p.Args...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
	return cmd
}

// Kill terminates the process tree rooted at cmd.
func (windowsLauncher) Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	tk := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid))
	if err := tk.Run(); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
