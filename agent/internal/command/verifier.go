package command

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"patchpilot/network"

	"github.com/google/shlex"
)

// Policy is the agent's local trust configuration.
type Policy struct {
	Secret        []byte
	ScriptsDir    string
	ExecAllowlist []string
	AllowShell    bool
}

// Verify checks the command signature and then the per-kind admission rules.
// It never touches the process table; a nil error means the returned Plan
// may be executed.
func (p *Policy) Verify(cmd network.RemoteCommand) (Plan, error) {
	if len(p.Secret) == 0 {
		return Plan{}, reject("agent has no command secret configured")
	}
	if !network.VerifySignature(cmd, p.Secret) {
		return Plan{}, reject("invalid signature")
	}
	switch cmd.Kind {
	case network.KindShell:
		if !p.AllowShell {
			return Plan{}, reject("shell commands are disabled on this agent")
		}
		if strings.TrimSpace(cmd.Name) == "" {
			return Plan{}, reject("empty shell command")
		}
		line := cmd.Name
		for _, a := range cmd.Args {
			line += " " + a
		}
		return Plan{Kind: cmd.Kind, Shell: line}, nil
	case network.KindScript:
		path, err := p.resolveScript(cmd.Name)
		if err != nil {
			return Plan{}, err
		}
		return Plan{Kind: cmd.Kind, Path: path, Args: cmd.Args}, nil
	case network.KindExec:
		argv, err := shlex.Split(cmd.Name)
		if err != nil || len(argv) == 0 {
			return Plan{}, reject("cannot parse exec command %q", cmd.Name)
		}
		if !slices.Contains(p.ExecAllowlist, argv[0]) {
			return Plan{}, reject("executable %q is not in the allow-list", argv[0])
		}
		args := append(argv[1:], cmd.Args...)
		return Plan{Kind: cmd.Kind, Path: argv[0], Args: args}, nil
	default:
		return Plan{}, reject("unknown command kind %q", cmd.Kind)
	}
}

// resolveScript maps name to a regular file inside ScriptsDir, following
// symlinks before the containment check.
func (p *Policy) resolveScript(name string) (string, error) {
	if p.ScriptsDir == "" {
		return "", reject("no scripts directory configured")
	}
	if strings.TrimSpace(name) == "" || filepath.IsAbs(name) {
		return "", reject("script name %q is not a relative name", name)
	}
	root, err := filepath.EvalSymlinks(p.ScriptsDir)
	if err != nil {
		return "", reject("scripts directory unavailable: %v", err)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return "", reject("scripts directory unavailable: %v", err)
	}
	joined := filepath.Join(root, name)
	if !within(root, joined) {
		return "", reject("script %q escapes the scripts directory", name)
	}
	real, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return "", reject("script %q not found", name)
	}
	if !within(root, real) {
		return "", reject("script %q escapes the scripts directory", name)
	}
	fi, err := os.Stat(real)
	if err != nil {
		return "", reject("script %q not found", name)
	}
	if !fi.Mode().IsRegular() {
		return "", reject("script %q is not a regular file", name)
	}
	return real, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
