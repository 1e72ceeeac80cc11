package command

import (
	"fmt"

	"patchpilot/network"
)

// Plan is a verified command, resolved to something a Launcher can start.
type Plan struct {
	Kind network.CommandKind
	// Shell holds the command line for KindShell.
	Shell string
	// Path is the resolved script or executable for KindScript and KindExec.
	Path string
	Args []string
}

// RejectError explains why a command was refused before execution.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string { return "rejected: " + e.Reason }

func reject(format string, v ...any) *RejectError {
	return &RejectError{Reason: fmt.Sprintf(format, v...)}
}
