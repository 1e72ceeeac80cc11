//go:build !windows

package privilege

import "os"

// IsElevated reports whether the agent runs as root.
func IsElevated() bool { return os.Geteuid() == 0 }
