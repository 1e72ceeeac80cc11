//go:build windows

package privilege

import (
	"os/exec"
	"strings"
)

// IsElevated reports whether the process token has the Administrators group
// enabled, which script and service operations need.
func IsElevated() bool {
	out, err := exec.Command("whoami", "/groups").CombinedOutput()
	if err != nil {
		return false
	}
	for _, line := range strings.Split(strings.ToLower(string(out)), "\n") {
		if strings.Contains(line, `builtin\administrators`) {
			return !strings.Contains(line, "deny only")
		}
	}
	return false
}
