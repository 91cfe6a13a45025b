//go:build windows

package command

import (
	"os/exec"
	"time"
)

// setProcGroup is a no-op on Windows beyond setting WaitDelay; process-group
// semantics differ and the default kill behavior is used.
func setProcGroup(cmd *exec.Cmd) {
	cmd.WaitDelay = 3 * time.Second
}
