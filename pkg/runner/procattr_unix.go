//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
)

// setDetached puts the child in its own session so it outlives the
// installer and does not receive the terminal's signals.
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
