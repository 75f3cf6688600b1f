//go:build !windows

package launcher

import (
	"os/exec"
	"syscall"
)

// detach starts the worker in its own session so it survives the
// launcher's exit and does not receive the terminal's signals.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
