//go:build windows

package launcher

import (
	"os/exec"
	"syscall"
)

const detachedProcess = 0x00000008

// detach starts the worker without a console and in its own process group.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: detachedProcess | syscall.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}
}
