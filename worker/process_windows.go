package worker

import (
	"os"
	"os/exec"
)

var errProcessDone = os.ErrProcessDone

func startCommand(cmd *exec.Cmd) error {
	return cmd.Start()
}

func killCommand(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
