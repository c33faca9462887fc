//go:build !unix

package s2e

import (
	"os/exec"
	"time"
)

func killGroup(cmd *exec.Cmd) {
	cmd.WaitDelay = 5 * time.Second
}
