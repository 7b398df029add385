//go:build !windows

package ffmpeg

import "os/exec"

// configureCmd leaves process attributes at their defaults outside Windows.
func configureCmd(*exec.Cmd) {}
