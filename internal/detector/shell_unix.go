//go:build !windows

package detector

import (
	"os/exec"
	"strings"
)

func getShellCommand(script string) *exec.Cmd {
	// #nosec G204
	return exec.Command("/bin/sh", "-c", script)
}

func getTrueCommand() *exec.Cmd {
	return exec.Command("/bin/true")
}

// shellQuote makes s a single /bin/sh word.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
