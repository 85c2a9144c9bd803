//go:build windows

package detector

import (
	"os/exec"
	"strings"
)

func getShellCommand(script string) *exec.Cmd {
	// #nosec G204
	return exec.Command("cmd", "/C", script)
}

func getTrueCommand() *exec.Cmd {
	return exec.Command("cmd", "/C", "exit 0")
}

// shellQuote makes s a single cmd.exe argument.
func shellQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
