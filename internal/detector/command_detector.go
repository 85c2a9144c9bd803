package detector

import (
	"errors"
	"os/exec"
	"strings"
)

const namePlaceholder = "{name}"

// CommandDetector runs a command that should succeed if the tunnel is up.
// Every "{name}" in Command is replaced by the configuration name, e.g.
// "wg show {name}". The name is passed as a literal argument, or shell-quoted
// when the template itself needs a shell.
type CommandDetector struct {
	Command string
	Name    string
}

func hasShellMeta(s string) bool {
	return strings.ContainsAny(s, "|&;<>*?`$\"'(){}[]~")
}

// buildShellAwareCommand constructs an *exec.Cmd for a detector command.
// Avoids invoking a shell unless obvious shell metacharacters are present (G204 mitigation).
func buildShellAwareCommand(cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return getTrueCommand()
	}
	if hasShellMeta(cmdStr) {
		return getShellCommand(cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}

// command decides between shell and direct exec on the template alone, so
// characters in the name can never switch a direct exec into a shell.
func (d CommandDetector) command() *exec.Cmd {
	tmpl := strings.TrimSpace(d.Command)
	if hasShellMeta(strings.ReplaceAll(tmpl, namePlaceholder, "")) {
		return buildShellAwareCommand(strings.ReplaceAll(tmpl, namePlaceholder, shellQuote(d.Name)))
	}
	if tmpl == "" {
		return getTrueCommand()
	}
	parts := strings.Fields(tmpl)
	for i := range parts {
		parts[i] = strings.ReplaceAll(parts[i], namePlaceholder, d.Name)
	}
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}

func (d CommandDetector) expand() string {
	return strings.ReplaceAll(d.Command, namePlaceholder, d.Name)
}

func (d CommandDetector) Alive() (bool, error) {
	cmd := d.command()
	cmd.Stdout = nil
	cmd.Stderr = nil
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		// non-zero exit code means not up
		return false, nil
	}
	return false, err
}

func (d CommandDetector) Describe() string { return "cmd:" + d.expand() }
