package remote

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alessio/shellescape"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// privilegedPrefix makes sudo read the password from stdin without a prompt.
const privilegedPrefix = "sudo -S -p '' -- sh -c "

// PrivilegedCommand wraps command so that it runs as root through sudo.
func PrivilegedCommand(command string) string {
	return privilegedPrefix + shellescape.Quote(command)
}

// MakeDirCommand returns the command that creates dir and its parents.
func MakeDirCommand(dir string) string {
	return shellescape.QuoteCommand([]string{"mkdir", "-p", dir})
}

// feedPassword writes password and a newline to stdin and closes it.
func feedPassword(stdin io.WriteCloser, password []byte) error {
	_, err := stdin.Write(password)
	if err == nil {
		_, err = stdin.Write([]byte{'\n'})
	}

	closeErr := stdin.Close()

	if err != nil {
		return fmt.Errorf("write password: %w", err)
	}

	if closeErr != nil && !errors.Is(closeErr, io.EOF) {
		return fmt.Errorf("close stdin: %w", closeErr)
	}

	return nil
}

// newResult converts the outcome of an SSH exec into a CommandResult.
func newResult(command string, stdout, stderr *bytes.Buffer, runErr error) (*CommandResult, error) {
	result := &CommandResult{
		Command: command,
		Stdout:  splitLines(stdout.String()),
		Stderr:  splitLines(stderr.String()),
	}

	if runErr == nil {
		return result, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitStatus = exitErr.ExitStatus()

		return result, nil
	}

	return result, fmt.Errorf("run command: %w", runErr)
}

// splitLines splits output into lines, dropping the final line break.
func splitLines(output string) []string {
	output = strings.TrimRight(output, "\r\n")
	if output == "" {
		return nil
	}

	lines := strings.Split(output, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return lines
}

// LoadKnownHosts builds a host key callback from an OpenSSH known_hosts
// file. A leading "~/" is expanded to the current user's home directory.
func LoadKnownHosts(path string) (ssh.HostKeyCallback, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	callback, err := knownhosts.New(expanded)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", expanded, err)
	}

	return callback, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
