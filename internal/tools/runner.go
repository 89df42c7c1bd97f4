package tools

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// CommandRunner executes one tool invocation in dir and returns its output
// streams and exit code. A non-zero exit is not an error; err is reserved
// for the tool being missing or failing to start.
type CommandRunner func(ctx context.Context, dir string, argv []string) (stdout, stderr string, exitCode int, err error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, dir string, argv []string) (string, string, int, error) {
	if len(argv) == 0 {
		return "", "", 0, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			err = nil
		}
	}
	return outBuf.String(), errBuf.String(), exitCode, err
}
