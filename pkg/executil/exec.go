// Package executil provides subprocess execution utilities.
package executil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

const maxStderrLen = 500

// limitedWriter caps writes to a bytes.Buffer at a maximum byte count.
// Bytes beyond the limit are silently discarded.
type limitedWriter struct {
	buf *bytes.Buffer
	n   int64
	max int64
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.n >= w.max {
		return len(p), nil
	}
	remaining := w.max - w.n
	origLen := len(p)
	if int64(origLen) > remaining {
		p = p[:remaining]
	}
	n, err := w.buf.Write(p)
	w.n += int64(n)
	if err != nil {
		return n, err
	}
	return origLen, nil
}

// Input describes the environment of a command started with RunInput.
type Input struct {
	// Dir is the working directory; empty inherits the current one.
	Dir string
	// Env is appended to the current process environment.
	Env []string
	// Stdin is fed to the command. Nil means no input.
	Stdin io.Reader
	// Stderr additionally receives the command's stderr when set.
	Stderr io.Writer
}

// Executor runs external commands.
type Executor interface {
	// Run executes a command and returns its combined output.
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
	// RunInput executes a command with the given input and returns its
	// stdout. On failure the first bytes of stderr are part of the error.
	RunInput(ctx context.Context, in Input, cmd string, args ...string) ([]byte, error)
}

// RealExecutor calls actual commands.
type RealExecutor struct{}

// Run executes a command and returns its combined output.
func (e *RealExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, cmd, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("exec %s: %w", cmd, err)
	}
	return out, nil
}

// RunInput executes a command with stdin, extra environment and working
// directory taken from in. Stderr is capped at 500 bytes in the returned
// error so large or ANSI-polluted output does not end up in logs. The
// original *exec.ExitError is preserved via wrapping.
func (e *RealExecutor) RunInput(ctx context.Context, in Input, cmd string, args ...string) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	c.Dir = in.Dir
	if len(in.Env) > 0 {
		c.Env = append(os.Environ(), in.Env...)
	}
	c.Stdin = in.Stdin

	var (
		stdout bytes.Buffer
		stderr bytes.Buffer
	)
	c.Stdout = &stdout
	var errw io.Writer = &limitedWriter{buf: &stderr, max: maxStderrLen}
	if in.Stderr != nil {
		errw = io.MultiWriter(errw, in.Stderr)
	}
	c.Stderr = errw

	if err := c.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return stdout.Bytes(), fmt.Errorf("exec %s: %s: %w", cmd, msg, err)
		}
		return stdout.Bytes(), fmt.Errorf("exec %s: %w", cmd, err)
	}
	return stdout.Bytes(), nil
}
