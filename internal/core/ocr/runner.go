package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// maxStderr caps how much of a tool's stderr ends up in logs and errors.
const maxStderr = 8 << 10

// Runner executes pdftoppm and tesseract; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, logger *slog.Logger, args ...string) (stdout, stderr []byte, err error)
}

// CommandError is a failed tool invocation with its trimmed stderr attached.
type CommandError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Detail is what a caller shows the user: stderr when the tool said
// something, the exit error otherwise.
func (e *CommandError) Detail() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return e.Err.Error()
}

// run calls r and folds a failure into a *CommandError.
func run(ctx context.Context, r Runner, logger *slog.Logger, name string, args ...string) ([]byte, []byte, error) {
	out, errb, err := r.Run(ctx, name, logger, args...)
	if err != nil {
		return out, errb, &CommandError{
			Tool:   name,
			Stderr: truncate(strings.TrimSpace(string(errb)), maxStderr),
			Err:    err,
		}
	}
	return out, errb, nil
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, logger *slog.Logger, args ...string) ([]byte, []byte, error) {
	start := time.Now()
	logger.Debug("running tool", "tool", name, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	attrs := []any{
		"tool", name,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			attrs = append(attrs, "exit_code", exitErr.ExitCode())
		}
		attrs = append(attrs, "error", err, "stderr", truncate(errb.String(), maxStderr))
		logger.Error("tool failed", attrs...)
	} else {
		attrs = append(attrs, "stdout_bytes", out.Len())
		logger.Debug("tool finished", attrs...)
	}
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
