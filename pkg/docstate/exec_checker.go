package docstate

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/pkg/errors"

	"github.com/stagehand-dev/stagehand/pkg/logger"
)

// ExecChecker shells out to a docs CLI for each check. A missing binary is
// reported as ErrUnavailable so the pipeline can fail open; a present binary
// that exits non-zero is an ordinary invalid verdict.
type ExecChecker struct {
	command string
	timeout time.Duration
}

// NewExecChecker creates a command-based checker.
func NewExecChecker(command string, timeout time.Duration) *ExecChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecChecker{command: command, timeout: timeout}
}

// Check runs `<command> check <featurePath> --type <docType> --json` and
// interprets the JSON verdict on stdout.
func (c *ExecChecker) Check(ctx context.Context, docType, featurePath string) (Result, error) {
	if c.command == "" {
		return Result{}, ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.command, "check", featurePath, "--type", docType, "--json")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return Result{}, errors.Wrapf(ErrTimeout, "checking %s document", docType)
	}

	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return Result{}, ErrUnavailable
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The docs CLI signals a failed check through its exit
			// status; the document is simply not valid.
			logger.G(ctx).WithField("doc_type", docType).
				WithField("stderr", stderr.String()).
				Debug("document check reported invalid")
			return Result{Valid: false, Reason: stderr.String()}, nil
		}

		return Result{}, errors.Wrapf(err, "failed to run %s", c.command)
	}

	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return Result{}, errors.Wrapf(ErrInvalidResponse, "checking %s document: %v", docType, err)
	}

	return result, nil
}
