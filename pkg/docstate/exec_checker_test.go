package docstate

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStub creates an executable shell script standing in for the docs CLI.
func writeStub(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "pdocs")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestExecCheckerValidVerdict(t *testing.T) {
	command := writeStub(t, `echo '{"valid": true}'`)
	checker := NewExecChecker(command, time.Second)

	result, err := checker.Check(context.Background(), "plan", "features/login")
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestExecCheckerInvalidVerdict(t *testing.T) {
	command := writeStub(t, `echo '{"valid": false, "reason": "plan is stale"}'`)
	checker := NewExecChecker(command, time.Second)

	result, err := checker.Check(context.Background(), "plan", ".")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "plan is stale", result.Reason)
}

func TestExecCheckerArguments(t *testing.T) {
	command := writeStub(t, `if [ "$1 $2 $3 $4 $5" = "check features/login --type investigation --json" ]; then
  echo '{"valid": true}'
else
  echo "unexpected arguments: $@" >&2
  exit 1
fi`)
	checker := NewExecChecker(command, time.Second)

	result, err := checker.Check(context.Background(), "investigation", "features/login")
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestExecCheckerMissingBinary(t *testing.T) {
	checker := NewExecChecker("definitely-not-a-real-binary-a8f3", time.Second)

	_, err := checker.Check(context.Background(), "plan", ".")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExecCheckerEmptyCommand(t *testing.T) {
	checker := NewExecChecker("", time.Second)

	_, err := checker.Check(context.Background(), "plan", ".")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExecCheckerNonZeroExit(t *testing.T) {
	command := writeStub(t, `echo "no plan found" >&2
exit 1`)
	checker := NewExecChecker(command, time.Second)

	result, err := checker.Check(context.Background(), "plan", ".")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "no plan found")
}

func TestExecCheckerGarbledOutput(t *testing.T) {
	command := writeStub(t, `echo 'this is not json'`)
	checker := NewExecChecker(command, time.Second)

	_, err := checker.Check(context.Background(), "plan", ".")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestExecCheckerTimeout(t *testing.T) {
	command := writeStub(t, `sleep 5
echo '{"valid": true}'`)
	checker := NewExecChecker(command, 100*time.Millisecond)

	_, err := checker.Check(context.Background(), "plan", ".")
	assert.ErrorIs(t, err, ErrTimeout)
}
