package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCLI replaces the package hooks for one test.
func stubCLI(t *testing.T, execute func(context.Context, []string) error, exitCode func(error) int) {
	t.Helper()
	origExec, origMap, origTerminate := executeCmd, mapExitCode, terminate
	t.Cleanup(func() {
		executeCmd, mapExitCode, terminate = origExec, origMap, origTerminate
	})
	executeCmd = execute
	mapExitCode = exitCode
}

func TestRun_SuccessPassesArgs(t *testing.T) {
	var gotArgs []string
	stubCLI(t,
		func(ctx context.Context, args []string) error {
			require.NotNil(t, ctx)
			gotArgs = append([]string(nil), args...)
			return nil
		},
		func(error) int {
			t.Fatal("mapExitCode should not be called on success")
			return 99
		})

	code := run([]string{"fields", "id", "email", "--output", "json"})

	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"fields", "id", "email", "--output", "json"}, gotArgs)
}

func TestRun_ErrorUsesMappedExitCode(t *testing.T) {
	executeErr := errors.New("boom")
	var mapped error
	stubCLI(t,
		func(context.Context, []string) error { return executeErr },
		func(err error) int {
			mapped = err
			return 4
		})

	assert.Equal(t, 4, run([]string{"contacts", "id", "nobody@example.com"}))
	assert.ErrorIs(t, mapped, executeErr)
}

func TestRun_ExitErrorUsesProcessExitCode(t *testing.T) {
	exitErr := createExitError(t, 7)
	stubCLI(t,
		func(context.Context, []string) error { return exitErr },
		func(error) int {
			t.Fatal("mapExitCode should not be called for ExitError")
			return 99
		})

	assert.Equal(t, 7, run([]string{"auth", "status"}))
}

func TestMain_TerminatesWithRunCode(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	var gotArgs []string
	stubCLI(t,
		func(_ context.Context, args []string) error {
			gotArgs = append([]string(nil), args...)
			return errors.New("boom")
		},
		func(error) int { return 3 })

	gotCode := -1
	terminate = func(code int) { gotCode = code }

	os.Args = []string{"emarsys", "auth", "status", "--json"}
	main()

	assert.Equal(t, 3, gotCode)
	assert.Equal(t, []string{"auth", "status", "--json"}, gotArgs)
}

func createExitError(t *testing.T, code int) *exec.ExitError {
	t.Helper()
	err := exec.Command("sh", "-c", "exit "+strconv.Itoa(code)).Run()
	require.Error(t, err)

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, code, exitErr.ExitCode())
	return exitErr
}
