// File: cmd/pagepilot/main_test.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 0, exitCode(fmt.Errorf("server: %w", context.Canceled)), "interrupts exit cleanly")
	assert.Equal(t, 1, exitCode(errors.New("boom")))

	wrap := func(kind schemas.ErrorKind) error {
		return fmt.Errorf("decide: %w", schemas.NewError(kind, "x", nil))
	}
	assert.Equal(t, exitUsage, exitCode(wrap(schemas.ErrKindRequestValidation)))
	assert.Equal(t, exitTempFail, exitCode(wrap(schemas.ErrKindModelInvocation)))
	assert.Equal(t, exitTempFail, exitCode(wrap(schemas.ErrKindSchemaViolation)))
	assert.Equal(t, 1, exitCode(wrap(schemas.ErrKindImageHost)))
}

func TestHandlePanic(t *testing.T) {
	t.Cleanup(resetMocks)

	t.Run("WritesPanicLog", func(t *testing.T) {
		var written string
		var code int
		osWriteFile = func(name string, data []byte, perm os.FileMode) error {
			assert.Equal(t, panicLogFile, name)
			written = string(data)
			return nil
		}
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("kaboom")
		}()

		assert.Equal(t, 2, code)
		assert.Contains(t, written, "panic: kaboom")
		assert.Contains(t, written, "goroutine", "stack trace is included")
	})

	t.Run("WriteFailureStillExits", func(t *testing.T) {
		var code int
		osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only fs") }
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("kaboom")
		}()
		assert.Equal(t, 2, code)
	})

	t.Run("NoPanic", func(t *testing.T) {
		called := false
		osExit = func(int) { called = true }
		func() {
			defer handlePanic()
		}()
		require.False(t, called)
	})
}
