package testutil

import (
	"context"
	"testing"
	"time"
)

// TestEnvironment bundles a context and a scratch directory for tests that
// touch the file system, such as native snapshots
type TestEnvironment struct {
	t       *testing.T
	ctx     context.Context
	cancel  context.CancelFunc
	tempDir string
	cleanup []func()
}

// NewTestEnvironment creates a new test environment. Cleanup runs
// automatically when the test completes.
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	env := &TestEnvironment{
		t:       t,
		ctx:     ctx,
		cancel:  cancel,
		tempDir: t.TempDir(),
	}
	t.Cleanup(env.Cleanup)
	return env
}

// IntegrationTest skips a test in short mode
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// Context returns the test context
func (e *TestEnvironment) Context() context.Context {
	return e.ctx
}

// TempDir returns the scratch directory
func (e *TestEnvironment) TempDir() string {
	return e.tempDir
}

// AddCleanup adds a cleanup function to be called during teardown
func (e *TestEnvironment) AddCleanup(fn func()) {
	e.cleanup = append(e.cleanup, fn)
}

// Cleanup runs all cleanup functions in reverse order
func (e *TestEnvironment) Cleanup() {
	e.cancel()
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		e.cleanup[i]()
	}
	e.cleanup = nil
}
