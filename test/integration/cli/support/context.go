package support

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvBinary names the environment variable holding the CLI binary path.
const EnvBinary = "GRIDSPLIT_BIN"

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastStdout   string
	LastOutput   string // stdout and stderr
	LastError    error
	LastExitCode int

	// Test environment
	TempDir string
	EnvVars []string

	// Server state
	HTTPTestServer     *HTTPTestServerWrapper
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    map[string]string
	LastStreamMessages []streamMessage
}

// NewTestContext creates a scenario context with its own temp directory.
// Commands run inside that directory so feature files can use relative
// paths.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "gridsplit-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{
		TempDir: tempDir,
		// Keep config files of the developer's machine out of the scenarios.
		EnvVars: []string{"HOME=" + tempDir, "XDG_CONFIG_HOME=" + filepath.Join(tempDir, ".config")},
	}, nil
}

// Cleanup stops the server and removes the temp directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []string
	if err := testCtx.StopServer(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Sprintf("failed to remove temp directory %s: %v", testCtx.TempDir, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// Path resolves name inside the scenario directory.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}
