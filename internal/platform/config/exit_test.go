package config_test

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/louisbranch/ordercore/internal/platform/config"
)

// Exitf calls os.Exit, so the assertions run against a child process rather
// than the test process itself.
func TestExitfTerminatesProcess(t *testing.T) {
	if os.Getenv("ORDERCORE_TEST_EXITF") == "1" {
		config.Exitf("boot failed: %v", os.ErrInvalid)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitfTerminatesProcess$")
	cmd.Env = append(os.Environ(), "ORDERCORE_TEST_EXITF=1")
	out, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("run subprocess: got %T (%v), want *exec.ExitError", err, err)
	}
	if got := exitErr.ExitCode(); got != 1 {
		t.Fatalf("exit code = %d, want 1", got)
	}
	if !strings.Contains(string(out), "boot failed: invalid argument") {
		t.Fatalf("stderr = %q, want message containing %q", string(out), "boot failed: invalid argument")
	}
}
