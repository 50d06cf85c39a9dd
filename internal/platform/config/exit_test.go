package config_test

import (
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/louisbranch/contentrepo/internal/platform/config"
)

const exitfChildEnv = "CONTENTREPO_TEST_EXITF_CHILD"

// os.Exit cannot be observed in-process, so the test re-runs itself as a child.
func TestExitfReportsFailedStepAndExits(t *testing.T) {
	if os.Getenv(exitfChildEnv) == "1" {
		config.Exitf("Error: reset %s: %s", "asset_usage", "checkpoint locked")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitfReportsFailedStepAndExits$")
	cmd.Env = append(os.Environ(), exitfChildEnv+"=1")
	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("error = %T %v, want *exec.ExitError", err, err)
	}
	if got := exitErr.ExitCode(); got != 1 {
		t.Fatalf("exit code = %d, want 1", got)
	}
	want := "Error: reset asset_usage: checkpoint locked\n"
	if !strings.Contains(string(out), want) {
		t.Fatalf("output = %q, want it to contain %q", out, want)
	}
}
