package container_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trainharness/internal/container"
)

func TestRun(t *testing.T) {
	if os.Getenv("TRAINHARNESS_DOCKER_TESTS") == "" {
		t.Skip("set TRAINHARNESS_DOCKER_TESTS=1 to run Docker tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	logDir := t.TempDir()

	result, err := container.Run(ctx, &container.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sh", "-c", "echo 'Setting rerun_state_machine.current_iteration to 0...' > " + logDir + "/run.log"},
		Env:     map[string]string{"LOG_DIR": logDir},
		Timeout: 30 * time.Second,
		Mounts:  []container.Mount{{Source: logDir, Target: logDir}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code: got %d, want 0", result.ExitCode)
	}
	if result.TimedOut {
		t.Error("unexpected timeout")
	}
	if _, err := os.Stat(filepath.Join(logDir, "run.log")); err != nil {
		t.Errorf("log not written through mount: %v", err)
	}
}

func TestRunTimeout(t *testing.T) {
	if os.Getenv("TRAINHARNESS_DOCKER_TESTS") == "" {
		t.Skip("set TRAINHARNESS_DOCKER_TESTS=1 to run Docker tests")
	}
	ctx := context.Background()

	result, err := container.Run(ctx, &container.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sleep", "300"},
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.TimedOut {
		t.Error("expected timeout")
	}
	if result.ExitCode != 124 {
		t.Errorf("exit code: got %d, want 124", result.ExitCode)
	}
}

func TestRunCrash(t *testing.T) {
	if os.Getenv("TRAINHARNESS_DOCKER_TESTS") == "" {
		t.Skip("set TRAINHARNESS_DOCKER_TESTS=1 to run Docker tests")
	}
	ctx := context.Background()

	result, err := container.Run(ctx, &container.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sh", "-c", "exit 1"},
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != 1 {
		t.Errorf("exit code: got %d, want 1", result.ExitCode)
	}
}
