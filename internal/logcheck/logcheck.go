package logcheck

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// prelude supplies default log predicates so descriptors can call them
// without boilerplate. It runs before the descriptor's AFTER_SCRIPT, so a
// script that carries its own check_log/check_log_not definitions overrides
// these. Both take grep arguments (pattern flags, pattern, directory) and
// search recursively; a failed assertion terminates the script with exit 1.
const prelude = `check_log() {
    if grep -rq "$@"; then
        echo "OK"
    else
        echo "check_log failed: $*" >&2
        exit 1
    fi
}
check_log_not() {
    if grep -rq "$@"; then
        echo "check_log_not failed: $*" >&2
        exit 1
    else
        echo "OK"
    fi
}
`

type CheckResult struct {
	ExitCode int
	Output   string
}

func (r *CheckResult) Passed() bool {
	return r.ExitCode == 0
}

// RunAfterScript executes a descriptor's AFTER_SCRIPT with LOG_DIR bound.
// The script's exit code gates case pass/fail: 0 passes, anything else fails.
func RunAfterScript(ctx context.Context, script, logDir string, env map[string]string, shell string) (*CheckResult, error) {
	if shell == "" {
		shell = "bash"
	}

	dir, err := os.MkdirTemp("", "afterscript-")
	if err != nil {
		return nil, fmt.Errorf("creating script dir: %w", err)
	}
	defer os.RemoveAll(dir)

	scriptPath := filepath.Join(dir, "after.sh")
	if err := os.WriteFile(scriptPath, []byte(prelude+script), 0o755); err != nil {
		return nil, fmt.Errorf("writing after script: %w", err)
	}

	cmd := exec.CommandContext(ctx, shell, scriptPath)
	cmd.Env = append(os.Environ(), "LOG_DIR="+logDir)
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	out, err := cmd.CombinedOutput()
	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("running after script: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}
	return &CheckResult{ExitCode: exitCode, Output: string(out)}, nil
}

// Contains reports whether any file under dir contains pattern as a fixed
// string. Used for quick checks without going through a shell.
func Contains(dir, pattern string) (bool, error) {
	found := false
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || found || info.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if strings.Contains(string(data), pattern) {
			found = true
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("searching %s: %w", dir, err)
	}
	return found, nil
}
