package logcheck_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trainharness/internal/logcheck"
)

const rerunResetLine = "Setting rerun_state_machine.current_iteration to 0..."
const rerunValidationWarning = "WARNING:megatron.core.rerun_state_machine:Result validation enabled"

// fixtureScript mirrors a descriptor AFTER_SCRIPT that carries its own
// predicate definitions.
const fixtureScript = `EXIT_CODE=0
check_log() {
    if grep -r -q "$1" "$2"; then
        echo "OK"
    else
        exit 1
    fi
}
check_log_not() {
    if grep -r -q "$1" "$2"; then
        exit 1
    else
        echo "OK"
    fi
}
check_log "Setting rerun_state_machine.current_iteration to 0..." "${LOG_DIR}"
check_log_not "WARNING:megatron.core.rerun_state_machine:Result validation enabled" "${LOG_DIR}"
EXIT_CODE=0
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "run.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing log: %v", err)
	}
	return dir
}

func TestAfterScriptPasses(t *testing.T) {
	logDir := writeLog(t, rerunResetLine+" done\n")

	res, err := logcheck.RunAfterScript(context.Background(), fixtureScript, logDir, nil, "bash")
	if err != nil {
		t.Fatalf("RunAfterScript: %v", err)
	}
	if !res.Passed() {
		t.Errorf("expected pass, got exit %d: %s", res.ExitCode, res.Output)
	}
	if strings.Count(res.Output, "OK") != 2 {
		t.Errorf("expected OK twice, got output %q", res.Output)
	}
}

func TestAfterScriptForbiddenString(t *testing.T) {
	// First check passes, then the forbidden string trips check_log_not
	// before EXIT_CODE=0 is reached.
	logDir := writeLog(t, rerunResetLine+" done\n"+rerunValidationWarning+"\n")

	res, err := logcheck.RunAfterScript(context.Background(), fixtureScript, logDir, nil, "bash")
	if err != nil {
		t.Fatalf("RunAfterScript: %v", err)
	}
	if res.Passed() {
		t.Error("expected failure when forbidden string is present")
	}
	if res.ExitCode != 1 {
		t.Errorf("exit code: got %d, want 1", res.ExitCode)
	}
	if strings.Count(res.Output, "OK") != 1 {
		t.Errorf("expected exactly one OK before the failing check, got %q", res.Output)
	}
}

func TestAfterScriptExpectedStringAbsent(t *testing.T) {
	logDir := writeLog(t, "training finished without rerun output\n")

	res, err := logcheck.RunAfterScript(context.Background(), fixtureScript, logDir, nil, "bash")
	if err != nil {
		t.Fatalf("RunAfterScript: %v", err)
	}
	if res.Passed() {
		t.Error("expected failure when expected string is absent")
	}
	if res.ExitCode != 1 {
		t.Errorf("exit code: got %d, want 1", res.ExitCode)
	}
}

// Scripts without their own definitions fall back to the prelude predicates.
func TestAfterScriptPreludeDefaults(t *testing.T) {
	logDir := writeLog(t, rerunResetLine+"\n")
	script := `check_log -F "` + rerunResetLine + `" "${LOG_DIR}"
check_log_not -F "` + rerunValidationWarning + `" "${LOG_DIR}"
`
	res, err := logcheck.RunAfterScript(context.Background(), script, logDir, nil, "bash")
	if err != nil {
		t.Fatalf("RunAfterScript: %v", err)
	}
	if !res.Passed() {
		t.Errorf("expected pass, got exit %d: %s", res.ExitCode, res.Output)
	}
	if strings.Count(res.Output, "OK") != 2 {
		t.Errorf("expected OK twice, got output %q", res.Output)
	}
}

func TestAfterScriptExtraEnv(t *testing.T) {
	logDir := writeLog(t, "iteration 100/100\n")
	script := `test "$NCCL_ALGO" = "Ring" || exit 1`

	res, err := logcheck.RunAfterScript(context.Background(), script, logDir, map[string]string{"NCCL_ALGO": "Ring"}, "bash")
	if err != nil {
		t.Fatalf("RunAfterScript: %v", err)
	}
	if !res.Passed() {
		t.Errorf("env var not visible to script: %s", res.Output)
	}
}

func TestEmptyScriptPasses(t *testing.T) {
	logDir := writeLog(t, "anything\n")
	res, err := logcheck.RunAfterScript(context.Background(), "", logDir, nil, "bash")
	if err != nil {
		t.Fatalf("RunAfterScript: %v", err)
	}
	if !res.Passed() {
		t.Errorf("empty script should pass, got exit %d", res.ExitCode)
	}
}

func TestContains(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "rank-0")
	os.MkdirAll(sub, 0o755)
	os.WriteFile(filepath.Join(sub, "stdout.log"), []byte("foo\n"+rerunResetLine+"\nbar\n"), 0o644)

	found, err := logcheck.Contains(dir, rerunResetLine)
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !found {
		t.Error("expected pattern to be found in nested log file")
	}

	found, err = logcheck.Contains(dir, rerunValidationWarning)
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if found {
		t.Error("pattern should not be found")
	}
}
