package launcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"trainharness/internal/container"
	"trainharness/internal/harness"
	"trainharness/internal/logcheck"
	"trainharness/internal/result"
	"trainharness/internal/testcase"
)

type CaseOpts struct {
	Case    *testcase.Case
	Config  *harness.Config
	RunDir  string
	Timeout time.Duration
}

// Well-known path placeholders that default to per-case subdirectories when
// the harness config leaves them unset. CHECKPOINT_LOAD_PATH falls back to
// the save path so resume reads what the first invocation wrote.
var defaultPathDirs = map[string]string{
	"CHECKPOINT_SAVE_PATH": "checkpoints",
	"CHECKPOINT_LOAD_PATH": "checkpoints",
	"DATA_CACHE_PATH":      "data-cache",
	"TENSORBOARD_PATH":     "tensorboard",
}

func ExitReasonFromCode(code int, timedOut bool) string {
	if timedOut {
		return "timeout"
	}
	switch code {
	case 0:
		return "completed"
	case 137:
		return "killed"
	default:
		return "crashed"
	}
}

// TimeoutForType picks the wall-clock limit for a case. An explicit
// launcher.timeout_minutes wins over the per-type fallback.
func TimeoutForType(testType string, configMinutes int) time.Duration {
	if configMinutes > 0 {
		return time.Duration(configMinutes) * time.Minute
	}
	switch testType {
	case "ckpt-resume", "frozen-resume":
		return 40 * time.Minute
	case "release":
		return 2 * time.Hour
	default:
		return 20 * time.Minute
	}
}

// RunCase executes one descriptor end to end: resolve paths, export
// ENV_VARS, launch the training entry point with the flattened MODEL_ARGS,
// capture logs, run the AFTER_SCRIPT checks, and persist meta.json.
func RunCase(ctx context.Context, opts *CaseOpts) (*result.CaseMeta, error) {
	c := opts.Case
	cfg := opts.Config

	caseDir := result.CaseDir(opts.RunDir, c.Name)
	logDir := filepath.Join(caseDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}

	// Keep a copy of the descriptor next to the results so checks can be
	// re-run later without the original tree.
	if data, err := os.ReadFile(c.Path); err == nil {
		if writeErr := os.WriteFile(filepath.Join(caseDir, "descriptor.yaml"), data, 0o644); writeErr != nil {
			log.Printf("warning: copying descriptor: %v", writeErr)
		}
	}

	pathVars, err := bindPaths(cfg, caseDir, logDir)
	if err != nil {
		return nil, err
	}

	env, err := ChildEnv(cfg, c, pathVars)
	if err != nil {
		return nil, err
	}

	argv, err := harness.ResolveAll(append(append([]string{}, cfg.Launcher.Entrypoint...), c.ModelArgs.Argv()...), pathVars)
	if err != nil {
		return nil, fmt.Errorf("resolving model args: %w", err)
	}

	if c.BeforeScript != "" {
		if err := runScript(ctx, cfg.Launcher.Shell, c.BeforeScript, env, filepath.Join(caseDir, "before.log")); err != nil {
			return nil, fmt.Errorf("before script: %w", err)
		}
	}

	// ckpt-resume cases train twice against the same LOG_DIR: the first
	// invocation writes checkpoints, the second resumes from them.
	invocations := 1
	if c.TestType == "ckpt-resume" || c.TestType == "frozen-resume" {
		invocations = 2
	}

	meta := &result.CaseMeta{Case: c.Name, TestType: c.TestType}
	var totalDuration time.Duration
	for i := 1; i <= invocations; i++ {
		res, err := launch(ctx, cfg, argv, env, pathVars, logDir, i, opts.Timeout)
		if err != nil {
			return nil, err
		}
		totalDuration += res.Duration
		meta.Invocations = i
		meta.ExitCode = res.ExitCode
		meta.ExitReason = ExitReasonFromCode(res.ExitCode, res.TimedOut)
		if res.ExitCode != 0 {
			break
		}
	}
	meta.DurationS = int(totalDuration.Seconds())

	check, err := logcheck.RunAfterScript(ctx, c.AfterScript, logDir, env, cfg.Launcher.Shell)
	if err != nil {
		return nil, fmt.Errorf("after script: %w", err)
	}
	meta.ChecksPassed = check.Passed()
	meta.CheckExitCode = check.ExitCode
	if err := os.WriteFile(filepath.Join(caseDir, "after.log"), []byte(check.Output), 0o644); err != nil {
		log.Printf("warning: writing after.log: %v", err)
	}

	if err := result.WriteCaseMeta(caseDir, meta); err != nil {
		return nil, fmt.Errorf("writing meta: %w", err)
	}
	return meta, nil
}

type launchResult struct {
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

func launch(ctx context.Context, cfg *harness.Config, argv []string, env, pathVars map[string]string, logDir string, invocation int, timeout time.Duration) (*launchResult, error) {
	if cfg.Container.Image != "" {
		return launchContainer(ctx, cfg, argv, env, pathVars, logDir, timeout)
	}
	return launchLocal(ctx, cfg, argv, env, logDir, invocation, timeout)
}

func launchLocal(ctx context.Context, cfg *harness.Config, argv []string, env map[string]string, logDir string, invocation int, timeout time.Duration) (*launchResult, error) {
	logPath := filepath.Join(logDir, fmt.Sprintf("run-%d.log", invocation))
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("creating run log: %w", err)
	}
	defer logFile.Close()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, argv[0], argv[1:]...)
	cmd.Dir = cfg.Launcher.WorkDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if timeoutCtx.Err() == context.DeadlineExceeded {
		return &launchResult{ExitCode: 124, TimedOut: true, Duration: duration}, nil
	}
	exitCode := 0
	if runErr != nil {
		exitErr, ok := runErr.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("launching %s: %w", argv[0], runErr)
		}
		exitCode = exitErr.ExitCode()
	}
	return &launchResult{ExitCode: exitCode, Duration: duration}, nil
}

func launchContainer(ctx context.Context, cfg *harness.Config, argv []string, env, pathVars map[string]string, logDir string, timeout time.Duration) (*launchResult, error) {
	// Bind every bound path at the identical container path so the resolved
	// argv and env values stay valid inside the container.
	mounts := []container.Mount{{Source: logDir, Target: logDir}}
	seen := map[string]bool{logDir: true}
	for name, dir := range pathVars {
		if name == "LOG_DIR" || seen[dir] {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		seen[dir] = true
		mounts = append(mounts, container.Mount{
			Source:   dir,
			Target:   dir,
			ReadOnly: name == "DATA_PATH",
		})
	}

	res, err := container.Run(ctx, &container.RunOpts{
		Image:   cfg.Container.Image,
		Command: argv,
		WorkDir: cfg.Launcher.WorkDir,
		Env:     env,
		Timeout: timeout,
		Mounts:  mounts,
		GPUs:    cfg.Container.GPUs,
	})
	if err != nil {
		return nil, err
	}
	return &launchResult{ExitCode: res.ExitCode, TimedOut: res.TimedOut, Duration: res.Duration}, nil
}

// PathVars builds the placeholder table for a case: configured paths, plus
// per-case defaults for the well-known checkpoint/cache/tensorboard dirs,
// plus LOG_DIR.
func PathVars(cfg *harness.Config, caseDir, logDir string) map[string]string {
	vars := map[string]string{"LOG_DIR": logDir}
	for name, dir := range cfg.Paths {
		vars[name] = dir
	}
	for name, sub := range defaultPathDirs {
		if _, ok := vars[name]; !ok {
			vars[name] = filepath.Join(caseDir, sub)
		}
	}
	return vars
}

func bindPaths(cfg *harness.Config, caseDir, logDir string) (map[string]string, error) {
	vars := PathVars(cfg, caseDir, logDir)
	for name, dir := range vars {
		if name == "DATA_PATH" {
			continue // may be a file prefix owned by the cluster, never created here
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s dir: %w", name, err)
		}
	}
	return vars, nil
}

// ChildEnv merges, in increasing precedence: the harness env file, the
// descriptor's ENV_VARS, and the path bindings.
func ChildEnv(cfg *harness.Config, c *testcase.Case, pathVars map[string]string) (map[string]string, error) {
	env := map[string]string{}
	if cfg.EnvFile != "" {
		fileEnv, err := harness.ParseEnvFile(cfg.EnvFile)
		if err != nil {
			return nil, err
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}
	for k, v := range c.EnvVars {
		env[k] = v
	}
	for k, v := range pathVars {
		env[k] = v
	}
	return env, nil
}

// runScript executes a descriptor-level shell snippet. Placeholders are left
// to the shell: every path binding is exported in env, so ${VAR} and the
// richer ${VAR:?} forms both work.
func runScript(ctx context.Context, shell, script string, env map[string]string, outPath string) error {
	if shell == "" {
		shell = "bash"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", script)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	out, err := cmd.CombinedOutput()
	if writeErr := os.WriteFile(outPath, out, 0o644); writeErr != nil {
		log.Printf("warning: writing %s: %v", filepath.Base(outPath), writeErr)
	}
	if err != nil {
		return fmt.Errorf("%s: %s", strings.TrimSpace(string(out)), err)
	}
	return nil
}
