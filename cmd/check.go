package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"trainharness/internal/harness"
	"trainharness/internal/logcheck"
	"trainharness/internal/result"
	"trainharness/internal/testcase"
)

func newCheckCmd() *cobra.Command {
	var flagGrep string
	cmd := &cobra.Command{
		Use:   "check [run-dir]",
		Short: "Re-run log checks against an existing run",
		Long:  "Walk a run directory and re-run each case's AFTER_SCRIPT against its captured logs, updating meta.json with the new check outcome.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runDir := args[0]
			cfg, err := harness.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			var metaFiles []string
			err = filepath.Walk(runDir, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return nil
				}
				if info.Name() == "meta.json" {
					metaFiles = append(metaFiles, path)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("walking run dir: %w", err)
			}
			if len(metaFiles) == 0 {
				return fmt.Errorf("no meta.json files found in %s", runDir)
			}

			ctx := context.Background()

			for _, metaPath := range metaFiles {
				caseDir := filepath.Dir(metaPath)
				logDir := filepath.Join(caseDir, "logs")
				meta, err := result.ReadCaseMeta(metaPath)
				if err != nil {
					log.Printf("skipping %s: %v", metaPath, err)
					continue
				}

				if flagGrep != "" {
					found, err := logcheck.Contains(logDir, flagGrep)
					if err != nil {
						log.Printf("skipping %s: %v", metaPath, err)
						continue
					}
					fmt.Printf("%s: pattern %q found=%v\n", meta.Case, flagGrep, found)
					continue
				}

				c, err := testcase.Load(filepath.Join(caseDir, "descriptor.yaml"))
				if err != nil {
					log.Printf("skipping %s: %v", metaPath, err)
					continue
				}

				fmt.Printf("Checking %s (type %s)...\n", meta.Case, meta.TestType)
				check, err := logcheck.RunAfterScript(ctx, c.AfterScript, logDir, c.EnvVars, cfg.Launcher.Shell)
				if err != nil {
					log.Printf("  after script failed to run: %v", err)
					continue
				}

				oldPassed := meta.ChecksPassed
				meta.ChecksPassed = check.Passed()
				meta.CheckExitCode = check.ExitCode
				if err := result.WriteCaseMeta(caseDir, meta); err != nil {
					log.Printf("  failed to write meta: %v", err)
					continue
				}
				fmt.Printf("  checks: %s → %s (exit %d)\n",
					checkWord(oldPassed), checkWord(meta.ChecksPassed), check.ExitCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagGrep, "grep", "", "report presence of a fixed string instead of re-running scripts")
	return cmd
}
