package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"trainharness/internal/harness"
	"trainharness/internal/launcher"
	"trainharness/internal/report"
	"trainharness/internal/result"
	"trainharness/internal/testcase"
)

var (
	flagCase     string
	flagType     string
	flagParallel int
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute functional-test cases",
		RunE:  runCases,
	}
	cmd.Flags().StringVar(&flagCase, "case", "", "filter to a single case by name")
	cmd.Flags().StringVar(&flagType, "type", "", "filter by test type")
	cmd.Flags().IntVar(&flagParallel, "parallel", 1, "max concurrent cases")
	return cmd
}

func runCases(cmd *cobra.Command, args []string) error {
	cfg, err := harness.Load(cfgFile)
	if err != nil {
		return err
	}

	cases, err := loadCases(cfg, cfgFile)
	if err != nil {
		return err
	}
	cases = filterCases(cases, flagCase, flagType)
	if len(cases) == 0 {
		return fmt.Errorf("no cases match the given filters")
	}

	runDir, err := result.CreateRunDir(cfg.Results.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("Run directory: %s\n", runDir)

	ctx := context.Background()

	if flagParallel > 1 {
		var jobs []launcher.Job
		for _, c := range cases {
			c := c
			jobs = append(jobs, func() error {
				fmt.Printf("Running %s [%s]...\n", c.Name, c.TestType)
				_, err := launcher.RunCase(ctx, &launcher.CaseOpts{
					Case:    c,
					Config:  cfg,
					RunDir:  runDir,
					Timeout: launcher.TimeoutForType(c.TestType, cfg.Launcher.TimeoutMinutes),
				})
				return err
			})
		}
		errs := launcher.RunPool(flagParallel, jobs)
		for _, err := range errs {
			fmt.Printf("  ERROR: %v\n", err)
		}
	} else {
		for _, c := range cases {
			fmt.Printf("Running %s [%s]...\n", c.Name, c.TestType)
			meta, err := launcher.RunCase(ctx, &launcher.CaseOpts{
				Case:    c,
				Config:  cfg,
				RunDir:  runDir,
				Timeout: launcher.TimeoutForType(c.TestType, cfg.Launcher.TimeoutMinutes),
			})
			if err != nil {
				fmt.Printf("  ERROR: %v\n", err)
				continue
			}
			fmt.Printf("  %s (duration: %ds, checks: %s)\n",
				meta.ExitReason, meta.DurationS, checkWord(meta.ChecksPassed))
		}
	}

	fmt.Println("\n--- Results ---")
	return report.Generate(runDir, "table", os.Stdout)
}

func checkWord(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}

func loadCases(cfg *harness.Config, configPath string) ([]*testcase.Case, error) {
	files, err := cfg.ExpandCases(configPath)
	if err != nil {
		return nil, err
	}
	cases := make([]*testcase.Case, 0, len(files))
	for _, f := range files {
		c, err := testcase.Load(f)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func filterCases(cases []*testcase.Case, name, testType string) []*testcase.Case {
	if name == "" && testType == "" {
		return cases
	}
	var filtered []*testcase.Case
	for _, c := range cases {
		if name != "" && c.Name != name && !strings.HasSuffix(c.Name, "_"+name) {
			continue
		}
		if testType != "" && c.TestType != testType {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}
