package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"trainharness/internal/harness"
	"trainharness/internal/launcher"
)

// render is a dry run: it prints the environment and CLI invocation each
// selected case would produce, with placeholders resolved against a symbolic
// run directory. Useful for reviewing a descriptor before burning GPU hours.
func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the resolved invocation for each case without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			for _, c := range cases {
				caseDir := filepath.Join("<run-dir>", "cases", c.Name)
				logDir := filepath.Join(caseDir, "logs")
				pathVars := launcher.PathVars(cfg, caseDir, logDir)

				env, err := launcher.ChildEnv(cfg, c, pathVars)
				if err != nil {
					return err
				}
				argv, err := harness.ResolveAll(
					append(append([]string{}, cfg.Launcher.Entrypoint...), c.ModelArgs.Argv()...),
					pathVars)
				if err != nil {
					return fmt.Errorf("case %s: %w", c.Name, err)
				}

				fmt.Printf("%s [%s]\n", c.Name, c.TestType)
				keys := make([]string, 0, len(env))
				for k := range env {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Printf("  %s=%s\n", k, env[k])
				}
				fmt.Printf("  %s\n\n", strings.Join(argv, " "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagCase, "case", "", "filter to a single case by name")
	cmd.Flags().StringVar(&flagType, "type", "", "filter by test type")
	return cmd
}
