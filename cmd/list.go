package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"trainharness/internal/harness"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured test cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := harness.Load(cfgFile)
			if err != nil {
				return err
			}
			cases, err := loadCases(cfg, cfgFile)
			if err != nil {
				return err
			}
			fmt.Println("Cases:")
			for _, c := range cases {
				fmt.Printf("  - %s [%s] (%d flags)\n", c.Name, c.TestType, len(c.ModelArgs))
			}
			return nil
		},
	}
}
