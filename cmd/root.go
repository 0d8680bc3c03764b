package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "trainharness",
		Short: "Functional-test harness for Megatron-style training runs",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "harness.yaml", "config file path")
	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newReportCmd())
	return root
}
