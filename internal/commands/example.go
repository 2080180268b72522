package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finsim/plan-simulator/internal/config"
)

func newExampleCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "example",
		Short: "Write a worked example plan file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "-" {
				_, err := cmd.OutOrStdout().Write([]byte(config.ExamplePlan))
				return err
			}
			if err := config.WriteExamplePlan(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Example plan written to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "plan.example.yaml", "destination file, or - for stdout")

	return cmd
}
