package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finsim/plan-simulator/internal/config"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan.yaml>",
		Short: "Check a plan file and report every problem found",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, settings, err := config.NewInputParser().LoadFromFile(args[0])
			if err != nil {
				var verr *config.ValidationError
				if errors.As(err, &verr) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s has %d problem(s):\n", args[0], len(verr.Problems))
					for _, p := range verr.Problems {
						fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", p)
					}
					return fmt.Errorf("plan is invalid")
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d accounts, %d events, %d iterations\n",
				args[0], len(plan.Accounts), len(plan.Events), settings.Iterations)
			return nil
		},
	}
}
