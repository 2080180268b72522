package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finsim/plan-simulator/internal/calculation"
	"github.com/finsim/plan-simulator/internal/config"
	"github.com/finsim/plan-simulator/internal/output"
)

func newRunCommand() *cobra.Command {
	var iterations int
	var seed uint64
	var format string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run <plan.yaml>",
		Short: "Run the Monte Carlo simulation for a plan file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := settingOverrides{
				iterations: iterations,
				seed:       seed,
				seedSet:    cmd.Flags().Changed("seed"),
			}
			return runSimulation(cmd, args[0], format, overrides, verbose)
		},
	}

	cmd.Flags().IntVar(&iterations, "iterations", 0, "override the plan's iteration count")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "override the plan's base random seed")
	cmd.Flags().StringVar(&format, "format", "console",
		fmt.Sprintf("output format: %s", strings.Join(output.AvailableFormatterNames(), ", ")))
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log engine progress to stderr")

	return cmd
}

type settingOverrides struct {
	iterations int
	seed       uint64
	seedSet    bool
}

func runSimulation(cmd *cobra.Command, path, format string, overrides settingOverrides, verbose bool) error {
	plan, settings, err := config.NewInputParser().LoadFromFile(path)
	if err != nil {
		return err
	}
	if overrides.iterations > 0 {
		settings.Iterations = overrides.iterations
	}
	if overrides.seedSet {
		settings.Seed = overrides.seed
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	engine := calculation.NewMonteCarloEngine(plan, settings.Iterations, settings.Seed)
	if verbose {
		engine.SetLogger(calculation.WriterLogger{W: cmd.ErrOrStderr(), Verbose: true})
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	assumptions := output.GenerateAssumptions(plan, settings.Iterations)
	name := output.NormalizeFormatName(format)

	// Formatters that carry assumptions get them injected here.
	var formatter output.Formatter
	switch name {
	case "console":
		formatter = output.ConsoleVerboseFormatter{Assumptions: assumptions}
	case "html":
		formatter = output.HTMLFormatter{Assumptions: assumptions}
	default:
		formatter = output.GetFormatterByName(name)
	}
	if formatter == nil {
		return fmt.Errorf("%w: %q. Try one of: %s (aliases: %s)",
			output.ErrUnsupportedFormat, format,
			strings.Join(output.AvailableFormatterNames(), ", "),
			strings.Join(output.AvailableFormatAliases(), ", "))
	}

	// Console formats print; everything else lands in a file.
	if strings.HasPrefix(formatter.Name(), "console") {
		data, err := formatter.Format(result)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	filename, err := output.WriteFormatted(formatter, result, output.ExtensionFor(formatter.Name()))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", filename)
	return nil
}
