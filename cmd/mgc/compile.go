package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCompileCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "compile FORMULA...",
		Short: "Compile formulas and print their computation graphs",
		Long: `Compiles every formula with one compiler, so later formulas reuse the
nodes of earlier ones, and prints a summary of each model.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.load()
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			out := cmd.OutOrStdout()
			for i, formula := range args {
				m, err := e.comp.Compile(cmd.Context(), formula)
				if err != nil {
					return fmt.Errorf("compile %q: %w", formula, err)
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprint(out, m.Summary())
			}
			return nil
		},
	}
}
