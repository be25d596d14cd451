package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/action"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/flowbuilder"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mflow"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate <flow-file>",
	Short: "Check a flow document without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		flow, err := loadFlow(args[0])
		if err == nil {
			err = flowbuilder.New(action.NewDefaultRegistry(), newLogger()).Validate(flow)
		}
		if err == nil {
			fmt.Fprintf(out, "%s: ok (%d nodes, %d edges)\n", args[0], len(flow.Nodes), len(flow.Edges))
			return nil
		}

		var verrs mflow.ValidationErrors
		if errors.As(err, &verrs) {
			for _, v := range verrs {
				fmt.Fprintf(out, "%s: %s\n", args[0], v.Error())
			}
			return &exitError{code: 2, msg: fmt.Sprintf("%s: %d problem(s)", args[0], len(verrs))}
		}
		return err
	},
}
