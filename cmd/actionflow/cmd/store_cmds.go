package cmd

import (
	"fmt"
	"slices"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(varCmd, secretCmd)
	varCmd.AddCommand(varSetCmd, varListCmd, varDeleteCmd)
	secretCmd.AddCommand(secretSetCmd, secretListCmd, secretDeleteCmd)
}

var varCmd = &cobra.Command{
	Use:   "var",
	Short: "Manage stored flow variables",
}

var varSetCmd = &cobra.Command{
	Use:   "set <flow-name> <name> <value>",
	Short: "Store a variable for a flow; values are parsed like --var",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, newLogger())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return store.SetVariable(ctx, args[0], args[1], parseValue(args[2]))
	},
}

var varListCmd = &cobra.Command{
	Use:   "list <flow-name>",
	Short: "List a flow's stored variables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, newLogger())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		vars, err := store.Variables(ctx, args[0])
		if err != nil {
			return err
		}
		names := make([]string, 0, len(vars))
		for name := range vars {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			raw, err := json.Marshal(vars[name])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", name, raw)
		}
		return nil
	},
}

var varDeleteCmd = &cobra.Command{
	Use:   "delete <flow-name> <name>",
	Short: "Delete a stored variable",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, newLogger())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return store.DeleteVariable(ctx, args[0], args[1])
	},
}

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage sealed secrets available as {{secrets.NAME}}",
}

var secretSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Seal and store a secret",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, err := openVault()
		if err != nil {
			return err
		}
		if vault == nil {
			return errNoVaultKey
		}
		ctx := cmd.Context()
		store, err := openStore(ctx, newLogger())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return store.PutSecret(ctx, args[0], args[1])
	},
}

var secretListCmd = &cobra.Command{
	Use:   "list",
	Short: "List secret names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, newLogger())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		names, err := store.SecretNames(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, newLogger())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return store.DeleteSecret(ctx, args[0])
	},
}
