package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/action"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/flowbuilder"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd, configKindsCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create the actionflow configuration",
}

// redacted lists settings never printed in clear text.
var redacted = []string{keyVaultKey, keyVaultPassphrase}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings := viper.AllSettings()
		for _, key := range redacted {
			if v, ok := settings[key]; ok && v != "" {
				settings[key] = "********"
			}
		}
		if _, ok := settings[keyDB]; !ok || settings[keyDB] == "" {
			if path, err := dbPath(); err == nil {
				settings[keyDB] = path
			}
		}
		data, err := yaml.Marshal(settings)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# config file: %s\n%s", viper.ConfigFileUsed(), data)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file to $HOME/.actionflow.yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := defaultConfigPath()
		if err != nil {
			return err
		}
		if err := viper.SafeWriteConfigAs(path); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configKindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the node kinds flows may use",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, kind := range flowbuilder.New(action.NewDefaultRegistry(), newLogger()).Kinds() {
			fmt.Fprintln(cmd.OutOrStdout(), kind)
		}
	},
}
