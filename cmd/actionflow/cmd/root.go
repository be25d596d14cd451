package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	ConfigFileName      = ".actionflow"
	ConfigFileExtension = ".yaml"
	EnvPrefix           = "ACTIONFLOW"
)

// Config keys. Each can be set in the config file or as ACTIONFLOW_<KEY>.
const (
	keyDB          = "db"
	keyMaxParallel = "max_parallel"
	keyVaultKey    = "vault_key"
	keyReport      = "report"
)

var cfgFilePath string

var rootCmd = &cobra.Command{
	Use:   "actionflow",
	Short: "Run and inspect action flows",
	Long: `actionflow executes flow documents: graphs of actions, conditions and loops
whose inputs bind to earlier results with {{ }} references.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFilePath, "config", "", "config file (default is $HOME/.actionflow.yaml)")
	rootCmd.PersistentFlags().String("db", "", "sqlite database for run history, variables and secrets")
	_ = viper.BindPFlag(keyDB, rootCmd.PersistentFlags().Lookup("db"))
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(1)
	}
}

// exitError reports a completed command whose result should still fail the
// process, such as a flow run that did not succeed.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

func initConfig() {
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault(keyMaxParallel, 0)
	viper.SetDefault(keyReport, []string{"console"})

	if cfgFilePath != "" {
		viper.SetConfigFile(cfgFilePath)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error finding home directory: %s\n", err)
			return
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(ConfigFileName)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "error reading config file: %s\n", err)
		}
	}
}

// defaultConfigPath is where `config init` writes.
func defaultConfigPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName+ConfigFileExtension), nil
}

// newLogger builds the CLI logger. LOG_LEVEL selects the level; anything
// unrecognized means ERROR.
func newLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARNING", "WARN":
		level = slog.LevelWarn
	default:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
