package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// newRootCmd builds the svcall command tree: a "call" subcommand running
// the default map-and-reduce caller, and a "reduce" subcommand that only
// concatenates shards a prior "call" run left behind.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "svcall",
		Short: "A small-variant caller",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML/JSON/TOML); flags override values it sets")
	root.PersistentFlags().String("logLevel", "info", "log verbosity: error, info, or debug")
	root.PersistentFlags().String("logFilename", "", "structured per-block log output path; empty logs nowhere")
	bindViper(root.PersistentFlags(), "logLevel", "logFilename")

	root.AddCommand(newCallCmd())
	root.AddCommand(newReduceCmd())
	return root
}

// initConfig loads cfgFile into viper, if set. A config-file value takes
// effect only for settings read back through viper.Get* (numberOfJobs,
// logLevel and logFilename), and a flag passed on the command line wins over
// it; every other flag keeps its command-line value or its default.
func initConfig() error {
	if cfgFile == "" {
		return nil
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("reading --config %s: %w", cfgFile, err)
	}
	return nil
}

// bindViper registers a pflag set's named flags with viper under the same
// keys, so viper.Get* falls back to the config file when a flag was not
// passed explicitly on the command line.
func bindViper(flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		if f := flags.Lookup(name); f != nil {
			_ = viper.BindPFlag(name, f)
		}
	}
}
