package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cinematch",
		Short:         "Group movie matching server.",
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := cmd.PersistentFlags()
	pf.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	pf.String("config", "", "path to a YAML config file (default config/config.$CONFIG_ENV.yaml)")
	pf.String("log-level", "info", "log level (env: CINEMATCH_LOG_LEVEL)")

	cmd.AddCommand(newServeCmd(), newTokenCmd())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("cinematch v{{.Version}}\n")
	return cmd
}
