package main

import (
	"fmt"
	"strings"

	"github.com/born-ml/cvae/internal/config"
	"github.com/spf13/cobra"
)

// NewCLI returns the root command.
func NewCLI() *cobra.Command {
	root := &cobra.Command{
		Use:   "cvae",
		Short: "Conditional variational autoencoder for handwritten digits",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SilenceUsage = true
		},
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Show debug logging")
	root.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")

	cobra.EnableCommandSorting = false
	root.AddCommand(
		newTrainCmd(),
		newSampleCmd(),
		newInspectCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cvae %s\n", version)
		},
	}
}

// envHelp documents the environment overrides in the train help text.
func envHelp() string {
	var sb strings.Builder
	sb.WriteString("Environment Variables:\n")
	for _, v := range config.EnvVars() {
		fmt.Fprintf(&sb, "      %-15s %s\n", v.Name, v.Description)
	}
	return sb.String()
}
