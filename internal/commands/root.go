// Package commands wires the CLI surface: serve runs the service, migrate
// applies schema migrations, version prints build info.
package commands

import (
	"github.com/spf13/cobra"
)

// Execute runs the CLI application.
func Execute(version string) error {
	root := &cobra.Command{
		Use:           "threadkeep",
		Short:         "Thread follow-up reminders with escalation and retention",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().String("config", "", "Path to YAML config file")

	root.AddCommand(NewServeCmd())
	root.AddCommand(NewMigrateCmd())
	root.AddCommand(NewVersionCmd(version))

	return root.Execute()
}
