package system

import "github.com/spf13/cobra"

func NewSystemCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Maintenance and tooling commands",
	}

	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewKeysCommand())
	cmd.AddCommand(NewTokenCommand())
	cmd.AddCommand(NewGenDocsCommand())

	return cmd
}
